package domains

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListMatches(t *testing.T) {
	t.Parallel()

	list := NewList([]string{"example-paywall.test", " WSJ.com ", "https://www.ft.com/", ""})
	assert.Equal(t, 3, list.Len())

	cases := []struct {
		url  string
		want bool
	}{
		{"https://example-paywall.test/story/1", true},
		{"https://news.example-paywall.test/story/1", true},
		{"https://www.wsj.com/articles/x", true},
		{"https://markets.wsj.com/x", true},
		{"https://ft.com/content/abc", true},
		{"https://notwsj.com/x", false},
		{"https://example.com/x", false},
		{"::not a url", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, list.Matches(tc.url), tc.url)
	}
}

func TestEmptyListNeverMatches(t *testing.T) {
	t.Parallel()

	assert.False(t, NewList(nil).Matches("https://example.com"))
}

func TestHost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "reuters.com", Host("https://www.Reuters.com/markets"))
	assert.Equal(t, "", Host("%%%"))
}
