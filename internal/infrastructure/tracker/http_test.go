package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/ports"
)

type recordedRequest struct {
	method, path, query, auth string
	body                      map[string]string
}

func newTestServer(t *testing.T, status int, response string) (*HTTPTracker, <-chan recordedRequest) {
	t.Helper()

	requests := make(chan recordedRequest, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, auth: r.Header.Get("Authorization")}
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
		requests <- rec

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	return NewHTTPTracker(config.TrackerConfig{BaseURL: srv.URL + "/api/", Token: "secret", Project: "news", Timeout: time.Second}), requests
}

func TestHTTPCreateItem(t *testing.T) {
	t.Parallel()

	tr, requests := newTestServer(t, http.StatusCreated, `{"id":"it-1","url":"https://board/it-1"}`)

	ref, err := tr.CreateItem(context.Background(), ports.ItemDraft{Title: "T", Body: "B", URL: "https://wire/x", Destination: "Markets"})
	require.NoError(t, err)
	assert.Equal(t, ports.ItemRef{ID: "it-1", URL: "https://board/it-1"}, ref)

	got := <-requests
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/api/items", got.path)
	assert.Equal(t, "Bearer secret", got.auth)
	assert.Equal(t, map[string]string{
		"project": "news", "title": "T", "body": "B", "source_url": "https://wire/x", "destination": "Markets",
	}, got.body)
}

func TestHTTPCreateItemConflict(t *testing.T) {
	t.Parallel()

	tr, _ := newTestServer(t, http.StatusConflict, `{"id":"it-9"}`)
	ref, err := tr.CreateItem(context.Background(), ports.ItemDraft{URL: "https://wire/x"})
	require.ErrorIs(t, err, ports.ErrAlreadyExists)
	assert.Equal(t, "it-9", ref.ID)

	tr, _ = newTestServer(t, http.StatusConflict, ``)
	ref, err = tr.CreateItem(context.Background(), ports.ItemDraft{URL: "https://wire/x"})
	require.ErrorIs(t, err, ports.ErrAlreadyExists)
	assert.Empty(t, ref.ID)
}

func TestHTTPCreateItemServerError(t *testing.T) {
	t.Parallel()

	tr, _ := newTestServer(t, http.StatusInternalServerError, `boom`)
	_, err := tr.CreateItem(context.Background(), ports.ItemDraft{URL: "https://wire/x"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrAlreadyExists)
	assert.Contains(t, err.Error(), "boom")
}

func TestHTTPUpdateFields(t *testing.T) {
	t.Parallel()

	tr, requests := newTestServer(t, http.StatusNoContent, ``)
	err := tr.UpdateFields(context.Background(), "it 1", ports.FieldUpdate{Status: "opt-1", Date: time.Date(2026, 5, 10, 23, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	got := <-requests
	assert.Equal(t, http.MethodPatch, got.method)
	assert.Equal(t, "/api/items/it 1/fields", got.path)
	assert.Equal(t, map[string]string{"status": "opt-1", "date": "2026-05-10"}, got.body)

	assert.Error(t, tr.UpdateFields(context.Background(), "", ports.FieldUpdate{}))
}

func TestHTTPListRecentURLs(t *testing.T) {
	t.Parallel()

	tr, requests := newTestServer(t, http.StatusOK,
		`{"items":[{"id":"1","source_url":"https://wire/a"},{"id":"2"},{"id":"3","source_url":"https://wire/b"}]}`)

	urls, err := tr.ListRecentURLs(context.Background(), time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://wire/a", "https://wire/b"}, urls)

	got := <-requests
	assert.Equal(t, http.MethodGet, got.method)
	assert.Equal(t, "project=news&since=2026-05-03T00%3A00%3A00Z", got.query)
}

func TestHTTPTrackerRequiresBaseURL(t *testing.T) {
	t.Parallel()

	tr := NewHTTPTracker(config.TrackerConfig{})
	_, err := tr.ListRecentURLs(context.Background(), time.Now())
	require.Error(t, err)
}
