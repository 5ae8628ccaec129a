// Package domains matches article URLs against configured domain lists.
package domains

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// List is a set of domains matched exactly or by subdomain.
type List struct {
	entries map[string]struct{}
}

// NewList normalizes the configured entries. Blank entries are ignored.
func NewList(entries []string) List {
	l := List{entries: make(map[string]struct{}, len(entries))}
	for _, e := range entries {
		if host := normalizeHost(e); host != "" {
			l.entries[host] = struct{}{}
		}
	}
	return l
}

// Len returns the number of configured domains.
func (l List) Len() int {
	return len(l.entries)
}

// Matches reports whether the URL's host or its registrable domain is listed.
// A URL that cannot be parsed never matches.
func (l List) Matches(rawURL string) bool {
	if len(l.entries) == 0 {
		return false
	}
	host := Host(rawURL)
	if host == "" {
		return false
	}

	for candidate := host; candidate != ""; candidate = parentDomain(candidate) {
		if _, ok := l.entries[candidate]; ok {
			return true
		}
	}

	if registrable, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		if _, ok := l.entries[registrable]; ok {
			return true
		}
	}
	return false
}

// Host extracts the lower-cased hostname of rawURL.
func Host(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return normalizeHost(parsed.Hostname())
}

func normalizeHost(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if strings.Contains(value, "://") {
		if parsed, err := url.Parse(value); err == nil {
			value = parsed.Hostname()
		}
	}
	value = strings.TrimPrefix(value, "*.")
	value = strings.TrimPrefix(value, "www.")
	return strings.Trim(value, ".")
}

func parentDomain(host string) string {
	idx := strings.IndexByte(host, '.')
	if idx < 0 {
		return ""
	}
	return host[idx+1:]
}
