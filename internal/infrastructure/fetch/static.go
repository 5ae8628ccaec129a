// Package fetch implements the fast extraction path: a plain HTTP fetch
// parsed without executing page scripts.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeberg.org/readeck/go-readability/v2"

	"NewsPipeline/internal/content"
	"NewsPipeline/internal/identity"
	"NewsPipeline/internal/ports"
)

const maxBodyBytes = 8 << 20

// StaticFetcher downloads a page and extracts its readable text.
type StaticFetcher struct {
	client   *http.Client
	identity *identity.Pool
}

var _ ports.PageFetcher = (*StaticFetcher)(nil)

// NewStaticFetcher wires an HTTP client. Per-call deadlines come from the context.
func NewStaticFetcher(client *http.Client, pool *identity.Pool) *StaticFetcher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &StaticFetcher{client: client, identity: pool}
}

// FetchText returns the page's main text, possibly short or empty.
func (f *StaticFetcher) FetchText(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %s: %w", pageURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.identity.UserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned %s", resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}

	return readableText(raw, parsed), nil
}

// readableText prefers readability's rendering and falls back to paragraph text.
func readableText(raw []byte, pageURL *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(raw), pageURL)
	if err == nil {
		var buf strings.Builder
		if err := article.RenderText(&buf); err == nil {
			if text := content.Normalize(buf.String()); text != "" {
				return text
			}
		}
	}
	return content.ParagraphText(string(raw))
}
