package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsPipeline/internal/collector"
	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/identity"
)

// FeedCollector reads RSS/Atom feeds.
type FeedCollector struct {
	client   *http.Client
	identity *identity.Pool
}

var _ collector.Collector = (*FeedCollector)(nil)

// NewFeedCollector wires an HTTP client; a nil client gets a 20s timeout.
func NewFeedCollector(client *http.Client, pool *identity.Pool) *FeedCollector {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &FeedCollector{client: client, identity: pool}
}

// Kind identifies the strategy inside the registry.
func (f *FeedCollector) Kind() domain.SourceKind {
	return domain.SourceFeed
}

// Validate requires an absolute http(s) feed URL.
func (f *FeedCollector) Validate(req collector.Request) error {
	return validateHTTPURL(req.URL)
}

// Collect parses the feed and maps every item with a link.
func (f *FeedCollector) Collect(ctx context.Context, req collector.Request) ([]domain.CollectedArticle, error) {
	fp := gofeed.NewParser()
	fp.Client = f.client
	fp.UserAgent = f.identity.UserAgent()

	feed, err := fp.ParseURLWithContext(req.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	articles := make([]domain.CollectedArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}

		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}

		articles = append(articles, domain.CollectedArticle{
			URL:         link,
			Title:       strings.TrimSpace(item.Title),
			PublishedAt: published,
			RawSummary:  strings.TrimSpace(item.Description),
			Source:      req.Source,
		})
	}
	return articles, nil
}

func validateHTTPURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %s: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid url scheme %q (must be http or https)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("missing host in url %s", raw)
	}
	return nil
}
