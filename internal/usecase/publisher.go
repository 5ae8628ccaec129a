package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"text/template"
	"time"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

// StatusMapper resolves routing categories to tracker statuses.
// Both lookups fall back to a default and never fail.
type StatusMapper interface {
	StatusFor(category string) string
	StatusID(label string) string
}

// PublisherConfig tunes the publication stage.
type PublisherConfig struct {
	Concurrency int
	DedupWindow time.Duration
	Statuses    StatusMapper
}

// PublisherDeps wires the tracker adapter.
type PublisherDeps struct {
	Tracker ports.Tracker
	Config  PublisherConfig
	Logger  *slog.Logger
	Now     func() time.Time
}

// Publisher creates one tracker item per summarized article.
type Publisher struct {
	tracker ports.Tracker
	cfg     PublisherConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewPublisher constructs the publication stage.
func NewPublisher(deps PublisherDeps) *Publisher {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Publisher{tracker: deps.Tracker, cfg: deps.Config, logger: deps.Logger, now: now}
}

// Publish publishes a single article against a freshly loaded dedup set.
func (p *Publisher) Publish(ctx context.Context, article domain.SummarizedArticle, dryRun bool) domain.PublishedArticle {
	return p.PublishBatch(ctx, []domain.SummarizedArticle{article}, dryRun)[0]
}

// PublishBatch loads recently published URLs once, then publishes every
// article against that set. Successful writes are added to the set
// immediately so a URL repeated within the batch is reported as duplicate.
func (p *Publisher) PublishBatch(ctx context.Context, articles []domain.SummarizedArticle, dryRun bool) []domain.PublishedArticle {
	pending := 0
	for _, a := range articles {
		if a.Summary != nil {
			pending++
		}
	}

	var (
		seen    *dedupSet
		loadErr error
	)
	if pending > 0 {
		seen, loadErr = p.loadRecent(ctx)
		if loadErr != nil {
			p.warn("load recent tracker items", "error", loadErr)
		}
	}

	return runBatch(ctx, articles, p.cfg.Concurrency,
		func(ctx context.Context, a domain.SummarizedArticle) domain.PublishedArticle {
			if a.Summary == nil {
				return skippedPublication(a)
			}
			if loadErr != nil {
				return domain.PublishedArticle{
					Summarized: a,
					Status:     domain.PublicationFailed,
					Error:      fmt.Sprintf("dedup lookup failed: %v", loadErr),
				}
			}
			return p.publishOne(ctx, a, dryRun, seen)
		},
		func(a domain.SummarizedArticle, err error) domain.PublishedArticle {
			p.warn("publication panicked", "url", a.Extracted.Collected.URL, "error", err)
			return domain.PublishedArticle{Summarized: a, Status: domain.PublicationFailed, Error: err.Error()}
		})
}

func (p *Publisher) loadRecent(ctx context.Context) (*dedupSet, error) {
	if p.tracker == nil {
		return nil, errors.New("no tracker configured")
	}
	since := p.now().Add(-p.cfg.DedupWindow)
	urls, err := p.tracker.ListRecentURLs(ctx, since)
	if err != nil {
		return nil, err
	}
	p.debug("loaded recent tracker items", "count", len(urls), "since", since)
	return newDedupSet(urls), nil
}

func (p *Publisher) publishOne(ctx context.Context, article domain.SummarizedArticle, dryRun bool, seen *dedupSet) domain.PublishedArticle {
	collected := article.Extracted.Collected
	label, statusID := p.resolveStatus(collected.Source.RoutingCategory)

	unlock := seen.lock(collected.URL)
	defer unlock()

	if seen.contains(collected.URL) {
		p.debug("duplicate article", "url", collected.URL)
		return domain.PublishedArticle{
			Summarized: article,
			Status:     domain.PublicationDuplicate,
			Error:      "already published within dedup window",
		}
	}

	if dryRun {
		seen.add(collected.URL)
		p.info("dry run: would publish", "url", collected.URL, "status", label)
		return domain.PublishedArticle{Summarized: article, Status: domain.PublicationSuccess}
	}

	body, err := RenderItemBody(article)
	if err != nil {
		return domain.PublishedArticle{Summarized: article, Status: domain.PublicationFailed, Error: err.Error()}
	}

	ref, err := p.tracker.CreateItem(ctx, ports.ItemDraft{
		Title:       collected.Title,
		Body:        body,
		URL:         collected.URL,
		Destination: label,
	})

	var warning string
	switch {
	case errors.Is(err, ports.ErrAlreadyExists):
		seen.add(collected.URL)
		if ref.ID == "" {
			p.warn("item exists but tracker returned no identifier", "url", collected.URL)
			return domain.PublishedArticle{
				Summarized: article,
				Status:     domain.PublicationDuplicate,
				Error:      "warning: item already exists and no identifier was returned; field update skipped",
			}
		}
		p.info("item already exists, updating fields", "url", collected.URL, "id", ref.ID)
	case err != nil:
		p.warn("create tracker item", "url", collected.URL, "error", err)
		return domain.PublishedArticle{Summarized: article, Status: domain.PublicationFailed, Error: err.Error()}
	default:
		seen.add(collected.URL)
	}

	if ref.ID == "" {
		warning = "warning: tracker returned no identifier; field update skipped"
		p.warn("created item without identifier", "url", collected.URL)
	} else if err := p.tracker.UpdateFields(ctx, ref.ID, ports.FieldUpdate{Status: statusID, Date: p.itemDate(collected)}); err != nil {
		p.warn("update tracker fields", "url", collected.URL, "id", ref.ID, "error", err)
		return domain.PublishedArticle{
			Summarized:  article,
			ExternalID:  ref.ID,
			ExternalURL: ref.URL,
			Status:      domain.PublicationFailed,
			Error:       fmt.Sprintf("update fields: %v", err),
		}
	}

	return domain.PublishedArticle{
		Summarized:  article,
		ExternalID:  ref.ID,
		ExternalURL: ref.URL,
		Status:      domain.PublicationSuccess,
		Error:       warning,
	}
}

func (p *Publisher) resolveStatus(category string) (label, id string) {
	if p.cfg.Statuses == nil {
		return category, category
	}
	label = p.cfg.Statuses.StatusFor(category)
	return label, p.cfg.Statuses.StatusID(label)
}

func (p *Publisher) itemDate(c domain.CollectedArticle) time.Time {
	if c.PublishedAt != nil {
		return *c.PublishedAt
	}
	if !c.CollectedAt.IsZero() {
		return c.CollectedAt
	}
	return p.now()
}

func skippedPublication(a domain.SummarizedArticle) domain.PublishedArticle {
	return domain.PublishedArticle{Summarized: a, Status: domain.PublicationSkipped, Error: "no summary"}
}

var itemBodyTemplate = template.Must(template.New("item").Parse(`## Overview

{{.Overview}}

## Key points
{{range .KeyPoints}}
- {{.}}{{end}}

## Market impact

{{.MarketImpact}}
{{if .RelatedInfo}}
## Related

{{.RelatedInfo}}
{{end}}
---
Source: [{{.Source}}]({{.URL}}) | Published: {{.Published}}
`))

type itemBodyView struct {
	Overview     string
	KeyPoints    []string
	MarketImpact string
	RelatedInfo  string
	Source       string
	URL          string
	Published    string
}

// RenderItemBody formats the summary as the Markdown body of a tracker item.
func RenderItemBody(article domain.SummarizedArticle) (string, error) {
	if article.Summary == nil {
		return "", errors.New("render item body: no summary")
	}
	c := article.Extracted.Collected
	view := itemBodyView{
		Overview:     article.Summary.Overview,
		KeyPoints:    article.Summary.KeyPoints,
		MarketImpact: article.Summary.MarketImpact,
		Source:       c.Source.DisplayName,
		URL:          c.URL,
		Published:    "unknown",
	}
	if article.Summary.RelatedInfo != nil {
		view.RelatedInfo = *article.Summary.RelatedInfo
	}
	if c.PublishedAt != nil {
		view.Published = c.PublishedAt.UTC().Format("2006-01-02 15:04 MST")
	}

	var buf bytes.Buffer
	if err := itemBodyTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render item body: %w", err)
	}
	return buf.String(), nil
}

// dedupSet holds URLs already on the tracker. It only grows during a batch.
type dedupSet struct {
	mu    sync.Mutex
	urls  map[string]struct{}
	locks map[string]*sync.Mutex
}

func newDedupSet(urls []string) *dedupSet {
	d := &dedupSet{urls: make(map[string]struct{}, len(urls)), locks: map[string]*sync.Mutex{}}
	for _, u := range urls {
		d.urls[dedupKey(u)] = struct{}{}
	}
	return d
}

// lock serializes work on one URL so concurrent copies cannot both be created.
func (d *dedupSet) lock(raw string) func() {
	key := dedupKey(raw)
	d.mu.Lock()
	l, ok := d.locks[key]
	if !ok {
		l = &sync.Mutex{}
		d.locks[key] = l
	}
	d.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (d *dedupSet) contains(raw string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.urls[dedupKey(raw)]
	return ok
}

func (d *dedupSet) add(raw string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls[dedupKey(raw)] = struct{}{}
}

// dedupKey ignores scheme and host case, fragments and a trailing slash.
func dedupKey(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(raw, "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

func (p *Publisher) debug(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Publisher) info(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Publisher) warn(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
