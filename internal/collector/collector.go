package collector

import (
	"context"
	"fmt"

	"NewsPipeline/internal/domain"
)

// Request carries everything a collector strategy needs for one source.
type Request struct {
	Source  domain.ArticleSource
	URL     string
	APIKey  string
	Options map[string]string
}

// Collector captures a single source strategy (feed, market data, scrape).
type Collector interface {
	Kind() domain.SourceKind
	// Validate rejects a malformed source before any network access.
	Validate(req Request) error
	Collect(ctx context.Context, req Request) ([]domain.CollectedArticle, error)
}

// Registry keeps a mapping from source kinds to their implementations.
type Registry struct {
	collectors map[domain.SourceKind]Collector
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{collectors: map[domain.SourceKind]Collector{}}
}

// Register adds or replaces a collector implementation.
func (r *Registry) Register(c Collector) {
	if r.collectors == nil {
		r.collectors = map[domain.SourceKind]Collector{}
	}
	r.collectors[c.Kind()] = c
}

// Resolve returns a collector by kind or an error if it is absent.
func (r *Registry) Resolve(kind domain.SourceKind) (Collector, error) {
	if c, ok := r.collectors[kind]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("collector for kind %q is not registered", kind)
}
