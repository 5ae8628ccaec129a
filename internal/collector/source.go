package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/domains"
	"NewsPipeline/internal/ports"
)

// ErrNoSources aborts a run: there is nothing to collect from.
var ErrNoSources = errors.New("no sources configured")

// MultiSource implements ArticleSource via registered collector strategies.
type MultiSource struct {
	registry *Registry
	sources  []config.SourceConfig
	blocked  domains.List
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

var _ ports.ArticleSource = (*MultiSource)(nil)

// NewMultiSource wires the collector registry with config-defined sources.
func NewMultiSource(reg *Registry, sources []config.SourceConfig, cfg config.CollectionConfig, log *slog.Logger) *MultiSource {
	return &MultiSource{
		registry: reg,
		sources:  sources,
		blocked:  domains.NewList(cfg.BlockedDomains),
		timeout:  cfg.Timeout,
		logger:   log,
		now:      time.Now,
	}
}

// Collect runs one polling pass over every source. A failing source is
// recorded and skipped; the pass only errors when no source is configured.
func (s *MultiSource) Collect(ctx context.Context, maxAge time.Duration) (domain.CollectionReport, error) {
	if s.registry == nil {
		return domain.CollectionReport{}, fmt.Errorf("collector registry is not configured")
	}
	if len(s.sources) == 0 {
		return domain.CollectionReport{}, ErrNoSources
	}

	s.debug("collection pass", "sources", len(s.sources), "max_age", maxAge.String(), "blocked_domains", s.blocked.Len())

	var report domain.CollectionReport
	seen := map[string]struct{}{}
	now := s.now()

	for _, src := range s.sources {
		articles, err := s.collectOne(ctx, src, now)
		if err != nil {
			report.SourcesFailed++
			report.Failures = append(report.Failures, domain.FailureRecord{
				URL:   src.URL,
				Title: src.Name,
				Stage: domain.StageCollection,
				Error: err.Error(),
			})
			s.warn("source failed", "source", src.Name, "kind", src.Kind, "error", err)
			continue
		}

		kept, stats := filter(articles, s.blocked, maxAge, now, seen, func(a domain.CollectedArticle, reason string) {
			s.debug("article dropped", "source", src.Name, "url", a.URL, "reason", reason)
		})
		report.Blocked += stats.blocked
		report.Stale += stats.stale
		report.Duplicates += stats.duplicates
		report.Articles = append(report.Articles, kept...)

		s.debug("source produced articles", "source", src.Name, "fetched", len(articles), "kept", len(kept))
	}

	s.info("collection pass done",
		"articles", len(report.Articles),
		"blocked", report.Blocked,
		"stale", report.Stale,
		"duplicates", report.Duplicates,
		"sources_failed", report.SourcesFailed)
	return report, nil
}

func (s *MultiSource) collectOne(ctx context.Context, src config.SourceConfig, now time.Time) (articles []domain.CollectedArticle, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("collector panic: %v", r)
		}
	}()

	if strings.TrimSpace(src.Name) == "" {
		return nil, fmt.Errorf("source is missing a name")
	}

	kind := domain.SourceKind(strings.ToLower(strings.TrimSpace(src.Kind)))
	strategy, err := s.registry.Resolve(kind)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.Name, err)
	}

	req := toRequest(src, kind)
	if err := strategy.Validate(req); err != nil {
		return nil, fmt.Errorf("source %s: invalid config: %w", src.Name, err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	results, err := strategy.Collect(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", src.Name, err)
	}

	for i := range results {
		if results[i].Source.DisplayName == "" {
			results[i].Source = req.Source
		}
		if results[i].CollectedAt.IsZero() {
			results[i].CollectedAt = now
		}
	}
	return results, nil
}

func toRequest(src config.SourceConfig, kind domain.SourceKind) Request {
	return Request{
		Source: domain.ArticleSource{
			Kind:            kind,
			DisplayName:     src.Name,
			RoutingCategory: src.Category,
			FeedID:          src.FeedID,
		},
		URL:     strings.TrimSpace(src.URL),
		APIKey:  src.APIKey,
		Options: src.Options,
	}
}

func (s *MultiSource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *MultiSource) info(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *MultiSource) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
