package collector

import (
	"time"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/domains"
)

// IsStale reports whether the article is older than maxAge at now.
// An unknown publication time is never stale.
func IsStale(article domain.CollectedArticle, maxAge time.Duration, now time.Time) bool {
	if article.PublishedAt == nil || maxAge <= 0 {
		return false
	}
	return now.Sub(*article.PublishedAt) > maxAge
}

// filterStats counts why articles were dropped.
type filterStats struct {
	blocked    int
	stale      int
	duplicates int
}

// filter applies the staleness, blocklist and intra-pass duplicate filters.
// The filters are independent; an article dropped by several is counted once,
// under the first that fires.
func filter(articles []domain.CollectedArticle, blocked domains.List, maxAge time.Duration, now time.Time, seen map[string]struct{}, onDrop func(domain.CollectedArticle, string)) ([]domain.CollectedArticle, filterStats) {
	var stats filterStats
	kept := make([]domain.CollectedArticle, 0, len(articles))

	for _, article := range articles {
		switch {
		case blocked.Matches(article.URL):
			stats.blocked++
			onDrop(article, "blocked domain")
			continue
		case IsStale(article, maxAge, now):
			stats.stale++
			onDrop(article, "stale")
			continue
		}
		if _, dup := seen[article.URL]; dup {
			stats.duplicates++
			onDrop(article, "duplicate url")
			continue
		}
		seen[article.URL] = struct{}{}
		kept = append(kept, article)
	}

	return kept, stats
}
