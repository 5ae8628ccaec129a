package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	finnhub "github.com/Finnhub-Stock-API/finnhub-go/v2"

	"NewsPipeline/internal/collector"
	"NewsPipeline/internal/domain"
)

const defaultMarketCategory = "general"

// MarketNewsAPI is the subset of the market-data API the collector needs.
type MarketNewsAPI interface {
	MarketNews(ctx context.Context, category string) ([]finnhub.MarketNews, error)
}

// MarketAPIFactory builds an API client for a source's key.
type MarketAPIFactory func(apiKey string) MarketNewsAPI

type finnhubAPI struct {
	client *finnhub.DefaultApiService
}

// NewFinnhubAPI creates a Finnhub client authenticated with apiKey.
func NewFinnhubAPI(apiKey string) MarketNewsAPI {
	cfg := finnhub.NewConfiguration()
	cfg.AddDefaultHeader("X-Finnhub-Token", apiKey)
	return &finnhubAPI{client: finnhub.NewAPIClient(cfg).DefaultApi}
}

func (f *finnhubAPI) MarketNews(ctx context.Context, category string) ([]finnhub.MarketNews, error) {
	res, _, err := f.client.MarketNews(ctx).Category(category).Execute()
	if err != nil {
		return nil, err
	}
	return res, nil
}

// MarketCollector pulls general market news from a market-data provider.
type MarketCollector struct {
	factory MarketAPIFactory
}

var _ collector.Collector = (*MarketCollector)(nil)

// NewMarketCollector defaults to the Finnhub API when factory is nil.
func NewMarketCollector(factory MarketAPIFactory) *MarketCollector {
	if factory == nil {
		factory = NewFinnhubAPI
	}
	return &MarketCollector{factory: factory}
}

// Kind identifies the strategy inside the registry.
func (m *MarketCollector) Kind() domain.SourceKind {
	return domain.SourceMarketData
}

// Validate requires an API key.
func (m *MarketCollector) Validate(req collector.Request) error {
	if strings.TrimSpace(req.APIKey) == "" {
		return fmt.Errorf("market-data source requires an api key")
	}
	return nil
}

// Collect maps provider news items; items without a URL are skipped.
func (m *MarketCollector) Collect(ctx context.Context, req collector.Request) ([]domain.CollectedArticle, error) {
	category := defaultMarketCategory
	if v := strings.TrimSpace(req.Options["category"]); v != "" {
		category = v
	}

	items, err := m.factory(req.APIKey).MarketNews(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("market news: %w", err)
	}

	articles := make([]domain.CollectedArticle, 0, len(items))
	for _, news := range items {
		link := strings.TrimSpace(deref(news.Url))
		if link == "" {
			continue
		}

		var published *time.Time
		if news.Datetime != nil && *news.Datetime > 0 {
			t := time.Unix(*news.Datetime, 0).UTC()
			published = &t
		}

		source := req.Source
		if publisher := strings.TrimSpace(deref(news.Source)); publisher != "" {
			source.DisplayName = fmt.Sprintf("%s/%s", req.Source.DisplayName, publisher)
		}

		articles = append(articles, domain.CollectedArticle{
			URL:         link,
			Title:       strings.TrimSpace(deref(news.Headline)),
			PublishedAt: published,
			RawSummary:  strings.TrimSpace(deref(news.Summary)),
			Source:      source,
		})
	}
	return articles, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
