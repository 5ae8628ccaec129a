package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"NewsPipeline/internal/collector"
	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/identity"
)

const (
	defaultItemSelector    = "article"
	defaultLinkSelector    = "a[href]"
	defaultTimeSelector    = "time[datetime]"
	defaultSummarySelector = "p"
	defaultPageParam       = "page"
	maxScrapePages         = 10
)

var scrapeTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2 Jan 2006",
}

// ScrapeCollector walks listing pages and extracts article links.
type ScrapeCollector struct {
	client   *http.Client
	identity *identity.Pool
}

var _ collector.Collector = (*ScrapeCollector)(nil)

// NewScrapeCollector wires an HTTP client; a nil client gets a 20s timeout.
func NewScrapeCollector(client *http.Client, pool *identity.Pool) *ScrapeCollector {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &ScrapeCollector{client: client, identity: pool}
}

// Kind identifies the strategy inside the registry.
func (s *ScrapeCollector) Kind() domain.SourceKind {
	return domain.SourceScrape
}

// Validate checks the listing URL, the selectors and the page count.
func (s *ScrapeCollector) Validate(req collector.Request) error {
	if err := validateHTTPURL(req.URL); err != nil {
		return err
	}
	for _, key := range []string{"item_selector", "link_selector", "time_selector", "summary_selector"} {
		sel := strings.TrimSpace(req.Options[key])
		if sel == "" {
			continue
		}
		if _, err := cascadia.Compile(sel); err != nil {
			return fmt.Errorf("option %s: invalid selector %q: %w", key, sel, err)
		}
	}
	if _, err := pageCount(req.Options); err != nil {
		return err
	}
	return nil
}

// Collect fetches each listing page and returns the linked articles in page order.
func (s *ScrapeCollector) Collect(ctx context.Context, req collector.Request) ([]domain.CollectedArticle, error) {
	pages, err := pageCount(req.Options)
	if err != nil {
		return nil, err
	}
	sel := selectorsFrom(req.Options)

	var results []domain.CollectedArticle
	seen := map[string]struct{}{}

	for page := 1; page <= pages; page++ {
		pageURL, err := buildPageURL(req.URL, optionOr(req.Options, "page_param", defaultPageParam), page)
		if err != nil {
			return nil, err
		}

		doc, err := s.fetchDocument(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		base, _ := url.Parse(pageURL)
		pageArticles := extractListing(doc, base, sel, req.Source)
		added := 0
		for _, article := range pageArticles {
			if _, ok := seen[article.URL]; ok {
				continue
			}
			seen[article.URL] = struct{}{}
			results = append(results, article)
			added++
		}

		if added == 0 {
			break
		}
	}

	return results, nil
}

func (s *ScrapeCollector) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.identity.UserAgent())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing returned %s", resp.Status)
	}
	if ct := strings.ToLower(resp.Header.Get("Content-Type")); ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("unexpected content type %q", ct)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

type listingSelectors struct {
	item    string
	link    string
	time    string
	summary string
}

func selectorsFrom(opts map[string]string) listingSelectors {
	return listingSelectors{
		item:    optionOr(opts, "item_selector", defaultItemSelector),
		link:    optionOr(opts, "link_selector", defaultLinkSelector),
		time:    optionOr(opts, "time_selector", defaultTimeSelector),
		summary: optionOr(opts, "summary_selector", defaultSummarySelector),
	}
}

func extractListing(doc *goquery.Document, base *url.URL, sel listingSelectors, source domain.ArticleSource) []domain.CollectedArticle {
	var collected []domain.CollectedArticle

	doc.Find(sel.item).Each(func(_ int, item *goquery.Selection) {
		article, ok := parseItem(item, base, sel, source)
		if ok {
			collected = append(collected, article)
		}
	})

	return collected
}

func parseItem(item *goquery.Selection, base *url.URL, sel listingSelectors, source domain.ArticleSource) (domain.CollectedArticle, bool) {
	link := item.Find(sel.link).First()
	href, exists := link.Attr("href")
	href = strings.TrimSpace(href)
	if !exists || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return domain.CollectedArticle{}, false
	}

	resolved, err := resolveURL(base, href)
	if err != nil {
		return domain.CollectedArticle{}, false
	}

	title := strings.TrimSpace(link.Text())
	if title == "" {
		title = strings.TrimSpace(item.Find("h1, h2, h3").First().Text())
	}

	var published *time.Time
	if node := item.Find(sel.time).First(); node.Length() > 0 {
		raw, ok := node.Attr("datetime")
		if !ok {
			raw = node.Text()
		}
		published = parseListingTime(raw)
	}

	summary := strings.TrimSpace(item.Find(sel.summary).First().Text())

	return domain.CollectedArticle{
		URL:         resolved,
		Title:       title,
		PublishedAt: published,
		RawSummary:  summary,
		Source:      source,
	}, true
}

func parseListingTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range scrapeTimeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t := parsed.UTC()
			return &t
		}
	}
	return nil
}

func resolveURL(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	if base == nil {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}

func buildPageURL(base, param string, page int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %s: %w", base, err)
	}
	if page <= 1 {
		return parsed.String(), nil
	}

	query := parsed.Query()
	query.Set(param, strconv.Itoa(page))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func pageCount(opts map[string]string) (int, error) {
	raw := strings.TrimSpace(opts["pages"])
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxScrapePages {
		return 0, fmt.Errorf("option pages must be between 1 and %d, got %q", maxScrapePages, raw)
	}
	return n, nil
}

func optionOr(opts map[string]string, key, fallback string) string {
	if v := strings.TrimSpace(opts[key]); v != "" {
		return v
	}
	return fallback
}
