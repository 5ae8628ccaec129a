package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

type mapStatuses struct {
	byCategory map[string]string
	ids        map[string]string
	fallback   string
}

func (m mapStatuses) StatusFor(category string) string {
	if label, ok := m.byCategory[strings.ToLower(category)]; ok {
		return label
	}
	return m.fallback
}

func (m mapStatuses) StatusID(label string) string {
	if id, ok := m.ids[label]; ok {
		return id
	}
	return label
}

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func newTestPublisher(tr *fakeTracker) *Publisher {
	return NewPublisher(PublisherDeps{
		Tracker: tr,
		Config: PublisherConfig{
			Concurrency: 2,
			DedupWindow: 7 * 24 * time.Hour,
			Statuses: mapStatuses{
				byCategory: map[string]string{"markets": "Markets"},
				ids:        map[string]string{"Markets": "opt-markets"},
				fallback:   "Inbox",
			},
		},
		Now: func() time.Time { return testNow },
	})
}

func summarized(url string) domain.SummarizedArticle {
	related := "See also the Q1 report."
	return domain.SummarizedArticle{
		Extracted: extracted(url, "body"),
		Summary: &domain.StructuredSummary{
			Overview:     "Overview text",
			KeyPoints:    []string{"one", "two"},
			MarketImpact: "Impact text",
			RelatedInfo:  &related,
		},
		Status: domain.SummarizationSuccess,
	}
}

func TestPublishSkipsWithoutSummary(t *testing.T) {
	t.Parallel()

	tr := newFakeTracker()
	got := newTestPublisher(tr).Publish(context.Background(), domain.SummarizedArticle{Extracted: extracted("https://p.test/0", "")}, false)

	assert.Equal(t, domain.PublicationSkipped, got.Status)
	creates, updates, lists := tr.counts()
	assert.Zero(t, creates+updates+lists)
}

func TestPublishCreatesAndUpdatesFields(t *testing.T) {
	t.Parallel()

	tr := newFakeTracker()
	article := summarized("https://p.test/1")
	article.Extracted.Collected.PublishedAt = ptrTime(testNow.Add(-time.Hour))

	got := newTestPublisher(tr).Publish(context.Background(), article, false)

	require.Equal(t, domain.PublicationSuccess, got.Status)
	assert.Equal(t, "item-1", got.ExternalID)
	assert.NotEmpty(t, got.ExternalURL)
	assert.Empty(t, got.Error)

	require.Len(t, tr.creates, 1)
	assert.Equal(t, "Markets", tr.creates[0].Destination)
	assert.Contains(t, tr.creates[0].Body, "- one\n- two")
	assert.Contains(t, tr.creates[0].Body, "See also the Q1 report.")
	assert.Equal(t, ports.FieldUpdate{Status: "opt-markets", Date: testNow.Add(-time.Hour)}, tr.updates["item-1"])
}

func TestPublishUnmappedCategoryUsesDefault(t *testing.T) {
	t.Parallel()

	tr := newFakeTracker()
	article := summarized("https://p.test/2")
	article.Extracted.Collected.Source.RoutingCategory = "crypto"

	got := newTestPublisher(tr).Publish(context.Background(), article, false)

	require.Equal(t, domain.PublicationSuccess, got.Status)
	assert.Equal(t, "Inbox", tr.creates[0].Destination)
	assert.Equal(t, "Inbox", tr.updates["item-1"].Status)
}

func TestPublishTwiceIsSuccessThenDuplicate(t *testing.T) {
	t.Parallel()

	tr := newFakeTracker()
	p := newTestPublisher(tr)
	article := summarized("https://p.test/3")

	first := p.Publish(context.Background(), article, false)
	second := p.Publish(context.Background(), article, false)

	assert.Equal(t, domain.PublicationSuccess, first.Status)
	assert.Equal(t, domain.PublicationDuplicate, second.Status)
	creates, _, lists := tr.counts()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 2, lists)
}

func TestPublishBatchRefreshesOnceAndBlocksIntraBatchDuplicates(t *testing.T) {
	t.Parallel()

	tr := newFakeTracker()
	tr.items["https://p.test/old"] = ports.ItemRef{ID: "old"}

	batch := []domain.SummarizedArticle{
		summarized("https://p.test/4"),
		summarized("https://p.test/old/"),
		summarized("https://P.TEST/4#comments"),
		summarized("https://p.test/5"),
	}

	got := newTestPublisher(tr).PublishBatch(context.Background(), batch, false)

	require.Len(t, got, 4)
	statuses := map[domain.PublicationStatus]int{}
	for _, a := range got {
		statuses[a.Status]++
	}
	assert.Equal(t, 2, statuses[domain.PublicationSuccess])
	assert.Equal(t, 2, statuses[domain.PublicationDuplicate])
	assert.Equal(t, domain.PublicationDuplicate, got[1].Status)

	creates, updates, lists := tr.counts()
	assert.Equal(t, 2, creates)
	assert.Equal(t, 2, updates)
	assert.Equal(t, 1, lists)
}

func TestPublishDryRunHasNoSideEffects(t *testing.T) {
	t.Parallel()

	tr := newFakeTracker()
	tr.items["https://p.test/seen"] = ports.ItemRef{ID: "seen"}

	batch := []domain.SummarizedArticle{
		summarized("https://p.test/6"),
		summarized("https://p.test/seen"),
		summarized("https://p.test/6"),
	}

	got := newTestPublisher(tr).PublishBatch(context.Background(), batch, true)

	statuses := []domain.PublicationStatus{got[0].Status, got[1].Status, got[2].Status}
	assert.ElementsMatch(t, []domain.PublicationStatus{
		domain.PublicationSuccess, domain.PublicationDuplicate, domain.PublicationDuplicate,
	}, statuses)
	assert.Equal(t, domain.PublicationDuplicate, got[1].Status)

	creates, updates, lists := tr.counts()
	assert.Zero(t, creates)
	assert.Zero(t, updates)
	assert.Equal(t, 1, lists)
}

func TestPublishAlreadyExistsWithoutIdentifier(t *testing.T) {
	t.Parallel()

	tr := newFakeTracker()
	tr.createErr = ports.ErrAlreadyExists

	p := newTestPublisher(tr)
	p.cfg.Concurrency = 1
	got := p.PublishBatch(context.Background(), []domain.SummarizedArticle{
		summarized("https://p.test/7"),
		summarized("https://p.test/8"),
	}, false)

	require.Len(t, got, 2)
	for _, a := range got {
		assert.Equal(t, domain.PublicationDuplicate, a.Status)
		assert.Contains(t, a.Error, "warning")
		assert.Empty(t, a.ExternalID)
	}
	creates, updates, _ := tr.counts()
	assert.Equal(t, 2, creates)
	assert.Zero(t, updates)
}

func TestPublishAlreadyExistsWithIdentifierUpdatesFields(t *testing.T) {
	t.Parallel()

	tr := newFakeTracker()
	tr.createErr = ports.ErrAlreadyExists
	tr.createRef = &ports.ItemRef{ID: "existing-9", URL: "https://tracker.example.com/items/existing-9"}

	got := newTestPublisher(tr).Publish(context.Background(), summarized("https://p.test/9"), false)

	assert.Equal(t, domain.PublicationSuccess, got.Status)
	assert.Equal(t, "existing-9", got.ExternalID)
	_, updates, _ := tr.counts()
	assert.Equal(t, 1, updates)
}

func TestPublishEmptyIdentifierSkipsUpdate(t *testing.T) {
	t.Parallel()

	tr := newFakeTracker()
	tr.createRef = &ports.ItemRef{}

	got := newTestPublisher(tr).Publish(context.Background(), summarized("https://p.test/10"), false)

	assert.Equal(t, domain.PublicationSuccess, got.Status)
	assert.Contains(t, got.Error, "field update skipped")
	_, updates, _ := tr.counts()
	assert.Zero(t, updates)
}

func TestPublishCreateFailureIsPreserved(t *testing.T) {
	t.Parallel()

	tr := newFakeTracker()
	tr.createErr = errors.New("tracker: 500 internal error")

	got := newTestPublisher(tr).Publish(context.Background(), summarized("https://p.test/11"), false)

	assert.Equal(t, domain.PublicationFailed, got.Status)
	assert.Contains(t, got.Error, "500 internal error")
}

func TestPublishDedupLookupFailureFailsClosed(t *testing.T) {
	t.Parallel()

	tr := newFakeTracker()
	tr.listErr = errors.New("tracker unreachable")

	got := newTestPublisher(tr).PublishBatch(context.Background(), []domain.SummarizedArticle{
		summarized("https://p.test/12"),
		{Extracted: extracted("https://p.test/13", "")},
	}, false)

	assert.Equal(t, domain.PublicationFailed, got[0].Status)
	assert.Contains(t, got[0].Error, "dedup lookup failed")
	assert.Equal(t, domain.PublicationSkipped, got[1].Status)
	creates, _, _ := tr.counts()
	assert.Zero(t, creates)
}

func TestRenderItemBody(t *testing.T) {
	t.Parallel()

	article := summarized("https://p.test/14")
	article.Summary.RelatedInfo = nil

	body, err := RenderItemBody(article)
	require.NoError(t, err)

	assert.Contains(t, body, "## Overview\n\nOverview text")
	assert.Contains(t, body, "## Market impact\n\nImpact text")
	assert.NotContains(t, body, "## Related")
	assert.Contains(t, body, "Source: [wire](https://p.test/14) | Published: unknown")
}
