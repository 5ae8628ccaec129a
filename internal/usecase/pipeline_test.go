package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsPipeline/internal/collector"
	"NewsPipeline/internal/config"
	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
	"NewsPipeline/internal/retry"
)

type staticSource struct {
	report domain.CollectionReport
	err    error
	maxAge time.Duration
}

func (s *staticSource) Collect(_ context.Context, maxAge time.Duration) (domain.CollectionReport, error) {
	s.maxAge = maxAge
	return s.report, s.err
}

type memoryWriter struct {
	mu      sync.Mutex
	results []domain.WorkflowResult
	err     error
}

func (w *memoryWriter) WriteResult(_ context.Context, result domain.WorkflowResult) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return "", w.err
	}
	w.results = append(w.results, result)
	return "output/result.json", nil
}

type memoryNotifier struct {
	digests []string
	err     error
}

func (n *memoryNotifier) PublishDigest(_ context.Context, digest string) error {
	n.digests = append(n.digests, digest)
	return n.err
}

type listCollector struct {
	articles []domain.CollectedArticle
}

func (l *listCollector) Kind() domain.SourceKind { return domain.SourceFeed }

func (l *listCollector) Validate(collector.Request) error { return nil }

func (l *listCollector) Collect(context.Context, collector.Request) ([]domain.CollectedArticle, error) {
	return l.articles, nil
}

type pipelineFixture struct {
	fetcher   *scriptedFetcher
	factory   *countingFactory
	completer *scriptedCompleter
	tracker   *fakeTracker
	writer    *memoryWriter
	notifier  *memoryNotifier
}

func newPipelineFixture() *pipelineFixture {
	return &pipelineFixture{
		fetcher:   newScriptedFetcher(),
		factory:   &countingFactory{renderer: &fakeRenderer{}},
		completer: &scriptedCompleter{steps: []completerStep{{reply: validReply}}},
		tracker:   newFakeTracker(),
		writer:    &memoryWriter{},
		notifier:  &memoryNotifier{},
	}
}

func (f *pipelineFixture) pipeline(source *staticSource, multi *collector.MultiSource) *Pipeline {
	sleeper := &recordingSleeper{}
	deps := PipelineDeps{
		Extractor:  newTestExtractor(f.fetcher, f.factory, true, sleeper),
		Summarizer: newTestSummarizer(f.completer, sleeper),
		Publisher:  newTestPublisher(f.tracker),
		Writer:     f.writer,
		Notifier:   f.notifier,
		MaxAge:     7 * 24 * time.Hour,
		NewRunID:   func() string { return "run-1" },
	}
	if multi != nil {
		deps.Source = multi
	} else {
		deps.Source = source
	}
	return NewPipeline(deps)
}

func TestRunScenarioFreshArticleFastPath(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	url := "https://wire.example.com/rates"
	f.fetcher.on(url, fetchStep{text: strings.Repeat("a", 500)})

	article := collected(url)
	article.PublishedAt = ptrTime(time.Now().Add(-48 * time.Hour))

	reg := collector.NewRegistry()
	reg.Register(&listCollector{articles: []domain.CollectedArticle{article}})
	multi := collector.NewMultiSource(reg,
		[]config.SourceConfig{{Name: "wire", Kind: string(domain.SourceFeed), URL: "https://wire.example.com/rss", Category: "markets"}},
		config.CollectionConfig{Timeout: time.Second}, nil)

	result, err := f.pipeline(nil, multi).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, 1, result.Collection.Forwarded)
	assert.Equal(t, domain.StageCounts{Attempted: 1, Succeeded: 1}, result.Extraction)
	assert.Equal(t, domain.StageCounts{Attempted: 1, Succeeded: 1}, result.Summarization)
	assert.Equal(t, domain.StageCounts{Attempted: 1, Succeeded: 1}, result.Publication)
	assert.Equal(t, int32(0), f.factory.starts.Load())
	assert.Equal(t, 1, f.completer.callCount())
	require.Len(t, result.Published, 1)
	assert.Equal(t, MethodStatic, result.Published[0].Summarized.Extracted.Method)
	assert.Zero(t, result.FailureCount())
	assert.Len(t, f.writer.results, 1)
	require.Len(t, f.notifier.digests, 1)
	assert.Contains(t, f.notifier.digests[0], "Title for "+url)
}

func TestRunRecordsFailuresPerStageWithoutAborting(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	good := "https://wire.example.com/good"
	broken := "https://wire.example.com/broken"
	garbled := "https://wire.example.com/garbled"
	rejected := "https://wire.example.com/rejected"

	f.fetcher.
		on(good, fetchStep{text: strings.Repeat("g", 300)}).
		on(broken, fetchStep{err: errors.New("connection refused")}).
		on(garbled, fetchStep{text: strings.Repeat("q", 300)}).
		on(rejected, fetchStep{text: strings.Repeat("r", 300)})
	f.factory.err = errors.New("no browser")

	var mu sync.Mutex
	replies := map[string]string{good: validReply, garbled: "not json", rejected: validReply}
	completer := completerFunc(func(prompt string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		for u, r := range replies {
			if strings.Contains(prompt, "URL: "+u+"\n") {
				return r, nil
			}
		}
		return "", errors.New("unexpected prompt")
	})

	source := &staticSource{report: domain.CollectionReport{
		Articles:      []domain.CollectedArticle{collected(good), collected(broken), collected(garbled), collected(rejected)},
		Failures:      []domain.FailureRecord{{URL: "https://bad.example.com/rss", Stage: domain.StageCollection, Error: "unknown kind"}},
		Blocked:       2,
		Stale:         1,
		SourcesFailed: 1,
	}}
	f.tracker.items[rejected] = ports.ItemRef{ID: "prior"}

	p := f.pipeline(source, nil)
	p.summarizer = newTestSummarizerWith(completer)

	result, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 7*24*time.Hour, source.maxAge)
	assert.Equal(t, domain.CollectionCounts{Collected: 4, Blocked: 2, Stale: 1, SourcesFailed: 1, Forwarded: 4}, result.Collection)
	assert.Equal(t, domain.StageCounts{Attempted: 4, Succeeded: 3, Failed: 1}, result.Extraction)
	assert.Equal(t, domain.StageCounts{Attempted: 3, Succeeded: 2, Failed: 1, Skipped: 1}, result.Summarization)
	assert.Equal(t, domain.StageCounts{Attempted: 2, Succeeded: 1, Duplicate: 1, Skipped: 2}, result.Publication)

	require.Len(t, result.Failures[domain.StageCollection], 1)
	require.Len(t, result.Failures[domain.StageExtraction], 1)
	assert.Equal(t, broken, result.Failures[domain.StageExtraction][0].URL)
	require.Len(t, result.Failures[domain.StageSummarization], 1)
	assert.Contains(t, result.Failures[domain.StageSummarization][0].Error, "parse")
	assert.Empty(t, result.Failures[domain.StagePublication])

	require.Len(t, result.Published, 1)
	assert.Equal(t, good, result.Published[0].Collected().URL)
	assert.Equal(t, 3, result.FailureCount())
	assert.False(t, result.FinishedAt.Before(result.StartedAt))
}

func TestRunAppliesCategoryFilterAndCap(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	var articles []domain.CollectedArticle
	for i, cat := range []string{"markets", "macro", "Markets", "markets"} {
		a := collected("https://wire.example.com/" + string(rune('a'+i)))
		a.Source.RoutingCategory = cat
		f.fetcher.on(a.URL, fetchStep{text: strings.Repeat("x", 300)})
		articles = append(articles, a)
	}

	source := &staticSource{report: domain.CollectionReport{Articles: articles}}
	result, err := f.pipeline(source, nil).Run(context.Background(), RunOptions{Categories: []string{" MARKETS "}, MaxArticles: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Collection.Forwarded)
	assert.Equal(t, 2, result.Collection.FilteredOut)
	assert.Equal(t, 2, result.Extraction.Attempted)
	assert.Equal(t, 0, f.fetcher.callCount("https://wire.example.com/b"))
}

func TestRunDryRunWritesNothingToTracker(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	url := "https://wire.example.com/dry"
	f.fetcher.on(url, fetchStep{text: strings.Repeat("d", 300)})
	source := &staticSource{report: domain.CollectionReport{Articles: []domain.CollectedArticle{collected(url)}}}

	result, err := f.pipeline(source, nil).Run(context.Background(), RunOptions{DryRun: true})
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Equal(t, 1, result.Publication.Succeeded)
	creates, updates, _ := f.tracker.counts()
	assert.Zero(t, creates+updates)
	require.Len(t, f.notifier.digests, 1)
	assert.True(t, strings.HasPrefix(f.notifier.digests[0], "[dry run]"))
}

func TestRunFatalConditions(t *testing.T) {
	t.Parallel()

	t.Run("no sources", func(t *testing.T) {
		f := newPipelineFixture()
		_, err := f.pipeline(&staticSource{err: collector.ErrNoSources}, nil).Run(context.Background(), RunOptions{})
		require.Error(t, err)
		assert.ErrorIs(t, err, collector.ErrNoSources)
		assert.Empty(t, f.writer.results)
	})

	t.Run("writer failure", func(t *testing.T) {
		f := newPipelineFixture()
		f.writer.err = errors.New("disk full")
		_, err := f.pipeline(&staticSource{}, nil).Run(context.Background(), RunOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "write result")
	})
}

func TestRunNotifierFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.notifier.err = errors.New("telegram down")
	url := "https://wire.example.com/n"
	f.fetcher.on(url, fetchStep{text: strings.Repeat("n", 300)})

	result, err := f.pipeline(&staticSource{report: domain.CollectionReport{Articles: []domain.CollectedArticle{collected(url)}}}, nil).
		Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Len(t, result.Published, 1)
}

type completerFunc func(prompt string) (string, error)

func (f completerFunc) Complete(_ context.Context, prompt string) (string, error) { return f(prompt) }

func newTestSummarizerWith(c completerFunc) *Summarizer {
	return NewSummarizer(SummarizerDeps{
		Completer: c,
		Config:    SummarizerConfig{Concurrency: 2, Retry: retry.Policy{Sleep: (&recordingSleeper{}).sleep}},
	})
}
