package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

// PipelineDeps wires the stages and driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.ArticleSource
	Extractor  *Extractor
	Summarizer *Summarizer
	Publisher  *Publisher
	Writer     ports.ResultWriter
	Notifier   ports.Notifier
	Logger     *slog.Logger
	MaxAge     time.Duration
	Now        func() time.Time
	NewRunID   func() string
}

// RunOptions narrows a single run.
type RunOptions struct {
	// Categories keeps only articles whose routing category is listed. Empty keeps all.
	Categories []string
	DryRun     bool
	// MaxArticles caps how many collected articles are extracted. Zero means no cap.
	MaxArticles int
}

// Pipeline implements the collect, extract, summarize, publish workflow.
type Pipeline struct {
	source     ports.ArticleSource
	extractor  *Extractor
	summarizer *Summarizer
	publisher  *Publisher
	writer     ports.ResultWriter
	notifier   ports.Notifier
	logger     *slog.Logger
	maxAge     time.Duration
	now        func() time.Time
	newRunID   func() string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	newRunID := deps.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}
	return &Pipeline{
		source:     deps.Source,
		extractor:  deps.Extractor,
		summarizer: deps.Summarizer,
		publisher:  deps.Publisher,
		writer:     deps.Writer,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
		maxAge:     deps.MaxAge,
		now:        now,
		newRunID:   newRunID,
	}
}

// Run executes one staged pass. Per-article failures are recorded in the
// result; an error is returned only when collection cannot start or the
// result cannot be written.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (domain.WorkflowResult, error) {
	result := domain.WorkflowResult{
		RunID:     p.newRunID(),
		DryRun:    opts.DryRun,
		StartedAt: p.now(),
		Failures:  map[domain.Stage][]domain.FailureRecord{},
	}
	log := p.logger
	if log != nil {
		log = log.With("run_id", result.RunID)
		log.Info("run started", "dry_run", opts.DryRun, "categories", opts.Categories, "max_articles", opts.MaxArticles)
	}

	if p.source == nil {
		return result, fmt.Errorf("collect: no article source configured")
	}
	report, err := p.source.Collect(ctx, p.maxAge)
	if err != nil {
		return result, fmt.Errorf("collect: %w", err)
	}

	forwarded, filteredOut := selectArticles(report.Articles, opts)
	result.Collection = domain.CollectionCounts{
		Collected:     len(report.Articles),
		Blocked:       report.Blocked,
		Stale:         report.Stale,
		Duplicates:    report.Duplicates,
		SourcesFailed: report.SourcesFailed,
		FilteredOut:   filteredOut,
		Forwarded:     len(forwarded),
	}
	if len(report.Failures) > 0 {
		result.Failures[domain.StageCollection] = append([]domain.FailureRecord(nil), report.Failures...)
	}
	logInfo(log, "collection finished", "collected", len(report.Articles), "forwarded", len(forwarded),
		"blocked", report.Blocked, "stale", report.Stale, "sources_failed", report.SourcesFailed)

	extracted := p.extractor.ExtractBatch(ctx, forwarded)
	var toSummarize []domain.ExtractedArticle
	for _, a := range extracted {
		result.Extraction.Attempted++
		if a.Status == domain.ExtractionSuccess {
			result.Extraction.Succeeded++
			toSummarize = append(toSummarize, a)
			continue
		}
		result.Extraction.Failed++
		result.Failures[domain.StageExtraction] = append(result.Failures[domain.StageExtraction],
			failure(a.Collected, domain.StageExtraction, fmt.Sprintf("%s: %s", a.Status, a.Error)))
	}
	logInfo(log, "extraction finished", "succeeded", result.Extraction.Succeeded, "failed", result.Extraction.Failed)

	summarized := p.summarizer.SummarizeBatch(ctx, toSummarize)
	var toPublish []domain.SummarizedArticle
	result.Summarization.Skipped = len(extracted) - len(toSummarize)
	for _, a := range summarized {
		result.Summarization.Attempted++
		switch a.Status {
		case domain.SummarizationSuccess:
			result.Summarization.Succeeded++
			toPublish = append(toPublish, a)
		case domain.SummarizationSkipped:
			result.Summarization.Skipped++
		default:
			result.Summarization.Failed++
			result.Failures[domain.StageSummarization] = append(result.Failures[domain.StageSummarization],
				failure(a.Extracted.Collected, domain.StageSummarization, fmt.Sprintf("%s: %s", a.Status, a.Error)))
		}
	}
	logInfo(log, "summarization finished", "succeeded", result.Summarization.Succeeded, "failed", result.Summarization.Failed)

	published := p.publisher.PublishBatch(ctx, toPublish, opts.DryRun)
	result.Publication.Skipped = len(extracted) - len(toPublish)
	for _, a := range published {
		result.Publication.Attempted++
		c := a.Collected()
		switch a.Status {
		case domain.PublicationSuccess:
			result.Publication.Succeeded++
			result.Published = append(result.Published, a)
		case domain.PublicationDuplicate:
			result.Publication.Duplicate++
		case domain.PublicationSkipped:
			result.Publication.Skipped++
		default:
			result.Publication.Failed++
			result.Failures[domain.StagePublication] = append(result.Failures[domain.StagePublication],
				failure(c, domain.StagePublication, a.Error))
			continue
		}
		if a.Error != "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %s", c.URL, a.Error))
		}
	}
	logInfo(log, "publication finished", "succeeded", result.Publication.Succeeded,
		"duplicate", result.Publication.Duplicate, "failed", result.Publication.Failed)

	result.FinishedAt = p.now()
	result.ElapsedSeconds = result.Elapsed().Seconds()

	if p.writer != nil {
		path, err := p.writer.WriteResult(ctx, result)
		if err != nil {
			return result, fmt.Errorf("write result: %w", err)
		}
		logInfo(log, "result written", "path", path)
	}

	if p.notifier != nil && len(result.Published) > 0 {
		if err := p.notifier.PublishDigest(ctx, buildDigestMessage(result)); err != nil && log != nil {
			log.Warn("publish digest", "error", err)
		}
	}

	logInfo(log, "run finished", "published", len(result.Published), "failures", result.FailureCount(),
		"elapsed", result.Elapsed().Round(time.Millisecond))
	return result, nil
}

// selectArticles applies the category filter, then the article cap.
func selectArticles(articles []domain.CollectedArticle, opts RunOptions) ([]domain.CollectedArticle, int) {
	allowed := map[string]bool{}
	for _, c := range opts.Categories {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			allowed[c] = true
		}
	}

	out := make([]domain.CollectedArticle, 0, len(articles))
	for _, a := range articles {
		if len(allowed) > 0 && !allowed[strings.ToLower(a.Source.RoutingCategory)] {
			continue
		}
		out = append(out, a)
	}
	if opts.MaxArticles > 0 && len(out) > opts.MaxArticles {
		out = out[:opts.MaxArticles]
	}
	return out, len(articles) - len(out)
}

func failure(c domain.CollectedArticle, stage domain.Stage, msg string) domain.FailureRecord {
	return domain.FailureRecord{URL: c.URL, Title: c.Title, Stage: stage, Error: msg}
}

func buildDigestMessage(result domain.WorkflowResult) string {
	var b strings.Builder
	prefix := ""
	if result.DryRun {
		prefix = "[dry run] "
	}
	fmt.Fprintf(&b, "%sNews pipeline: %d published, %d duplicate, %d failures\n\n",
		prefix, result.Publication.Succeeded, result.Publication.Duplicate, result.FailureCount())

	for _, a := range result.Published {
		c := a.Collected()
		fmt.Fprintf(&b, "- %s\n", c.Title)
		if s := a.Summarized.Summary; s != nil {
			fmt.Fprintf(&b, "%s\n", s.Overview)
		}
		link := c.URL
		if a.ExternalURL != "" {
			link = a.ExternalURL
		}
		fmt.Fprintf(&b, "%s\n\n", link)
	}
	return strings.TrimRight(b.String(), "\n")
}

func logInfo(log *slog.Logger, msg string, args ...interface{}) {
	if log != nil {
		log.Info(msg, args...)
	}
}
