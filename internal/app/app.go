package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"NewsPipeline/internal/collector"
	"NewsPipeline/internal/config"
	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/domains"
	"NewsPipeline/internal/identity"
	"NewsPipeline/internal/infrastructure/browser"
	"NewsPipeline/internal/infrastructure/fetch"
	"NewsPipeline/internal/infrastructure/llm"
	"NewsPipeline/internal/infrastructure/report"
	"NewsPipeline/internal/infrastructure/scheduler"
	"NewsPipeline/internal/infrastructure/sources"
	"NewsPipeline/internal/infrastructure/telegram"
	"NewsPipeline/internal/infrastructure/tracker"
	"NewsPipeline/internal/logging"
	"NewsPipeline/internal/ports"
	"NewsPipeline/internal/retry"
	"NewsPipeline/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	db       *sql.DB
}

// New builds a runnable application instance. It only opens network
// resources that must exist before a run, currently the tracker database.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	pool := identity.NewPool(cfg.Extraction.Identity.Enabled, cfg.Extraction.Identity.UserAgents)
	httpClient := &http.Client{}

	registry := collector.NewRegistry()
	registry.Register(sources.NewFeedCollector(httpClient, pool))
	registry.Register(sources.NewMarketCollector(sources.NewFinnhubAPI))
	registry.Register(sources.NewScrapeCollector(httpClient, pool))
	source := collector.NewMultiSource(registry, cfg.Sources, cfg.Collection, baseLogger.With("component", "collector"))

	var renderers ports.RendererFactory
	if cfg.Extraction.Fallback.Enabled {
		renderers = browser.NewFactory(cfg.Extraction.Fallback, pool, baseLogger.With("component", "browser"))
	}
	extractor := usecase.NewExtractor(usecase.ExtractorDeps{
		Fetcher:     fetch.NewStaticFetcher(httpClient, pool),
		NewRenderer: renderers,
		Config: usecase.ExtractorConfig{
			Concurrency:     cfg.Extraction.Concurrency,
			Timeout:         cfg.Extraction.Timeout,
			MinBodyLength:   cfg.Extraction.MinBodyLength,
			Retry:           retry.Policy{MaxRetries: cfg.Extraction.MaxRetries, InitialInterval: cfg.Extraction.InitialBackoff},
			FallbackEnabled: cfg.Extraction.Fallback.Enabled,
			FallbackTimeout: cfg.Extraction.Fallback.Timeout,
			FallbackMinText: cfg.Extraction.Fallback.MinTextLength,
			PaywallDomains:  domains.NewList(cfg.Extraction.PaywallDomains),
		},
		Logger: baseLogger.With("component", "extractor"),
	})

	completer, err := llm.New(cfg.Summarization)
	if err != nil {
		return nil, err
	}
	summarizer := usecase.NewSummarizer(usecase.SummarizerDeps{
		Completer: completer,
		Config: usecase.SummarizerConfig{
			Concurrency: cfg.Summarization.Concurrency,
			Timeout:     cfg.Summarization.Timeout,
			Retry:       retry.Policy{MaxRetries: cfg.Summarization.MaxRetries, InitialInterval: cfg.Summarization.InitialBackoff},
		},
		Logger: baseLogger.With("component", "summarizer"),
	})

	app := &Application{cfg: cfg, logger: baseLogger}

	board, err := app.buildTracker(ctx)
	if err != nil {
		return nil, err
	}
	publisher := usecase.NewPublisher(usecase.PublisherDeps{
		Tracker: board,
		Config: usecase.PublisherConfig{
			Concurrency: cfg.Publication.Concurrency,
			DedupWindow: cfg.Publication.DedupWindow(),
			Statuses:    cfg.Publication,
		},
		Logger: baseLogger.With("component", "publisher"),
	})

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	app.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Extractor:  extractor,
		Summarizer: summarizer,
		Publisher:  publisher,
		Writer:     report.NewFileWriter(cfg.OutputDir),
		Notifier:   notifier,
		Logger:     baseLogger.With("component", "pipeline"),
		MaxAge:     cfg.Collection.MaxAge,
	})
	return app, nil
}

func (a *Application) buildTracker(ctx context.Context) (ports.Tracker, error) {
	switch a.cfg.Tracker.Backend {
	case "postgres":
		if a.cfg.Tracker.DSN == "" {
			return nil, errors.New("tracker backend postgres requires a dsn")
		}
		db, err := tracker.Open(ctx, a.cfg.Tracker.DSN)
		if err != nil {
			return nil, err
		}
		board := tracker.NewPostgresTracker(db, a.cfg.Tracker.BaseURL)
		if err := board.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		a.db = db
		return board, nil
	case "http", "":
		return tracker.NewHTTPTracker(a.cfg.Tracker), nil
	default:
		return nil, fmt.Errorf("unknown tracker backend %q", a.cfg.Tracker.Backend)
	}
}

// Run performs a single pipeline execution.
func (a *Application) Run(ctx context.Context, opts usecase.RunOptions) (domain.WorkflowResult, error) {
	return a.pipeline.Run(ctx, opts)
}

// Watch runs the pipeline on the configured cron expression until ctx is done.
func (a *Application) Watch(ctx context.Context, opts usecase.RunOptions) error {
	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location())
	if err := driver.Validate(); err != nil {
		return err
	}

	runner := usecase.NewScheduler(driver, a.pipeline, opts, a.logger.With("component", "scheduler"))
	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if next, err := driver.Next(time.Now()); err == nil {
		a.logger.Info("watching", "cron", a.cfg.Scheduler.CronExpression, "next_run", next)
	}

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return runner.Stop(stopCtx)
}

// Close releases the resources opened by New.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
