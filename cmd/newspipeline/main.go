package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"NewsPipeline/internal/app"
	"NewsPipeline/internal/config"
	"NewsPipeline/internal/infrastructure/report"
	"NewsPipeline/internal/logging"
	"NewsPipeline/internal/usecase"
)

type options struct {
	configPath  string
	categories  string
	dryRun      bool
	maxArticles int
	verbose     bool
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "newspipeline",
		Short:         "Collect, extract, summarize and publish financial news",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context(), opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to the YAML config (default $NEWS_PIPELINE_CONFIG or built-in defaults)")
	flags.StringVar(&opts.categories, "categories", "", "comma-separated destination categories to keep")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "run every stage but do not write to the tracker")
	flags.IntVar(&opts.maxArticles, "max-articles", 0, "cap the number of articles processed (0 = no cap)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Run the pipeline on the configured cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return watch(cmd.Context(), opts)
		},
	})

	return root
}

func runOnce(ctx context.Context, opts *options) error {
	cfg, application, err := bootstrap(ctx, opts)
	if err != nil {
		return err
	}
	defer application.Close()

	result, err := application.Run(ctx, opts.runOptions())
	if err != nil {
		return err
	}

	report.PrintSummary(os.Stdout, result, filepath.Join(cfg.OutputDir, report.FileName(result.StartedAt)))
	return nil
}

func watch(ctx context.Context, opts *options) error {
	_, application, err := bootstrap(ctx, opts)
	if err != nil {
		return err
	}
	defer application.Close()

	return application.Watch(ctx, opts.runOptions())
}

func bootstrap(ctx context.Context, opts *options) (config.Config, *app.Application, error) {
	cfg, err := config.Load(config.ResolvePath(opts.configPath))
	if err != nil {
		return config.Config{}, nil, err
	}
	if opts.verbose {
		cfg.Logging.Level = "debug"
	}

	logger := logging.New(cfg.Logging.Level)
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init: %w", err)
	}
	return cfg, application, nil
}

func (o *options) runOptions() usecase.RunOptions {
	return usecase.RunOptions{
		Categories:  splitList(o.categories),
		DryRun:      o.dryRun,
		MaxArticles: o.maxArticles,
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
