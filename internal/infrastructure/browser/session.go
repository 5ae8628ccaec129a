// Package browser renders pages in a headless Chromium for the fallback extraction path.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chromedp/chromedp"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/identity"
	"NewsPipeline/internal/ports"
	"NewsPipeline/pkg/logger"
)

// Session is one running browser process; every render opens a fresh tab.
type Session struct {
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	closeOnce     sync.Once
}

var _ ports.Renderer = (*Session)(nil)

// NewFactory returns a RendererFactory launching Chromium with the fallback settings.
func NewFactory(cfg config.FallbackConfig, pool *identity.Pool, log *slog.Logger) ports.RendererFactory {
	return func(ctx context.Context) (ports.Renderer, error) {
		session, err := Launch(ctx, cfg, pool, log)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

// Launch starts the browser and waits until it accepts commands.
// The browser outlives ctx; it stops only on Close.
func Launch(ctx context.Context, cfg config.FallbackConfig, pool *identity.Pool, log *slog.Logger) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.UserAgent(pool.UserAgent()),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Printf(log, slog.LevelDebug, "browser")),
		chromedp.WithErrorf(logger.Printf(log, slog.LevelWarn, "browser")),
	)

	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()

	select {
	case err := <-started:
		if err != nil {
			cancelBrowser()
			cancelAlloc()
			return nil, fmt.Errorf("start browser: %w", err)
		}
	case <-ctx.Done():
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", ctx.Err())
	}

	return &Session{
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}, nil
}

// RenderHTML navigates a new tab to pageURL and returns the rendered document.
// ctx bounds the whole render, including navigation.
func (s *Session) RenderHTML(ctx context.Context, pageURL string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()

	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("render %s: %w", pageURL, ctxErr)
		}
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}
	return html, nil
}

// Close stops the browser process. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancelBrowser()
		s.cancelAlloc()
	})
	return nil
}
