package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"NewsPipeline/internal/content"
	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/domains"
	"NewsPipeline/internal/ports"
	"NewsPipeline/internal/retry"
)

// Extraction method labels recorded on every ExtractedArticle.
const (
	MethodStatic   = "static"
	MethodFallback = "static+fallback"
	MethodPaywall  = "paywall-domain"
)

var (
	errBodyTooShort   = errors.New("body too short")
	errNoContentFound = errors.New("no content region long enough")
)

// ExtractorConfig tunes the two-tier extraction.
type ExtractorConfig struct {
	Concurrency     int
	Timeout         time.Duration
	MinBodyLength   int
	Retry           retry.Policy
	FallbackEnabled bool
	FallbackTimeout time.Duration
	FallbackMinText int
	PaywallDomains  domains.List
}

// ExtractorDeps wires the fast path and the optional browser fallback.
type ExtractorDeps struct {
	Fetcher     ports.PageFetcher
	NewRenderer ports.RendererFactory
	Config      ExtractorConfig
	Logger      *slog.Logger
}

// Extractor produces body text for collected articles.
type Extractor struct {
	fetcher     ports.PageFetcher
	newRenderer ports.RendererFactory
	cfg         ExtractorConfig
	logger      *slog.Logger
}

// NewExtractor constructs the extraction stage.
func NewExtractor(deps ExtractorDeps) *Extractor {
	return &Extractor{
		fetcher:     deps.Fetcher,
		newRenderer: deps.NewRenderer,
		cfg:         deps.Config,
		logger:      deps.Logger,
	}
}

// Extract processes a single article; any browser session it starts is released before returning.
func (e *Extractor) Extract(ctx context.Context, article domain.CollectedArticle) domain.ExtractedArticle {
	return e.ExtractBatch(ctx, []domain.CollectedArticle{article})[0]
}

// ExtractBatch fans out over articles with bounded concurrency and waits for all of them.
// The browser session is shared by the batch, started on first fallback need and closed at the end.
func (e *Extractor) ExtractBatch(ctx context.Context, articles []domain.CollectedArticle) []domain.ExtractedArticle {
	session := &rendererSession{factory: e.newRenderer}
	defer func() {
		if err := session.release(); err != nil {
			e.warn("close browser session", "error", err)
		}
	}()

	return runBatch(ctx, articles, e.cfg.Concurrency,
		func(ctx context.Context, a domain.CollectedArticle) domain.ExtractedArticle {
			return e.extractOne(ctx, a, session)
		},
		func(a domain.CollectedArticle, err error) domain.ExtractedArticle {
			e.warn("extraction panicked", "url", a.URL, "error", err)
			return domain.ExtractedArticle{Collected: a, Status: domain.ExtractionFailed, Method: MethodStatic, Error: err.Error()}
		})
}

type attemptResult struct {
	status domain.ExtractionStatus
	text   string
	err    error
}

func (e *Extractor) extractOne(ctx context.Context, article domain.CollectedArticle, session *rendererSession) domain.ExtractedArticle {
	if e.cfg.PaywallDomains.Matches(article.URL) {
		e.debug("paywalled domain", "url", article.URL)
		return domain.ExtractedArticle{
			Collected: article,
			Status:    domain.ExtractionPaywall,
			Method:    MethodPaywall,
			Error:     "domain is configured as paywalled",
		}
	}

	fast := e.fastPath(ctx, article.URL)
	if fast.status == domain.ExtractionSuccess {
		return domain.ExtractedArticle{Collected: article, BodyText: fast.text, Status: fast.status, Method: MethodStatic}
	}

	if !e.cfg.FallbackEnabled || e.newRenderer == nil {
		return domain.ExtractedArticle{Collected: article, Status: fast.status, Method: MethodStatic, Error: errString(fast.err)}
	}

	e.debug("fast path insufficient, trying fallback", "url", article.URL, "status", fast.status, "error", fast.err)
	slow, region := e.fallbackPath(ctx, article.URL, session)
	method := MethodFallback
	if region != "" {
		method = fmt.Sprintf("%s(%s)", MethodFallback, region)
	}
	if slow.status == domain.ExtractionSuccess {
		return domain.ExtractedArticle{Collected: article, BodyText: slow.text, Status: slow.status, Method: method}
	}

	return domain.ExtractedArticle{
		Collected: article,
		Status:    slow.status,
		Method:    method,
		Error:     fmt.Sprintf("fast path: %s; fallback: %s", errString(fast.err), errString(slow.err)),
	}
}

// fastPath fetches statically with retries; a short body is final, not retried.
func (e *Extractor) fastPath(ctx context.Context, pageURL string) attemptResult {
	var res attemptResult
	_, err := retry.Do(ctx, e.cfg.Retry, func(ctx context.Context, attempt int) error {
		text, err := e.fetchWithTimeout(ctx, pageURL)
		res = classify(text, err, e.cfg.MinBodyLength)
		if res.err != nil && e.logger != nil {
			e.logger.Debug("fast path attempt failed", "url", pageURL, "attempt", attempt, "status", res.status, "error", res.err)
		}
		if errors.Is(res.err, errBodyTooShort) {
			return retry.Permanent(res.err)
		}
		return res.err
	})
	if err != nil && res.err == nil {
		res = attemptResult{status: domain.ExtractionFailed, err: err}
	}
	return res
}

func (e *Extractor) fetchWithTimeout(ctx context.Context, pageURL string) (string, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	return e.fetcher.FetchText(ctx, pageURL)
}

// fallbackPath renders the page in the shared browser, retrying render failures.
func (e *Extractor) fallbackPath(ctx context.Context, pageURL string, session *rendererSession) (attemptResult, string) {
	renderer, err := session.acquire(ctx)
	if err != nil {
		status := domain.ExtractionFailed
		if isTimeout(err) {
			status = domain.ExtractionTimeout
		}
		return attemptResult{status: status, err: fmt.Errorf("browser unavailable: %w", err)}, ""
	}

	var (
		res    attemptResult
		region string
	)
	_, err = retry.Do(ctx, e.cfg.Retry, func(ctx context.Context, attempt int) error {
		rctx := ctx
		if e.cfg.FallbackTimeout > 0 {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(ctx, e.cfg.FallbackTimeout)
			defer cancel()
		}

		html, err := renderer.RenderHTML(rctx, pageURL)
		if err != nil {
			res = attemptResult{status: domain.ExtractionFailed, err: err}
			if isTimeout(err) {
				res.status = domain.ExtractionTimeout
			}
			return err
		}

		text, name, ok := content.FirstRegion(html, e.cfg.FallbackMinText)
		if !ok {
			res = attemptResult{status: domain.ExtractionFailed, err: errNoContentFound}
			return retry.Permanent(errNoContentFound)
		}
		res = attemptResult{status: domain.ExtractionSuccess, text: text}
		region = name
		return nil
	})
	if err != nil && res.err == nil {
		res = attemptResult{status: domain.ExtractionFailed, err: err}
	}
	return res, region
}

func classify(text string, err error, minLength int) attemptResult {
	switch {
	case err != nil && isTimeout(err):
		return attemptResult{status: domain.ExtractionTimeout, err: err}
	case err != nil:
		return attemptResult{status: domain.ExtractionFailed, err: err}
	case len(text) >= minLength && text != "":
		return attemptResult{status: domain.ExtractionSuccess, text: text}
	default:
		return attemptResult{
			status: domain.ExtractionFailed,
			text:   text,
			err:    fmt.Errorf("%w: %d < %d characters", errBodyTooShort, len(text), minLength),
		}
	}
}

// rendererSession lazily starts one renderer for a batch and releases it once.
type rendererSession struct {
	factory  ports.RendererFactory
	mu       sync.Mutex
	renderer ports.Renderer
	startErr error
	started  bool
}

func (s *rendererSession) acquire(ctx context.Context) (ports.Renderer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return s.renderer, s.startErr
	}
	if s.factory == nil {
		return nil, errors.New("no renderer configured")
	}
	s.started = true
	s.renderer, s.startErr = s.factory(ctx)
	return s.renderer, s.startErr
}

func (s *rendererSession) release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.renderer == nil {
		return nil
	}
	err := s.renderer.Close()
	s.renderer = nil
	return err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (e *Extractor) debug(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Extractor) warn(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
