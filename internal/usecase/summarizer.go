package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
	"NewsPipeline/internal/retry"
)

// ErrSummaryParse wraps every malformed or schema-invalid model reply.
var ErrSummaryParse = errors.New("parse summary")

// maxPromptBody bounds the article text sent to the model.
const maxPromptBody = 24000

// SummarizerConfig tunes model calls.
type SummarizerConfig struct {
	Concurrency int
	Timeout     time.Duration
	Retry       retry.Policy
}

// SummarizerDeps wires the language model backend.
type SummarizerDeps struct {
	Completer ports.Completer
	Config    SummarizerConfig
	Logger    *slog.Logger
}

// Summarizer turns extracted body text into a StructuredSummary.
type Summarizer struct {
	completer ports.Completer
	cfg       SummarizerConfig
	logger    *slog.Logger
	validate  *validator.Validate
}

// NewSummarizer constructs the summarization stage.
func NewSummarizer(deps SummarizerDeps) *Summarizer {
	return &Summarizer{
		completer: deps.Completer,
		cfg:       deps.Config,
		logger:    deps.Logger,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// SummarizeBatch summarizes with bounded concurrency and waits for every article.
func (s *Summarizer) SummarizeBatch(ctx context.Context, articles []domain.ExtractedArticle) []domain.SummarizedArticle {
	return runBatch(ctx, articles, s.cfg.Concurrency, s.Summarize,
		func(a domain.ExtractedArticle, err error) domain.SummarizedArticle {
			s.warn("summarization panicked", "url", a.Collected.URL, "error", err)
			return domain.SummarizedArticle{Extracted: a, Status: domain.SummarizationFailed, Error: err.Error()}
		})
}

// Summarize issues one model call per attempt. Malformed replies and backends
// that cannot start are final; transport failures are retried.
func (s *Summarizer) Summarize(ctx context.Context, article domain.ExtractedArticle) domain.SummarizedArticle {
	if !article.HasBody() {
		return domain.SummarizedArticle{
			Extracted: article,
			Status:    domain.SummarizationSkipped,
			Error:     "no body text",
		}
	}
	if s.completer == nil {
		return domain.SummarizedArticle{Extracted: article, Status: domain.SummarizationFailed, Error: "no completer configured"}
	}

	prompt := BuildPrompt(article)
	var summary domain.StructuredSummary

	out, err := retry.Do(ctx, s.cfg.Retry, func(ctx context.Context, attempt int) error {
		reply, err := s.complete(ctx, prompt)
		if err != nil {
			if errors.Is(err, ports.ErrProcessStart) {
				return retry.Permanent(err)
			}
			s.debug("model call failed", "url", article.Collected.URL, "attempt", attempt, "error", err)
			return err
		}

		parsed, err := s.ParseSummary(reply)
		if err != nil {
			return retry.Permanent(err)
		}
		summary = parsed
		return nil
	})

	if err == nil {
		return domain.SummarizedArticle{Extracted: article, Summary: &summary, Status: domain.SummarizationSuccess}
	}

	status := domain.SummarizationFailed
	msg := err.Error()
	switch {
	case errors.Is(err, ports.ErrProcessStart):
		msg = "model backend unavailable: " + msg
	case errors.Is(err, ErrSummaryParse):
	case isTimeout(err):
		status = domain.SummarizationTimeout
	}
	if out.Attempts > 1 {
		msg = fmt.Sprintf("%s (after %d attempts)", msg, out.Attempts)
	}
	s.warn("summarization failed", "url", article.Collected.URL, "status", status, "error", msg)

	return domain.SummarizedArticle{Extracted: article, Status: status, Error: msg}
}

func (s *Summarizer) complete(ctx context.Context, prompt string) (string, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	return s.completer.Complete(ctx, prompt)
}

// ParseSummary decodes a possibly fenced JSON reply and checks it has all four sections.
func (s *Summarizer) ParseSummary(reply string) (domain.StructuredSummary, error) {
	var summary domain.StructuredSummary

	body := cleanJSONResponse(reply)
	if body == "" {
		return summary, fmt.Errorf("%w: empty reply", ErrSummaryParse)
	}

	if err := json.Unmarshal([]byte(body), &summary); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &syntaxErr):
			return summary, fmt.Errorf("%w: invalid JSON at offset %d: %v", ErrSummaryParse, syntaxErr.Offset, err)
		case errors.As(err, &typeErr):
			return summary, fmt.Errorf("%w: field %q has wrong type %s", ErrSummaryParse, typeErr.Field, typeErr.Value)
		default:
			return summary, fmt.Errorf("%w: %v", ErrSummaryParse, err)
		}
	}

	if err := s.validate.Struct(summary); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return summary, fmt.Errorf("%w: missing sections %s", ErrSummaryParse, strings.Join(fields, ", "))
		}
		return summary, fmt.Errorf("%w: %v", ErrSummaryParse, err)
	}
	return summary, nil
}

// BuildPrompt renders the single request sent per attempt.
func BuildPrompt(article domain.ExtractedArticle) string {
	c := article.Collected
	published := "unknown"
	if c.PublishedAt != nil {
		published = c.PublishedAt.UTC().Format(time.RFC3339)
	}

	body := article.BodyText
	if len(body) > maxPromptBody {
		body = body[:maxPromptBody]
	}

	var b strings.Builder
	b.WriteString("Summarize the following financial news article.\n")
	b.WriteString("Reply with a single JSON object with the keys ")
	b.WriteString(`"overview" (string), "key_points" (array of strings), "market_impact" (string) and "related_info" (string or null).`)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Title: %s\n", c.Title)
	fmt.Fprintf(&b, "Source: %s\n", c.Source.DisplayName)
	fmt.Fprintf(&b, "Published: %s\n", published)
	fmt.Fprintf(&b, "URL: %s\n\n", c.URL)
	b.WriteString("Body:\n")
	b.WriteString(body)
	return b.String()
}

func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// Models sometimes wrap the object in prose.
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}

func (s *Summarizer) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Summarizer) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
