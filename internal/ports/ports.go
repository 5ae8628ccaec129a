package ports

import (
	"context"
	"errors"
	"time"

	"NewsPipeline/internal/domain"
)

var (
	// ErrAlreadyExists is returned by Tracker.CreateItem when the item is already on the board.
	// The returned ItemRef may still carry the existing identifier.
	ErrAlreadyExists = errors.New("item already exists")
	// ErrProcessStart marks a completer that could not start its backend at all.
	ErrProcessStart = errors.New("completer process could not start")
)

// ArticleSource runs one collection pass over every configured source.
type ArticleSource interface {
	Collect(ctx context.Context, maxAge time.Duration) (domain.CollectionReport, error)
}

// PageFetcher is the fast extraction path: fetch raw HTML and parse it without scripts.
type PageFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Renderer is a scriptable-browser session used by the fallback path.
type Renderer interface {
	RenderHTML(ctx context.Context, url string) (string, error)
	Close() error
}

// RendererFactory starts a new browser session.
type RendererFactory func(ctx context.Context) (Renderer, error)

// Completer sends a prompt to a language model and returns its text reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ItemDraft is the payload for a new tracker item.
type ItemDraft struct {
	Title       string
	Body        string
	URL         string
	Destination string
}

// ItemRef identifies an item on the tracker.
type ItemRef struct {
	ID  string
	URL string
}

// FieldUpdate carries the fields set after creation.
type FieldUpdate struct {
	Status string
	Date   time.Time
}

// Tracker is the external project-tracking system.
type Tracker interface {
	CreateItem(ctx context.Context, draft ItemDraft) (ItemRef, error)
	UpdateFields(ctx context.Context, id string, fields FieldUpdate) error
	ListRecentURLs(ctx context.Context, since time.Time) ([]string, error)
}

// Notifier streams run digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// ResultWriter persists the final workflow result.
type ResultWriter interface {
	WriteResult(ctx context.Context, result domain.WorkflowResult) (string, error)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
