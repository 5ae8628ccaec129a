package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

type fetchStep struct {
	text string
	err  error
}

// scriptedFetcher replays steps per URL; the last step repeats.
type scriptedFetcher struct {
	mu       sync.Mutex
	steps    map[string][]fetchStep
	calls    map[string]int
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
	panicOn  string
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{steps: map[string][]fetchStep{}, calls: map[string]int{}}
}

func (f *scriptedFetcher) on(url string, steps ...fetchStep) *scriptedFetcher {
	f.steps[url] = steps
	return f
}

func (f *scriptedFetcher) FetchText(ctx context.Context, url string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if url == f.panicOn {
		panic("parser exploded")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls[url]
	f.calls[url]++
	steps := f.steps[url]
	if len(steps) == 0 {
		return "", nil
	}
	if idx >= len(steps) {
		idx = len(steps) - 1
	}
	return steps[idx].text, steps[idx].err
}

func (f *scriptedFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

type fakeRenderer struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	calls  int
	closed int
}

func (r *fakeRenderer) RenderHTML(_ context.Context, url string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if err, ok := r.errs[url]; ok {
		return "", err
	}
	return r.pages[url], nil
}

func (r *fakeRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

type countingFactory struct {
	renderer *fakeRenderer
	err      error
	starts   atomic.Int32
}

func (c *countingFactory) factory() ports.RendererFactory {
	return func(context.Context) (ports.Renderer, error) {
		c.starts.Add(1)
		if c.err != nil {
			return nil, c.err
		}
		return c.renderer, nil
	}
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func (r *recordingSleeper) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

type completerStep struct {
	reply string
	err   error
}

type scriptedCompleter struct {
	mu      sync.Mutex
	steps   []completerStep
	calls   int
	prompts []string
}

func (c *scriptedCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	idx := c.calls
	c.calls++
	if len(c.steps) == 0 {
		return "", nil
	}
	if idx >= len(c.steps) {
		idx = len(c.steps) - 1
	}
	return c.steps[idx].reply, c.steps[idx].err
}

func (c *scriptedCompleter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// fakeTracker is an in-memory board.
type fakeTracker struct {
	mu          sync.Mutex
	items       map[string]ports.ItemRef
	creates     []ports.ItemDraft
	updates     map[string]ports.FieldUpdate
	listCalls   int
	createErr   error
	createRef   *ports.ItemRef
	listErr     error
	updateCalls int
	nextID      int
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{items: map[string]ports.ItemRef{}, updates: map[string]ports.FieldUpdate{}}
}

func (t *fakeTracker) CreateItem(_ context.Context, draft ports.ItemDraft) (ports.ItemRef, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.creates = append(t.creates, draft)
	if t.createErr != nil {
		ref := ports.ItemRef{}
		if t.createRef != nil {
			ref = *t.createRef
		}
		return ref, t.createErr
	}
	if t.createRef != nil {
		t.items[draft.URL] = *t.createRef
		return *t.createRef, nil
	}
	t.nextID++
	ref := ports.ItemRef{ID: fmt.Sprintf("item-%d", t.nextID), URL: fmt.Sprintf("https://tracker.example.com/items/%d", t.nextID)}
	t.items[draft.URL] = ref
	return ref, nil
}

func (t *fakeTracker) UpdateFields(_ context.Context, id string, fields ports.FieldUpdate) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.updateCalls++
	t.updates[id] = fields
	return nil
}

func (t *fakeTracker) ListRecentURLs(context.Context, time.Time) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listCalls++
	if t.listErr != nil {
		return nil, t.listErr
	}
	urls := make([]string, 0, len(t.items))
	for u := range t.items {
		urls = append(urls, u)
	}
	return urls, nil
}

func (t *fakeTracker) counts() (creates, updates, lists int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.creates), t.updateCalls, t.listCalls
}

func ptrTime(t time.Time) *time.Time { return &t }

func collected(url string) domain.CollectedArticle {
	return domain.CollectedArticle{
		URL:   url,
		Title: "Title for " + url,
		Source: domain.ArticleSource{
			Kind:            domain.SourceFeed,
			DisplayName:     "wire",
			RoutingCategory: "markets",
		},
	}
}
