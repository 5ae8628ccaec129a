package usecase

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"
)

// runBatch applies fn to every item with at most limit in flight and waits
// for all of them. A panic inside fn is converted by onPanic into that item's
// result so sibling items are unaffected. results[i] belongs to items[i].
func runBatch[In, Out any](ctx context.Context, items []In, limit int, fn func(context.Context, In) Out, onPanic func(In, error) Out) []Out {
	results := make([]Out, len(items))
	if len(items) == 0 {
		return results
	}
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for i, item := range items {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = onPanic(item, fmt.Errorf("panic: %v", r))
				}
			}()
			results[i] = fn(ctx, item)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// isTimeout reports whether err came from an exceeded deadline.
func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
