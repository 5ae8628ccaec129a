// Package retry runs an operation with a bounded number of attempts and
// exponential backoff between them. Extraction and summarization share it.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy configures a retry loop.
type Policy struct {
	// MaxRetries is the number of additional attempts after the first one.
	MaxRetries int
	// InitialInterval is the first backoff delay; later delays double.
	InitialInterval time.Duration
	// MaxInterval caps a single delay.
	MaxInterval time.Duration
	// Sleep is swapped in tests to record delays.
	Sleep SleepFunc
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as terminal: Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked terminal.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Outcome describes how a retry loop ended.
type Outcome struct {
	Attempts int
	Delays   []time.Duration
}

// Do calls fn until it succeeds, returns a permanent error, or the attempts
// are exhausted. The returned error is always the last attempt's error, with
// any Permanent wrapper removed.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) (Outcome, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	bo := p.newBackOff()

	var (
		out     Outcome
		lastErr error
	)
	maxAttempts := p.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out.Attempts = attempt
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return out, nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return out, perm.err
		}

		if attempt == maxAttempts {
			break
		}
		if ctx.Err() != nil {
			return out, lastErr
		}

		delay := bo.NextBackOff()
		out.Delays = append(out.Delays, delay)
		if err := sleep(ctx, delay); err != nil {
			return out, lastErr
		}
	}

	return out, lastErr
}

func (p Policy) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	if bo.InitialInterval <= 0 {
		bo.InitialInterval = time.Second
	}
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = p.MaxInterval
	if bo.MaxInterval <= 0 {
		bo.MaxInterval = 5 * time.Minute
	}
	bo.Reset()
	return bo
}

// Sleep blocks for d unless ctx finishes first.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
