package ingestion

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Backoff paces repeated catalog requests. Delays double from Base up to
// Max, with jitter drawn from the upper half of each step.
type Backoff struct {
	Attempts int // total tries including the first
	Base     time.Duration
	Max      time.Duration
}

func defaultBackoff() Backoff {
	return Backoff{Attempts: 3, Base: 500 * time.Millisecond, Max: 5 * time.Second}
}

// delay returns the pause before retry n (zero-based).
func (b Backoff) delay(n int) time.Duration {
	d := b.Max
	if n < 30 {
		if step := b.Base << n; step > 0 && step < d {
			d = step
		}
	}
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + rand.N(half+1)
}

// transientError marks an upstream failure worth repeating, optionally with
// a server-requested pause.
type transientError struct {
	err   error
	after time.Duration
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func transient(err error) error { return &transientError{err: err} }

func transientAfter(err error, after time.Duration) error {
	return &transientError{err: err, after: after}
}

// isTransient reports whether err may succeed on retry, and any pause the
// server asked for.
func isTransient(err error) (time.Duration, bool) {
	var t *transientError
	if errors.As(err, &t) {
		return t.after, true
	}
	return 0, false
}

// withRetry calls fn until it succeeds, fails permanently, runs out of
// attempts or ctx ends.
func withRetry[T any](ctx context.Context, b Backoff, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(b.Attempts, 1)

	for n := 0; ; n++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		after, ok := isTransient(err)
		if !ok {
			return zero, err
		}
		if n+1 >= attempts {
			return zero, fmt.Errorf("giving up after %d attempts: %w", attempts, err)
		}

		wait := b.delay(n)
		if after > 0 {
			wait = min(after, b.Max)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}
