// Package retry wraps remote operations with bounded exponential-backoff
// retry. Only errors explicitly marked transient are retried; validation and
// business errors propagate on first occurrence.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultBaseDelay is the starting backoff used by most call sites.
const DefaultBaseDelay = time.Second

// ErrExhausted wraps the last transient failure once all attempts are spent.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy controls retry behavior for a single call site. An operation is
// attempted at most MaxRetries+1 times, sleeping BaseDelay·2^attempt between
// attempts.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable. Clients classify transport-level faults
// (timeouts, connection resets, 5xx responses) with this before returning.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err (or anything it wraps) was marked by Transient.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// sleep is swapped out in tests to avoid real backoff delays.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do executes op, retrying transient failures with exponential backoff.
// Non-transient errors return immediately. After MaxRetries retries the last
// transient failure is surfaced wrapped in ErrExhausted. The backoff sleep
// honors ctx cancellation.
func Do[T any](ctx context.Context, p Policy, name string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if !IsTransient(err) {
			return zero, err
		}
		lastErr = err

		if attempt == p.MaxRetries {
			break
		}

		delay := p.BaseDelay << uint(attempt)
		slog.Warn("transient failure, retrying",
			"op", name,
			"attempt", attempt+1,
			"delay", delay.String(),
			"error", err,
		)
		if serr := sleep(ctx, delay); serr != nil {
			return zero, serr
		}
	}

	return zero, fmt.Errorf("%s: %w: %w", name, ErrExhausted, lastErr)
}
