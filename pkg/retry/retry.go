package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffFunc returns the wait before the next attempt; attempt starts at 1.
type BackoffFunc func(attempt int) time.Duration

// Linear waits attempt*step: step, 2*step, 3*step...
func Linear(step time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

func Constant(d time.Duration) BackoffFunc {
	return func(int) time.Duration { return d }
}

type Policy struct {
	MaxAttempts int
	Backoff     BackoffFunc
	// AttemptTimeout bounds every single attempt; zero means no bound.
	AttemptTimeout time.Duration
	// Retryable decides whether an error is worth another attempt; nil retries everything.
	Retryable func(error) bool
	// OnRetry is called before waiting for the next attempt.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// ErrExhausted wraps the last error once every attempt has failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Do runs fn until it succeeds, the error is not retryable, attempts run out
// or ctx is done.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		attempt   int
		permanent bool
	)
	operation := func() error {
		if err := ctx.Err(); err != nil {
			permanent = true
			return backoff.Permanent(err)
		}
		attempt++
		err := p.attempt(ctx, fn)
		if err != nil && p.Retryable != nil && !p.Retryable(err) {
			permanent = true
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(&funcBackOff{next: p.Backoff}, uint64(attempts-1)),
		ctx,
	)
	err := backoff.RetryNotify(operation, b, notify)
	switch {
	case err == nil:
		return nil
	case permanent, ctx.Err() != nil:
		return err
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
}

func (p Policy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.AttemptTimeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return fn(attemptCtx)
}

// funcBackOff adapts a BackoffFunc to backoff.BackOff. It is stateful, so
// every Do builds its own.
type funcBackOff struct {
	next    BackoffFunc
	attempt int
}

func (b *funcBackOff) NextBackOff() time.Duration {
	b.attempt++
	if b.next == nil {
		return 0
	}
	return b.next(b.attempt)
}

func (b *funcBackOff) Reset() {
	b.attempt = 0
}
