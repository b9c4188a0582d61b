package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courierbot/pkg/retry"
)

func TestLinear(t *testing.T) {
	b := retry.Linear(time.Second)
	assert.Equal(t, time.Second, b(1))
	assert.Equal(t, 2*time.Second, b(2))
	assert.Equal(t, 3*time.Second, b(3))
}

func TestPolicyDo(t *testing.T) {
	errBoom := errors.New("boom")

	t.Run("succeeds after transient failures", func(t *testing.T) {
		var waits []time.Duration
		p := retry.Policy{
			MaxAttempts: 3,
			Backoff:     retry.Linear(time.Millisecond),
			OnRetry: func(_ int, _ error, wait time.Duration) {
				waits = append(waits, wait)
			},
		}
		calls := 0
		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			if calls < 3 {
				return errBoom
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, waits)
	})

	t.Run("backoff restarts on every call", func(t *testing.T) {
		var (
			attempts []int
			waits    []time.Duration
		)
		p := retry.Policy{
			MaxAttempts: 3,
			Backoff:     retry.Linear(time.Millisecond),
			OnRetry: func(attempt int, _ error, wait time.Duration) {
				attempts = append(attempts, attempt)
				waits = append(waits, wait)
			},
		}
		for i := 0; i < 2; i++ {
			err := p.Do(context.Background(), func(context.Context) error { return errBoom })
			assert.ErrorIs(t, err, retry.ErrExhausted)
		}
		assert.Equal(t, []int{1, 2, 1, 2}, attempts)
		assert.Equal(t, []time.Duration{
			time.Millisecond, 2 * time.Millisecond,
			time.Millisecond, 2 * time.Millisecond,
		}, waits)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		p := retry.Policy{MaxAttempts: 3, Backoff: retry.Constant(0)}
		calls := 0
		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			return errBoom
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, retry.ErrExhausted)
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		p := retry.Policy{
			MaxAttempts: 3,
			Retryable:   func(err error) bool { return !errors.Is(err, errBoom) },
		}
		calls := 0
		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			return errBoom
		})
		assert.Equal(t, errBoom, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("bounds each attempt", func(t *testing.T) {
		p := retry.Policy{MaxAttempts: 2, AttemptTimeout: 10 * time.Millisecond}
		calls := 0
		err := p.Do(context.Background(), func(ctx context.Context) error {
			calls++
			<-ctx.Done()
			return ctx.Err()
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 2, calls)
	})

	t.Run("honours cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		err := retry.Policy{MaxAttempts: 3}.Do(ctx, func(context.Context) error {
			calls++
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, calls)
	})
}
