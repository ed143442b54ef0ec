package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackoff(cfg *Config) (*ExponentialBackoff, *[]time.Duration) {
	waits := []time.Duration{}
	eb := NewExponentialBackoff(cfg)
	eb.wait = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return eb, &waits
}

func TestExponentialBackoff_SucceedsAfterTransientFailures(t *testing.T) {
	eb, waits := newTestBackoff(&Config{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2})

	calls := 0
	err := eb.Execute(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *waits)
}

func TestExponentialBackoff_StopsOnPermanentError(t *testing.T) {
	eb, waits := newTestBackoff(&Config{MaxAttempts: 5, BaseDelay: time.Millisecond})
	permanent := errors.New("password authentication failed")

	calls := 0
	err := eb.Execute(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.False(t, IsMaxRetriesExceeded(err))
	assert.Equal(t, 1, calls)
	assert.Empty(t, *waits)
}

func TestExponentialBackoff_ReportsExhaustion(t *testing.T) {
	eb, _ := newTestBackoff(&Config{MaxAttempts: 2, BaseDelay: time.Millisecond})
	transient := errors.New("i/o timeout")

	err := eb.Execute(context.Background(), func(context.Context) error { return transient })

	assert.True(t, IsMaxRetriesExceeded(err))
	assert.ErrorIs(t, err, transient)
}

func TestExponentialBackoff_DelayIsCapped(t *testing.T) {
	eb := NewExponentialBackoff(&Config{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2})

	assert.Equal(t, time.Second, eb.Delay(1))
	assert.Equal(t, 2*time.Second, eb.Delay(2))
	assert.Equal(t, 3*time.Second, eb.Delay(3))
	assert.Equal(t, 3*time.Second, eb.Delay(8))
}

func TestExponentialBackoff_HonoursCancellation(t *testing.T) {
	eb := NewExponentialBackoff(&Config{MaxAttempts: 3, BaseDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := eb.Execute(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("connection reset by peer")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
