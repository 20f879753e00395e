package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetryRecoversFromTransientFailure(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, BaseBackoff: time.Millisecond, CallTimeout: 50 * time.Millisecond}
	calls := 0
	err := withRetry(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 2, BaseBackoff: time.Millisecond, CallTimeout: 50 * time.Millisecond}
	boom := errors.New("still down")
	calls := 0
	err := withRetry(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls, "must stop at MaxAttempts, never loop forever")
}

func TestWithRetryHonoursCancellation(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 10, BaseBackoff: 20 * time.Millisecond, CallTimeout: 50 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, cfg, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWithRetryAppliesPerCallTimeout(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 1, BaseBackoff: time.Millisecond, CallTimeout: 10 * time.Millisecond}
	err := withRetry(context.Background(), cfg, func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok, "each attempt must carry a deadline")
		assert.WithinDuration(t, time.Now().Add(cfg.CallTimeout), deadline, 5*time.Millisecond)
		return nil
	})
	require.NoError(t, err)
}
