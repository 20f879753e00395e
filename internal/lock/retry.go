package lock

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig bounds how hard the store leans on Redis before giving
// up. Every call gets a hard per-call timeout; transient failures are
// retried with jittered exponential backoff until MaxAttempts is
// reached, after which ErrUnavailable surfaces to the caller.
type RetryConfig struct {
	MaxAttempts int           // total attempts including the first
	BaseBackoff time.Duration // backoff before the second attempt
	CallTimeout time.Duration // per-attempt deadline
}

// DefaultRetryConfig matches the latency budget of an interactive
// seat-map click: at most ~1s of total stalling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseBackoff: 50 * time.Millisecond,
		CallTimeout: 300 * time.Millisecond,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 50 * time.Millisecond
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 300 * time.Millisecond
	}
	return c
}

// withRetry runs fn up to cfg.MaxAttempts times, each under its own
// timeout, sleeping a jittered exponential backoff between attempts.
// The last error is wrapped behind ErrUnavailable by callers; fn
// errors that are context cancellations from the parent abort at once.
func withRetry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	cfg = cfg.normalized()
	backoff := cfg.BaseBackoff
	var last error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			// full jitter: sleep a random slice of the current backoff
			d := time.Duration(rand.Int63n(int64(backoff) + 1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
			}
			backoff *= 2
		}
		callCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		last = err
	}
	return last
}
