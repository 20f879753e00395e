package booking

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/go-sql-driver/mysql"
)

// RetryPolicy re-runs a whole transaction body when it fails for a
// retryable reason. Which error classes count as retryable is part of
// the policy, not hidden framework behaviour: only connection-level
// transients (deadlock victim, broken connection) qualify by default.
// Lock-contention failures are never retried here; they go back to the
// caller, who may re-issue after reacquiring soft locks.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	// Retryable classifies errors. Nil means DefaultRetryable.
	Retryable func(error) bool
}

// DefaultRetryPolicy keeps checkout latency bounded: two re-runs with
// short backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseBackoff: 25 * time.Millisecond}
}

// MySQL server error numbers that make re-running the transaction
// worthwhile.
const (
	mysqlErrDeadlock        = 1213 // ER_LOCK_DEADLOCK, this tx was the victim
	mysqlErrLockWaitTimeout = 1205 // ER_LOCK_WAIT_TIMEOUT
	mysqlErrNowait          = 3572 // ER_LOCK_NOWAIT, row held by another tx
)

// DefaultRetryable retries deadlock victims and broken connections.
// A NOWAIT conflict (3572) and the contention sentinels are explicitly
// not retryable: they mean another buyer holds the seats right now.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSeatRowLocked) {
		return false
	}
	var f *Failure
	if errors.As(err, &f) {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlErrDeadlock
	}
	if errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return false
}

// Do runs fn until it succeeds, a non-retryable error occurs, or the
// attempt budget is spent. The backoff doubles between attempts.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}
	backoff := p.BaseBackoff
	if backoff <= 0 {
		backoff = 25 * time.Millisecond
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err = fn(); err == nil || !retryable(err) {
			return err
		}
	}
	return err
}
