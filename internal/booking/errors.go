// Package booking contains the seat reservation and order fulfilment
// pipeline: the coordinator that turns soft-locked seats into a
// committed order, the payment orchestrator, the cancellation path and
// the expiration reaper.
package booking

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so clients can decide between retrying
// with fresh locks, retrying later, or displaying a permanent error.
type Kind int

const (
	// KindContention – lock or seat unavailable; the caller retries
	// with fresh soft locks, the system never retries automatically.
	KindContention Kind = iota
	// KindTransient – infrastructure hiccup; retried automatically
	// with bounded attempts, surfaced only after exhaustion.
	KindTransient
	// KindConfig – missing pricing rule or seat type; fatal to the
	// request and never silently defaulted.
	KindConfig
	// KindPayment – payment declined; a business outcome, not a
	// system error.
	KindPayment
	// KindAuth – caller not entitled to act on the resource.
	KindAuth
)

// Failure is the typed error every pipeline operation returns. Code is
// a stable machine-readable identifier; Message is for humans. No
// panic or raw driver error crosses the package boundary.
type Failure struct {
	Code    string
	Kind    Kind
	Message string
	cause   error
}

func (f *Failure) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Code, f.Message, f.cause)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

func (f *Failure) Unwrap() error { return f.cause }

// Retryable reports whether the client may reasonably retry the
// operation (after reacquiring locks for contention failures).
func (f *Failure) Retryable() bool {
	return f.Kind == KindContention || f.Kind == KindTransient
}

func fail(code string, kind Kind, msg string, cause error) *Failure {
	return &Failure{Code: code, Kind: kind, Message: msg, cause: cause}
}

// Pipeline failures. Comparisons go through errors.As on *Failure plus
// the Code field, or the helper predicates below.
var (
	ErrLockExpired = fail("LOCK_EXPIRED", KindContention,
		"soft lock missing or held by another user", nil)
	ErrSeatsUnavailable = fail("SEATS_UNAVAILABLE", KindContention,
		"seat rows are locked by a concurrent reservation", nil)
	ErrSeatsNotActive = fail("SEATS_NOT_ACTIVE", KindConfig,
		"one or more seats are not active", nil)
	ErrSeatsAlreadySold = fail("SEATS_ALREADY_SOLD", KindContention,
		"one or more seats already have a live ticket", nil)
	ErrPaymentDeclined = fail("PAYMENT_DECLINED", KindPayment,
		"payment provider declined the charge", nil)
	ErrRefundFailed = fail("REFUND_FAILED", KindPayment,
		"payment provider could not refund the charge", nil)
	ErrForbidden = fail("FORBIDDEN", KindAuth,
		"caller may not act on this order", nil)
	ErrCancelWindowClosed = fail("CANCEL_WINDOW_CLOSED", KindAuth,
		"session starts too soon to cancel", nil)
	ErrOrderNotFound = fail("ORDER_NOT_FOUND", KindAuth,
		"order does not exist", nil)
	ErrOrderNotPending = fail("ORDER_NOT_PENDING", KindContention,
		"order is not in a payable state", nil)
)

// ErrSeatRowLocked is the sentinel the persistence layer returns when
// a FOR UPDATE NOWAIT request hits a row held by another transaction.
// The coordinator translates it into ErrSeatsUnavailable without
// retrying: contention is resolved by the caller, not the system.
var ErrSeatRowLocked = errors.New("seat row locked by concurrent transaction")

func configFailure(cause error) *Failure {
	return fail("PRICING_RULE_MISSING", KindConfig, "pricing configuration incomplete", cause)
}

func transientFailure(op string, cause error) *Failure {
	return fail("TEMPORARILY_UNAVAILABLE", KindTransient, op+" failed after retries", cause)
}

// AsFailure extracts the *Failure from err, if any.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
