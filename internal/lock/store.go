// Package lock implements the advisory soft-lock layer used during
// seat selection. Locks are keyed by (session, seat), tagged with the
// owning user and bounded by a TTL; they exist to avoid obvious
// collisions before checkout and are never authoritative for sale.
// The row lock inside the reservation transaction is.
package lock

import (
	"context"
	"errors"
	"time"
)

// AcquireResult is the outcome of an Acquire call.
type AcquireResult int

const (
	// Acquired means the lock is now held by the requested owner,
	// either freshly set or refreshed (idempotent re-acquire).
	Acquired AcquireResult = iota
	// AlreadyLocked means a different owner holds the lock.
	AlreadyLocked
)

// ReleaseResult is the outcome of a Release call.
type ReleaseResult int

const (
	// Released means the lock was deleted by its owner, or was
	// already absent.
	Released ReleaseResult = iota
	// NotOwner means a different owner holds the lock; it was left
	// intact.
	NotOwner
)

// ErrUnavailable is returned after bounded retries against the backing
// store have been exhausted. It is retryable from the caller's point
// of view and must never be collapsed into a silent success.
var ErrUnavailable = errors.New("lock store unavailable")

// Store is the soft-lock contract consumed by the checkout flow and
// the reservation coordinator. All operations are atomic with respect
// to concurrent calls for the same (session, seat) key: there is never
// a separate check-then-set visible to another caller.
type Store interface {
	// Acquire sets the lock if absent, or refreshes the TTL when the
	// same owner already holds it.
	Acquire(ctx context.Context, sessionID, seatID, ownerID uint64, ttl time.Duration) (AcquireResult, error)
	// Release deletes the lock only when the given owner holds it
	// (compare-and-delete), so a slow duplicate release can never
	// evict a newer holder.
	Release(ctx context.Context, sessionID, seatID, ownerID uint64) (ReleaseResult, error)
	// Validate reports whether the lock exists and is held by owner.
	Validate(ctx context.Context, sessionID, seatID, ownerID uint64) (bool, error)
	// ListLocked returns the subset of seatIDs currently locked for
	// the session, regardless of owner. Used for seat-map rendering.
	ListLocked(ctx context.Context, sessionID uint64, seatIDs []uint64) (map[uint64]bool, error)
}
