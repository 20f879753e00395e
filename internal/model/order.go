package model

import (
	"fmt"
	"time"
)

// OrderStatus enumerates the states of a purchase attempt.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderFailed    OrderStatus = "FAILED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// orderTransitions lists the legal order state changes. Re-entering
// PAID or CANCELLED from the same state is a no-op, not an error.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending: {OrderPaid, OrderFailed, OrderCancelled},
	OrderPaid:    {OrderCancelled},
}

// Order records a user's purchase attempt for one session. It
// aggregates the tickets bought in a single transaction; TotalCents is
// the sum of the tickets' price snapshots and is immutable once set.
//
// Fields:
//  ID         – primary key identifier.
//  UserID     – user who placed the order.
//  SessionID  – session being purchased.
//  Status     – state of the order.
//  TotalCents – total price in cents across all tickets.
//  PaymentRef – payment provider transaction id, set when paid.
//  CreatedAt  – creation timestamp; drives reaper staleness.
//  UpdatedAt  – last update timestamp.
type Order struct {
	ID         uint64      // orders.id
	UserID     uint64      // orders.user_id
	SessionID  uint64      // orders.session_id
	Status     OrderStatus // orders.status
	TotalCents uint32      // orders.total_amount_cents
	PaymentRef *string     // orders.payment_ref (nullable)
	CreatedAt  time.Time   // orders.created_at
	UpdatedAt  time.Time   // orders.updated_at
}

// CanTransition reports whether moving the order to the target status
// is legal. Same-state re-entry into PAID or CANCELLED is permitted as
// a no-op.
func (o *Order) CanTransition(to OrderStatus) bool {
	if o.Status == to {
		return to == OrderPaid || to == OrderCancelled
	}
	for _, next := range orderTransitions[o.Status] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the order to the target status, returning an error
// for illegal transitions. A permitted same-state transition leaves
// the order untouched.
func (o *Order) Transition(to OrderStatus) error {
	if !o.CanTransition(to) {
		return fmt.Errorf("order %d: illegal transition %s -> %s", o.ID, o.Status, to)
	}
	o.Status = to
	return nil
}

// Terminal reports whether no further order transition is possible.
func (o *Order) Terminal() bool {
	return o.Status == OrderFailed || o.Status == OrderCancelled
}
