package model

import (
	"fmt"
	"time"
)

// TicketStatus enumerates the states of a single seat within an order.
// Tickets are created RESERVED and promoted to VALID only when the
// order's payment succeeds; a failed payment or a reaped order moves
// them to REFUNDED so the seat frees up immediately. USED and REFUNDED
// are terminal.
type TicketStatus string

const (
	TicketReserved TicketStatus = "RESERVED"
	TicketValid    TicketStatus = "VALID"
	TicketUsed     TicketStatus = "USED"
	TicketRefunded TicketStatus = "REFUNDED"
)

var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketReserved: {TicketValid, TicketRefunded},
	TicketValid:    {TicketUsed, TicketRefunded},
}

// LiveTicketStatuses are the statuses that make a (session, seat) pair
// unsellable. At most one live ticket may exist per pair at any time;
// the reservation transaction enforces this behind the seat row lock.
var LiveTicketStatuses = []TicketStatus{TicketReserved, TicketValid, TicketUsed}

// Ticket is one seat within one order. PriceCents is the price
// snapshot captured at reservation time and never changes afterwards,
// regardless of later pricing-policy edits.
//
// Fields:
//  ID         – primary key identifier.
//  OrderID    – owning order.
//  SessionID  – session the seat is booked for.
//  SeatID     – seat being sold; unique per (order, seat).
//  PriceCents – immutable price snapshot in cents.
//  Status     – state of the ticket.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Ticket struct {
	ID         uint64       // tickets.id
	OrderID    uint64       // tickets.order_id
	SessionID  uint64       // tickets.session_id
	SeatID     uint64       // tickets.seat_id
	PriceCents uint32       // tickets.price_cents
	Status     TicketStatus // tickets.status
	CreatedAt  time.Time    // tickets.created_at
	UpdatedAt  time.Time    // tickets.updated_at
}

// CanTransition reports whether moving the ticket to the target status
// is legal.
func (t *Ticket) CanTransition(to TicketStatus) bool {
	for _, next := range ticketTransitions[t.Status] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the ticket to the target status, returning an error
// for illegal transitions.
func (t *Ticket) Transition(to TicketStatus) error {
	if !t.CanTransition(to) {
		return fmt.Errorf("ticket %d: illegal transition %s -> %s", t.ID, t.Status, to)
	}
	t.Status = to
	return nil
}

// Live reports whether the ticket keeps its seat unsellable.
func (t *Ticket) Live() bool {
	switch t.Status {
	case TicketReserved, TicketValid, TicketUsed:
		return true
	}
	return false
}
