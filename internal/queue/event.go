// Package queue defines message payloads exchanged over the message broker.
package queue

// OrderEvent is published whenever an order reaches PAID, FAILED or
// CANCELLED. It carries enough information for downstream consumers
// (ticket PDF generation, email, live seat-map pushes) to act without
// querying the primary database. Delivery retries are the consumer
// side's concern.
type OrderEvent struct {
	OrderID    uint64   `json:"order_id"`
	UserID     uint64   `json:"user_id"`
	SessionID  uint64   `json:"session_id"`
	Status     string   `json:"status"`
	TotalCents uint32   `json:"total_amount_cents"`
	PaymentRef string   `json:"payment_ref,omitempty"`
	SeatIDs    []uint64 `json:"seat_ids,omitempty"`
	OccurredAt string   `json:"occurred_at"`
}
