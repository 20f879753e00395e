package booking

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/lock"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
)

// Orchestrator charges the buyer after a reservation has committed and
// settles the order either way. It also runs the user/admin
// cancellation path with its refund-first discipline.
type Orchestrator struct {
	store       Store
	gateway     PaymentGateway
	locks       lock.Store
	publisher   Publisher
	currency    string
	cancelGrace time.Duration
	log         *log.Logger
	now         func() time.Time
}

// NewOrchestrator wires the orchestrator. cancelGrace is how close to
// the session start a non-admin may still cancel a paid order.
func NewOrchestrator(store Store, gateway PaymentGateway, locks lock.Store, publisher Publisher, currency string, cancelGrace time.Duration, logger *log.Logger) *Orchestrator {
	if store == nil || gateway == nil || locks == nil {
		panic("nil dependency passed to NewOrchestrator")
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if currency == "" {
		currency = "EUR"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		store:       store,
		gateway:     gateway,
		locks:       locks,
		publisher:   publisher,
		currency:    currency,
		cancelGrace: cancelGrace,
		log:         logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source; test helper.
func (o *Orchestrator) SetClock(now func() time.Time) { o.now = now }

// Fulfil charges the order's total and finalizes it: PAID with the
// provider transaction id on success (tickets promoted to VALID), or
// FAILED with tickets retracted to REFUNDED on decline so the seats
// free up immediately. Calling Fulfil on an already paid order is a
// no-op returning the stored result, never a second charge.
func (o *Orchestrator) Fulfil(ctx context.Context, orderID, callerID uint64, token string) (*model.Order, error) {
	order, err := o.store.GetOrder(ctx, orderID)
	if err != nil {
		if f, ok := AsFailure(err); ok {
			return nil, f
		}
		return nil, transientFailure("order load", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID != callerID {
		return nil, ErrForbidden
	}
	if order.Status == model.OrderPaid {
		return order, nil // idempotent re-fulfil
	}
	if order.Status != model.OrderPending {
		return nil, ErrOrderNotPending
	}

	charge, err := o.gateway.Charge(ctx, order.TotalCents, o.currency, token)
	if err != nil {
		return nil, transientFailure("payment charge", err)
	}
	if !charge.Approved {
		if ferr := o.settleFailed(ctx, orderID); ferr != nil {
			o.log.Printf("fulfil: order=%d failed-settlement error: %v", orderID, ferr)
		}
		o.releaseLocks(order.SessionID, o.orderSeats(ctx, orderID), order.UserID)
		o.publish(order, model.OrderFailed, "")
		declined := *ErrPaymentDeclined
		declined.Message = "payment declined: " + charge.Reason
		return nil, &declined
	}

	duplicate := false
	err = o.store.InTx(ctx, func(tx Tx) error {
		current, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrOrderNotFound
		}
		if current.Status == model.OrderPaid {
			// Lost a fulfil race after charging; our charge must be
			// reversed outside the transaction.
			duplicate = true
			order = current
			return nil
		}
		if err := current.Transition(model.OrderPaid); err != nil {
			return ErrOrderNotPending
		}
		if err := tx.UpdateOrderStatus(ctx, orderID, model.OrderPaid, &charge.TransactionID); err != nil {
			return err
		}
		if err := tx.UpdateTicketStatus(ctx, orderID, model.TicketReserved, model.TicketValid); err != nil {
			return err
		}
		current.PaymentRef = &charge.TransactionID
		order = current
		return nil
	})
	if err != nil {
		// The money moved but the order could not reach PAID (reaped
		// or cancelled between charge and settlement); the charge has
		// to come back.
		if rerr := o.gateway.Refund(ctx, charge.TransactionID); rerr != nil {
			o.log.Printf("fulfil: order=%d charge %s refund after failed settlement: %v", orderID, charge.TransactionID, rerr)
		}
		if f, ok := AsFailure(err); ok {
			return nil, f
		}
		return nil, transientFailure("payment settlement", err)
	}
	if duplicate {
		if err := o.gateway.Refund(ctx, charge.TransactionID); err != nil {
			o.log.Printf("fulfil: order=%d duplicate charge %s refund failed: %v", orderID, charge.TransactionID, err)
		}
		return order, nil
	}

	// The seat is authoritatively sold via its ticket row; soft-lock
	// release is best-effort and off the critical path, including the
	// ticket read that feeds it.
	go func() {
		o.releaseLocks(order.SessionID, o.orderSeats(context.Background(), orderID), order.UserID)
	}()
	o.publish(order, model.OrderPaid, charge.TransactionID)
	return order, nil
}

// Cancel runs the user- or admin-initiated cancellation of an order.
// For paid orders the refund must succeed before any local state
// changes; a refund failure leaves the order PAID.
func (o *Orchestrator) Cancel(ctx context.Context, orderID, callerID uint64, elevated bool) (*model.Order, error) {
	order, err := o.store.GetOrder(ctx, orderID)
	if err != nil {
		if f, ok := AsFailure(err); ok {
			return nil, f
		}
		return nil, transientFailure("order load", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID != callerID && !elevated {
		return nil, ErrForbidden
	}
	switch order.Status {
	case model.OrderCancelled:
		return order, nil // already cancelled, no-op
	case model.OrderFailed:
		return nil, ErrOrderNotPending
	}

	if order.Status == model.OrderPaid {
		session, err := o.store.GetSession(ctx, order.SessionID)
		if err != nil {
			return nil, transientFailure("session load", err)
		}
		if session != nil && !elevated && session.StartsAt.Before(o.now().Add(o.cancelGrace)) {
			return nil, ErrCancelWindowClosed
		}
		if order.PaymentRef != nil {
			if err := o.gateway.Refund(ctx, *order.PaymentRef); err != nil {
				o.log.Printf("cancel: order=%d refund failed: %v", orderID, err)
				return nil, ErrRefundFailed
			}
		}
	}

	err = o.store.InTx(ctx, func(tx Tx) error {
		current, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrOrderNotFound
		}
		if current.Status == model.OrderCancelled {
			order = current
			return nil
		}
		if err := current.Transition(model.OrderCancelled); err != nil {
			return ErrOrderNotPending
		}
		if err := tx.UpdateOrderStatus(ctx, orderID, model.OrderCancelled, current.PaymentRef); err != nil {
			return err
		}
		// Both pending (RESERVED) and paid (VALID) tickets end up
		// REFUNDED.
		if err := tx.UpdateTicketStatus(ctx, orderID, model.TicketReserved, model.TicketRefunded); err != nil {
			return err
		}
		if err := tx.UpdateTicketStatus(ctx, orderID, model.TicketValid, model.TicketRefunded); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		if f, ok := AsFailure(err); ok {
			return nil, f
		}
		return nil, transientFailure("cancellation", err)
	}

	o.releaseLocks(order.SessionID, o.orderSeats(ctx, orderID), order.UserID)
	o.publish(order, model.OrderCancelled, "")
	return order, nil
}

// settleFailed marks a pending order FAILED and retracts its tickets.
func (o *Orchestrator) settleFailed(ctx context.Context, orderID uint64) error {
	return o.store.InTx(ctx, func(tx Tx) error {
		current, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if current == nil || current.Status != model.OrderPending {
			return nil
		}
		if err := tx.UpdateOrderStatus(ctx, orderID, model.OrderFailed, nil); err != nil {
			return err
		}
		return tx.UpdateTicketStatus(ctx, orderID, model.TicketReserved, model.TicketRefunded)
	})
}

// orderSeats loads the order's seat ids; errors degrade to an empty
// set because every caller uses the result for best-effort lock
// release only.
func (o *Orchestrator) orderSeats(ctx context.Context, orderID uint64) []uint64 {
	tickets, err := o.store.TicketsByOrder(ctx, orderID)
	if err != nil {
		o.log.Printf("order=%d ticket load for lock release failed: %v", orderID, err)
		return nil
	}
	seats := make([]uint64, 0, len(tickets))
	for _, t := range tickets {
		seats = append(seats, t.SeatID)
	}
	return seats
}

// releaseLocks drops the order's soft locks on behalf of their owner.
// Failures are logged and swallowed: the ticket rows, not the locks,
// decide who owns a seat.
func (o *Orchestrator) releaseLocks(sessionID uint64, seatIDs []uint64, ownerID uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, sid := range seatIDs {
		if _, err := o.locks.Release(ctx, sessionID, sid, ownerID); err != nil {
			o.log.Printf("soft lock release session=%d seat=%d: %v", sessionID, sid, err)
		}
	}
}

func (o *Orchestrator) publish(order *model.Order, status model.OrderStatus, paymentRef string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ev := queue.OrderEvent{
		OrderID:    order.ID,
		UserID:     order.UserID,
		SessionID:  order.SessionID,
		Status:     string(status),
		TotalCents: order.TotalCents,
		PaymentRef: paymentRef,
		OccurredAt: o.now().Format(time.RFC3339),
	}
	if err := o.publisher.Publish(ctx, ev); err != nil {
		o.log.Printf("publish order=%d status=%s: %v", order.ID, status, err)
	}
}
