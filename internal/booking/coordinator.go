package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/lock"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/pricing"
)

// Coordinator turns a set of soft-locked seats into a committed
// Pending order with Reserved tickets. The soft-lock pre-check is
// advisory; correctness comes from the row locks taken inside the
// transaction and the sold re-check performed behind them.
type Coordinator struct {
	store Store
	locks lock.Store
	retry RetryPolicy
	log   *log.Logger
}

// NewCoordinator wires the coordinator. All dependencies must be
// non-nil; the retry policy decides which transaction failures re-run
// the body.
func NewCoordinator(store Store, locks lock.Store, retry RetryPolicy, logger *log.Logger) *Coordinator {
	if store == nil || locks == nil {
		panic("nil dependency passed to NewCoordinator")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{store: store, locks: locks, retry: retry, log: logger}
}

// sessionSellable reports whether tickets may still be created for the
// session.
func sessionSellable(s *model.Session, now time.Time) bool {
	return s.Status == model.SessionScheduled && s.StartsAt.After(now)
}

// Reserve validates the caller's soft locks on every requested seat,
// then creates the order and its tickets inside one transaction:
// row-lock the seats (NOWAIT), verify they are active and unsold,
// price them, insert Order(PENDING) + Tickets(RESERVED), commit.
// Failure at any step rolls the whole attempt back; partial
// reservation of a subset of seats never happens.
func (c *Coordinator) Reserve(ctx context.Context, userID, sessionID uint64, seatIDs []uint64) (*model.Order, []*model.Ticket, error) {
	seatIDs = dedupe(seatIDs)
	if len(seatIDs) == 0 {
		return nil, nil, fail("NO_SEATS", KindConfig, "no seat ids requested", nil)
	}

	// Pre-check: every requested seat must still be soft-locked by
	// this user. Any miss aborts the whole request.
	for _, sid := range seatIDs {
		held, err := c.locks.Validate(ctx, sessionID, sid, userID)
		if err != nil {
			return nil, nil, transientFailure("soft lock validation", err)
		}
		if !held {
			return nil, nil, ErrLockExpired
		}
	}

	session, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, transientFailure("session load", err)
	}
	if session == nil || !sessionSellable(session, time.Now().UTC()) {
		return nil, nil, fail("SESSION_NOT_SELLABLE", KindConfig, "session is not open for sale", nil)
	}
	// The policy is loaded once per attempt; pricing below is pure.
	policy, err := c.store.GetPolicy(ctx, session.PricingPolicyID)
	if err != nil {
		return nil, nil, transientFailure("pricing policy load", err)
	}
	if policy == nil {
		return nil, nil, configFailure(fmt.Errorf("pricing policy %d not found", session.PricingPolicyID))
	}

	var (
		order   *model.Order
		tickets []*model.Ticket
	)
	txErr := c.retry.Do(ctx, func() error {
		order, tickets = nil, nil
		return c.store.InTx(ctx, func(tx Tx) error {
			seats, err := tx.LockSeats(ctx, seatIDs)
			if errors.Is(err, ErrSeatRowLocked) {
				return ErrSeatsUnavailable
			}
			if err != nil {
				return err
			}
			if len(seats) != len(seatIDs) {
				// short read: unknown seat ids
				return ErrSeatsUnavailable
			}
			for _, seat := range seats {
				if seat.Status != model.SeatActive || seat.HallID != session.HallID {
					return ErrSeatsNotActive
				}
			}
			sold, err := tx.LiveTicketSeats(ctx, sessionID, seatIDs)
			if err != nil {
				return err
			}
			if len(sold) > 0 {
				return ErrSeatsAlreadySold
			}

			// Price per seat, cached by seat type within this attempt.
			priceByType := make(map[uint64]uint32, 4)
			var total uint32
			prices := make(map[uint64]uint32, len(seats))
			for _, seat := range seats {
				cents, ok := priceByType[seat.SeatTypeID]
				if !ok {
					cents, err = pricing.Resolve(policy, seat.SeatTypeID, session.StartsAt)
					if err != nil {
						return configFailure(err)
					}
					priceByType[seat.SeatTypeID] = cents
				}
				prices[seat.ID] = cents
				total += cents
			}

			o := &model.Order{
				UserID:     userID,
				SessionID:  sessionID,
				Status:     model.OrderPending,
				TotalCents: total,
			}
			if err := tx.InsertOrder(ctx, o); err != nil {
				return err
			}
			ts := make([]*model.Ticket, 0, len(seatIDs))
			for _, sid := range seatIDs {
				ts = append(ts, &model.Ticket{
					OrderID:    o.ID,
					SessionID:  sessionID,
					SeatID:     sid,
					PriceCents: prices[sid],
					Status:     model.TicketReserved,
				})
			}
			if err := tx.InsertTickets(ctx, ts); err != nil {
				return err
			}
			order, tickets = o, ts
			return nil
		})
	})
	if txErr != nil {
		if f, ok := AsFailure(txErr); ok {
			return nil, nil, f
		}
		c.log.Printf("reserve: user=%d session=%d failed: %v", userID, sessionID, txErr)
		return nil, nil, transientFailure("reservation transaction", txErr)
	}
	return order, tickets, nil
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
