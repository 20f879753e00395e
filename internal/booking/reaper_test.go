package booking

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticketing/internal/lock"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// seedStaleOrder plants a pending order with reserved tickets and
// matching soft locks, created age before now.
func seedStaleOrder(t *testing.T, store *fakeStore, locks lock.Store, userID uint64, seatIDs []uint64, age time.Duration) *model.Order {
	t.Helper()
	store.mu.Lock()
	store.nextOrderID++
	o := &model.Order{
		ID:        store.nextOrderID,
		UserID:    userID,
		SessionID: testSessionID,
		Status:    model.OrderPending,
		CreatedAt: time.Now().UTC().Add(-age),
	}
	store.orders[o.ID] = o
	for _, sid := range seatIDs {
		store.nextTicketID++
		store.tickets[store.nextTicketID] = &model.Ticket{
			ID: store.nextTicketID, OrderID: o.ID, SessionID: testSessionID,
			SeatID: sid, PriceCents: 1500, Status: model.TicketReserved,
		}
	}
	store.mu.Unlock()
	for _, sid := range seatIDs {
		_, err := locks.Acquire(context.Background(), testSessionID, sid, userID, time.Hour)
		require.NoError(t, err)
	}
	return o
}

func newTestReaper(store *fakeStore, locks lock.Store, pub Publisher, cfg ReaperConfig) *Reaper {
	return NewReaper(store, locks, pub, cfg, nil)
}

func TestSweepCancelsStaleOrders(t *testing.T) {
	store := seedStore(t)
	locks := lock.NewMemoryStore()
	pub := &recordingPublisher{}
	stale := seedStaleOrder(t, store, locks, testUserID, []uint64{10, 11}, 30*time.Minute)
	r := newTestReaper(store, locks, pub, DefaultReaperConfig())

	n, err := r.Sweep(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.OrderCancelled, store.orderStatus(stale.ID))
	for _, status := range store.ticketStatuses(stale.ID) {
		assert.Equal(t, model.TicketRefunded, status)
	}
	for _, sid := range []uint64{10, 11} {
		held, err := locks.Validate(context.Background(), testSessionID, sid, testUserID)
		require.NoError(t, err)
		assert.False(t, held)
	}
	require.Len(t, pub.byStatus("CANCELLED"), 1)
}

func TestSweepLeavesFreshOrdersAlone(t *testing.T) {
	store := seedStore(t)
	locks := lock.NewMemoryStore()
	fresh := seedStaleOrder(t, store, locks, testUserID, []uint64{10}, 5*time.Minute)
	r := newTestReaper(store, locks, nil, DefaultReaperConfig()) // 15m timeout

	n, err := r.Sweep(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, model.OrderPending, store.orderStatus(fresh.ID))
	held, err := locks.Validate(context.Background(), testSessionID, 10, testUserID)
	require.NoError(t, err)
	assert.True(t, held)
}

func TestSweepSkipsOrderPaidAfterScan(t *testing.T) {
	store := seedStore(t)
	locks := lock.NewMemoryStore()
	stale := seedStaleOrder(t, store, locks, testUserID, []uint64{10}, 30*time.Minute)

	// Flip the order to PAID behind the reaper's back; the row-lock
	// recheck must skip it without counting it.
	store.mu.Lock()
	store.orders[stale.ID].Status = model.OrderPaid
	store.mu.Unlock()

	r := newTestReaper(store, locks, nil, DefaultReaperConfig())
	n, err := r.Sweep(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, model.OrderPaid, store.orderStatus(stale.ID))
	for _, status := range store.ticketStatuses(stale.ID) {
		assert.Equal(t, model.TicketReserved, status)
	}
}

func TestSweepContinuesPastFailingOrder(t *testing.T) {
	store := seedStore(t)
	locks := lock.NewMemoryStore()
	broken := seedStaleOrder(t, store, locks, testUserID, []uint64{10}, 30*time.Minute)
	healthy := seedStaleOrder(t, store, locks, testRivalID, []uint64{11}, 40*time.Minute)
	store.ticketsByOrderErr[broken.ID] = fmt.Errorf("connection reset")

	r := newTestReaper(store, locks, nil, DefaultReaperConfig())
	n, err := r.Sweep(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the healthy order must be reaped despite the broken one")
	assert.Equal(t, model.OrderCancelled, store.orderStatus(healthy.ID))
	assert.Equal(t, model.OrderPending, store.orderStatus(broken.ID))
}

func TestSweepHonoursBatchCap(t *testing.T) {
	store := seedStore(t)
	locks := lock.NewMemoryStore()
	for i := uint64(0); i < 5; i++ {
		seedStaleOrder(t, store, locks, testUserID+i, []uint64{100 + i}, 30*time.Minute)
	}
	cfg := DefaultReaperConfig()
	cfg.BatchSize = 2
	cfg.MaxBatches = 2
	r := newTestReaper(store, locks, nil, cfg)

	n, err := r.Sweep(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 4, n, "two batches of two, the rest waits for the next sweep")

	// The next sweep converges: no stale pending orders remain after it.
	n, err = r.Sweep(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = r.Sweep(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReaperStartStop(t *testing.T) {
	store := seedStore(t)
	cfg := DefaultReaperConfig()
	cfg.Interval = 10 * time.Millisecond
	r := newTestReaper(store, lock.NewMemoryStore(), nil, cfg)

	require.NoError(t, r.Start(context.Background()))
	assert.Error(t, r.Start(context.Background()), "second start must be rejected")
	r.Stop()
	r.Stop() // idempotent
	require.NoError(t, r.Start(context.Background()))
	r.Stop()
}
