package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticketing/internal/lock"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

const (
	testSessionID = uint64(1)
	testHallID    = uint64(1)
	testPolicyID  = uint64(1)
	testUserID    = uint64(7)
	testRivalID   = uint64(8)
)

// seedStore returns a store with one upcoming session, three active
// seats (10 and 11 standard, 12 premium) and a policy pricing both
// seat types for the session's weekday.
func seedStore(t *testing.T) *fakeStore {
	t.Helper()
	s := newFakeStore()
	startsAt := time.Now().UTC().Add(2 * time.Hour)
	s.sessions[testSessionID] = &model.Session{
		ID:              testSessionID,
		HallID:          testHallID,
		MovieID:         1,
		PricingPolicyID: testPolicyID,
		StartsAt:        startsAt,
		EndsAt:          startsAt.Add(2 * time.Hour),
		Status:          model.SessionScheduled,
	}
	s.policies[testPolicyID] = &model.PricingPolicy{
		ID:   testPolicyID,
		Name: "base",
		Rules: []model.PricingRule{
			{ID: 1, PolicyID: testPolicyID, SeatTypeID: 1, Weekday: startsAt.Weekday(), PriceCents: 1500},
			{ID: 2, PolicyID: testPolicyID, SeatTypeID: 2, Weekday: startsAt.Weekday(), PriceCents: 2500},
		},
	}
	s.seats[10] = model.Seat{ID: 10, HallID: testHallID, SeatTypeID: 1, Status: model.SeatActive}
	s.seats[11] = model.Seat{ID: 11, HallID: testHallID, SeatTypeID: 1, Status: model.SeatActive}
	s.seats[12] = model.Seat{ID: 12, HallID: testHallID, SeatTypeID: 2, Status: model.SeatActive}
	return s
}

// holdSeats acquires soft locks for the user on the given seats.
func holdSeats(t *testing.T, locks lock.Store, ownerID uint64, seatIDs ...uint64) {
	t.Helper()
	for _, sid := range seatIDs {
		res, err := locks.Acquire(context.Background(), testSessionID, sid, ownerID, time.Minute)
		require.NoError(t, err)
		require.Equal(t, lock.Acquired, res)
	}
}

func newTestCoordinator(s *fakeStore, locks lock.Store) *Coordinator {
	return NewCoordinator(s, locks, DefaultRetryPolicy(), nil)
}

func TestReserveCreatesPendingOrderWithSnapshotPrices(t *testing.T) {
	store := seedStore(t)
	locks := lock.NewMemoryStore()
	holdSeats(t, locks, testUserID, 10, 11, 12)
	c := newTestCoordinator(store, locks)

	order, tickets, err := c.Reserve(context.Background(), testUserID, testSessionID, []uint64{10, 11, 12})
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, model.OrderPending, order.Status)
	assert.Equal(t, uint32(1500+1500+2500), order.TotalCents)
	require.Len(t, tickets, 3)
	for _, tk := range tickets {
		assert.Equal(t, model.TicketReserved, tk.Status)
		assert.Equal(t, order.ID, tk.OrderID)
	}
	statuses := store.ticketStatuses(order.ID)
	assert.Len(t, statuses, 3)
}

func TestReserveDedupesSeatIDs(t *testing.T) {
	store := seedStore(t)
	locks := lock.NewMemoryStore()
	holdSeats(t, locks, testUserID, 10)
	c := newTestCoordinator(store, locks)

	order, tickets, err := c.Reserve(context.Background(), testUserID, testSessionID, []uint64{10, 10, 10})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, uint32(1500), order.TotalCents)
}

func TestReserveRejectsMissingSoftLock(t *testing.T) {
	store := seedStore(t)
	locks := lock.NewMemoryStore()
	holdSeats(t, locks, testUserID, 10) // 11 never locked
	c := newTestCoordinator(store, locks)

	_, _, err := c.Reserve(context.Background(), testUserID, testSessionID, []uint64{10, 11})
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, "LOCK_EXPIRED", f.Code)
	assert.Empty(t, store.orders)
}

func TestReserveRejectsForeignSoftLock(t *testing.T) {
	store := seedStore(t)
	locks := lock.NewMemoryStore()
	holdSeats(t, locks, testRivalID, 10)
	c := newTestCoordinator(store, locks)

	_, _, err := c.Reserve(context.Background(), testUserID, testSessionID, []uint64{10})
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, "LOCK_EXPIRED", f.Code)
}

func TestReserveRowLockContentionIsNotRetried(t *testing.T) {
	store := seedStore(t)
	store.rowLocked[11] = true
	locks := lock.NewMemoryStore()
	holdSeats(t, locks, testUserID, 10, 11)
	c := newTestCoordinator(store, locks)

	_, _, err := c.Reserve(context.Background(), testUserID, testSessionID, []uint64{10, 11})
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, "SEATS_UNAVAILABLE", f.Code)
	assert.True(t, f.Retryable())
	// Contention must fail the single attempt, not burn the retry
	// budget against the same rival.
	assert.Equal(t, 1, store.lockSeatsCalls)
	assert.Empty(t, store.orders)
}

func TestReserveUnknownSeatID(t *testing.T) {
	store := seedStore(t)
	locks := lock.NewMemoryStore()
	holdSeats(t, locks, testUserID, 10, 999)
	c := newTestCoordinator(store, locks)

	_, _, err := c.Reserve(context.Background(), testUserID, testSessionID, []uint64{10, 999})
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, "SEATS_UNAVAILABLE", f.Code)
}

func TestReserveRejectsInactiveSeat(t *testing.T) {
	store := seedStore(t)
	seat := store.seats[11]
	seat.Status = model.SeatMaintenance
	store.seats[11] = seat
	locks := lock.NewMemoryStore()
	holdSeats(t, locks, testUserID, 10, 11)
	c := newTestCoordinator(store, locks)

	_, _, err := c.Reserve(context.Background(), testUserID, testSessionID, []uint64{10, 11})
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, "SEATS_NOT_ACTIVE", f.Code)
	assert.False(t, f.Retryable())
	assert.Empty(t, store.orders)
}

func TestReserveRejectsSoldSeat(t *testing.T) {
	store := seedStore(t)
	store.tickets[1] = &model.Ticket{
		ID: 1, OrderID: 99, SessionID: testSessionID, SeatID: 11,
		PriceCents: 1500, Status: model.TicketValid,
	}
	locks := lock.NewMemoryStore()
	holdSeats(t, locks, testUserID, 10, 11)
	c := newTestCoordinator(store, locks)

	_, _, err := c.Reserve(context.Background(), testUserID, testSessionID, []uint64{10, 11})
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, "SEATS_ALREADY_SOLD", f.Code)
	// The whole attempt rolls back; seat 10 must not be half-reserved.
	assert.Empty(t, store.orders)
}

func TestReserveRefundedTicketDoesNotBlockSeat(t *testing.T) {
	store := seedStore(t)
	store.tickets[1] = &model.Ticket{
		ID: 1, OrderID: 99, SessionID: testSessionID, SeatID: 10,
		PriceCents: 1500, Status: model.TicketRefunded,
	}
	locks := lock.NewMemoryStore()
	holdSeats(t, locks, testUserID, 10)
	c := newTestCoordinator(store, locks)

	_, _, err := c.Reserve(context.Background(), testUserID, testSessionID, []uint64{10})
	require.NoError(t, err)
}

func TestReserveMissingPricingRuleIsFatal(t *testing.T) {
	store := seedStore(t)
	store.policies[testPolicyID].Rules = store.policies[testPolicyID].Rules[:1] // drop type 2
	locks := lock.NewMemoryStore()
	holdSeats(t, locks, testUserID, 12)
	c := newTestCoordinator(store, locks)

	_, _, err := c.Reserve(context.Background(), testUserID, testSessionID, []uint64{12})
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, "PRICING_RULE_MISSING", f.Code)
	assert.False(t, f.Retryable())
	assert.Empty(t, store.orders)
}

func TestReserveSessionNotSellable(t *testing.T) {
	store := seedStore(t)
	store.sessions[testSessionID].StartsAt = time.Now().UTC().Add(-time.Minute)
	locks := lock.NewMemoryStore()
	holdSeats(t, locks, testUserID, 10)
	c := newTestCoordinator(store, locks)

	_, _, err := c.Reserve(context.Background(), testUserID, testSessionID, []uint64{10})
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, "SESSION_NOT_SELLABLE", f.Code)
}

func TestReserveRetriesDeadlockVictim(t *testing.T) {
	store := seedStore(t)
	store.lockSeatsErrs = []error{&mysql.MySQLError{Number: 1213, Message: "Deadlock found"}}
	locks := lock.NewMemoryStore()
	holdSeats(t, locks, testUserID, 10)
	c := newTestCoordinator(store, locks)

	order, _, err := c.Reserve(context.Background(), testUserID, testSessionID, []uint64{10})
	require.NoError(t, err)
	assert.Equal(t, model.OrderPending, order.Status)
	assert.Equal(t, 2, store.lockSeatsCalls)
}

func TestReserveConcurrentOverlapSellsEachSeatOnce(t *testing.T) {
	store := seedStore(t)
	locks := lock.NewMemoryStore()
	holdSeats(t, locks, testUserID, 10, 11)
	c := newTestCoordinator(store, locks)

	// Double-submitted checkout: two racing reservations for the same
	// seats. Exactly one may commit; the loser hits the live-ticket
	// check under the row lock.
	type result struct {
		order *model.Order
		err   error
	}
	results := make(chan result, 2)
	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < 2; i++ {
		go func() {
			start.Wait()
			o, _, err := c.Reserve(context.Background(), testUserID, testSessionID, []uint64{10, 11})
			results <- result{order: o, err: err}
		}()
	}
	start.Done()

	var wins, losses int
	for i := 0; i < 2; i++ {
		r := <-results
		if r.err == nil {
			wins++
			assert.Equal(t, uint32(3000), r.order.TotalCents)
			continue
		}
		losses++
		f, ok := AsFailure(r.err)
		require.True(t, ok)
		assert.Equal(t, "SEATS_ALREADY_SOLD", f.Code)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)

	// At most one live ticket per seat, ever.
	store.mu.Lock()
	live := make(map[uint64]int)
	for _, tk := range store.tickets {
		if tk.Live() {
			live[tk.SeatID]++
		}
	}
	store.mu.Unlock()
	assert.Equal(t, map[uint64]int{10: 1, 11: 1}, live)
}

func TestReserveEmptySeatList(t *testing.T) {
	store := seedStore(t)
	c := newTestCoordinator(store, lock.NewMemoryStore())

	_, _, err := c.Reserve(context.Background(), testUserID, testSessionID, nil)
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, "NO_SEATS", f.Code)
}
