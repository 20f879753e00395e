package booking

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
)

// fakeStore is an in-memory Store used across the pipeline tests. It
// simulates rival row locks via the rowLocked set and supports error
// injection per operation. A failed transaction rolls back its inserts
// so partial-write assertions hold like they would against MySQL.
type fakeStore struct {
	mu sync.Mutex

	sessions map[uint64]*model.Session
	policies map[uint64]*model.PricingPolicy
	seats    map[uint64]model.Seat
	orders   map[uint64]*model.Order
	tickets  map[uint64]*model.Ticket

	nextOrderID  uint64
	nextTicketID uint64

	// rowLocked simulates seats whose rows a rival transaction holds.
	rowLocked map[uint64]bool
	// lockSeatsErrs is popped once per LockSeats call before normal
	// handling, letting tests script transient-then-success sequences.
	lockSeatsErrs []error
	// ticketsByOrderErr fails TicketsByOrder for the given order ids.
	ticketsByOrderErr map[uint64]error
	// ticketsByOrderGate, when set, blocks TicketsByOrder until closed.
	ticketsByOrderGate chan struct{}

	lockSeatsCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:          make(map[uint64]*model.Session),
		policies:          make(map[uint64]*model.PricingPolicy),
		seats:             make(map[uint64]model.Seat),
		orders:            make(map[uint64]*model.Order),
		tickets:           make(map[uint64]*model.Ticket),
		rowLocked:         make(map[uint64]bool),
		ticketsByOrderErr: make(map[uint64]error),
	}
}

func (s *fakeStore) InTx(ctx context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &fakeTx{s: s}
	if err := fn(tx); err != nil {
		for _, id := range tx.insertedOrders {
			delete(s.orders, id)
		}
		for _, id := range tx.insertedTickets {
			delete(s.tickets, id)
		}
		for _, undo := range tx.undos {
			undo()
		}
		return err
	}
	return nil
}

func (s *fakeStore) GetSession(_ context.Context, id uint64) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		cp := *sess
		return &cp, nil
	}
	return nil, nil
}

func (s *fakeStore) GetPolicy(_ context.Context, id uint64) (*model.PricingPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.policies[id]; ok {
		return p, nil
	}
	return &model.PricingPolicy{ID: id}, nil
}

func (s *fakeStore) GetOrder(_ context.Context, id uint64) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, nil
}

func (s *fakeStore) TicketsByOrder(_ context.Context, orderID uint64) ([]*model.Ticket, error) {
	if s.ticketsByOrderGate != nil {
		<-s.ticketsByOrderGate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ticketsByOrderErr[orderID]; err != nil {
		return nil, err
	}
	return s.ticketsByOrderLocked(orderID), nil
}

func (s *fakeStore) ticketsByOrderLocked(orderID uint64) []*model.Ticket {
	var out []*model.Ticket
	for _, t := range s.tickets {
		if t.OrderID == orderID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

// ticketStatuses returns the order's ticket statuses keyed by seat id.
func (s *fakeStore) ticketStatuses(orderID uint64) map[uint64]model.TicketStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint64]model.TicketStatus)
	for _, t := range s.tickets {
		if t.OrderID == orderID {
			out[t.SeatID] = t.Status
		}
	}
	return out
}

func (s *fakeStore) orderStatus(orderID uint64) model.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[orderID]; ok {
		return o.Status
	}
	return ""
}

// fakeTx runs with the store mutex held for the whole transaction, so
// transactions are serialized exactly like conflicting row locks would
// serialize them.
type fakeTx struct {
	s               *fakeStore
	insertedOrders  []uint64
	insertedTickets []uint64
	undos           []func()
}

func (t *fakeTx) LockSeats(_ context.Context, seatIDs []uint64) ([]model.Seat, error) {
	t.s.lockSeatsCalls++
	if len(t.s.lockSeatsErrs) > 0 {
		err := t.s.lockSeatsErrs[0]
		t.s.lockSeatsErrs = t.s.lockSeatsErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	seats := make([]model.Seat, 0, len(seatIDs))
	for _, id := range seatIDs {
		if t.s.rowLocked[id] {
			return nil, ErrSeatRowLocked
		}
		if seat, ok := t.s.seats[id]; ok {
			seats = append(seats, seat)
		}
	}
	return seats, nil
}

func (t *fakeTx) LiveTicketSeats(_ context.Context, sessionID uint64, seatIDs []uint64) ([]uint64, error) {
	want := make(map[uint64]bool, len(seatIDs))
	for _, id := range seatIDs {
		want[id] = true
	}
	var taken []uint64
	for _, tk := range t.s.tickets {
		if tk.SessionID == sessionID && want[tk.SeatID] && tk.Live() {
			taken = append(taken, tk.SeatID)
		}
	}
	return taken, nil
}

func (t *fakeTx) InsertOrder(_ context.Context, o *model.Order) error {
	t.s.nextOrderID++
	o.ID = t.s.nextOrderID
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	t.s.orders[o.ID] = &cp
	t.insertedOrders = append(t.insertedOrders, o.ID)
	return nil
}

func (t *fakeTx) InsertTickets(_ context.Context, tickets []*model.Ticket) error {
	for _, tk := range tickets {
		t.s.nextTicketID++
		tk.ID = t.s.nextTicketID
		cp := *tk
		t.s.tickets[tk.ID] = &cp
		t.insertedTickets = append(t.insertedTickets, tk.ID)
	}
	return nil
}

func (t *fakeTx) GetOrderForUpdate(_ context.Context, orderID uint64) (*model.Order, error) {
	if o, ok := t.s.orders[orderID]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, nil
}

func (t *fakeTx) TicketsByOrder(_ context.Context, orderID uint64) ([]*model.Ticket, error) {
	return t.s.ticketsByOrderLocked(orderID), nil
}

func (t *fakeTx) UpdateOrderStatus(_ context.Context, orderID uint64, status model.OrderStatus, paymentRef *string) error {
	o, ok := t.s.orders[orderID]
	if !ok {
		return nil
	}
	prev := *o
	t.undos = append(t.undos, func() { t.s.orders[orderID] = &prev })
	o.Status = status
	if paymentRef != nil {
		ref := *paymentRef
		o.PaymentRef = &ref
	}
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *fakeTx) UpdateTicketStatus(_ context.Context, orderID uint64, from, to model.TicketStatus) error {
	for id, tk := range t.s.tickets {
		if tk.OrderID == orderID && tk.Status == from {
			prev := *tk
			tid := id
			t.undos = append(t.undos, func() { t.s.tickets[tid] = &prev })
			tk.Status = to
		}
	}
	return nil
}

func (t *fakeTx) StalePendingOrders(_ context.Context, cutoff time.Time, limit int) ([]*model.Order, error) {
	var out []*model.Order
	for _, o := range t.s.orders {
		if o.Status == model.OrderPending && o.CreatedAt.Before(cutoff) {
			cp := *o
			out = append(out, &cp)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.Before(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) byStatus(status string) []queue.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []queue.OrderEvent
	for _, ev := range p.events {
		if ev.Status == status {
			out = append(out, ev)
		}
	}
	return out
}
