package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/booking"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// Store is the MySQL-backed implementation of the booking
// persistence boundary. It owns the transaction lifecycle; the
// per-concern repositories (sessions, orders, tickets, pricing) share
// the same *sql.DB for reads outside the commit path.
type Store struct {
	DB       *sql.DB
	Sessions *SessionRepo
	Orders   *OrderRepo
	Tickets  *TicketRepo
	Pricing  *PricingRepo
}

// NewStore wires a Store and its repositories over one database pool.
func NewStore(db *sql.DB) *Store {
	return &Store{
		DB:       db,
		Sessions: NewSessionRepo(db),
		Orders:   NewOrderRepo(db),
		Tickets:  NewTicketRepo(db),
		Pricing:  NewPricingRepo(db),
	}
}

// InTx runs fn inside a single transaction. The transaction commits
// only when fn returns nil; any error (including a panic unwinding
// through here) rolls back so no partial rows survive.
func (s *Store) InTx(ctx context.Context, fn func(booking.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&storeTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// GetSession and GetPolicy report absence as a nil result so the
// booking layer can classify it without knowing this package's
// sentinels.
func (s *Store) GetSession(ctx context.Context, id uint64) (*model.Session, error) {
	sess, err := s.Sessions.GetByID(ctx, id)
	if err == ErrSessionNotFound {
		return nil, nil
	}
	return sess, err
}

func (s *Store) GetPolicy(ctx context.Context, id uint64) (*model.PricingPolicy, error) {
	p, err := s.Pricing.GetPolicy(ctx, id)
	if err == ErrPolicyNotFound {
		return nil, nil
	}
	return p, err
}

func (s *Store) GetOrder(ctx context.Context, id uint64) (*model.Order, error) {
	return s.Orders.GetByID(ctx, id)
}

func (s *Store) TicketsByOrder(ctx context.Context, orderID uint64) ([]*model.Ticket, error) {
	return ticketsByOrder(ctx, s.DB, orderID)
}

// storeTx adapts one *sql.Tx to the booking transaction contract.
// Every query here runs on the transaction connection so the row
// locks taken by LockSeats cover the later reads and writes.
type storeTx struct {
	tx *sql.Tx
}

const seatColumns = "id, hall_id, seat_type_id, row_label, seat_number, status, created_at, updated_at"

// LockSeats takes exclusive row locks on the given seats without
// waiting. A concurrent holder surfaces as ER_LOCK_NOWAIT and is
// translated to booking.ErrSeatRowLocked so the coordinator can fail
// the whole attempt fast instead of queueing behind the rival.
func (t *storeTx) LockSeats(ctx context.Context, seatIDs []uint64) ([]model.Seat, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		"SELECT %s FROM seats WHERE id IN (%s) ORDER BY id FOR UPDATE NOWAIT",
		seatColumns, placeholders(len(seatIDs)))
	rows, err := t.tx.QueryContext(ctx, query, idArgs(seatIDs)...)
	if err != nil {
		if isRowLockConflict(err) {
			return nil, booking.ErrSeatRowLocked
		}
		return nil, fmt.Errorf("lock seats: %w", err)
	}
	defer rows.Close()

	seats := make([]model.Seat, 0, len(seatIDs))
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.HallID, &s.SeatTypeID, &s.RowLabel,
			&s.SeatNumber, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		if isRowLockConflict(err) {
			return nil, booking.ErrSeatRowLocked
		}
		return nil, fmt.Errorf("lock seats: %w", err)
	}
	return seats, nil
}

func (t *storeTx) LiveTicketSeats(ctx context.Context, sessionID uint64, seatIDs []uint64) ([]uint64, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		"SELECT seat_id FROM tickets WHERE session_id = ? AND seat_id IN (%s) AND status IN (%s)",
		placeholders(len(seatIDs)), placeholders(len(model.LiveTicketStatuses)))
	args := make([]any, 0, 1+len(seatIDs)+len(model.LiveTicketStatuses))
	args = append(args, sessionID)
	args = append(args, idArgs(seatIDs)...)
	for _, st := range model.LiveTicketStatuses {
		args = append(args, string(st))
	}
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("live ticket seats: %w", err)
	}
	defer rows.Close()

	var taken []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan seat id: %w", err)
		}
		taken = append(taken, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("live ticket seats: %w", err)
	}
	return taken, nil
}

func (t *storeTx) InsertOrder(ctx context.Context, o *model.Order) error {
	now := time.Now().UTC()
	res, err := t.tx.ExecContext(ctx,
		"INSERT INTO orders (user_id, session_id, status, total_amount_cents, payment_ref, created_at, updated_at) VALUES (?,?,?,?,?,?,?)",
		o.UserID, o.SessionID, string(o.Status), o.TotalCents, o.PaymentRef, now, now)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert order id: %w", err)
	}
	o.ID = uint64(id)
	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}

// InsertTickets bulk-inserts the order's tickets in one statement.
// MySQL hands out consecutive ids for a multi-row insert, so ids are
// back-filled from LastInsertId.
func (t *storeTx) InsertTickets(ctx context.Context, tickets []*model.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	now := time.Now().UTC()
	var sb strings.Builder
	sb.WriteString("INSERT INTO tickets (order_id, session_id, seat_id, price_cents, status, created_at, updated_at) VALUES ")
	args := make([]any, 0, len(tickets)*7)
	for i, tk := range tickets {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?,?,?)")
		args = append(args, tk.OrderID, tk.SessionID, tk.SeatID, tk.PriceCents, string(tk.Status), now, now)
	}
	res, err := t.tx.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return fmt.Errorf("insert tickets: %w", err)
	}
	first, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert tickets id: %w", err)
	}
	for i, tk := range tickets {
		tk.ID = uint64(first) + uint64(i)
		tk.CreatedAt = now
		tk.UpdatedAt = now
	}
	return nil
}

const orderColumns = "id, user_id, session_id, status, total_amount_cents, payment_ref, created_at, updated_at"

// GetOrderForUpdate loads the order row under an exclusive lock. This
// lock (not NOWAIT: settlement paths wait their turn) serializes
// fulfilment, cancellation and reaping of the same order.
func (t *storeTx) GetOrderForUpdate(ctx context.Context, orderID uint64) (*model.Order, error) {
	var o model.Order
	err := t.tx.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = ? FOR UPDATE",
		orderID).Scan(&o.ID, &o.UserID, &o.SessionID, &o.Status, &o.TotalCents,
		&o.PaymentRef, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, booking.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order for update: %w", err)
	}
	return &o, nil
}

func (t *storeTx) TicketsByOrder(ctx context.Context, orderID uint64) ([]*model.Ticket, error) {
	return ticketsByOrder(ctx, t.tx, orderID)
}

func (t *storeTx) UpdateOrderStatus(ctx context.Context, orderID uint64, status model.OrderStatus, paymentRef *string) error {
	var err error
	if paymentRef != nil {
		_, err = t.tx.ExecContext(ctx,
			"UPDATE orders SET status = ?, payment_ref = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?",
			string(status), *paymentRef, orderID)
	} else {
		_, err = t.tx.ExecContext(ctx,
			"UPDATE orders SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?",
			string(status), orderID)
	}
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

func (t *storeTx) UpdateTicketStatus(ctx context.Context, orderID uint64, from, to model.TicketStatus) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE tickets SET status = ?, updated_at = UTC_TIMESTAMP() WHERE order_id = ? AND status = ?",
		string(to), orderID, string(from))
	if err != nil {
		return fmt.Errorf("update ticket status: %w", err)
	}
	return nil
}

func (t *storeTx) StalePendingOrders(ctx context.Context, cutoff time.Time, limit int) ([]*model.Order, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE status = ? AND created_at < ? ORDER BY created_at LIMIT ?",
		string(model.OrderPending), cutoff.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("stale pending orders: %w", err)
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.SessionID, &o.Status, &o.TotalCents,
			&o.PaymentRef, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stale pending orders: %w", err)
	}
	return orders, nil
}

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx
// that the read helpers need.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const ticketColumns = "id, order_id, session_id, seat_id, price_cents, status, created_at, updated_at"

func ticketsByOrder(ctx context.Context, q querier, orderID uint64) ([]*model.Ticket, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+ticketColumns+" FROM tickets WHERE order_id = ? ORDER BY id", orderID)
	if err != nil {
		return nil, fmt.Errorf("tickets by order: %w", err)
	}
	defer rows.Close()

	var tickets []*model.Ticket
	for rows.Next() {
		var tk model.Ticket
		if err := rows.Scan(&tk.ID, &tk.OrderID, &tk.SessionID, &tk.SeatID,
			&tk.PriceCents, &tk.Status, &tk.CreatedAt, &tk.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, &tk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tickets by order: %w", err)
	}
	return tickets, nil
}

// placeholders returns "?,?,...,?" with n marks.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []uint64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
