package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// TicketRepo provides access to the 'tickets' table outside the
// booking transaction: lookups for the entrance scanner and the
// per-order listings.
type TicketRepo struct{ DB *sql.DB }

func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{DB: db} }

// GetByID fetches a ticket by id.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (*model.Ticket, error) {
	var t model.Ticket
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+ticketColumns+" FROM tickets WHERE id = ? LIMIT 1",
		id).Scan(&t.ID, &t.OrderID, &t.SessionID, &t.SeatID,
		&t.PriceCents, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return &t, nil
}

// MarkUsed punches a VALID ticket at the entrance. The status guard in
// the WHERE clause makes a second scan of the same ticket a no-op
// reported to the caller, so double entry cannot happen even with
// concurrent scanners.
func (r *TicketRepo) MarkUsed(ctx context.Context, id uint64) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE tickets SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = ?",
		string(model.TicketUsed), id, string(model.TicketValid))
	if err != nil {
		return false, fmt.Errorf("mark ticket used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark ticket used: %w", err)
	}
	return n == 1, nil
}
