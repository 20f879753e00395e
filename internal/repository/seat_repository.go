package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// SeatRepo provides access to the 'seats' and 'seat_types' tables.
// Row locking during a reservation happens on the transaction in
// store.go; this repo covers the plain reads.
type SeatRepo struct{ DB *sql.DB }

func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{DB: db} }

// ListByHall returns the hall's seats in stable row/number order.
func (r *SeatRepo) ListByHall(ctx context.Context, hallID uint64) ([]model.Seat, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+seatColumns+" FROM seats WHERE hall_id = ? ORDER BY row_label, seat_number",
		hallID)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	defer rows.Close()

	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.HallID, &s.SeatTypeID, &s.RowLabel,
			&s.SeatNumber, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	return seats, nil
}

// SoldSeatIDs returns the seats that hold a live ticket for the
// session. Used together with the soft-lock listing to derive the
// availability view.
func (r *SeatRepo) SoldSeatIDs(ctx context.Context, sessionID uint64) (map[uint64]bool, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT seat_id FROM tickets WHERE session_id = ? AND status IN (?,?,?)",
		sessionID, string(model.TicketReserved), string(model.TicketValid), string(model.TicketUsed))
	if err != nil {
		return nil, fmt.Errorf("sold seats: %w", err)
	}
	defer rows.Close()

	sold := make(map[uint64]bool)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan seat id: %w", err)
		}
		sold[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sold seats: %w", err)
	}
	return sold, nil
}

// SeatTypes loads all seat types. Serves as the loader behind the
// in-process seat-type cache.
func (r *SeatRepo) SeatTypes(ctx context.Context) ([]model.SeatType, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT id, name FROM seat_types ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("seat types: %w", err)
	}
	defer rows.Close()

	var types []model.SeatType
	for rows.Next() {
		var st model.SeatType
		if err := rows.Scan(&st.ID, &st.Name); err != nil {
			return nil, fmt.Errorf("scan seat type: %w", err)
		}
		types = append(types, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("seat types: %w", err)
	}
	return types, nil
}
