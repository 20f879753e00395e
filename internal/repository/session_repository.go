package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// SessionRepo provides access to the 'sessions' table.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

const sessionColumns = "id, hall_id, movie_id, pricing_policy_id, starts_at, ends_at, status, created_at, updated_at"

// GetByID fetches a session by id.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (*model.Session, error) {
	var s model.Session
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE id = ? LIMIT 1",
		id).Scan(&s.ID, &s.HallID, &s.MovieID, &s.PricingPolicyID,
		&s.StartsAt, &s.EndsAt, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.StartsAt = s.StartsAt.UTC()
	s.EndsAt = s.EndsAt.UTC()
	return &s, nil
}

// ListUpcoming returns scheduled sessions starting after now, soonest
// first.
func (r *SessionRepo) ListUpcoming(ctx context.Context, now time.Time, limit int) ([]*model.Session, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE status = ? AND starts_at > ? ORDER BY starts_at LIMIT ?",
		string(model.SessionScheduled), now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*model.Session
	for rows.Next() {
		var s model.Session
		if err := rows.Scan(&s.ID, &s.HallID, &s.MovieID, &s.PricingPolicyID,
			&s.StartsAt, &s.EndsAt, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.StartsAt = s.StartsAt.UTC()
		s.EndsAt = s.EndsAt.UTC()
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

// Create inserts a new scheduled session after checking that the time
// window does not overlap another session in the same hall. The
// overlap check and the insert run in one transaction with the rival
// rows locked, so two concurrent creates cannot both pass the check.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := overlapGuardTx(ctx, tx, s.HallID, 0, s.StartsAt, s.EndsAt); err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		"INSERT INTO sessions (hall_id, movie_id, pricing_policy_id, starts_at, ends_at, status, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?)",
		s.HallID, s.MovieID, s.PricingPolicyID, s.StartsAt.UTC(), s.EndsAt.UTC(),
		string(model.SessionScheduled), now, now)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert session id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	s.ID = uint64(id)
	s.Status = model.SessionScheduled
	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

// Reschedule moves a session to a new time window. It refuses when the
// session already has live tickets or when the new window overlaps
// another session in the hall.
func (r *SessionRepo) Reschedule(ctx context.Context, id uint64, startsAt, endsAt time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var hallID uint64
	err = tx.QueryRowContext(ctx,
		"SELECT hall_id FROM sessions WHERE id = ? FOR UPDATE", id).Scan(&hallID)
	if err == sql.ErrNoRows {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("lock session: %w", err)
	}

	var live int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tickets WHERE session_id = ? AND status IN (?,?,?)",
		id, string(model.TicketReserved), string(model.TicketValid), string(model.TicketUsed)).Scan(&live)
	if err != nil {
		return fmt.Errorf("count live tickets: %w", err)
	}
	if live > 0 {
		return ErrSessionImmutable
	}

	if err := overlapGuardTx(ctx, tx, hallID, id, startsAt, endsAt); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE sessions SET starts_at = ?, ends_at = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?",
		startsAt.UTC(), endsAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// Cancel marks a session CANCELLED.
func (r *SessionRepo) Cancel(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = ?",
		string(model.SessionCancelled), id, string(model.SessionScheduled))
	if err != nil {
		return fmt.Errorf("cancel session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// overlapGuardTx locks any scheduled session in the hall whose window
// intersects [startsAt, endsAt) and reports overlap when one exists.
// excludeID omits the session being rescheduled from the check.
func overlapGuardTx(ctx context.Context, tx *sql.Tx, hallID, excludeID uint64, startsAt, endsAt time.Time) error {
	var rival uint64
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM sessions WHERE hall_id = ? AND id <> ? AND status = ? AND starts_at < ? AND ends_at > ? LIMIT 1 FOR UPDATE",
		hallID, excludeID, string(model.SessionScheduled), endsAt.UTC(), startsAt.UTC()).Scan(&rival)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("overlap check: %w", err)
	}
	return ErrSessionOverlap
}
