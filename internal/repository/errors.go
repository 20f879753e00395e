// Package repository implements MySQL persistence for the ticketing
// pipeline. Sentinel errors let handlers and the booking layer
// distinguish failure scenarios without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrSessionNotFound is returned when a session lookup yields no rows.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionOverlap is returned when a reschedule would overlap
// another session in the same hall.
var ErrSessionOverlap = errors.New("session overlaps another session in the hall")

// ErrSessionImmutable is returned when a reschedule targets a session
// that already has live tickets.
var ErrSessionImmutable = errors.New("session has tickets and cannot be rescheduled")

// ErrPolicyNotFound is returned when a pricing policy lookup yields no
// rows.
var ErrPolicyNotFound = errors.New("pricing policy not found")

// ErrTicketNotFound is returned when a ticket lookup yields no rows.
var ErrTicketNotFound = errors.New("ticket not found")

// MySQL server error numbers relevant to locking.
const (
	errNumLockNowait      = 3572 // ER_LOCK_NOWAIT
	errNumLockWaitTimeout = 1205 // ER_LOCK_WAIT_TIMEOUT
)

// isRowLockConflict reports whether err means another transaction
// holds a requested row. NOWAIT conflicts surface as 3572 on MySQL 8;
// 1205 covers servers where NOWAIT is unavailable and the wait timed
// out instead.
func isRowLockConflict(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == errNumLockNowait || me.Number == errNumLockWaitTimeout
	}
	return false
}
