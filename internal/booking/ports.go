package booking

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
)

// Store is the transactional persistence boundary of the pipeline. The
// MySQL implementation lives in internal/repository; tests use an
// in-memory fake. InTx runs fn inside a single database transaction
// and commits only when fn returns nil; any error rolls back so no
// partial order or ticket rows survive a failed attempt.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error

	// Non-transactional reads used outside the commit path.
	GetSession(ctx context.Context, id uint64) (*model.Session, error)
	GetPolicy(ctx context.Context, id uint64) (*model.PricingPolicy, error)
	GetOrder(ctx context.Context, id uint64) (*model.Order, error)
	TicketsByOrder(ctx context.Context, orderID uint64) ([]*model.Ticket, error)
}

// Tx exposes the operations the pipeline performs inside one
// transaction. Implementations must scope every call to the enclosing
// transaction so row locks taken by LockSeats protect the later reads
// and writes.
type Tx interface {
	// LockSeats acquires row-level exclusive locks on exactly the
	// given seat rows without waiting (fail fast on conflict). It
	// returns ErrSeatRowLocked when another transaction holds any of
	// the rows. Callers must verify the returned count matches the
	// request: a short read means unknown seat ids.
	LockSeats(ctx context.Context, seatIDs []uint64) ([]model.Seat, error)

	// LiveTicketSeats returns the subset of seatIDs that already have
	// a live (reserved, valid or used) ticket for the session. Called
	// after LockSeats so no concurrent attempt can race between the
	// check and the insert.
	LiveTicketSeats(ctx context.Context, sessionID uint64, seatIDs []uint64) ([]uint64, error)

	InsertOrder(ctx context.Context, o *model.Order) error
	InsertTickets(ctx context.Context, tickets []*model.Ticket) error

	// GetOrderForUpdate loads the order row under an exclusive lock,
	// serializing fulfilment, cancellation and reaping of the same
	// order.
	GetOrderForUpdate(ctx context.Context, orderID uint64) (*model.Order, error)
	TicketsByOrder(ctx context.Context, orderID uint64) ([]*model.Ticket, error)
	UpdateOrderStatus(ctx context.Context, orderID uint64, status model.OrderStatus, paymentRef *string) error
	// UpdateTicketStatus moves all of the order's tickets currently in
	// status from to status to.
	UpdateTicketStatus(ctx context.Context, orderID uint64, from, to model.TicketStatus) error

	// StalePendingOrders returns up to limit pending orders created
	// before cutoff, oldest first.
	StalePendingOrders(ctx context.Context, cutoff time.Time, limit int) ([]*model.Order, error)
}

// PaymentGateway is the narrow contract to the payment provider.
// Implementation details beyond a pass/fail outcome are out of scope.
type PaymentGateway interface {
	// Charge attempts to collect amountCents. A declined charge is
	// (ChargeResult{Approved: false, Reason: ...}, nil); err is
	// reserved for transport-level problems.
	Charge(ctx context.Context, amountCents uint32, currency, token string) (ChargeResult, error)
	// Refund reverses a previous charge by its transaction id.
	Refund(ctx context.Context, transactionID string) error
}

// ChargeResult is the outcome of a charge attempt.
type ChargeResult struct {
	Approved      bool
	TransactionID string
	Reason        string
}

// Publisher forwards order lifecycle events to the notification
// pipeline (ticket PDFs, email, live seat-map pushes). Delivery and
// retries are its concern, not the pipeline's; publish failures are
// logged here and never fail the business operation.
type Publisher interface {
	Publish(ctx context.Context, ev queue.OrderEvent) error
}

// NopPublisher discards events; used in tests and when the broker is
// not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.OrderEvent) error { return nil }
