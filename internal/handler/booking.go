package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/booking"
	"github.com/iliyamo/cinema-ticketing/internal/lock"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// BookingHandler serves the customer purchase flow: hold seats,
// checkout, pay, cancel, list and inspect orders.
type BookingHandler struct {
	Coordinator  *booking.Coordinator
	Orchestrator *booking.Orchestrator
	Locks        lock.Store
	Orders       *repository.OrderRepo
	Store        booking.Store
	HoldTTL      time.Duration
}

func NewBookingHandler(coord *booking.Coordinator, orch *booking.Orchestrator, locks lock.Store, orders *repository.OrderRepo, store booking.Store, holdTTL time.Duration) *BookingHandler {
	if coord == nil || orch == nil || locks == nil || orders == nil || store == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	if holdTTL <= 0 {
		holdTTL = 3 * time.Minute
	}
	return &BookingHandler{
		Coordinator:  coord,
		Orchestrator: orch,
		Locks:        locks,
		Orders:       orders,
		Store:        store,
		HoldTTL:      holdTTL,
	}
}

type seatIDsReq struct {
	SeatIDs []uint64 `json:"seat_ids"`
}

// Hold handles POST /v1/sessions/:id/hold. It soft-locks the requested
// seats for the caller. All-or-nothing: when any seat is already held
// by someone else, the locks just taken are released and the
// conflicting ids are reported.
func (h *BookingHandler) Hold(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req seatIDsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	seatIDs := dedupeIDs(req.SeatIDs)
	if len(seatIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids is required"})
	}

	ctx := c.Request().Context()
	acquired := make([]uint64, 0, len(seatIDs))
	var conflicts []uint64
	for _, sid := range seatIDs {
		res, err := h.Locks.Acquire(ctx, sessionID, sid, userID, h.HoldTTL)
		if err != nil {
			conflicts = nil
			break
		}
		if res == lock.AlreadyLocked {
			conflicts = append(conflicts, sid)
			break
		}
		acquired = append(acquired, sid)
	}
	if len(acquired) < len(seatIDs) {
		for _, sid := range acquired {
			_, _ = h.Locks.Release(ctx, sessionID, sid, userID)
		}
		if len(conflicts) > 0 {
			return c.JSON(http.StatusConflict, echo.Map{
				"error":             "seats already held",
				"conflicting_seats": conflicts,
			})
		}
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "lock service unavailable"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"held_seats": acquired,
		"expires_at": time.Now().UTC().Add(h.HoldTTL),
	})
}

// ReleaseHold handles DELETE /v1/sessions/:id/hold. Releasing a seat
// the caller does not hold is a no-op.
func (h *BookingHandler) ReleaseHold(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req seatIDsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx := c.Request().Context()
	released := make([]uint64, 0, len(req.SeatIDs))
	for _, sid := range dedupeIDs(req.SeatIDs) {
		res, err := h.Locks.Release(ctx, sessionID, sid, userID)
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "lock service unavailable"})
		}
		if res == lock.Released {
			released = append(released, sid)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"released_seats": released})
}

type ticketResp struct {
	ID         uint64 `json:"id"`
	SeatID     uint64 `json:"seat_id"`
	PriceCents uint32 `json:"price_cents"`
	Status     string `json:"status"`
}

type orderResp struct {
	ID         uint64       `json:"id"`
	SessionID  uint64       `json:"session_id"`
	Status     string       `json:"status"`
	TotalCents uint32       `json:"total_amount_cents"`
	PaymentRef *string      `json:"payment_ref,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	Tickets    []ticketResp `json:"tickets,omitempty"`
}

func toOrderResp(o *model.Order, tickets []*model.Ticket) orderResp {
	r := orderResp{
		ID:         o.ID,
		SessionID:  o.SessionID,
		Status:     string(o.Status),
		TotalCents: o.TotalCents,
		PaymentRef: o.PaymentRef,
		CreatedAt:  o.CreatedAt,
	}
	for _, t := range tickets {
		r.Tickets = append(r.Tickets, ticketResp{
			ID:         t.ID,
			SeatID:     t.SeatID,
			PriceCents: t.PriceCents,
			Status:     string(t.Status),
		})
	}
	return r
}

// Checkout handles POST /v1/sessions/:id/orders. The caller must hold
// soft locks on every requested seat; the reservation pipeline turns
// them into a PENDING order with RESERVED tickets.
func (h *BookingHandler) Checkout(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req seatIDsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if len(dedupeIDs(req.SeatIDs)) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids is required"})
	}

	order, tickets, err := h.Coordinator.Reserve(c.Request().Context(), userID, sessionID, req.SeatIDs)
	if err != nil {
		return failureJSON(c, err)
	}
	return c.JSON(http.StatusCreated, toOrderResp(order, tickets))
}

type payReq struct {
	PaymentToken string `json:"payment_token"`
}

// Pay handles POST /v1/orders/:id/payment. Paying an already paid
// order returns the stored result without a second charge.
func (h *BookingHandler) Pay(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req payReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.PaymentToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_token is required"})
	}

	order, err := h.Orchestrator.Fulfil(c.Request().Context(), orderID, userID, req.PaymentToken)
	if err != nil {
		return failureJSON(c, err)
	}
	// The payment itself is settled; a failed ticket read degrades the
	// response to the order alone.
	tickets, err := h.Store.TicketsByOrder(c.Request().Context(), order.ID)
	if err != nil {
		c.Logger().Errorf("order %d: ticket load after payment: %v", order.ID, err)
		tickets = nil
	}
	return c.JSON(http.StatusOK, toOrderResp(order, tickets))
}

// Cancel handles POST /v1/orders/:id/cancel. Admins may cancel any
// order and bypass the grace window.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	order, err := h.Orchestrator.Cancel(c.Request().Context(), orderID, userID, isAdmin(c))
	if err != nil {
		return failureJSON(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResp(order, nil))
}

// List handles GET /v1/orders and returns the caller's orders.
func (h *BookingHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orders, err := h.Orders.ListByUser(c.Request().Context(), userID, 100, 0)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]orderResp, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResp(o, nil))
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": out})
}

// Get handles GET /v1/orders/:id. Only the owner or an admin may see
// an order.
func (h *BookingHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx := c.Request().Context()
	order, err := h.Orders.GetByID(ctx, orderID)
	if err != nil {
		return failureJSON(c, err)
	}
	if order.UserID != userID && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	tickets, err := h.Store.TicketsByOrder(ctx, orderID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, toOrderResp(order, tickets))
}
