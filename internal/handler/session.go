package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/catalog"
	"github.com/iliyamo/cinema-ticketing/internal/lock"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// SessionHandler serves the public session browse and seat
// availability endpoints plus the admin scheduling operations.
type SessionHandler struct {
	Sessions  *repository.SessionRepo
	Seats     *repository.SeatRepo
	Locks     lock.Store
	SeatTypes *catalog.SeatTypeCache
}

func NewSessionHandler(sessions *repository.SessionRepo, seats *repository.SeatRepo, locks lock.Store, seatTypes *catalog.SeatTypeCache) *SessionHandler {
	if sessions == nil || seats == nil || locks == nil || seatTypes == nil {
		panic("nil dependency passed to NewSessionHandler")
	}
	return &SessionHandler{Sessions: sessions, Seats: seats, Locks: locks, SeatTypes: seatTypes}
}

type sessionResp struct {
	ID       uint64    `json:"id"`
	HallID   uint64    `json:"hall_id"`
	MovieID  uint64    `json:"movie_id"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Status   string    `json:"status"`
}

func toSessionResp(s *model.Session) sessionResp {
	return sessionResp{
		ID:       s.ID,
		HallID:   s.HallID,
		MovieID:  s.MovieID,
		StartsAt: s.StartsAt,
		EndsAt:   s.EndsAt,
		Status:   string(s.Status),
	}
}

// List handles GET /v1/sessions and returns upcoming scheduled
// sessions.
func (h *SessionHandler) List(c echo.Context) error {
	sessions, err := h.Sessions.ListUpcoming(c.Request().Context(), time.Now().UTC(), 200)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]sessionResp, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionResp(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": out})
}

type seatResp struct {
	ID           uint64 `json:"id"`
	RowLabel     string `json:"row_label"`
	SeatNumber   uint32 `json:"seat_number"`
	SeatType     string `json:"seat_type"`
	Availability string `json:"availability"`
	Mine         bool   `json:"mine,omitempty"`
}

// Availability handles GET /v1/sessions/:id/seats. The availability of
// each active seat is derived on the fly: a live ticket wins over a
// soft lock, a soft lock over free. The view is a snapshot and may be
// stale the moment it is rendered; only checkout is authoritative.
func (h *SessionHandler) Availability(c echo.Context) error {
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx := c.Request().Context()
	session, err := h.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if err == repository.ErrSessionNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	seats, err := h.Seats.ListByHall(ctx, session.HallID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	sold, err := h.Seats.SoldSeatIDs(ctx, sessionID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	seatIDs := make([]uint64, 0, len(seats))
	for _, s := range seats {
		seatIDs = append(seatIDs, s.ID)
	}
	locked, err := h.Locks.ListLocked(ctx, sessionID, seatIDs)
	if err != nil {
		// The seat map degrades to sold/available when the lock layer
		// is down; checkout still enforces locks.
		locked = nil
	}
	callerID, _ := getUserID(c)
	out := make([]seatResp, 0, len(seats))
	for _, s := range seats {
		if s.Status != model.SeatActive {
			continue
		}
		st, _, err := h.SeatTypes.Get(ctx, s.SeatTypeID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		r := seatResp{
			ID:           s.ID,
			RowLabel:     s.RowLabel,
			SeatNumber:   s.SeatNumber,
			SeatType:     st.Name,
			Availability: string(model.SeatAvailable),
		}
		switch {
		case sold[s.ID]:
			r.Availability = string(model.SeatSold)
		case locked[s.ID]:
			r.Availability = string(model.SeatLocked)
			if callerID != 0 {
				held, err := h.Locks.Validate(ctx, sessionID, s.ID, callerID)
				r.Mine = err == nil && held
			}
		}
		out = append(out, r)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"session": toSessionResp(session),
		"seats":   out,
	})
}

type scheduleReq struct {
	HallID          uint64    `json:"hall_id"`
	MovieID         uint64    `json:"movie_id"`
	PricingPolicyID uint64    `json:"pricing_policy_id"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
}

// Create handles POST /v1/admin/sessions.
func (h *SessionHandler) Create(c echo.Context) error {
	var req scheduleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.HallID == 0 || req.MovieID == 0 || req.PricingPolicyID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "hall_id, movie_id and pricing_policy_id required"})
	}
	if !req.EndsAt.After(req.StartsAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be after starts_at"})
	}
	s := &model.Session{
		HallID:          req.HallID,
		MovieID:         req.MovieID,
		PricingPolicyID: req.PricingPolicyID,
		StartsAt:        req.StartsAt.UTC(),
		EndsAt:          req.EndsAt.UTC(),
	}
	if err := h.Sessions.Create(c.Request().Context(), s); err != nil {
		if err == repository.ErrSessionOverlap {
			return c.JSON(http.StatusConflict, echo.Map{"error": "session overlaps another session in the hall"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create session failed"})
	}
	return c.JSON(http.StatusCreated, toSessionResp(s))
}

type rescheduleReq struct {
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// Reschedule handles PUT /v1/admin/sessions/:id/schedule.
func (h *SessionHandler) Reschedule(c echo.Context) error {
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req rescheduleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if !req.EndsAt.After(req.StartsAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be after starts_at"})
	}
	err = h.Sessions.Reschedule(c.Request().Context(), sessionID, req.StartsAt.UTC(), req.EndsAt.UTC())
	switch err {
	case nil:
		return c.JSON(http.StatusOK, echo.Map{"rescheduled": true})
	case repository.ErrSessionNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
	case repository.ErrSessionOverlap:
		return c.JSON(http.StatusConflict, echo.Map{"error": "session overlaps another session in the hall"})
	case repository.ErrSessionImmutable:
		return c.JSON(http.StatusConflict, echo.Map{"error": "session has tickets and cannot be rescheduled"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reschedule failed"})
	}
}

// Cancel handles POST /v1/admin/sessions/:id/cancel.
func (h *SessionHandler) Cancel(c echo.Context) error {
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := h.Sessions.Cancel(c.Request().Context(), sessionID); err != nil {
		if err == repository.ErrSessionNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"cancelled": true})
}
