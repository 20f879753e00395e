package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// TicketHandler serves the entrance scanner: validating a ticket
// punches it from VALID to USED exactly once.
type TicketHandler struct {
	Tickets  *repository.TicketRepo
	Sessions *repository.SessionRepo
}

func NewTicketHandler(tickets *repository.TicketRepo, sessions *repository.SessionRepo) *TicketHandler {
	if tickets == nil || sessions == nil {
		panic("nil dependency passed to NewTicketHandler")
	}
	return &TicketHandler{Tickets: tickets, Sessions: sessions}
}

// Scan handles POST /v1/admin/tickets/:id/scan. A ticket is admitted
// only on the session's calendar day (UTC); a second scan of the same
// ticket reports it as already used.
func (h *TicketHandler) Scan(c echo.Context) error {
	ticketID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx := c.Request().Context()
	ticket, err := h.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		if err == repository.ErrTicketNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	switch ticket.Status {
	case model.TicketUsed:
		return c.JSON(http.StatusConflict, echo.Map{"error": "ticket already used"})
	case model.TicketValid:
		// proceed
	default:
		return c.JSON(http.StatusConflict, echo.Map{"error": "ticket is not valid for entry"})
	}

	session, err := h.Sessions.GetByID(ctx, ticket.SessionID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	now := time.Now().UTC()
	sy, sm, sd := session.StartsAt.Date()
	ny, nm, nd := now.Date()
	if sy != ny || sm != nm || sd != nd {
		return c.JSON(http.StatusConflict, echo.Map{"error": "ticket is not valid today"})
	}

	ok, err := h.Tickets.MarkUsed(ctx, ticketID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !ok {
		// Raced with another scanner between the read and the update.
		return c.JSON(http.StatusConflict, echo.Map{"error": "ticket already used"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ticket_id": ticketID,
		"seat_id":   ticket.SeatID,
		"admitted":  true,
	})
}
