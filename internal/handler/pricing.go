package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// PricingHandler exposes pricing-policy administration. Rules are
// append-only through the API; changing a price means adding a more
// specific rule, which leaves existing price snapshots untouched.
type PricingHandler struct {
	Pricing *repository.PricingRepo
}

func NewPricingHandler(pricing *repository.PricingRepo) *PricingHandler {
	if pricing == nil {
		panic("nil repository passed to NewPricingHandler")
	}
	return &PricingHandler{Pricing: pricing}
}

type ruleReq struct {
	SeatTypeID uint64  `json:"seat_type_id"`
	DayOfWeek  uint8   `json:"day_of_week"` // 0 = Sunday, per time.Weekday
	StartsMin  *uint16 `json:"starts_min"`
	EndsMin    *uint16 `json:"ends_min"`
	PriceCents uint32  `json:"price_cents"`
}

// GetPolicy handles GET /v1/admin/pricing/:id.
func (h *PricingHandler) GetPolicy(c echo.Context) error {
	policyID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	p, err := h.Pricing.GetPolicy(c.Request().Context(), policyID)
	if err != nil {
		if err == repository.ErrPolicyNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "pricing policy not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, p)
}

// CreateRule handles POST /v1/admin/pricing/:id/rules.
func (h *PricingHandler) CreateRule(c echo.Context) error {
	policyID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req ruleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.SeatTypeID == 0 || req.PriceCents == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_type_id and price_cents required"})
	}
	if req.DayOfWeek > 6 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "day_of_week must be 0-6"})
	}
	if (req.StartsMin == nil) != (req.EndsMin == nil) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_min and ends_min must be set together"})
	}
	rule := &model.PricingRule{
		PolicyID:   policyID,
		SeatTypeID: req.SeatTypeID,
		Weekday:    time.Weekday(req.DayOfWeek),
		PriceCents: req.PriceCents,
	}
	if req.StartsMin != nil {
		if *req.StartsMin >= 1440 || *req.EndsMin >= 1440 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "window minutes must be below 1440"})
		}
		rule.Window = &model.TimeWindow{StartMin: *req.StartsMin, EndMin: *req.EndsMin}
	}
	if err := h.Pricing.CreateRule(c.Request().Context(), rule); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create rule failed"})
	}
	return c.JSON(http.StatusCreated, rule)
}
