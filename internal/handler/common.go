package handler // handler defines http handlers

import (
	"errors"  // errors provides sentinel values used in getUserID
	"net/http"
	"strconv" // strconv converts strings to numeric types

	"github.com/labstack/echo/v4" // echo defines request context types

	"github.com/iliyamo/cinema-ticketing/internal/booking"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// getUserID extracts the user_id from echo.Context and converts it to
// uint64. JWT claims decode numbers as float64, so several numeric
// representations are accepted.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// isAdmin reports whether the authenticated caller carries the ADMIN
// role claim.
func isAdmin(c echo.Context) bool {
	role, _ := c.Get("role").(string)
	return role == model.RoleAdmin
}

// pathID parses a positive uint64 path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// failureJSON translates a pipeline failure into an HTTP response with
// a stable error code the client can branch on. Anything that is not a
// booking.Failure is a plain 500.
func failureJSON(c echo.Context, err error) error {
	f, ok := booking.AsFailure(err)
	if !ok {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	status := http.StatusInternalServerError
	switch f.Kind {
	case booking.KindContention:
		status = http.StatusConflict
	case booking.KindTransient:
		status = http.StatusServiceUnavailable
	case booking.KindConfig:
		status = http.StatusUnprocessableEntity
	case booking.KindPayment:
		status = http.StatusPaymentRequired
	case booking.KindAuth:
		status = http.StatusForbidden
	}
	if f.Code == "ORDER_NOT_FOUND" {
		status = http.StatusNotFound
	}
	return c.JSON(status, echo.Map{
		"error":     f.Code,
		"message":   f.Message,
		"retryable": f.Retryable(),
	})
}

// dedupeIDs drops zeros and duplicates while keeping request order.
func dedupeIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
