package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // the Echo web framework handles routing

	"github.com/iliyamo/cinema-ticketing/internal/handler"
	"github.com/iliyamo/cinema-ticketing/internal/middleware"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Load balancers and monitoring systems use this to verify that the
	// service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the register/login endpoints under /v1/auth.
// These operate without an existing session.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
}

// RegisterPublic registers the session browse endpoints.  The seat map
// is public so a customer can look before registering; availability is
// a snapshot and only checkout is authoritative.
func RegisterPublic(e *echo.Echo, s *handler.SessionHandler) {
	g := e.Group("/v1")
	g.GET("/sessions", s.List)
	g.GET("/sessions/:id/seats", s.Availability)
}

// RegisterBooking registers the authenticated purchase flow.  Every
// route requires a valid access token; holds and orders are always
// scoped to the token's subject.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleCustomer, model.RoleAdmin))

	g.POST("/sessions/:id/hold", b.Hold)
	g.DELETE("/sessions/:id/hold", b.ReleaseHold)
	g.POST("/sessions/:id/orders", b.Checkout)

	g.GET("/orders", b.List)
	g.GET("/orders/:id", b.Get)
	g.POST("/orders/:id/payment", b.Pay)
	g.POST("/orders/:id/cancel", b.Cancel)
}

// RegisterAdmin registers scheduling, pricing and entrance-scanner
// endpoints.  All of them require the ADMIN role.
func RegisterAdmin(e *echo.Echo, s *handler.SessionHandler, p *handler.PricingHandler, t *handler.TicketHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleAdmin))

	g.POST("/sessions", s.Create)
	g.PUT("/sessions/:id/schedule", s.Reschedule)
	g.POST("/sessions/:id/cancel", s.Cancel)

	g.GET("/pricing/:id", p.GetPolicy)
	g.POST("/pricing/:id/rules", p.CreateRule)

	g.POST("/tickets/:id/scan", t.Scan)
}
