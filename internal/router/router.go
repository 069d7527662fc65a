package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/route-ticketing/internal/handler"    // handlers that implement the endpoints
	"github.com/iliyamo/route-ticketing/internal/middleware" // JWT authentication and role enforcement
	"github.com/iliyamo/route-ticketing/internal/utils"      // role names
)

// RegisterRoutes registers routes that do not require authentication: the
// health check and the inventory geometry.
func RegisterRoutes(e *echo.Echo, info *handler.InfoHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/v1/geometry", info.Geometry)
}

// RegisterAuth registers token issuing under /v1/auth and the protected
// /v1/me endpoint.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/token", a.Token)

	e.GET("/v1/me", a.Me,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RolePassenger, utils.RoleOperator),
	)
}

// RegisterTickets registers the sales endpoints.  Both roles may buy,
// refund and inquire; limit runs after authentication so a per-subject key
// strategy sees the caller.
func RegisterTickets(e *echo.Echo, h *handler.TicketHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RolePassenger, utils.RoleOperator),
	)
	if limit != nil {
		g.Use(limit)
	}
	g.POST("/tickets", h.Buy)
	g.DELETE("/tickets/:id", h.Refund)
	g.GET("/routes/:route/remaining", h.Remaining)
}

// RegisterOperator registers OPERATOR-scoped endpoints: the recorded
// history, verification and stored reports.
func RegisterOperator(e *echo.Echo, t *handler.TicketHandler, v *handler.VerifyHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleOperator),
	)
	g.GET("/history", t.History)
	g.POST("/verify", v.Verify)
	g.GET("/reports", v.ListReports)
	g.GET("/reports/:id", v.GetReport)
}
