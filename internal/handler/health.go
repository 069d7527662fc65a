package handler // declare the package name; contains HTTP handlers

import (
    "net/http" // net/http provides status codes and response helpers

    "github.com/labstack/echo/v4" // echo is the web framework used for this project

    "github.com/iliyamo/route-ticketing/internal/service"
)

// Health is a simple health‑check endpoint used by load balancers and
// monitoring systems to verify that the service is running.  It returns
// a plain text "ok" message with an HTTP 200 status code.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// InfoHandler describes the inventory the server sells from.
type InfoHandler struct {
    Tickets *service.TicketService
}

// Geometry handles GET /v1/geometry.  It is public so clients can discover
// valid route, station and seat ranges before authenticating.
func (h *InfoHandler) Geometry(c echo.Context) error {
    g := h.Tickets.Geometry()
    return c.JSON(http.StatusOK, echo.Map{
        "routenum":   g.Routes,
        "coachnum":   g.Coaches,
        "seatnum":    g.Seats,
        "stationnum": g.Stations,
        "recording":  h.Tickets.Recording(),
    })
}
