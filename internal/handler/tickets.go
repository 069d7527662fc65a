package handler

import (
    "errors"   // errors.Is against the store sentinels
    "net/http" // HTTP status codes
    "strconv"  // parsing path and query parameters

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/route-ticketing/internal/middleware"
    "github.com/iliyamo/route-ticketing/internal/model"
    "github.com/iliyamo/route-ticketing/internal/service"
    "github.com/iliyamo/route-ticketing/internal/ticketing"
    "github.com/iliyamo/route-ticketing/internal/trace"
    "github.com/iliyamo/route-ticketing/internal/utils"
)

// TicketHandler exposes the shared store to passengers and operators.  All
// methods assume JWTAuth has already stored the caller's subject and role.
type TicketHandler struct {
    Tickets *service.TicketService
}

func NewTicketHandler(s *service.TicketService) *TicketHandler {
    if s == nil {
        panic("nil ticket service passed to NewTicketHandler")
    }
    return &TicketHandler{Tickets: s}
}

type buyReq struct {
    Passenger string `json:"passenger"` // honoured for operators only
    Route     int    `json:"route"`
    Departure int    `json:"departure"`
    Arrival   int    `json:"arrival"`
}

// storeError maps store failures onto HTTP responses.
func storeError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, ticketing.ErrInvalidRoute):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid route"})
    case errors.Is(err, ticketing.ErrInvalidTour):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tour"})
    case errors.Is(err, ticketing.ErrWindowUnavailable):
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "no sales window available"})
    default:
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store failure"})
    }
}

// Buy handles POST /v1/tickets.  Passengers always buy under their own
// name.  It returns 201 with the ticket, or 409 when every seat of the
// tour is taken.
func (h *TicketHandler) Buy(c echo.Context) error {
    var req buyReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    passenger := middleware.Subject(c)
    if middleware.Role(c) == utils.RoleOperator && req.Passenger != "" {
        passenger = req.Passenger
    }
    t, ok, err := h.Tickets.Buy(c.Request().Context(), passenger, req.Route, req.Departure, req.Arrival)
    if err != nil {
        return storeError(c, err)
    }
    if !ok {
        return c.JSON(http.StatusConflict, echo.Map{"error": "sold out"})
    }
    return c.JSON(http.StatusCreated, t)
}

// Refund handles DELETE /v1/tickets/:id.  The body must repeat the whole
// ticket as it was issued; the id in the path must match it.  Passengers may
// only refund their own tickets.  A ticket that is not an active sale gets
// 409 and changes nothing.
func (h *TicketHandler) Refund(c echo.Context) error {
    id, err := strconv.ParseInt(c.Param("id"), 10, 64)
    if err != nil || id <= 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
    }
    var t model.Ticket
    if err := c.Bind(&t); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if t.ID != id {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "ticket id does not match path"})
    }
    if middleware.Role(c) != utils.RoleOperator && t.Passenger != middleware.Subject(c) {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "ticket belongs to another passenger"})
    }
    ok, err := h.Tickets.Refund(c.Request().Context(), t)
    if err != nil {
        return storeError(c, err)
    }
    if !ok {
        return c.JSON(http.StatusConflict, echo.Map{"error": "not an active ticket"})
    }
    return c.NoContent(http.StatusNoContent)
}

// Remaining handles GET /v1/routes/:route/remaining?departure=&arrival=.
func (h *TicketHandler) Remaining(c echo.Context) error {
    route, err := strconv.Atoi(c.Param("route"))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid route"})
    }
    dep, err1 := strconv.Atoi(c.QueryParam("departure"))
    arr, err2 := strconv.Atoi(c.QueryParam("arrival"))
    if err1 != nil || err2 != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "departure and arrival are required"})
    }
    n, err := h.Tickets.Remaining(c.Request().Context(), route, dep, arr)
    if err != nil {
        return storeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "route":     route,
        "departure": dep,
        "arrival":   arr,
        "remaining": n,
    })
}

// History handles GET /v1/history.  It streams the recorded calls in the
// trace text format, one record per line.
func (h *TicketHandler) History(c echo.Context) error {
    if !h.Tickets.Recording() {
        return c.JSON(http.StatusConflict, echo.Map{"error": service.ErrNoHistory.Error()})
    }
    recs := h.Tickets.History()
    c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
    c.Response().WriteHeader(http.StatusOK)
    return trace.Write(c.Response(), recs)
}
