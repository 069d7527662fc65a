package handler

import (
    "errors"
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/route-ticketing/internal/config"
    "github.com/iliyamo/route-ticketing/internal/model"
    "github.com/iliyamo/route-ticketing/internal/repository"
    "github.com/iliyamo/route-ticketing/internal/service"
    "github.com/iliyamo/route-ticketing/internal/trace"
)

// VerifyHandler runs linearizability checks for operators, either on a
// submitted trace or on the server's own recorded history.
type VerifyHandler struct {
    Tickets *service.TicketService
    Checker *service.VerificationService
}

func NewVerifyHandler(t *service.TicketService, v *service.VerificationService) *VerifyHandler {
    if t == nil || v == nil {
        panic("nil service passed to NewVerifyHandler")
    }
    return &VerifyHandler{Tickets: t, Checker: v}
}

type verifyReq struct {
    Geometry string `json:"geometry"` // key=value pairs; the server's geometry when empty
    Trace    string `json:"trace"`    // one record per line; the live history when empty
}

type verifyResp struct {
    Report        model.VerificationReport `json:"report"`
    Cached        bool                     `json:"cached"`
    Stored        bool                     `json:"stored"`
    Linearization []string                 `json:"linearization,omitempty"`
}

// Verify handles POST /v1/verify.  Every checked history answers 200 with
// its report, whatever the outcome; malformed input answers 400.
func (h *VerifyHandler) Verify(c echo.Context) error {
    var req verifyReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }

    g := h.Tickets.Geometry()
    if strings.TrimSpace(req.Geometry) != "" {
        parsed, err := config.ParseGeometry(strings.NewReader(req.Geometry))
        if err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
        }
        g = parsed
    }

    var records []trace.Record
    if strings.TrimSpace(req.Trace) == "" {
        if !h.Tickets.Recording() {
            return c.JSON(http.StatusConflict, echo.Map{"error": service.ErrNoHistory.Error()})
        }
        if g != h.Tickets.Geometry() {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "the live history is checked against the server geometry"})
        }
        records = h.Tickets.History()
    } else {
        recs, err := trace.Read(strings.NewReader(req.Trace))
        if err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
        }
        records = recs
    }

    v, err := h.Checker.Verify(c.Request().Context(), g, records)
    if err != nil {
        if errors.Is(err, service.ErrInvalidTrace) {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verification failed"})
    }
    resp := verifyResp{Report: v.Report, Cached: v.Cached, Stored: v.Stored}
    for _, r := range v.Linearization {
        resp.Linearization = append(resp.Linearization, r.String())
    }
    return c.JSON(http.StatusOK, resp)
}

func reportError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, service.ErrReportsDisabled):
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "report storage disabled"})
    case errors.Is(err, repository.ErrReportNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "report not found"})
    default:
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
}

// GetReport handles GET /v1/reports/:id.
func (h *VerifyHandler) GetReport(c echo.Context) error {
    rep, err := h.Checker.Report(c.Request().Context(), c.Param("id"))
    if err != nil {
        return reportError(c, err)
    }
    return c.JSON(http.StatusOK, rep)
}

// ListReports handles GET /v1/reports?limit=N (default 20, at most 100).
func (h *VerifyHandler) ListReports(c echo.Context) error {
    limit := 20
    if s := c.QueryParam("limit"); s != "" {
        n, err := strconv.Atoi(s)
        if err != nil || n <= 0 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
        }
        limit = min(n, 100)
    }
    reps, err := h.Checker.Recent(c.Request().Context(), limit)
    if err != nil {
        return reportError(c, err)
    }
    if reps == nil {
        reps = []model.VerificationReport{}
    }
    return c.JSON(http.StatusOK, echo.Map{"reports": reps, "count": len(reps)})
}
