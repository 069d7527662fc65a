package handler

import (
	"net/http" // HTTP status codes and primitives
	"strings"  // string manipulation utilities
	"time"

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/route-ticketing/internal/config"     // app configuration
	"github.com/iliyamo/route-ticketing/internal/middleware" // claims stored by JWTAuth
	"github.com/iliyamo/route-ticketing/internal/utils"      // token issuing and key checks
)

// operatorSubject is the token subject of every operator session.
const operatorSubject = "operator"

// AuthHandler issues access tokens.  There are no accounts: a passenger
// names themselves and an operator proves the shared operator key.
type AuthHandler struct {
	Cfg config.Config
}

func NewAuthHandler(cfg config.Config) *AuthHandler {
	return &AuthHandler{Cfg: cfg}
}

// ----- DTOs -----

type tokenReq struct {
	Passenger   string `json:"passenger"`
	OperatorKey string `json:"operator_key"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	Subject string    `json:"subject"`
	Role    string    `json:"role"`
	Access  tokenPart `json:"access"`
}

// Token handles POST /v1/auth/token.  A body with operator_key yields an
// OPERATOR token when the key matches OPERATOR_KEY_HASH; otherwise a
// non-empty passenger name yields a PASSENGER token for that name.
func (h *AuthHandler) Token(c echo.Context) error {
	var req tokenReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	subject, role := strings.TrimSpace(req.Passenger), utils.RolePassenger
	if req.OperatorKey != "" {
		if h.Cfg.OperatorKeyHash == "" || !utils.VerifyOperatorKey(h.Cfg.OperatorKeyHash, req.OperatorKey) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		subject, role = operatorSubject, utils.RoleOperator
	}
	if subject == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "passenger or operator_key required"})
	}
	if len(subject) > 64 || strings.ContainsAny(subject, " \t\r\n") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "passenger must be a single word of at most 64 bytes"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, subject, role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusOK, authResp{
		Subject: subject,
		Role:    role,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Me returns the claims of the calling token.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"subject": middleware.Subject(c),
		"role":    middleware.Role(c),
	})
}
