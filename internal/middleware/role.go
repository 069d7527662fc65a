package middleware // middleware provides shared request processing for handlers

import (
    "net/http" // http package defines standard HTTP status codes

    "github.com/labstack/echo/v4" // echo provides middleware chaining and context
)

// RequireRole aborts with 403 unless the "role" value stored by JWTAuth is
// one of roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
    allowed := make(map[string]bool, len(roles))
    for _, r := range roles {
        allowed[r] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            role, ok := c.Get("role").(string)
            if !ok || !allowed[role] {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
            }
            return next(c)
        }
    }
}

// Subject returns the "user_id" value stored by JWTAuth, or "" for
// unauthenticated requests.
func Subject(c echo.Context) string {
    s, _ := c.Get("user_id").(string)
    return s
}

// Role returns the "role" value stored by JWTAuth, or "".
func Role(c echo.Context) string {
    s, _ := c.Get("role").(string)
    return s
}
