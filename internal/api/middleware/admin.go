package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/justexisted/bonitaforward-identity/internal/core/domain"
)

// AdminChecker is the slice of the role verifier this middleware needs.
type AdminChecker interface {
	Verify(ctx context.Context) domain.AdminVerification
}

// RequireAdmin rejects requests unless the current identity verifies as an
// administrator, whether by remote check or allow-list fallback.
func RequireAdmin(checker AdminChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			result := checker.Verify(c.Request().Context())
			if !result.IsAdmin {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "admin access required"})
			}
			return next(c)
		}
	}
}
