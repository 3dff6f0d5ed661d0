package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dynamic-web-app/internal/model"
)

// RequireRole rejects with 403 unless the role stored by JWTAuth is one of
// roles. It must run after JWTAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxRole).(string)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "Insufficient permissions"})
			}
			return next(c)
		}
	}
}

// RequireAdmin is RequireRole(admin).
func RequireAdmin() echo.MiddlewareFunc { return RequireRole(model.RoleAdmin) }
