package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dynamic-web-app/internal/utils"
)

// Context keys set by JWTAuth.
const (
	CtxUserID = "user_id" // uint64
	CtxRole   = "role"    // string
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores its user id and role in the request context. Missing, invalid and
// expired tokens all answer 401 with a distinct code.
func JWTAuth(signer *utils.TokenSigner) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Access token required", "code": "NoToken"})
			}
			claims, err := signer.Parse(raw)
			if errors.Is(err, utils.ErrTokenExpired) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Token expired", "code": "TokenExpired"})
			}
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid token", "code": "InvalidToken"})
			}
			c.Set(CtxUserID, claims.UserID)
			c.Set(CtxRole, claims.Role)
			return next(c)
		}
	}
}

// OptionalAuth identifies the caller when a valid token is present and lets
// anonymous requests through untouched.
func OptionalAuth(signer *utils.TokenSigner) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw, ok := bearer(c); ok {
				if claims, err := signer.Parse(raw); err == nil {
					c.Set(CtxUserID, claims.UserID)
					c.Set(CtxRole, claims.Role)
				}
			}
			return next(c)
		}
	}
}

func bearer(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(auth[7:])
	return raw, raw != ""
}
