package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/dynamic-web-app/internal/documents"
	"github.com/iliyamo/dynamic-web-app/internal/repository"
	"github.com/iliyamo/dynamic-web-app/internal/service"
	"github.com/iliyamo/dynamic-web-app/internal/validate"
)

// errorStatus maps a domain error to a status code and client message. ok is
// false for errors the caller did not anticipate.
func errorStatus(err error) (status int, msg string, ok bool) {
	switch {
	case errors.Is(err, validate.ErrInvalid):
		return http.StatusBadRequest, err.Error(), true
	case errors.Is(err, service.ErrUsernameTaken):
		return http.StatusBadRequest, "Username already exists.", true
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusBadRequest, "Email already exists.", true
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password.", true
	case errors.Is(err, service.ErrEmailNotVerified):
		return http.StatusForbidden, "Please verify your email before logging in.", true
	case errors.Is(err, service.ErrInvalidVerificationToken):
		return http.StatusBadRequest, "Invalid verification token.", true
	case errors.Is(err, service.ErrInvalidOrExpiredResetToken):
		return http.StatusBadRequest, "Invalid or expired password reset token.", true
	case errors.Is(err, service.ErrInvalidOrExpiredToken):
		return http.StatusUnauthorized, "Invalid or expired refresh token.", true
	case errors.Is(err, service.ErrWrongOldPassword):
		return http.StatusUnauthorized, "Current password is incorrect.", true
	case errors.Is(err, service.ErrWrongPassword):
		return http.StatusUnauthorized, "Password is incorrect.", true
	case errors.Is(err, service.ErrPasswordUnchanged):
		return http.StatusBadRequest, "New password must be different from the current password.", true
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "User not found", true
	case errors.Is(err, service.ErrLastAdmin):
		return http.StatusConflict, "Cannot remove the last remaining admin.", true
	case errors.Is(err, documents.ErrNotFound):
		return http.StatusNotFound, "File not found", true
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "Not found", true
	case errors.Is(err, repository.ErrConflict):
		return http.StatusBadRequest, "A record with the same unique value already exists.", true
	}
	return 0, "", false
}

// respondError writes the JSON body for a known domain error. Anything else
// is returned unchanged so the central error handler logs it.
func respondError(c echo.Context, err error) error {
	status, msg, ok := errorStatus(err)
	if !ok {
		return err
	}
	body := echo.Map{"error": msg}
	if f := validate.FieldOf(err); f != "" {
		body["field"] = f
	}
	if errors.Is(err, service.ErrEmailNotVerified) {
		body["code"] = "EmailNotVerified"
	}
	return c.JSON(status, body)
}

// NewHTTPErrorHandler returns the handler for errors that escape a route.
// Internal errors are logged; outside production the response also carries
// the error text in "detail".
func NewHTTPErrorHandler(log *zap.Logger, production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		body := echo.Map{"error": "Internal server error"}

		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			status = he.Code
			if m, ok := he.Message.(string); ok {
				body["error"] = m
			} else {
				body["error"] = http.StatusText(status)
			}
		default:
			if s, msg, ok := errorStatus(err); ok {
				status = s
				body["error"] = msg
			}
		}
		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.Error(err))
			if !production {
				body["detail"] = err.Error()
			}
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			log.Warn("write error response failed", zap.Error(werr))
		}
	}
}
