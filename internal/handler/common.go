// Package handler holds the HTTP handlers. Each handler binds and checks the
// request, calls a service or repository, and shapes the JSON response.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dynamic-web-app/internal/middleware"
	"github.com/iliyamo/dynamic-web-app/internal/repository"
	"github.com/iliyamo/dynamic-web-app/internal/service"
)

const (
	requestTimeout = 5 * time.Second
	uploadTimeout  = 30 * time.Second
)

var errNoUser = errors.New("invalid user_id in context")

// getUserID returns the id JWTAuth stored on the context.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, errNoUser
	}
	return id, nil
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "code": "NoToken"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

func message(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"message": msg})
}

// withTimeout derives the per-request context used for storage calls.
func withTimeout(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), d)
}

// paramID parses a positive numeric path parameter.
func paramID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// pageFrom reads ?page= and ?limit=, clamped to def and max.
func pageFrom(c echo.Context, def, max int) repository.Page {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return repository.Page{Page: page, Limit: limit}.Normalize(def, max)
}

type pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func paginate(p repository.Page, total int) pagination {
	return pagination{Page: p.Page, Limit: p.Limit, Total: total, TotalPages: p.TotalPages(total)}
}

// requestMeta captures the client address and agent for audit rows.
func requestMeta(c echo.Context) service.RequestMeta {
	return service.RequestMeta{IP: c.RealIP(), UserAgent: c.Request().UserAgent()}
}

func errorsIsNotFound(err error) bool { return errors.Is(err, repository.ErrNotFound) }

func errorsIsConflict(err error) bool { return errors.Is(err, repository.ErrConflict) }
