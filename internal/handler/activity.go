package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dynamic-web-app/internal/repository"
)

type ActivityHandler struct {
	Activity *repository.ActivityRepo
}

func NewActivityHandler(a *repository.ActivityRepo) *ActivityHandler {
	return &ActivityHandler{Activity: a}
}

// List returns the caller's audit trail, newest first, filtered by ?action=.
func (h *ActivityHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	p := pageFrom(c, 20, 100)
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	logs, total, err := h.Activity.List(ctx, uid, strings.TrimSpace(c.QueryParam("action")), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"activities": logs, "pagination": paginate(p, total)})
}
