package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dynamic-web-app/internal/repository"
	"github.com/iliyamo/dynamic-web-app/internal/service"
)

// AdminHandler serves /api/admin. Every route sits behind RequireAdmin.
type AdminHandler struct {
	Admin *service.AdminService
}

func NewAdminHandler(a *service.AdminService) *AdminHandler {
	return &AdminHandler{Admin: a}
}

// ListUsers supports ?search=, ?role=, ?page= and ?limit=.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	f := repository.UserFilter{
		Page:   pageFrom(c, 20, 100),
		Search: strings.TrimSpace(c.QueryParam("search")),
		Role:   strings.TrimSpace(c.QueryParam("role")),
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	users, total, err := h.Admin.ListUsers(ctx, f)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]adminUser, 0, len(users))
	for i := range users {
		out = append(out, adminUserOf(&users[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"users": out, "pagination": paginate(f.Page, total)})
}

func (h *AdminHandler) UpdateRole(c echo.Context) error {
	actor, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	u, err := h.Admin.UpdateRole(ctx, actor, id, strings.TrimSpace(req.Role))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "User role updated successfully.",
		"user":    adminUserOf(u),
	})
}

func (h *AdminHandler) DeleteUser(c echo.Context) error {
	actor, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	if err := h.Admin.DeleteUser(ctx, actor, id); err != nil {
		return respondError(c, err)
	}
	return message(c, http.StatusOK, "User deleted successfully.")
}
