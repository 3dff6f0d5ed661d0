package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dynamic-web-app/internal/service"
)

// TestRoutesHandler exposes account shortcuts for end-to-end suites. The
// router only mounts it outside production.
type TestRoutesHandler struct {
	Admin *service.AdminService
}

func NewTestRoutesHandler(a *service.AdminService) *TestRoutesHandler {
	return &TestRoutesHandler{Admin: a}
}

func (h *TestRoutesHandler) VerifyUser(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	if _, err := h.Admin.ForceVerify(ctx, req.Email); err != nil {
		return respondError(c, err)
	}
	return message(c, http.StatusOK, "User verified successfully.")
}

func (h *TestRoutesHandler) SetUserRole(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	if _, err := h.Admin.ForceRole(ctx, req.Email, req.Role); err != nil {
		return respondError(c, err)
	}
	return message(c, http.StatusOK, fmt.Sprintf("User role set to %s successfully.", req.Role))
}
