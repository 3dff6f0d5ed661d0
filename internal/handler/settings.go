package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dynamic-web-app/internal/model"
	"github.com/iliyamo/dynamic-web-app/internal/service"
)

// SettingsHandler serves the caller's preferences and email change.
type SettingsHandler struct {
	Settings *service.SettingsService
}

func NewSettingsHandler(s *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{Settings: s}
}

type settingsReq struct {
	Theme              *string        `json:"theme"`
	Language           *string        `json:"language"`
	Timezone           *string        `json:"timezone"`
	EmailNotifications *bool          `json:"emailNotifications"`
	SecurityAlerts     *bool          `json:"securityAlerts"`
	MarketingEmails    *bool          `json:"marketingEmails"`
	Preferences        model.Metadata `json:"preferences"`
}

func (r settingsReq) update() service.SettingsUpdate {
	opt := func(p *string) service.Optional {
		if p == nil {
			return service.Optional{}
		}
		return service.Some(*p)
	}
	return service.SettingsUpdate{
		Theme:              opt(r.Theme),
		Language:           opt(r.Language),
		Timezone:           opt(r.Timezone),
		EmailNotifications: r.EmailNotifications,
		SecurityAlerts:     r.SecurityAlerts,
		MarketingEmails:    r.MarketingEmails,
		Preferences:        r.Preferences,
	}
}

func (h *SettingsHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	st, err := h.Settings.Get(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Settings retrieved successfully", "data": st})
}

func (h *SettingsHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req settingsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	st, err := h.Settings.Update(ctx, uid, req.update(), requestMeta(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Settings updated successfully", "data": st})
}

// UpdateEmail changes the account address; the body repeats the password.
func (h *SettingsHandler) UpdateEmail(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	u, err := h.Settings.ChangeEmail(ctx, uid, req.Email, req.Password, requestMeta(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Email updated successfully. Please verify your new email.",
		"data":    echo.Map{"email": u.Email, "isVerified": u.IsVerified},
	})
}
