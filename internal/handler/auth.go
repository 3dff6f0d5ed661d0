package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dynamic-web-app/internal/service"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// ----- DTOs -----

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type tokenReq struct {
	Token string `json:"token"`
}
type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}
type emailReq struct {
	Email string `json:"email"`
}
type resetReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}
type changePasswordReq struct {
	OldPassword     string `json:"oldPassword"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type loginResp struct {
	Message          string      `json:"message"`
	Token            string      `json:"token"`
	ExpiresAt        time.Time   `json:"expiresAt"`
	RefreshToken     string      `json:"refreshToken"`
	RefreshExpiresAt time.Time   `json:"refreshExpiresAt"`
	User             userSummary `json:"user"`
}

const forgotPasswordMessage = "If your email address is in our database, you will receive a password reset link."

// Register: create an unverified user; the verification link goes out by email.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return badRequest(c, "Please fill in all fields.")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	u, err := h.Auth.Register(ctx, service.RegisterInput{Username: req.Username, Email: req.Email, Password: req.Password}, requestMeta(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Registration successful. Please check your email to verify your account.",
		"user":    summaryOf(u),
	})
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req tokenReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	if _, err := h.Auth.VerifyEmail(ctx, req.Token, requestMeta(c)); err != nil {
		return respondError(c, err)
	}
	return message(c, http.StatusOK, "Email verified successfully. You can now log in.")
}

// Login: verify credentials and return an access token plus a refresh token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Email, req.Password, requestMeta(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, loginResp{
		Message:          "Login successful!",
		Token:            res.Access.Token,
		ExpiresAt:        res.Access.Exp,
		RefreshToken:     res.Refresh.Raw,
		RefreshExpiresAt: res.Refresh.Exp,
		User:             summaryOf(res.User),
	})
}

// Refresh: exchange a live refresh token for a new access token. The refresh
// token itself is not rotated.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.RefreshToken == "" {
		return badRequest(c, "Refresh token is required.")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	access, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"token": access.Token, "expiresAt": access.Exp})
}

// Logout revokes the refresh token in the body, or every session of the
// caller when the body has none.
func (h *AuthHandler) Logout(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	// an empty body means "all sessions"; anything else must parse
	var req refreshReq
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, 64<<10))
	if err != nil {
		return badRequest(c, "invalid body")
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			return badRequest(c, "invalid body")
		}
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	if err := h.Auth.Logout(ctx, uid, req.RefreshToken, requestMeta(c)); err != nil {
		return respondError(c, err)
	}
	return message(c, http.StatusOK, "Logout successful.")
}

// ForgotPassword answers identically for known and unknown addresses.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	if err := h.Auth.ForgotPassword(ctx, req.Email); err != nil {
		return respondError(c, err)
	}
	return message(c, http.StatusOK, forgotPasswordMessage)
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	if err := h.Auth.ResetPassword(ctx, req.Token, req.Password, requestMeta(c)); err != nil {
		return respondError(c, err)
	}
	return message(c, http.StatusOK, "Password has been reset successfully.")
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	current := req.CurrentPassword
	if current == "" {
		current = req.OldPassword
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	if err := h.Auth.ChangePassword(ctx, uid, current, req.NewPassword, requestMeta(c)); err != nil {
		return respondError(c, err)
	}
	return message(c, http.StatusOK, "Password changed successfully. Please log in again.")
}
