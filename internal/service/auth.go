package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/dynamic-web-app/internal/model"
	"github.com/iliyamo/dynamic-web-app/internal/queue"
	"github.com/iliyamo/dynamic-web-app/internal/repository"
	"github.com/iliyamo/dynamic-web-app/internal/utils"
	"github.com/iliyamo/dynamic-web-app/internal/validate"
)

// AuthConfig carries the settings the auth flows depend on.
type AuthConfig struct {
	BcryptCost      int
	RefreshTokenTTL time.Duration
	ResetTokenTTL   time.Duration
	SingleSession   bool // a new login revokes every older session
}

// AuthService implements registration, email verification, login, token
// refresh, logout and the password flows.
type AuthService struct {
	Users    UserStore
	Sessions SessionStore
	Signer   *utils.TokenSigner
	Events   queue.Publisher
	Activity *ActivityRecorder
	Log      *zap.Logger
	Cfg      AuthConfig

	now       func() time.Time
	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(users UserStore, sessions SessionStore, signer *utils.TokenSigner, events queue.Publisher,
	activity *ActivityRecorder, log *zap.Logger, cfg AuthConfig) *AuthService {
	return &AuthService{
		Users: users, Sessions: sessions, Signer: signer, Events: events,
		Activity: activity, Log: log, Cfg: cfg, now: time.Now,
	}
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Access  utils.AccessToken
	Refresh utils.RefreshToken
	User    *model.User
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register creates an unverified user with role user and emits
// user.registered carrying the verification token.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta RequestMeta) (*model.User, error) {
	username := strings.TrimSpace(in.Username)
	if err := validate.Username(username, true); err != nil {
		return nil, err
	}
	email, err := validate.Email(in.Email)
	if err != nil {
		return nil, err
	}
	if err := validate.Password("password", in.Password); err != nil {
		return nil, err
	}

	if _, err := s.Users.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if _, err := s.Users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password, s.Cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	token, err := utils.NewOpaqueToken()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &model.User{
		Username:          username,
		Email:             email,
		PasswordHash:      hash,
		Role:              model.RoleUser,
		VerificationToken: sql.NullString{String: utils.HashToken(token), Valid: true},
		ProfilePrivacy:    model.PrivacyPublic,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.Users.Create(ctx, u); err != nil {
		return nil, dupErr(err)
	}

	s.publish(ctx, queue.Event{Type: queue.EventUserRegistered, UserID: u.ID, Email: u.Email, Username: u.Username, Token: token})
	s.Activity.Record(ctx, u.ID, model.ActionRegister, "Account created", meta, nil)
	return u, nil
}

// VerifyEmail consumes a verification token. Each token works once.
func (s *AuthService) VerifyEmail(ctx context.Context, token string, meta RequestMeta) (*model.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &validate.Error{Field: "token", Message: "Verification token is required"}
	}
	hash := utils.HashToken(token)
	u, err := s.Users.GetByVerificationHash(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidVerificationToken
	}
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.Users.ConsumeVerification(ctx, u.ID, hash, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidVerificationToken
		}
		return nil, err
	}
	u.IsVerified = true
	u.VerificationToken = sql.NullString{}

	s.publish(ctx, queue.Event{Type: queue.EventUserVerified, UserID: u.ID, Email: u.Email, Username: u.Username})
	s.Activity.Record(ctx, u.ID, model.ActionEmailVerified, "Email address verified", meta, nil)
	return u, nil
}

// Login checks credentials and opens a session. Unknown emails and wrong
// passwords produce the same error and comparable latency.
func (s *AuthService) Login(ctx context.Context, email, password string, meta RequestMeta) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, &validate.Error{Field: "email", Message: "Email and password are required"}
	}
	u, err := s.Users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		utils.VerifyPassword(s.dummy(), password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsVerified {
		return nil, ErrEmailNotVerified
	}

	access, err := s.Signer.Issue(u.ID, u.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := utils.NewRefreshToken(s.Cfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if s.Cfg.SingleSession {
		if err := s.Sessions.RevokeAllForUser(ctx, u.ID, now); err != nil {
			return nil, err
		}
	}
	if err := s.Sessions.StoreRefresh(ctx, &model.RefreshToken{
		UserID:    u.ID,
		TokenHash: utils.HashToken(refresh.Raw),
		UserAgent: meta.UserAgent,
		IPAddress: meta.IP,
		ExpiresAt: refresh.Exp,
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}
	if err := s.Users.RecordLogin(ctx, u.ID, now); err != nil {
		s.Log.Warn("record login failed", zap.Uint64("user_id", u.ID), zap.Error(err))
	} else {
		u.LoginCount++
		u.LastLogin = sql.NullTime{Time: now, Valid: true}
	}

	s.Activity.Record(ctx, u.ID, model.ActionLogin, "Signed in", meta, nil)
	return &LoginResult{Access: access, Refresh: refresh, User: u}, nil
}

// Refresh issues a new access token for a live session. The refresh token
// itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, raw string) (utils.AccessToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return utils.AccessToken{}, ErrInvalidOrExpiredToken
	}
	uid, err := s.Sessions.ValidateRefresh(ctx, utils.HashToken(raw), s.now().UTC())
	if errors.Is(err, repository.ErrNotFound) {
		return utils.AccessToken{}, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return utils.AccessToken{}, err
	}
	u, err := s.Users.GetByID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return utils.AccessToken{}, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return utils.AccessToken{}, err
	}
	return s.Signer.Issue(u.ID, u.Role)
}

// Logout revokes the session behind raw, or every session of the user when
// raw is empty. Revoking an already dead session is not an error.
func (s *AuthService) Logout(ctx context.Context, userID uint64, raw string, meta RequestMeta) error {
	now := s.now().UTC()
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if err := s.Sessions.RevokeAllForUser(ctx, userID, now); err != nil {
			return err
		}
	} else if err := s.Sessions.RevokeForUser(ctx, userID, utils.HashToken(raw), now); err != nil &&
		!errors.Is(err, repository.ErrNotFound) {
		return err
	}
	s.Activity.Record(ctx, userID, model.ActionLogout, "Signed out", meta, nil)
	return nil
}

// ForgotPassword starts a reset for email if such a user exists. The result
// is the same whether or not the address is known.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email, err := validate.Email(email)
	if err != nil {
		return err
	}
	u, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.Log.Error("forgot password lookup failed", zap.Error(err))
		}
		return nil
	}
	token, err := utils.NewOpaqueToken()
	if err != nil {
		s.Log.Error("reset token generation failed", zap.Error(err))
		return nil
	}
	now := s.now().UTC()
	if err := s.Users.SetResetToken(ctx, u.ID, utils.HashToken(token), now.Add(s.Cfg.ResetTokenTTL), now); err != nil {
		s.Log.Error("store reset token failed", zap.Uint64("user_id", u.ID), zap.Error(err))
		return nil
	}
	s.publish(ctx, queue.Event{Type: queue.EventPasswordResetRequested, UserID: u.ID, Email: u.Email, Username: u.Username, Token: token})
	return nil
}

// ResetPassword sets a new password using a reset token and revokes every
// session of the user.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string, meta RequestMeta) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return &validate.Error{Field: "token", Message: "Reset token is required"}
	}
	if err := validate.Password("password", password); err != nil {
		return err
	}
	hash := utils.HashToken(token)
	now := s.now().UTC()
	u, err := s.Users.GetByResetHash(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidOrExpiredResetToken
	}
	if err != nil {
		return err
	}
	if !u.ResetTokenExpiresAt.Valid || !now.Before(u.ResetTokenExpiresAt.Time) {
		return ErrInvalidOrExpiredResetToken
	}
	pw, err := utils.HashPassword(password, s.Cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.Users.ConsumeResetToken(ctx, u.ID, hash, pw, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredResetToken
		}
		return err
	}
	if err := s.Sessions.RevokeAllForUser(ctx, u.ID, now); err != nil {
		s.Log.Error("revoke sessions after reset failed", zap.Uint64("user_id", u.ID), zap.Error(err))
	}
	s.publish(ctx, queue.Event{Type: queue.EventPasswordChanged, UserID: u.ID, Email: u.Email, Username: u.Username})
	s.Activity.Record(ctx, u.ID, model.ActionPasswordReset, "Password reset via email link", meta, nil)
	return nil
}

// ChangePassword replaces the password of a signed-in user after checking
// the current one, then revokes every session.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint64, current, next string, meta RequestMeta) error {
	if current == "" {
		return &validate.Error{Field: "current_password", Message: "Current password is required"}
	}
	if err := validate.Password("new_password", next); err != nil {
		return err
	}
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return userErr(err)
	}
	if !utils.VerifyPassword(u.PasswordHash, current) {
		return ErrWrongOldPassword
	}
	if current == next {
		return ErrPasswordUnchanged
	}
	pw, err := utils.HashPassword(next, s.Cfg.BcryptCost)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if err := s.Users.UpdatePassword(ctx, u.ID, pw, now); err != nil {
		return userErr(err)
	}
	if err := s.Sessions.RevokeAllForUser(ctx, u.ID, now); err != nil {
		s.Log.Error("revoke sessions after password change failed", zap.Uint64("user_id", u.ID), zap.Error(err))
	}
	s.publish(ctx, queue.Event{Type: queue.EventPasswordChanged, UserID: u.ID, Email: u.Email, Username: u.Username})
	s.Activity.Record(ctx, u.ID, model.ActionPasswordChange, "Password changed", meta, nil)
	return nil
}

// dummy returns a bcrypt hash compared against when the email is unknown.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := utils.HashPassword("not-a-real-password", s.Cfg.BcryptCost)
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// publish emits ev after the primary write. Delivery failures are logged
// and do not fail the request.
func (s *AuthService) publish(ctx context.Context, ev queue.Event) {
	if s.Events == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now().UTC()
	}
	if err := s.Events.Publish(ctx, queue.NotificationsQueue, ev); err != nil {
		s.Log.Warn("publish event failed", zap.String("type", ev.Type), zap.Uint64("user_id", ev.UserID), zap.Error(err))
	}
}
