// Package service holds the account flows: registration and login, profile
// and settings management and user administration. Handlers translate HTTP
// into calls on these types; persistence is reached through the interfaces
// below so the flows can be tested against any store.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/dynamic-web-app/internal/model"
	"github.com/iliyamo/dynamic-web-app/internal/repository"
)

var (
	ErrInvalidCredentials         = errors.New("invalid email or password")
	ErrEmailNotVerified           = errors.New("email not verified")
	ErrInvalidVerificationToken   = errors.New("invalid verification token")
	ErrInvalidOrExpiredResetToken = errors.New("invalid or expired reset token")
	ErrInvalidOrExpiredToken      = errors.New("invalid or expired token")
	ErrWrongOldPassword           = errors.New("current password is incorrect")
	ErrWrongPassword              = errors.New("password is incorrect")
	ErrPasswordUnchanged          = errors.New("new password must differ from the current one")
	ErrUserNotFound               = errors.New("user not found")
	ErrUsernameTaken              = errors.New("username already taken")
	ErrEmailTaken                 = errors.New("email already registered")
	ErrLastAdmin                  = repository.ErrLastAdmin
)

// UserStore is the subset of the user repository the services need.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByVerificationHash(ctx context.Context, hash string) (*model.User, error)
	GetByResetHash(ctx context.Context, hash string) (*model.User, error)
	ConsumeVerification(ctx context.Context, id uint64, hash string, now time.Time) error
	SetVerified(ctx context.Context, id uint64, now time.Time) error
	SetResetToken(ctx context.Context, id uint64, hash string, expires, now time.Time) error
	ConsumeResetToken(ctx context.Context, id uint64, hash, passwordHash string, now time.Time) error
	UpdatePassword(ctx context.Context, id uint64, passwordHash string, now time.Time) error
	RecordLogin(ctx context.Context, id uint64, now time.Time) error
	UpdateProfile(ctx context.Context, id uint64, p model.ProfileFields, completion int, now time.Time) error
	ChangeEmail(ctx context.Context, id uint64, email, verificationHash string, now time.Time) error
	SetProfilePicture(ctx context.Context, id uint64, picture string, completion int, now time.Time) error
	List(ctx context.Context, f repository.UserFilter) ([]model.User, int, error)
	UpdateRole(ctx context.Context, id uint64, role string, now time.Time) (*model.User, error)
	Delete(ctx context.Context, id uint64) (*model.User, error)
}

// SessionStore persists refresh token sessions.
type SessionStore interface {
	StoreRefresh(ctx context.Context, t *model.RefreshToken) error
	ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	ActiveForUser(ctx context.Context, userID uint64, now time.Time) ([]model.RefreshToken, error)
	RevokeForUser(ctx context.Context, userID uint64, tokenHash string, now time.Time) error
	RevokeAllForUser(ctx context.Context, userID uint64, now time.Time) error
}

// SettingsStore persists per-user preferences.
type SettingsStore interface {
	Get(ctx context.Context, userID uint64) (*model.UserSettings, error)
	Upsert(ctx context.Context, s *model.UserSettings, now time.Time) error
}

// DocumentLister finds a user's stored files before the user is removed.
type DocumentLister interface {
	List(ctx context.Context, userID uint64, status string, p repository.Page) ([]model.Document, int, error)
}

// RequestMeta describes the client behind a call, for audit rows and
// session bookkeeping.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// userErr maps repository lookups to the service's not-found error.
func userErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// dupErr maps unique violations on users to service errors.
func dupErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateUsername):
		return ErrUsernameTaken
	case errors.Is(err, repository.ErrDuplicateEmail):
		return ErrEmailTaken
	}
	return err
}
