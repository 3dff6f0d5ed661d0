package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/dynamic-web-app/internal/model"
	"github.com/iliyamo/dynamic-web-app/internal/repository"
	"github.com/iliyamo/dynamic-web-app/internal/storage"
	"github.com/iliyamo/dynamic-web-app/internal/utils"
	"github.com/iliyamo/dynamic-web-app/internal/validate"
)

// AdminService implements user administration. Callers must already have
// been authorised as admins.
type AdminService struct {
	Users UserStore
	Log   *zap.Logger

	files fileCleaner
	now   func() time.Time
}

func NewAdminService(users UserStore, store storage.Store, docs DocumentLister, log *zap.Logger) *AdminService {
	return &AdminService{
		Users: users,
		Log:   log,
		files: fileCleaner{store: store, docs: docs, log: log},
		now:   time.Now,
	}
}

// ListUsers returns one page of users, newest first.
func (s *AdminService) ListUsers(ctx context.Context, f repository.UserFilter) ([]model.User, int, error) {
	f.Page = f.Page.Normalize(20, 100)
	if f.Role != "" {
		if err := validate.Role(f.Role); err != nil {
			return nil, 0, err
		}
	}
	return s.Users.List(ctx, f)
}

// UpdateRole changes the role of targetID. Demoting the last admin fails
// with ErrLastAdmin.
func (s *AdminService) UpdateRole(ctx context.Context, actorID, targetID uint64, role string) (*model.User, error) {
	if err := validate.Role(role); err != nil {
		return nil, err
	}
	u, err := s.Users.UpdateRole(ctx, targetID, role, s.now().UTC())
	if err != nil {
		return nil, userErr(err)
	}
	s.Log.Info("user role updated",
		zap.Uint64("actor_id", actorID), zap.Uint64("user_id", targetID), zap.String("role", role))
	return u, nil
}

// DeleteUser removes targetID and the files it owns. Deleting the last
// admin fails with ErrLastAdmin.
func (s *AdminService) DeleteUser(ctx context.Context, actorID, targetID uint64) error {
	u, err := s.Users.GetByID(ctx, targetID)
	if err != nil {
		return userErr(err)
	}
	keys := s.files.keys(ctx, u)
	if _, err := s.Users.Delete(ctx, targetID); err != nil {
		return userErr(err)
	}
	s.files.remove(ctx, keys)
	s.Log.Info("user deleted", zap.Uint64("actor_id", actorID), zap.Uint64("user_id", targetID))
	return nil
}

// ForceVerify marks the user with email as verified. Test environments only.
func (s *AdminService) ForceVerify(ctx context.Context, email string) (*model.User, error) {
	u, err := s.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, userErr(err)
	}
	if err := s.Users.SetVerified(ctx, u.ID, s.now().UTC()); err != nil {
		return nil, userErr(err)
	}
	u.IsVerified = true
	return u, nil
}

// ForceRole sets the role of the user with email. Test environments only.
func (s *AdminService) ForceRole(ctx context.Context, email, role string) (*model.User, error) {
	if err := validate.Role(role); err != nil {
		return nil, err
	}
	u, err := s.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, userErr(err)
	}
	out, err := s.Users.UpdateRole(ctx, u.ID, role, s.now().UTC())
	return out, userErr(err)
}

// BootstrapAdmin describes the account EnsureAdmin creates on startup.
type BootstrapAdmin struct {
	Email      string
	Username   string
	Password   string
	BcryptCost int
}

// EnsureAdmin makes sure the configured bootstrap account exists, is
// verified and holds the admin role. It does nothing when email or password
// are unset.
func EnsureAdmin(ctx context.Context, users UserStore, a BootstrapAdmin, log *zap.Logger) error {
	if a.Email == "" || a.Password == "" {
		return nil
	}
	email, err := validate.Email(a.Email)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	u, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !u.IsVerified {
			if err := users.SetVerified(ctx, u.ID, now); err != nil {
				return err
			}
		}
		if u.Role != model.RoleAdmin {
			if _, err := users.UpdateRole(ctx, u.ID, model.RoleAdmin, now); err != nil {
				return err
			}
			log.Info("bootstrap admin promoted", zap.String("email", email))
		}
		return nil
	case !errors.Is(err, repository.ErrNotFound):
		return err
	}

	if err := validate.Password("password", a.Password); err != nil {
		return err
	}
	hash, err := utils.HashPassword(a.Password, a.BcryptCost)
	if err != nil {
		return err
	}
	u = &model.User{
		Username:       a.Username,
		Email:          email,
		PasswordHash:   hash,
		Role:           model.RoleAdmin,
		IsVerified:     true,
		ProfilePrivacy: model.PrivacyPrivate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := users.Create(ctx, u); err != nil {
		return err
	}
	log.Info("bootstrap admin created", zap.String("email", email), zap.Uint64("user_id", u.ID))
	return nil
}
