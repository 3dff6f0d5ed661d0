package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/dynamic-web-app/internal/database"
	"github.com/iliyamo/dynamic-web-app/internal/model"
)

const userColumns = `id, username, email, password_hash, role, is_verified, verification_token,
	reset_token, reset_token_expires_at, bio, location, website, github_url, linkedin_url,
	twitter_url, profile_picture, profile_privacy, last_login, login_count, profile_completion,
	created_at, updated_at`

// UserRepo is the credential store.
type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts u and fills in its ID. Email must already be normalized.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	if u.ProfilePrivacy == "" {
		u.ProfilePrivacy = model.PrivacyPublic
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	u.ProfileCompletion = u.CompletionPercent()
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, role, is_verified, verification_token,
			profile_privacy, profile_completion, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		u.Username, u.Email, u.PasswordHash, u.Role, u.IsVerified, u.VerificationToken,
		u.ProfilePrivacy, u.ProfileCompletion, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return uniqueColumn(err)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

func (r *UserRepo) getOne(ctx context.Context, q sqlx.QueryerContext, where string, args ...any) (*model.User, error) {
	var u model.User
	if err := sqlx.GetContext(ctx, q, &u, "SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", args...); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.getOne(ctx, r.DB, "id=?", id)
}

// GetByEmail fetches a user by email, case-insensitively.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, r.DB, "email=?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, r.DB, "username=?", username)
}

// GetByVerificationHash looks up the unverified user holding this token digest.
func (r *UserRepo) GetByVerificationHash(ctx context.Context, hash string) (*model.User, error) {
	return r.getOne(ctx, r.DB, "verification_token=?", hash)
}

// GetByResetHash looks up the user holding this reset token digest. Expiry
// is checked by the caller.
func (r *UserRepo) GetByResetHash(ctx context.Context, hash string) (*model.User, error) {
	return r.getOne(ctx, r.DB, "reset_token=?", hash)
}

// ConsumeVerification marks the user verified and clears the token, but only
// if the token digest still matches. A concurrent second redemption finds no
// row and gets ErrNotFound.
func (r *UserRepo) ConsumeVerification(ctx context.Context, id uint64, hash string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET is_verified=?, verification_token=NULL, updated_at=?
		 WHERE id=? AND verification_token=?`, true, now, id, hash)
	return affectedOne(res, err)
}

// SetVerified marks a user verified regardless of any pending token.
func (r *UserRepo) SetVerified(ctx context.Context, id uint64, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET is_verified=?, verification_token=NULL, updated_at=? WHERE id=?`, true, now, id)
	return affectedOne(res, err)
}

// ChangeEmail switches the account to a new address, which must be
// verified again through the token digest stored alongside it.
func (r *UserRepo) ChangeEmail(ctx context.Context, id uint64, email, verificationHash string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET email=?, is_verified=?, verification_token=?, updated_at=? WHERE id=?`,
		email, false, verificationHash, now, id)
	if err != nil && isUniqueViolation(err) {
		return uniqueColumn(err)
	}
	return affectedOne(res, err)
}

// SetResetToken stores a reset token digest and its expiry, replacing any
// earlier pending reset.
func (r *UserRepo) SetResetToken(ctx context.Context, id uint64, hash string, expires, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET reset_token=?, reset_token_expires_at=?, updated_at=? WHERE id=?`,
		hash, expires, now, id)
	return affectedOne(res, err)
}

// ConsumeResetToken replaces the password and clears both reset fields if the
// digest matches and has not expired at now.
func (r *UserRepo) ConsumeResetToken(ctx context.Context, id uint64, hash, passwordHash string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET password_hash=?, reset_token=NULL, reset_token_expires_at=NULL, updated_at=?
		 WHERE id=? AND reset_token=? AND reset_token_expires_at > ?`,
		passwordHash, now, id, hash, now)
	return affectedOne(res, err)
}

// ClearExpiredResetTokens drops reset tokens whose expiry is before now.
func (r *UserRepo) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET reset_token=NULL, reset_token_expires_at=NULL
		 WHERE reset_token IS NOT NULL AND reset_token_expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, passwordHash string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET password_hash=?, updated_at=? WHERE id=?`, passwordHash, now, id)
	return affectedOne(res, err)
}

// RecordLogin bumps login_count and sets last_login.
func (r *UserRepo) RecordLogin(ctx context.Context, id uint64, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET login_count=login_count+1, last_login=?, updated_at=? WHERE id=?`, now, now, id)
	return affectedOne(res, err)
}

// UpdateProfile writes every mutable profile field and the recomputed
// completion in one statement.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, p model.ProfileFields, completion int, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET username=?, email=?, bio=?, location=?, website=?, github_url=?,
			linkedin_url=?, twitter_url=?, profile_privacy=?, profile_completion=?, updated_at=?
		 WHERE id=?`,
		p.Username, p.Email, p.Bio, p.Location, p.Website, p.GithubURL,
		p.LinkedinURL, p.TwitterURL, p.ProfilePrivacy, completion, now, id)
	if err != nil && isUniqueViolation(err) {
		return uniqueColumn(err)
	}
	return affectedOne(res, err)
}

// SetProfilePicture stores the picture key ("" clears it) and completion.
func (r *UserRepo) SetProfilePicture(ctx context.Context, id uint64, picture string, completion int, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET profile_picture=?, profile_completion=?, updated_at=? WHERE id=?`,
		picture, completion, now, id)
	return affectedOne(res, err)
}

// UserFilter narrows an admin user listing.
type UserFilter struct {
	Page
	Search string // substring of username or email
	Role   string
}

// List returns one page of users, newest first, plus the total match count.
func (r *UserRepo) List(ctx context.Context, f UserFilter) ([]model.User, int, error) {
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, "(username LIKE ? OR email LIKE ?)")
		like := "%" + s + "%"
		args = append(args, like, like)
	}
	if f.Role != "" {
		where = append(where, "role=?")
		args = append(args, f.Role)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.DB.GetContext(ctx, &total, "SELECT COUNT(*) FROM users"+cond, args...); err != nil {
		return nil, 0, err
	}
	users := []model.User{}
	q := "SELECT " + userColumns + " FROM users" + cond + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	if err := r.DB.SelectContext(ctx, &users, q, append(args, f.Limit, f.Offset())...); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// CountByRole returns how many users hold role.
func (r *UserRepo) CountByRole(ctx context.Context, role string) (int, error) {
	var n int
	err := r.DB.GetContext(ctx, &n, "SELECT COUNT(*) FROM users WHERE role=?", role)
	return n, err
}

// UpdateRole changes a user's role and returns the updated row. Demoting the
// only remaining admin fails with ErrLastAdmin; the check and the write share
// one transaction.
func (r *UserRepo) UpdateRole(ctx context.Context, id uint64, role string, now time.Time) (*model.User, error) {
	var out *model.User
	err := database.WithTx(ctx, r.DB, func(tx *sqlx.Tx) error {
		cur, err := r.getOne(ctx, tx, "id=?", id)
		if err != nil {
			return err
		}
		if cur.Role == model.RoleAdmin && role != model.RoleAdmin {
			if err := lastAdminGuard(ctx, tx); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET role=?, updated_at=? WHERE id=?`, role, now, id); err != nil {
			return err
		}
		cur.Role = role
		cur.UpdatedAt = now
		out = cur
		return nil
	})
	return out, err
}

// Delete hard-deletes a user and returns the removed row. Child rows go
// with it through ON DELETE CASCADE. Deleting the only admin fails with
// ErrLastAdmin.
func (r *UserRepo) Delete(ctx context.Context, id uint64) (*model.User, error) {
	var out *model.User
	err := database.WithTx(ctx, r.DB, func(tx *sqlx.Tx) error {
		cur, err := r.getOne(ctx, tx, "id=?", id)
		if err != nil {
			return err
		}
		if cur.Role == model.RoleAdmin {
			if err := lastAdminGuard(ctx, tx); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id); err != nil {
			return err
		}
		out = cur
		return nil
	})
	return out, err
}

// lastAdminGuard fails with ErrLastAdmin unless another admin remains. On
// MySQL the count takes row locks so two concurrent demotions serialize;
// SQLite already allows a single writer.
func lastAdminGuard(ctx context.Context, tx *sqlx.Tx) error {
	q := "SELECT COUNT(*) FROM users WHERE role=?"
	if tx.DriverName() == "mysql" {
		q += " FOR UPDATE"
	}
	var admins int
	if err := tx.GetContext(ctx, &admins, q, model.RoleAdmin); err != nil {
		return err
	}
	if admins <= 1 {
		return ErrLastAdmin
	}
	return nil
}

// affectedOne converts an Exec result into ErrNotFound when no row matched.
func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
