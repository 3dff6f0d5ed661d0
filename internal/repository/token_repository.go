package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/dynamic-web-app/internal/model"
)

// TokenRepo persists refresh sessions, one row per issued refresh token.
type TokenRepo struct{ DB *sqlx.DB }

func NewTokenRepo(db *sqlx.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, t *model.RefreshToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, user_agent, ip_address, expires_at, created_at)
		 VALUES (?,?,?,?,?,?)`,
		t.UserID, t.TokenHash, truncate(t.UserAgent, 255), truncate(t.IPAddress, 64), t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// ValidateRefresh returns the owner of a non-revoked token that has not
// expired at now. Anything else is ErrNotFound.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error) {
	var t model.RefreshToken
	err := r.DB.GetContext(ctx, &t,
		`SELECT id, user_id, token_hash, user_agent, ip_address, expires_at, revoked_at, created_at
		 FROM refresh_tokens WHERE token_hash=? LIMIT 1`, tokenHash)
	if err != nil {
		return 0, notFound(err)
	}
	if t.RevokedAt.Valid || !now.Before(t.ExpiresAt) {
		return 0, ErrNotFound
	}
	return t.UserID, nil
}

// ActiveForUser lists the user's live sessions, newest first.
func (r *TokenRepo) ActiveForUser(ctx context.Context, userID uint64, now time.Time) ([]model.RefreshToken, error) {
	out := []model.RefreshToken{}
	err := r.DB.SelectContext(ctx, &out,
		`SELECT id, user_id, token_hash, user_agent, ip_address, expires_at, revoked_at, created_at
		 FROM refresh_tokens WHERE user_id=? AND revoked_at IS NULL AND expires_at > ?
		 ORDER BY created_at DESC, id DESC`, userID, now)
	return out, err
}

// RevokeByHash marks a token as revoked.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL",
		now, tokenHash)
	return affectedOne(res, err)
}

// RevokeForUser revokes one of the user's tokens; tokens of other users are
// left alone and reported as ErrNotFound.
func (r *TokenRepo) RevokeForUser(ctx context.Context, userID uint64, tokenHash string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE user_id=? AND token_hash=? AND revoked_at IS NULL",
		now, userID, tokenHash)
	return affectedOne(res, err)
}

// RevokeAllForUser revokes all user's active tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL",
		now, userID)
	return err
}

// DeleteExpired removes tokens that expired, or were revoked, before cutoff.
func (r *TokenRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)",
		cutoff, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
