package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/dynamic-web-app/internal/model"
)

type ActivityRepo struct{ DB *sqlx.DB }

func NewActivityRepo(db *sqlx.DB) *ActivityRepo { return &ActivityRepo{DB: db} }

func (r *ActivityRepo) Create(ctx context.Context, a *model.ActivityLog) error {
	if a.Metadata == nil {
		a.Metadata = model.Metadata{}
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO activity_logs (user_id, action, description, ip_address, user_agent, metadata, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		a.UserID, a.Action, truncate(a.Description, 500), truncate(a.IPAddress, 64),
		truncate(a.UserAgent, 255), a.Metadata, a.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

// List returns the user's activity, newest first, optionally filtered by action.
func (r *ActivityRepo) List(ctx context.Context, userID uint64, action string, p Page) ([]model.ActivityLog, int, error) {
	cond, args := "user_id=?", []any{userID}
	if action != "" {
		cond += " AND action=?"
		args = append(args, action)
	}
	var total int
	if err := r.DB.GetContext(ctx, &total, "SELECT COUNT(*) FROM activity_logs WHERE "+cond, args...); err != nil {
		return nil, 0, err
	}
	logs := []model.ActivityLog{}
	err := r.DB.SelectContext(ctx, &logs,
		`SELECT id, user_id, action, description, ip_address, user_agent, metadata, created_at
		 FROM activity_logs WHERE `+cond+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, p.Limit, p.Offset())...)
	return logs, total, err
}
