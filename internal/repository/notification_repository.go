package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/dynamic-web-app/internal/model"
)

const notificationColumns = "id, user_id, type, title, message, is_read, read_at, link, metadata, created_at"

type NotificationRepo struct{ DB *sqlx.DB }

func NewNotificationRepo(db *sqlx.DB) *NotificationRepo { return &NotificationRepo{DB: db} }

func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	if n.Type == "" {
		n.Type = model.NotifyInfo
	}
	if n.Metadata == nil {
		n.Metadata = model.Metadata{}
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO notifications (user_id, type, title, message, is_read, link, metadata, created_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		n.UserID, n.Type, n.Title, n.Message, false, n.Link, n.Metadata, n.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	return nil
}

// List returns one page of the user's notifications, newest first, with the
// total matching count and the user's overall unread count.
func (r *NotificationRepo) List(ctx context.Context, userID uint64, unreadOnly bool, p Page) (items []model.Notification, total, unread int, err error) {
	cond, args := "user_id=?", []any{userID}
	if unreadOnly {
		cond += " AND is_read=?"
		args = append(args, false)
	}
	if err = r.DB.GetContext(ctx, &total, "SELECT COUNT(*) FROM notifications WHERE "+cond, args...); err != nil {
		return nil, 0, 0, err
	}
	if err = r.DB.GetContext(ctx, &unread, "SELECT COUNT(*) FROM notifications WHERE user_id=? AND is_read=?", userID, false); err != nil {
		return nil, 0, 0, err
	}
	items = []model.Notification{}
	err = r.DB.SelectContext(ctx, &items,
		"SELECT "+notificationColumns+" FROM notifications WHERE "+cond+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, p.Limit, p.Offset())...)
	return items, total, unread, err
}

// MarkRead flags one notification read. Already-read rows still count as found.
func (r *NotificationRepo) MarkRead(ctx context.Context, userID, id uint64, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE notifications SET is_read=?, read_at=COALESCE(read_at, ?) WHERE id=? AND user_id=?`,
		true, now, id, userID)
	return affectedOne(res, err)
}

// MarkAllRead flags every unread notification of the user and returns how many changed.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID uint64, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE notifications SET is_read=?, read_at=? WHERE user_id=? AND is_read=?`,
		true, now, userID, false)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *NotificationRepo) Delete(ctx context.Context, userID, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM notifications WHERE id=? AND user_id=?", id, userID)
	return affectedOne(res, err)
}
