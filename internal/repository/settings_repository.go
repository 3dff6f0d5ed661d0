package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/dynamic-web-app/internal/model"
)

const settingsColumns = `user_id, theme, language, timezone, email_notifications, security_alerts,
	marketing_emails, preferences, created_at, updated_at`

type SettingsRepo struct{ DB *sqlx.DB }

func NewSettingsRepo(db *sqlx.DB) *SettingsRepo { return &SettingsRepo{DB: db} }

// Get returns the user's settings, or the defaults when none were saved.
func (r *SettingsRepo) Get(ctx context.Context, userID uint64) (*model.UserSettings, error) {
	var s model.UserSettings
	err := r.DB.GetContext(ctx, &s, "SELECT "+settingsColumns+" FROM user_settings WHERE user_id=?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		d := model.DefaultSettings(userID)
		return &d, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert writes every column of s, creating the row on first save.
func (r *SettingsRepo) Upsert(ctx context.Context, s *model.UserSettings, now time.Time) error {
	if s.Preferences == nil {
		s.Preferences = model.Metadata{}
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	q := `INSERT INTO user_settings (` + settingsColumns + `) VALUES (?,?,?,?,?,?,?,?,?,?) `
	if r.DB.DriverName() == "mysql" {
		q += `ON DUPLICATE KEY UPDATE theme=VALUES(theme), language=VALUES(language), timezone=VALUES(timezone),
			email_notifications=VALUES(email_notifications), security_alerts=VALUES(security_alerts),
			marketing_emails=VALUES(marketing_emails), preferences=VALUES(preferences), updated_at=VALUES(updated_at)`
	} else {
		q += `ON CONFLICT (user_id) DO UPDATE SET theme=excluded.theme, language=excluded.language,
			timezone=excluded.timezone, email_notifications=excluded.email_notifications,
			security_alerts=excluded.security_alerts, marketing_emails=excluded.marketing_emails,
			preferences=excluded.preferences, updated_at=excluded.updated_at`
	}
	_, err := r.DB.ExecContext(ctx, q,
		s.UserID, s.Theme, s.Language, s.Timezone, s.EmailNotifications, s.SecurityAlerts,
		s.MarketingEmails, s.Preferences, s.CreatedAt, s.UpdatedAt)
	return err
}
