package model

import "time"

// Interface themes.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
	ThemeAuto  = "auto"
)

// UserSettings holds a user's interface and email preferences. A user
// without a row gets DefaultSettings.
type UserSettings struct {
	UserID             uint64    `db:"user_id" json:"-"`
	Theme              string    `db:"theme" json:"theme"`
	Language           string    `db:"language" json:"language"`
	Timezone           string    `db:"timezone" json:"timezone"`
	EmailNotifications bool      `db:"email_notifications" json:"emailNotifications"`
	SecurityAlerts     bool      `db:"security_alerts" json:"securityAlerts"`
	MarketingEmails    bool      `db:"marketing_emails" json:"marketingEmails"`
	Preferences        Metadata  `db:"preferences" json:"preferences"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time `db:"updated_at" json:"updatedAt"`
}

func DefaultSettings(userID uint64) UserSettings {
	return UserSettings{
		UserID:             userID,
		Theme:              ThemeLight,
		Language:           "en",
		Timezone:           "UTC",
		EmailNotifications: true,
		SecurityAlerts:     true,
		Preferences:        Metadata{},
	}
}
