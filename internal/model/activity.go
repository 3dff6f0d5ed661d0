package model

import "time"

// Activity actions recorded for a user.
const (
	ActionRegister       = "register"
	ActionLogin          = "login"
	ActionLogout         = "logout"
	ActionEmailVerified  = "email_verified"
	ActionPasswordChange = "password_change"
	ActionPasswordReset  = "password_reset"
	ActionProfileUpdate  = "profile_update"
	ActionPictureUpdate  = "picture_update"
	ActionPictureDelete  = "picture_delete"
	ActionFileUpload     = "file_upload"
	ActionFileDelete     = "file_delete"
	ActionSettingsUpdate = "settings_update"
	ActionEmailChange    = "email_change"
)

// ActivityLog is one audit row for a user action.
type ActivityLog struct {
	ID          uint64    `db:"id" json:"id"`
	UserID      uint64    `db:"user_id" json:"userId"`
	Action      string    `db:"action" json:"action"`
	Description string    `db:"description" json:"description"`
	IPAddress   string    `db:"ip_address" json:"ipAddress"`
	UserAgent   string    `db:"user_agent" json:"userAgent"`
	Metadata    Metadata  `db:"metadata" json:"metadata"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}
