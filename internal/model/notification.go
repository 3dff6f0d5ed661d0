package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Notification types.
const (
	NotifyInfo     = "info"
	NotifySuccess  = "success"
	NotifyWarning  = "warning"
	NotifyError    = "error"
	NotifySecurity = "security"
)

// Notification is an in-app message shown on the dashboard.
type Notification struct {
	ID        uint64     `db:"id" json:"id"`
	UserID    uint64     `db:"user_id" json:"userId"`
	Type      string     `db:"type" json:"type"`
	Title     string     `db:"title" json:"title"`
	Message   string     `db:"message" json:"message"`
	IsRead    bool       `db:"is_read" json:"isRead"`
	ReadAt    *time.Time `db:"read_at" json:"readAt"`
	Link      string     `db:"link" json:"link,omitempty"`
	Metadata  Metadata   `db:"metadata" json:"metadata"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

// Metadata is a free-form JSON object column.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Metadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return errors.New("metadata: unsupported column type")
	}
	out := Metadata{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*m = out
	return nil
}
