package model

import (
	"database/sql"
	"time"
)

// Document processing states. Transitions run pending -> processing ->
// completed or failed; a failed document with attempts left returns to pending.
const (
	DocPending    = "pending"
	DocProcessing = "processing"
	DocCompleted  = "completed"
	DocFailed     = "failed"
)

// Document is an uploaded file whose text is extracted in the background.
type Document struct {
	ID               uint64       `db:"id"`
	UserID           uint64       `db:"user_id"`
	OriginalName     string       `db:"original_name"`
	StorageKey       string       `db:"storage_key"`
	MimeType         string       `db:"mime_type"`
	SizeBytes        int64        `db:"size_bytes"`
	ProcessingStatus string       `db:"processing_status"`
	ContentText      string       `db:"content_text"`
	PageCount        int          `db:"page_count"`
	ErrorMessage     string       `db:"error_message"`
	Attempts         int          `db:"attempts"`
	ProcessedAt      sql.NullTime `db:"processed_at"`
	CreatedAt        time.Time    `db:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at"`
}
