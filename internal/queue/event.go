// Package queue defines message payloads exchanged over the message broker
// and the publishers and consumers that move them.
package queue

import "time"

// Queue names.
const (
	NotificationsQueue = "notifications.events"
	DocumentsQueue     = "documents.process"
)

// Event types emitted after the primary write has committed.
const (
	EventUserRegistered         = "user.registered"
	EventUserVerified           = "user.verified"
	EventPasswordResetRequested = "password.reset_requested"
	EventPasswordChanged        = "password.changed"
	EventProfileUpdated         = "profile.updated"
)

// Event carries enough information for the notifier to build an email and
// an in-app notification without querying the user table. Token holds the
// raw verification or reset token for events that link back to the app.
// PreviousEmail is set when a profile update moved the account to a new
// address.
type Event struct {
	Type          string    `json:"type"`
	UserID        uint64    `json:"user_id"`
	Email         string    `json:"email"`
	PreviousEmail string    `json:"previous_email,omitempty"`
	Username      string    `json:"username"`
	Token         string    `json:"token,omitempty"`
	Changes       []string  `json:"changes,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// DocumentTask asks the document worker to extract text from an upload.
type DocumentTask struct {
	DocumentID uint64    `json:"document_id"`
	UserID     uint64    `json:"user_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
