package model

import "time"

// TenderCategories lists the accepted tender categories.
var TenderCategories = []string{
	"Construction", "IT Services", "Consulting", "Supplies", "Transportation",
	"Healthcare", "Education", "Engineering", "Maintenance", "Other",
}

// Tender statuses.
const (
	TenderActive    = "Active"
	TenderClosed    = "Closed"
	TenderCancelled = "Cancelled"
	TenderDraft     = "Draft"
)

// Tender is a public procurement notice managed by admins.
type Tender struct {
	ID                 uint64          `db:"id" json:"id"`
	Title              string          `db:"title" json:"title"`
	Description        string          `db:"description" json:"description"`
	ReferenceNumber    string          `db:"reference_number" json:"referenceNumber"`
	Organization       string          `db:"organization" json:"organization"`
	Category           string          `db:"category" json:"category"`
	Location           string          `db:"location" json:"location"`
	EstimatedValue     *float64        `db:"estimated_value" json:"estimatedValue,omitempty"`
	Currency           string          `db:"currency" json:"currency"`
	SubmissionDeadline time.Time       `db:"submission_deadline" json:"submissionDeadline"`
	PublishedDate      time.Time       `db:"published_date" json:"publishedDate"`
	Status             string          `db:"status" json:"status"`
	ContactPerson      string          `db:"contact_person" json:"contactPerson,omitempty"`
	ContactEmail       string          `db:"contact_email" json:"contactEmail,omitempty"`
	Requirements       string          `db:"requirements" json:"requirements,omitempty"`
	ViewCount          int             `db:"view_count" json:"viewCount"`
	CreatedBy          *uint64         `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updatedAt"`
}

// IsExpired reports whether the submission deadline has passed at now.
func (t *Tender) IsExpired(now time.Time) bool { return !now.Before(t.SubmissionDeadline) }
