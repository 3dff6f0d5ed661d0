package model

import (
	"database/sql"
	"time"
)

// Roles a user can hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Profile visibility settings.
const (
	PrivacyPublic  = "public"
	PrivacyPrivate = "private"
	PrivacyFriends = "friends"
)

// User represents a row of the `users` table. Credential and token columns
// hold bcrypt or SHA-256 digests only; the raw values never reach storage.
//
// Fields:
//  VerificationToken – digest of the pending email verification token.
//  ResetToken        – digest of the pending password reset token.
//  ProfileCompletion – derived from the tracked profile fields on every write.
type User struct {
	ID                  uint64         `db:"id"`
	Username            string         `db:"username"`
	Email               string         `db:"email"`
	PasswordHash        string         `db:"password_hash"`
	Role                string         `db:"role"`
	IsVerified          bool           `db:"is_verified"`
	VerificationToken   sql.NullString `db:"verification_token"`
	ResetToken          sql.NullString `db:"reset_token"`
	ResetTokenExpiresAt sql.NullTime   `db:"reset_token_expires_at"`
	Bio                 string         `db:"bio"`
	Location            string         `db:"location"`
	Website             string         `db:"website"`
	GithubURL           string         `db:"github_url"`
	LinkedinURL         string         `db:"linkedin_url"`
	TwitterURL          string         `db:"twitter_url"`
	ProfilePicture      string         `db:"profile_picture"`
	ProfilePrivacy      string         `db:"profile_privacy"`
	LastLogin           sql.NullTime   `db:"last_login"`
	LoginCount          int            `db:"login_count"`
	ProfileCompletion   int            `db:"profile_completion"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// ProfileFields is the mutable part of a user row written by profile updates.
type ProfileFields struct {
	Username       string
	Email          string
	Bio            string
	Location       string
	Website        string
	GithubURL      string
	LinkedinURL    string
	TwitterURL     string
	ProfilePrivacy string
}

// Profile returns the mutable fields of u.
func (u *User) Profile() ProfileFields {
	return ProfileFields{
		Username:       u.Username,
		Email:          u.Email,
		Bio:            u.Bio,
		Location:       u.Location,
		Website:        u.Website,
		GithubURL:      u.GithubURL,
		LinkedinURL:    u.LinkedinURL,
		TwitterURL:     u.TwitterURL,
		ProfilePrivacy: u.ProfilePrivacy,
	}
}

// trackedProfileFields returns the values that count towards completion.
func (u *User) trackedProfileFields() []string {
	return []string{
		u.Username, u.Email, u.Bio, u.Location, u.Website,
		u.GithubURL, u.LinkedinURL, u.TwitterURL, u.ProfilePicture,
	}
}

// CompletionPercent computes round(100 * filled / tracked) over username,
// email, bio, location, website, the three social links and the picture.
func (u *User) CompletionPercent() int {
	fields := u.trackedProfileFields()
	filled := 0
	for _, f := range fields {
		if f != "" {
			filled++
		}
	}
	return (200*filled + len(fields)) / (2 * len(fields))
}

// RefreshToken models an entry in the `refresh_tokens` table. Each row is
// one session; only the SHA-256 hash of the token is stored.
type RefreshToken struct {
	ID        uint64       `db:"id"`
	UserID    uint64       `db:"user_id"`
	TokenHash string       `db:"token_hash"`
	UserAgent string       `db:"user_agent"`
	IPAddress string       `db:"ip_address"`
	ExpiresAt time.Time    `db:"expires_at"`
	RevokedAt sql.NullTime `db:"revoked_at"`
	CreatedAt time.Time    `db:"created_at"`
}
