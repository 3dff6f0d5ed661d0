package handler

import (
	"time"

	"github.com/iliyamo/dynamic-web-app/internal/model"
)

type userSummary struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func summaryOf(u *model.User) userSummary {
	return userSummary{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

// profileResponse is the owner's view of their account. It never carries
// the password hash or any token digest.
type profileResponse struct {
	ID                uint64            `json:"id"`
	Username          string            `json:"username"`
	Email             string            `json:"email"`
	Role              string            `json:"role"`
	IsVerified        bool              `json:"is_verified"`
	Bio               string            `json:"bio"`
	Location          string            `json:"location"`
	Website           string            `json:"website"`
	GithubURL         string            `json:"github_url"`
	LinkedinURL       string            `json:"linkedin_url"`
	TwitterURL        string            `json:"twitter_url"`
	ProfilePicture    *string           `json:"profile_picture"`
	PictureVariants   map[string]string `json:"profile_picture_variants,omitempty"`
	ProfilePrivacy    string            `json:"profile_privacy"`
	ProfileCompletion int               `json:"profile_completion"`
	LastLogin         *time.Time        `json:"last_login"`
	LoginCount        int               `json:"login_count"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// publicProfile is what other users see of a public profile.
type publicProfile struct {
	Username        string            `json:"username"`
	Bio             string            `json:"bio"`
	Location        string            `json:"location"`
	Website         string            `json:"website"`
	GithubURL       string            `json:"github_url"`
	LinkedinURL     string            `json:"linkedin_url"`
	TwitterURL      string            `json:"twitter_url"`
	ProfilePicture  *string           `json:"profile_picture"`
	PictureVariants map[string]string `json:"profile_picture_variants,omitempty"`
	MemberSince     time.Time         `json:"memberSince"`
}

type adminUser struct {
	ID            uint64     `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
	EmailVerified bool       `json:"emailVerified"`
	LastLogin     *time.Time `json:"lastLogin"`
	LoginCount    int        `json:"loginCount"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func adminUserOf(u *model.User) adminUser {
	return adminUser{
		ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role,
		EmailVerified: u.IsVerified, LastLogin: nullTime(u.LastLogin.Time, u.LastLogin.Valid),
		LoginCount: u.LoginCount, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
	}
}

func nullTime(t time.Time, valid bool) *time.Time {
	if !valid {
		return nil
	}
	return &t
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type documentResponse struct {
	ID               uint64     `json:"id"`
	OriginalName     string     `json:"originalName"`
	MimeType         string     `json:"mimeType"`
	SizeBytes        int64      `json:"size"`
	ProcessingStatus string     `json:"processingStatus"`
	PageCount        int        `json:"pageCount"`
	ErrorMessage     string     `json:"errorMessage,omitempty"`
	ContentText      *string    `json:"contentText,omitempty"`
	ProcessedAt      *time.Time `json:"processedAt"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func documentOf(d *model.Document, withText bool) documentResponse {
	out := documentResponse{
		ID: d.ID, OriginalName: d.OriginalName, MimeType: d.MimeType, SizeBytes: d.SizeBytes,
		ProcessingStatus: d.ProcessingStatus, PageCount: d.PageCount, ErrorMessage: d.ErrorMessage,
		ProcessedAt: nullTime(d.ProcessedAt.Time, d.ProcessedAt.Valid), CreatedAt: d.CreatedAt,
	}
	if withText {
		text := d.ContentText
		out.ContentText = &text
	}
	return out
}
