package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/dynamic-web-app/internal/imaging"
	"github.com/iliyamo/dynamic-web-app/internal/model"
	"github.com/iliyamo/dynamic-web-app/internal/queue"
	"github.com/iliyamo/dynamic-web-app/internal/repository"
	"github.com/iliyamo/dynamic-web-app/internal/storage"
	"github.com/iliyamo/dynamic-web-app/internal/utils"
	"github.com/iliyamo/dynamic-web-app/internal/validate"
)

// DeleteConfirmation must be echoed back to delete an account.
const DeleteConfirmation = "DELETE_MY_ACCOUNT"

// Optional is a field of a partial update. Set with an empty Value clears
// the field.
type Optional struct {
	Set   bool
	Value string
}

// Some returns a set Optional.
func Some(v string) Optional { return Optional{Set: true, Value: v} }

// ProfileUpdate lists the fields a user may change on their own profile.
type ProfileUpdate struct {
	Username       Optional
	Email          Optional
	Bio            Optional
	Location       Optional
	Website        Optional
	GithubURL      Optional
	LinkedinURL    Optional
	TwitterURL     Optional
	ProfilePrivacy Optional
}

// ProfileStats summarises account usage for the dashboard.
type ProfileStats struct {
	ProfileCompletion int        `json:"profileCompletion"`
	LoginCount        int        `json:"loginCount"`
	LastLogin         *time.Time `json:"lastLogin"`
	MemberSince       time.Time  `json:"memberSince"`
	AccountAgeDays    int        `json:"accountAgeDays"`
	IsVerified        bool       `json:"isVerified"`
	ActiveSessions    int        `json:"activeSessions"`
}

type ProfileService struct {
	Users         UserStore
	Sessions      SessionStore
	Store         storage.Store
	Events        queue.Publisher
	Activity      *ActivityRecorder
	Log           *zap.Logger
	MaxImageBytes int64

	files fileCleaner
	now   func() time.Time
}

func NewProfileService(users UserStore, sessions SessionStore, store storage.Store, docs DocumentLister,
	events queue.Publisher, activity *ActivityRecorder, log *zap.Logger, maxImageBytes int64) *ProfileService {
	return &ProfileService{
		Users: users, Sessions: sessions, Store: store, Events: events,
		Activity: activity, Log: log, MaxImageBytes: maxImageBytes,
		files: fileCleaner{store: store, docs: docs, log: log},
		now:   time.Now,
	}
}

func (s *ProfileService) Get(ctx context.Context, id uint64) (*model.User, error) {
	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		return nil, userErr(err)
	}
	return u, nil
}

// Update applies the set fields of in. Every field is validated before
// anything is written; username and email must stay unique.
func (s *ProfileService) Update(ctx context.Context, id uint64, in ProfileUpdate, meta RequestMeta) (*model.User, error) {
	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		return nil, userErr(err)
	}
	p := u.Profile()
	var changes []string
	set := func(name string, dst *string, v string) {
		if *dst != v {
			*dst = v
			changes = append(changes, name)
		}
	}

	if in.Username.Set {
		v := strings.TrimSpace(in.Username.Value)
		if err := validate.Required("username", "Username", v); err != nil {
			return nil, err
		}
		if v != u.Username {
			if err := validate.Username(v, true); err != nil {
				return nil, err
			}
			if err := s.ensureFree(ctx, s.Users.GetByUsername, v, u.ID, ErrUsernameTaken); err != nil {
				return nil, err
			}
		}
		set("username", &p.Username, v)
	}
	if in.Email.Set {
		v, err := validate.Email(in.Email.Value)
		if err != nil {
			return nil, err
		}
		if v != u.Email {
			if err := s.ensureFree(ctx, s.Users.GetByEmail, v, u.ID, ErrEmailTaken); err != nil {
				return nil, err
			}
		}
		set("email", &p.Email, v)
	}
	if in.Bio.Set {
		if err := validate.Bio(in.Bio.Value); err != nil {
			return nil, err
		}
		set("bio", &p.Bio, strings.TrimSpace(validate.PlainText(in.Bio.Value)))
	}
	if in.Location.Set {
		v := strings.TrimSpace(in.Location.Value)
		if err := validate.Location(v); err != nil {
			return nil, err
		}
		set("location", &p.Location, v)
	}
	links := []struct {
		opt   Optional
		field string
		label string
		dst   *string
		hosts []string
	}{
		{in.Website, "website", "website", &p.Website, nil},
		{in.GithubURL, "github_url", "GitHub", &p.GithubURL, []string{"github.com"}},
		{in.LinkedinURL, "linkedin_url", "LinkedIn", &p.LinkedinURL, []string{"linkedin.com"}},
		{in.TwitterURL, "twitter_url", "Twitter", &p.TwitterURL, []string{"twitter.com", "x.com"}},
	}
	for _, l := range links {
		if !l.opt.Set {
			continue
		}
		v := strings.TrimSpace(l.opt.Value)
		if err := validate.URL(l.field, l.label, v, l.hosts...); err != nil {
			return nil, err
		}
		set(l.field, l.dst, v)
	}
	if in.ProfilePrivacy.Set {
		if err := validate.Privacy(in.ProfilePrivacy.Value); err != nil {
			return nil, err
		}
		set("profile_privacy", &p.ProfilePrivacy, in.ProfilePrivacy.Value)
	}

	if len(changes) == 0 {
		return u, nil
	}
	prevEmail := u.Email
	applyProfile(u, p)
	now := s.now().UTC()
	completion := u.CompletionPercent()
	if err := s.Users.UpdateProfile(ctx, u.ID, p, completion, now); err != nil {
		return nil, userErr(dupErr(err))
	}
	u.ProfileCompletion = completion
	u.UpdatedAt = now

	ev := queue.Event{Type: queue.EventProfileUpdated, UserID: u.ID, Email: u.Email, Username: u.Username, Changes: changes}
	if prevEmail != u.Email {
		ev.PreviousEmail = prevEmail
	}
	s.publish(ctx, ev)
	s.Activity.Record(ctx, u.ID, model.ActionProfileUpdate, "Profile updated", meta, model.Metadata{"fields": changes})
	return u, nil
}

func (s *ProfileService) ensureFree(ctx context.Context, lookup func(context.Context, string) (*model.User, error),
	v string, self uint64, taken error) error {
	other, err := lookup(ctx, v)
	switch {
	case err == nil && other.ID != self:
		return taken
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return err
	}
	return nil
}

func applyProfile(u *model.User, p model.ProfileFields) {
	u.Username = p.Username
	u.Email = p.Email
	u.Bio = p.Bio
	u.Location = p.Location
	u.Website = p.Website
	u.GithubURL = p.GithubURL
	u.LinkedinURL = p.LinkedinURL
	u.TwitterURL = p.TwitterURL
	u.ProfilePrivacy = p.ProfilePrivacy
}

func (s *ProfileService) Stats(ctx context.Context, id uint64) (*ProfileStats, error) {
	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		return nil, userErr(err)
	}
	now := s.now().UTC()
	st := &ProfileStats{
		ProfileCompletion: u.ProfileCompletion,
		LoginCount:        u.LoginCount,
		MemberSince:       u.CreatedAt,
		AccountAgeDays:    int(now.Sub(u.CreatedAt).Hours() / 24),
		IsVerified:        u.IsVerified,
	}
	if u.LastLogin.Valid {
		t := u.LastLogin.Time
		st.LastLogin = &t
	}
	if s.Sessions != nil {
		active, err := s.Sessions.ActiveForUser(ctx, u.ID, now)
		if err != nil {
			return nil, err
		}
		st.ActiveSessions = len(active)
	}
	return st, nil
}

// UploadPicture validates data, stores the primary image and its
// thumbnails, points the profile at them and removes the previous set.
func (s *ProfileService) UploadPicture(ctx context.Context, id uint64, data []byte, meta RequestMeta) (*model.User, error) {
	if err := imaging.Validate(data, s.MaxImageBytes); err != nil {
		return nil, s.imageErr(err)
	}
	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		return nil, userErr(err)
	}
	variants, err := imaging.Process(data)
	if err != nil {
		return nil, s.imageErr(err)
	}

	now := s.now().UTC()
	key := fmt.Sprintf("profiles/%d/profile_%d_%d.jpg", u.ID, u.ID, now.UnixNano())
	var stored []string
	for _, v := range variants {
		k := imaging.VariantKey(key, v.Name)
		if err := s.Store.Put(ctx, k, bytes.NewReader(v.Data), int64(len(v.Data)), "image/jpeg"); err != nil {
			s.files.remove(ctx, stored)
			return nil, fmt.Errorf("store picture: %w", err)
		}
		stored = append(stored, k)
	}

	old := u.ProfilePicture
	u.ProfilePicture = key
	completion := u.CompletionPercent()
	if err := s.Users.SetProfilePicture(ctx, u.ID, key, completion, now); err != nil {
		s.files.remove(ctx, stored)
		return nil, userErr(err)
	}
	u.ProfileCompletion = completion
	u.UpdatedAt = now
	if old != "" && old != key {
		s.files.remove(ctx, imaging.AllKeys(old))
	}

	s.publish(ctx, queue.Event{Type: queue.EventProfileUpdated, UserID: u.ID, Email: u.Email, Username: u.Username, Changes: []string{"profile_picture"}})
	s.Activity.Record(ctx, u.ID, model.ActionPictureUpdate, "Profile picture updated", meta, nil)
	return u, nil
}

func (s *ProfileService) DeletePicture(ctx context.Context, id uint64, meta RequestMeta) (*model.User, error) {
	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		return nil, userErr(err)
	}
	if u.ProfilePicture == "" {
		return nil, &validate.Error{Field: "profile_picture", Message: "No profile picture to delete"}
	}
	old := u.ProfilePicture
	u.ProfilePicture = ""
	completion := u.CompletionPercent()
	now := s.now().UTC()
	if err := s.Users.SetProfilePicture(ctx, u.ID, "", completion, now); err != nil {
		return nil, userErr(err)
	}
	u.ProfileCompletion = completion
	u.UpdatedAt = now
	s.files.remove(ctx, imaging.AllKeys(old))

	s.Activity.Record(ctx, u.ID, model.ActionPictureDelete, "Profile picture removed", meta, nil)
	return u, nil
}

// DeleteAccount removes the caller's own account after re-checking the
// password and the typed confirmation phrase.
func (s *ProfileService) DeleteAccount(ctx context.Context, id uint64, password, confirmation string) error {
	if confirmation != DeleteConfirmation {
		return &validate.Error{Field: "confirmation", Message: fmt.Sprintf("Please type %s to confirm", DeleteConfirmation)}
	}
	if password == "" {
		return &validate.Error{Field: "password", Message: "Password is required"}
	}
	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		return userErr(err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return ErrWrongPassword
	}
	keys := s.files.keys(ctx, u)
	if _, err := s.Users.Delete(ctx, u.ID); err != nil {
		return userErr(err)
	}
	s.files.remove(ctx, keys)
	s.Log.Info("account deleted", zap.Uint64("user_id", u.ID))
	return nil
}

// PublicProfile returns the profile of username as seen by viewerID (0 for
// anonymous). Non-public profiles are visible to their owner only and look
// missing to everybody else.
func (s *ProfileService) PublicProfile(ctx context.Context, username string, viewerID uint64) (*model.User, error) {
	u, err := s.Users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, userErr(err)
	}
	if u.ProfilePrivacy != model.PrivacyPublic && u.ID != viewerID {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// PictureURLs returns public URLs for the stored picture and thumbnails, or
// nil when the user has no picture.
func (s *ProfileService) PictureURLs(key string) map[string]string {
	if key == "" || s.Store == nil {
		return nil
	}
	out := map[string]string{"original": s.Store.URL(key)}
	for _, th := range imaging.Thumbnails {
		out[th.Name] = s.Store.URL(imaging.VariantKey(key, th.Name))
	}
	return out
}

func (s *ProfileService) imageErr(err error) error {
	msg := "Invalid image file"
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		msg = fmt.Sprintf("File too large. Maximum size is %dMB", s.MaxImageBytes>>20)
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		msg = "Only JPEG, PNG and WebP images are allowed"
	case errors.Is(err, imaging.ErrDimensions):
		msg = fmt.Sprintf("Image must be between %dx%d and %dx%d pixels",
			imaging.MinDimension, imaging.MinDimension, imaging.MaxDimension, imaging.MaxDimension)
	}
	return &validate.Error{Field: "profile_picture", Message: msg}
}

func (s *ProfileService) publish(ctx context.Context, ev queue.Event) {
	if s.Events == nil {
		return
	}
	ev.OccurredAt = s.now().UTC()
	if err := s.Events.Publish(ctx, queue.NotificationsQueue, ev); err != nil {
		s.Log.Warn("publish event failed", zap.String("type", ev.Type), zap.Uint64("user_id", ev.UserID), zap.Error(err))
	}
}
