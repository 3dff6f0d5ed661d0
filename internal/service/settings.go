package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/dynamic-web-app/internal/model"
	"github.com/iliyamo/dynamic-web-app/internal/queue"
	"github.com/iliyamo/dynamic-web-app/internal/repository"
	"github.com/iliyamo/dynamic-web-app/internal/utils"
	"github.com/iliyamo/dynamic-web-app/internal/validate"
)

// MaxPreferencesBytes caps the encoded size of the free-form preferences.
const MaxPreferencesBytes = 4 << 10

// SettingsUpdate is a partial settings change; nil and unset fields keep
// their stored value.
type SettingsUpdate struct {
	Theme              Optional
	Language           Optional
	Timezone           Optional
	EmailNotifications *bool
	SecurityAlerts     *bool
	MarketingEmails    *bool
	Preferences        model.Metadata
}

// SettingsService manages user preferences and the password-confirmed
// email change.
type SettingsService struct {
	Settings SettingsStore
	Users    UserStore
	Events   queue.Publisher
	Activity *ActivityRecorder
	Log      *zap.Logger

	now func() time.Time
}

func NewSettingsService(settings SettingsStore, users UserStore, events queue.Publisher,
	activity *ActivityRecorder, log *zap.Logger) *SettingsService {
	return &SettingsService{
		Settings: settings, Users: users, Events: events,
		Activity: activity, Log: log, now: time.Now,
	}
}

func (s *SettingsService) Get(ctx context.Context, userID uint64) (*model.UserSettings, error) {
	return s.Settings.Get(ctx, userID)
}

// Update validates every set field, then saves the merged settings.
func (s *SettingsService) Update(ctx context.Context, userID uint64, in SettingsUpdate, meta RequestMeta) (*model.UserSettings, error) {
	cur, err := s.Settings.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	var changed []string

	if in.Theme.Set {
		if err := validate.Theme(in.Theme.Value); err != nil {
			return nil, err
		}
		cur.Theme = in.Theme.Value
		changed = append(changed, "theme")
	}
	if in.Language.Set {
		tag, err := validate.Language(in.Language.Value)
		if err != nil {
			return nil, err
		}
		cur.Language = tag
		changed = append(changed, "language")
	}
	if in.Timezone.Set {
		if err := validate.Timezone(in.Timezone.Value); err != nil {
			return nil, err
		}
		cur.Timezone = in.Timezone.Value
		changed = append(changed, "timezone")
	}
	flags := []struct {
		name string
		in   *bool
		dst  *bool
	}{
		{"emailNotifications", in.EmailNotifications, &cur.EmailNotifications},
		{"securityAlerts", in.SecurityAlerts, &cur.SecurityAlerts},
		{"marketingEmails", in.MarketingEmails, &cur.MarketingEmails},
	}
	for _, f := range flags {
		if f.in != nil {
			*f.dst = *f.in
			changed = append(changed, f.name)
		}
	}
	if in.Preferences != nil {
		b, err := json.Marshal(in.Preferences)
		if err != nil || len(b) > MaxPreferencesBytes {
			return nil, &validate.Error{Field: "preferences", Message: "Preferences must be a JSON object of at most 4KB"}
		}
		cur.Preferences = in.Preferences
		changed = append(changed, "preferences")
	}

	if len(changed) == 0 {
		return cur, nil
	}
	if err := s.Settings.Upsert(ctx, cur, s.now().UTC()); err != nil {
		return nil, err
	}
	s.Activity.Record(ctx, userID, model.ActionSettingsUpdate, "Settings updated", meta, model.Metadata{"fields": changed})
	return cur, nil
}

// ChangeEmail moves the account to a new address after checking the
// password. The account is unverified until the link sent to the new
// address is used; the previous address is told about the change.
func (s *SettingsService) ChangeEmail(ctx context.Context, userID uint64, email, password string, meta RequestMeta) (*model.User, error) {
	if email == "" || password == "" {
		return nil, &validate.Error{Message: "Email and password are required"}
	}
	email, err := validate.Email(email)
	if err != nil {
		return nil, err
	}
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, userErr(err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrWrongPassword
	}
	if email == u.Email {
		return nil, &validate.Error{Field: "email", Message: "New email must differ from the current one"}
	}
	if other, err := s.Users.GetByEmail(ctx, email); err == nil && other.ID != u.ID {
		return nil, ErrEmailTaken
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	token, err := utils.NewOpaqueToken()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.Users.ChangeEmail(ctx, u.ID, email, utils.HashToken(token), now); err != nil {
		return nil, userErr(dupErr(err))
	}
	prev := u.Email
	u.Email = email
	u.IsVerified = false
	u.UpdatedAt = now

	s.publish(ctx, queue.Event{
		Type: queue.EventProfileUpdated, UserID: u.ID, Email: email, PreviousEmail: prev,
		Username: u.Username, Token: token, Changes: []string{"email"},
	})
	s.Activity.Record(ctx, u.ID, model.ActionEmailChange, "Email address changed", meta, model.Metadata{"previous": prev})
	return u, nil
}

func (s *SettingsService) publish(ctx context.Context, ev queue.Event) {
	if s.Events == nil {
		return
	}
	ev.OccurredAt = s.now().UTC()
	if err := s.Events.Publish(ctx, queue.NotificationsQueue, ev); err != nil {
		s.Log.Warn("publish event failed", zap.String("type", ev.Type), zap.Uint64("user_id", ev.UserID), zap.Error(err))
	}
}
