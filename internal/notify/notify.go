// Package notify turns account events into emails and in-app
// notifications. It runs behind a queue consumer.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/dynamic-web-app/internal/mailer"
	"github.com/iliyamo/dynamic-web-app/internal/model"
	"github.com/iliyamo/dynamic-web-app/internal/queue"
)

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
}

// SettingsReader looks up a user's email preferences.
type SettingsReader interface {
	Get(ctx context.Context, userID uint64) (*model.UserSettings, error)
}

type Notifier struct {
	Mail          mailer.Sender
	Notifications NotificationStore
	Settings      SettingsReader // nil sends every email
	Log           *zap.Logger

	SiteName  string
	ClientURL string
	ResetTTL  time.Duration

	Attempts int           // email delivery attempts per event
	Backoff  time.Duration // wait before the second attempt; doubles after
}

func New(mail mailer.Sender, store NotificationStore, log *zap.Logger, siteName, clientURL string, resetTTL time.Duration) *Notifier {
	return &Notifier{
		Mail: mail, Notifications: store, Log: log,
		SiteName: siteName, ClientURL: strings.TrimSuffix(clientURL, "/"), ResetTTL: resetTTL,
		Attempts: 3, Backoff: time.Second,
	}
}

// Email categories a user can opt out of. Verification and reset links
// are always sent.
const (
	categoryGeneral  = "general"
	categorySecurity = "security"
)

// Handle is a queue.Handler for the notifications queue. Unknown event
// types are acknowledged and dropped.
func (n *Notifier) Handle(ctx context.Context, body []byte) error {
	var ev queue.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	log := n.Log.With(zap.String("type", ev.Type), zap.Uint64("user_id", ev.UserID))
	deliver := n.sender(ctx, log)

	switch ev.Type {
	case queue.EventUserRegistered:
		n.notify(ctx, log, ev, model.NotifyInfo, "Welcome!",
			fmt.Sprintf("Welcome to %s. Please verify your email address to get started.", n.SiteName), "", nil)
		return deliver(mailer.BuildVerificationEmail(ev.Email, mailer.LinkEmailData{
			SiteName: n.SiteName,
			Username: ev.Username,
			Link:     n.link("/verify-email", ev.Token),
		}))

	case queue.EventUserVerified:
		n.notify(ctx, log, ev, model.NotifySuccess, "Email verified",
			"Your email address has been verified. You can now use every feature.", "/dashboard", nil)
		return nil

	case queue.EventPasswordResetRequested:
		n.notify(ctx, log, ev, model.NotifySecurity, "Password reset requested",
			"A password reset was requested for your account.", "", nil)
		return deliver(mailer.BuildPasswordResetEmail(ev.Email, mailer.LinkEmailData{
			SiteName:  n.SiteName,
			Username:  ev.Username,
			Link:      n.link("/reset-password", ev.Token),
			ExpiresIn: humanize(n.ResetTTL),
		}))

	case queue.EventPasswordChanged:
		n.notify(ctx, log, ev, model.NotifySecurity, "Password changed",
			"Your password was changed and all sessions were signed out.", "", nil)
		if !n.wants(ctx, log, ev.UserID, categorySecurity) {
			return nil
		}
		return deliver(mailer.BuildNoticeEmail(ev.Email, "Your password was changed", mailer.NoticeEmailData{
			SiteName: n.SiteName,
			Username: ev.Username,
			Message:  "The password for your account was just changed.",
		}))

	case queue.EventProfileUpdated:
		return n.profileUpdated(ctx, log, ev, deliver)
	}

	log.Warn("unknown event type dropped")
	return nil
}

// profileUpdated stores the in-app notice and mails a summary of the
// changed fields. An address change is a security alert: the summary also
// goes to the previous address, and a pending verification link goes to
// the new one.
func (n *Notifier) profileUpdated(ctx context.Context, log *zap.Logger, ev queue.Event, deliver func(mailer.Email, error) error) error {
	emailChanged := slices.Contains(ev.Changes, "email")
	typ, category := model.NotifyInfo, categoryGeneral
	if emailChanged {
		typ, category = model.NotifySecurity, categorySecurity
	}
	n.notify(ctx, log, ev, typ, "Profile updated", "Your profile was updated.", "/profile", model.Metadata{"changes": ev.Changes})

	var errs []error
	if emailChanged && ev.Token != "" {
		errs = append(errs, deliver(mailer.BuildVerificationEmail(ev.Email, mailer.LinkEmailData{
			SiteName: n.SiteName,
			Username: ev.Username,
			Link:     n.link("/verify-email", ev.Token),
		})))
	}
	if !n.wants(ctx, log, ev.UserID, category) {
		return errors.Join(errs...)
	}

	labels := make([]string, 0, len(ev.Changes))
	for _, c := range ev.Changes {
		labels = append(labels, changeLabel(c))
	}
	errs = append(errs, deliver(mailer.BuildNoticeEmail(ev.Email, "Your profile was updated", mailer.NoticeEmailData{
		SiteName: n.SiteName,
		Username: ev.Username,
		Message:  "The following changes were made to your account:",
		Changes:  labels,
	})))
	if ev.PreviousEmail != "" && ev.PreviousEmail != ev.Email {
		errs = append(errs, deliver(mailer.BuildNoticeEmail(ev.PreviousEmail, "Your email address was changed", mailer.NoticeEmailData{
			SiteName: n.SiteName,
			Username: ev.Username,
			Message:  fmt.Sprintf("The email address on your account was changed to %s. Messages will no longer be sent here.", ev.Email),
			Changes:  labels,
		})))
	}
	return errors.Join(errs...)
}

var changeLabels = map[string]string{
	"username":        "Username",
	"email":           "Email address",
	"bio":             "Bio",
	"location":        "Location",
	"website":         "Website",
	"github_url":      "GitHub profile",
	"linkedin_url":    "LinkedIn profile",
	"twitter_url":     "Twitter profile",
	"profile_privacy": "Profile visibility",
	"profile_picture": "Profile picture",
}

func changeLabel(field string) string {
	if l, ok := changeLabels[field]; ok {
		return l
	}
	return strings.ReplaceAll(field, "_", " ")
}

// wants reports whether the user accepts emails of the category. A failed
// lookup sends anyway.
func (n *Notifier) wants(ctx context.Context, log *zap.Logger, userID uint64, category string) bool {
	if n.Settings == nil || userID == 0 {
		return true
	}
	st, err := n.Settings.Get(ctx, userID)
	if err != nil {
		log.Warn("load email preferences failed", zap.Error(err))
		return true
	}
	if category == categorySecurity {
		return st.SecurityAlerts
	}
	return st.EmailNotifications
}

// sender returns a func that delivers a built email. A build error is
// logged and the event acknowledged, since retrying cannot fix a template.
func (n *Notifier) sender(ctx context.Context, log *zap.Logger) func(mailer.Email, error) error {
	return func(e mailer.Email, err error) error {
		if err != nil {
			log.Error("build email failed", zap.Error(err))
			return nil
		}
		return n.send(ctx, log, e)
	}
}

// notify stores an in-app notification. Failures are logged only.
func (n *Notifier) notify(ctx context.Context, log *zap.Logger, ev queue.Event, typ, title, msg, link string, meta model.Metadata) {
	if n.Notifications == nil || ev.UserID == 0 {
		return
	}
	if meta == nil {
		meta = model.Metadata{}
	}
	at := ev.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	err := n.Notifications.Create(ctx, &model.Notification{
		UserID: ev.UserID, Type: typ, Title: title, Message: msg,
		Link: link, Metadata: meta, CreatedAt: at,
	})
	if err != nil {
		log.Warn("store notification failed", zap.Error(err))
	}
}

// send delivers e, retrying with exponential backoff.
func (n *Notifier) send(ctx context.Context, log *zap.Logger, e mailer.Email) error {
	if e.To == "" {
		return nil
	}
	attempts := n.Attempts
	if attempts < 1 {
		attempts = 1
	}
	wait := n.Backoff
	var err error
	for i := 1; i <= attempts; i++ {
		if err = n.Mail.Send(ctx, e); err == nil {
			return nil
		}
		log.Warn("email send failed", zap.Int("attempt", i), zap.Error(err))
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return fmt.Errorf("email to %s: %w", e.To, err)
}

func (n *Notifier) link(path, token string) string {
	return n.ClientURL + path + "?token=" + url.QueryEscape(token)
}

func humanize(d time.Duration) string {
	switch {
	case d <= 0:
		return ""
	case d%time.Hour == 0:
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return d.String()
}
