package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/dynamic-web-app/internal/mailer"
	"github.com/iliyamo/dynamic-web-app/internal/model"
	"github.com/iliyamo/dynamic-web-app/internal/queue"
)

type fakeSender struct {
	fail  int
	calls int
	sent  []mailer.Email
}

func (f *fakeSender) Send(_ context.Context, e mailer.Email) error {
	f.calls++
	if f.calls <= f.fail {
		return errors.New("smtp down")
	}
	f.sent = append(f.sent, e)
	return nil
}

type fakeStore struct{ items []model.Notification }

func (f *fakeStore) Create(_ context.Context, n *model.Notification) error {
	f.items = append(f.items, *n)
	return nil
}

func newNotifier(s *fakeSender, st *fakeStore) *Notifier {
	n := New(s, st, zap.NewNop(), "Dynamic Web App", "http://app.test/", time.Hour)
	n.Backoff = time.Millisecond
	return n
}

func body(t *testing.T, ev queue.Event) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return b
}

func TestRegisteredSendsVerificationLink(t *testing.T) {
	s, st := &fakeSender{}, &fakeStore{}
	n := newNotifier(s, st)
	err := n.Handle(context.Background(), body(t, queue.Event{
		Type: queue.EventUserRegistered, UserID: 3, Email: "a@example.com", Username: "alice", Token: "a+b",
	}))
	require.NoError(t, err)
	require.Len(t, s.sent, 1)
	assert.Equal(t, "a@example.com", s.sent[0].To)
	assert.Contains(t, s.sent[0].TextBody, "http://app.test/verify-email?token=a%2Bb")
	require.Len(t, st.items, 1)
	assert.Equal(t, model.NotifyInfo, st.items[0].Type)
	assert.Equal(t, uint64(3), st.items[0].UserID)
}

func TestResetEmailCarriesExpiry(t *testing.T) {
	s, st := &fakeSender{}, &fakeStore{}
	n := newNotifier(s, st)
	require.NoError(t, n.Handle(context.Background(), body(t, queue.Event{
		Type: queue.EventPasswordResetRequested, UserID: 1, Email: "b@example.com", Username: "bob", Token: "tok",
	})))
	require.Len(t, s.sent, 1)
	assert.Contains(t, s.sent[0].TextBody, "reset-password?token=tok")
	assert.Contains(t, s.sent[0].TextBody, "1 hour")
	assert.Equal(t, model.NotifySecurity, st.items[0].Type)
}

func TestRetriesThenSucceeds(t *testing.T) {
	s, st := &fakeSender{fail: 2}, &fakeStore{}
	n := newNotifier(s, st)
	require.NoError(t, n.Handle(context.Background(), body(t, queue.Event{
		Type: queue.EventPasswordChanged, UserID: 1, Email: "c@example.com", Username: "carol",
	})))
	assert.Equal(t, 3, s.calls)
	assert.Len(t, s.sent, 1)
}

func TestGivesUpAfterAttempts(t *testing.T) {
	s, st := &fakeSender{fail: 10}, &fakeStore{}
	n := newNotifier(s, st)
	err := n.Handle(context.Background(), body(t, queue.Event{
		Type: queue.EventPasswordChanged, UserID: 1, Email: "c@example.com",
	}))
	assert.ErrorContains(t, err, "smtp down")
	assert.Equal(t, 3, s.calls)
	assert.Len(t, st.items, 1)
}

func TestProfileUpdatedMailsChangeSummary(t *testing.T) {
	s, st := &fakeSender{}, &fakeStore{}
	n := newNotifier(s, st)
	require.NoError(t, n.Handle(context.Background(), body(t, queue.Event{
		Type: queue.EventProfileUpdated, UserID: 1, Email: "d@example.com", Username: "dora",
		Changes: []string{"bio", "github_url"},
	})))
	require.Len(t, s.sent, 1)
	assert.Equal(t, "d@example.com", s.sent[0].To)
	assert.Equal(t, "Your profile was updated", s.sent[0].Subject)
	assert.Contains(t, s.sent[0].TextBody, "  - Bio\n")
	assert.Contains(t, s.sent[0].TextBody, "  - GitHub profile\n")
	require.Len(t, st.items, 1)
	assert.Equal(t, model.NotifyInfo, st.items[0].Type)
	assert.Equal(t, []string{"bio", "github_url"}, st.items[0].Metadata["changes"])
}

func TestEmailChangeAlertsBothAddresses(t *testing.T) {
	s, st := &fakeSender{}, &fakeStore{}
	n := newNotifier(s, st)
	require.NoError(t, n.Handle(context.Background(), body(t, queue.Event{
		Type: queue.EventProfileUpdated, UserID: 1, Username: "dora",
		Email: "new@example.com", PreviousEmail: "old@example.com", Changes: []string{"email"},
	})))
	require.Len(t, s.sent, 2)
	assert.Equal(t, "new@example.com", s.sent[0].To)
	assert.Contains(t, s.sent[0].TextBody, "  - Email address\n")
	assert.Equal(t, "old@example.com", s.sent[1].To)
	assert.Equal(t, "Your email address was changed", s.sent[1].Subject)
	assert.Contains(t, s.sent[1].TextBody, "new@example.com")
	assert.Equal(t, model.NotifySecurity, st.items[0].Type)
}

func TestEmailChangeWithTokenSendsVerification(t *testing.T) {
	s, st := &fakeSender{}, &fakeStore{}
	n := newNotifier(s, st)
	require.NoError(t, n.Handle(context.Background(), body(t, queue.Event{
		Type: queue.EventProfileUpdated, UserID: 1, Username: "dora", Token: "tok",
		Email: "new@example.com", PreviousEmail: "old@example.com", Changes: []string{"email"},
	})))
	require.Len(t, s.sent, 3)
	assert.Equal(t, "new@example.com", s.sent[0].To)
	assert.Contains(t, s.sent[0].TextBody, "verify-email?token=tok")
	assert.Equal(t, "old@example.com", s.sent[2].To)
}

type fakeSettings map[uint64]model.UserSettings

func (f fakeSettings) Get(_ context.Context, id uint64) (*model.UserSettings, error) {
	st, ok := f[id]
	if !ok {
		return nil, errors.New("db down")
	}
	return &st, nil
}

func TestPreferencesGateEmails(t *testing.T) {
	quiet := model.DefaultSettings(1)
	quiet.EmailNotifications = false
	quiet.SecurityAlerts = false
	s, st := &fakeSender{}, &fakeStore{}
	n := newNotifier(s, st)
	n.Settings = fakeSettings{1: quiet}
	ctx := context.Background()

	require.NoError(t, n.Handle(ctx, body(t, queue.Event{
		Type: queue.EventProfileUpdated, UserID: 1, Email: "q@example.com", Changes: []string{"bio"},
	})))
	require.NoError(t, n.Handle(ctx, body(t, queue.Event{
		Type: queue.EventPasswordChanged, UserID: 1, Email: "q@example.com",
	})))
	assert.Empty(t, s.sent)
	assert.Len(t, st.items, 2)

	// links the user asked for always go out
	require.NoError(t, n.Handle(ctx, body(t, queue.Event{
		Type: queue.EventPasswordResetRequested, UserID: 1, Email: "q@example.com", Token: "t",
	})))
	require.NoError(t, n.Handle(ctx, body(t, queue.Event{
		Type: queue.EventProfileUpdated, UserID: 1, Email: "q2@example.com", PreviousEmail: "q@example.com",
		Token: "v", Changes: []string{"email"},
	})))
	require.Len(t, s.sent, 2)
	assert.Contains(t, s.sent[0].TextBody, "reset-password?token=t")
	assert.Contains(t, s.sent[1].TextBody, "verify-email?token=v")
}

func TestSecurityAlertsOnlyGateSecurityMail(t *testing.T) {
	prefs := model.DefaultSettings(1)
	prefs.SecurityAlerts = false
	s, st := &fakeSender{}, &fakeStore{}
	n := newNotifier(s, st)
	n.Settings = fakeSettings{1: prefs}

	require.NoError(t, n.Handle(context.Background(), body(t, queue.Event{
		Type: queue.EventProfileUpdated, UserID: 1, Email: "q@example.com", Changes: []string{"location"},
	})))
	require.NoError(t, n.Handle(context.Background(), body(t, queue.Event{
		Type: queue.EventPasswordChanged, UserID: 1, Email: "q@example.com",
	})))
	require.Len(t, s.sent, 1)
	assert.Equal(t, "Your profile was updated", s.sent[0].Subject)
}

func TestPreferenceLookupFailureStillSends(t *testing.T) {
	s, st := &fakeSender{}, &fakeStore{}
	n := newNotifier(s, st)
	n.Settings = fakeSettings{}
	require.NoError(t, n.Handle(context.Background(), body(t, queue.Event{
		Type: queue.EventPasswordChanged, UserID: 7, Email: "c@example.com",
	})))
	assert.Len(t, s.sent, 1)
}

func TestBuildFailureIsLoggedAndAcknowledged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	s := &fakeSender{}
	n := newNotifier(s, &fakeStore{})
	deliver := n.sender(context.Background(), zap.New(core))

	assert.NoError(t, deliver(mailer.Email{}, errors.New("render notice email: bad field")))
	assert.Zero(t, s.calls)
	require.Equal(t, 1, logs.FilterMessage("build email failed").Len())

	assert.NoError(t, deliver(mailer.Email{To: "x@example.com", Subject: "hi"}, nil))
	assert.Equal(t, 1, s.calls)
}

func TestUnknownAndMalformed(t *testing.T) {
	s, st := &fakeSender{}, &fakeStore{}
	n := newNotifier(s, st)
	assert.NoError(t, n.Handle(context.Background(), body(t, queue.Event{Type: "something.else"})))
	assert.Error(t, n.Handle(context.Background(), []byte("{")))
	assert.Empty(t, s.sent)
	assert.Empty(t, st.items)
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "1 hour", humanize(time.Hour))
	assert.Equal(t, "2 hours", humanize(2*time.Hour))
	assert.Equal(t, "30 minutes", humanize(30*time.Minute))
	assert.Equal(t, "", humanize(0))
}
