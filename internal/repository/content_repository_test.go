package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/dynamic-web-app/internal/model"
)

func TestNotesAreScopedToOwner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	users := NewUserRepo(db)
	alice := seedUser(t, users, "alice", model.RoleUser)
	bob := seedUser(t, users, "bob", model.RoleUser)
	notes := NewNoteRepo(db)

	now := time.Now().UTC()
	n := &model.Note{UserID: alice.ID, Title: "Groceries", Content: "milk", Color: "default", Tags: model.Tags{"home"}, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, notes.Create(ctx, n))
	require.NoError(t, notes.Create(ctx, &model.Note{UserID: alice.ID, Title: "Pinned", Color: "default", IsPinned: true, CreatedAt: now, UpdatedAt: now}))

	_, err := notes.Get(ctx, bob.ID, n.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, notes.Delete(ctx, bob.ID, n.ID), ErrNotFound)

	got, err := notes.Get(ctx, alice.ID, n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Tags{"home"}, got.Tags)

	list, total, err := notes.List(ctx, alice.ID, "", Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "Pinned", list[0].Title)

	list, total, err = notes.List(ctx, alice.ID, "milk", Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, n.ID, list[0].ID)

	got.Title = "Shopping"
	require.NoError(t, notes.Update(ctx, got))
	got, err = notes.Get(ctx, alice.ID, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shopping", got.Title)
}

func TestNotificationReadState(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, NewUserRepo(db), "alice", model.RoleUser)
	repo := NewNotificationRepo(db)

	now := time.Now().UTC()
	var ids []uint64
	for _, title := range []string{"one", "two", "three"} {
		n := &model.Notification{UserID: u.ID, Type: model.NotifyInfo, Title: title, Message: title, CreatedAt: now}
		require.NoError(t, repo.Create(ctx, n))
		ids = append(ids, n.ID)
	}

	require.NoError(t, repo.MarkRead(ctx, u.ID, ids[0], now))
	assert.ErrorIs(t, repo.MarkRead(ctx, u.ID+1, ids[1], now), ErrNotFound)

	items, total, unread, err := repo.List(ctx, u.ID, true, Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, unread)
	assert.Len(t, items, 2)

	n, err := repo.MarkAllRead(ctx, u.ID, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	_, _, unread, err = repo.List(ctx, u.ID, false, Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, unread)

	require.NoError(t, repo.Delete(ctx, u.ID, ids[2]))
	assert.ErrorIs(t, repo.Delete(ctx, u.ID, ids[2]), ErrNotFound)
}

func newTender(ref, category string, deadline time.Time) *model.Tender {
	now := time.Now().UTC()
	return &model.Tender{
		Title: "Tender " + ref, Description: "Works", ReferenceNumber: ref, Organization: "Council",
		Category: category, Location: "Springfield", Currency: "USD", SubmissionDeadline: deadline,
		PublishedDate: now, Status: model.TenderActive, CreatedAt: now, UpdatedAt: now,
	}
}

func TestTenderRepo(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewTenderRepo(db)
	base := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)

	late := newTender("T-2", "Consulting", base.Add(48*time.Hour))
	soon := newTender("T-1", "Construction", base)
	require.NoError(t, repo.Create(ctx, late))
	require.NoError(t, repo.Create(ctx, soon))
	assert.ErrorIs(t, repo.Create(ctx, newTender("T-1", "Other", base)), ErrConflict)

	items, total, err := repo.List(ctx, TenderFilter{Page: Page{Page: 1, Limit: 10}})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, soon.ID, items[0].ID)

	items, total, err = repo.List(ctx, TenderFilter{Page: Page{Page: 1, Limit: 10}, Category: "Consulting"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "T-2", items[0].ReferenceNumber)

	_, total, err = repo.List(ctx, TenderFilter{Page: Page{Page: 1, Limit: 10}, Q: "t-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	require.NoError(t, repo.IncrementViews(ctx, soon.ID))
	require.NoError(t, repo.IncrementViews(ctx, soon.ID))
	got, err := repo.Get(ctx, soon.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ViewCount)

	got.Status = model.TenderClosed
	require.NoError(t, repo.Update(ctx, got))
	_, total, err = repo.List(ctx, TenderFilter{Page: Page{Page: 1, Limit: 10}, Status: model.TenderActive})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	require.NoError(t, repo.Delete(ctx, soon.ID))
	_, err = repo.Get(ctx, soon.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, NewUserRepo(db), "alice", model.RoleUser)
	repo := NewDocumentRepo(db)

	now := time.Now().UTC()
	d := &model.Document{UserID: u.ID, OriginalName: "report.txt", StorageKey: "documents/1/a.txt",
		MimeType: "text/plain", SizeBytes: 12, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Create(ctx, d))
	assert.Equal(t, model.DocPending, d.ProcessingStatus)

	pending, err := repo.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// not searchable until processed
	found, err := repo.Search(ctx, u.ID, "budget", 10)
	require.NoError(t, err)
	assert.Empty(t, found)

	require.NoError(t, repo.StartProcessing(ctx, d.ID, now))
	assert.ErrorIs(t, repo.StartProcessing(ctx, d.ID, now), ErrNotFound)
	require.NoError(t, repo.Fail(ctx, d.ID, "transient", true, now))
	require.NoError(t, repo.StartProcessing(ctx, d.ID, now))
	require.NoError(t, repo.Complete(ctx, d.ID, "annual budget summary", 1, now))

	got, err := repo.Get(ctx, u.ID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocCompleted, got.ProcessingStatus)
	assert.Equal(t, 2, got.Attempts)
	assert.True(t, got.ProcessedAt.Valid)
	assert.Empty(t, got.ErrorMessage)

	found, err = repo.Search(ctx, u.ID, "budget", 10)
	require.NoError(t, err)
	assert.Len(t, found, 1)
	found, err = repo.Search(ctx, u.ID+1, "budget", 10)
	require.NoError(t, err)
	assert.Empty(t, found)

	_, total, err := repo.List(ctx, u.ID, model.DocFailed, Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = repo.Get(ctx, u.ID+1, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Get(ctx, 0, d.ID)
	assert.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, u.ID, d.ID))
	assert.ErrorIs(t, repo.Delete(ctx, u.ID, d.ID), ErrNotFound)
}

func TestActivityFilter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, NewUserRepo(db), "alice", model.RoleUser)
	repo := NewActivityRepo(db)

	now := time.Now().UTC()
	for _, action := range []string{model.ActionRegister, model.ActionLogin, model.ActionLogin} {
		require.NoError(t, repo.Create(ctx, &model.ActivityLog{UserID: u.ID, Action: action, Description: action,
			Metadata: model.Metadata{"k": "v"}, CreatedAt: now}))
	}

	items, total, err := repo.List(ctx, u.ID, model.ActionLogin, Page{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 1)
	assert.Equal(t, "v", items[0].Metadata["k"])

	_, total, err = repo.List(ctx, u.ID, "", Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestReleaseStaleProcessing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, NewUserRepo(db), "alice", model.RoleUser)
	repo := NewDocumentRepo(db)

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	old := &model.Document{UserID: u.ID, OriginalName: "a.txt", StorageKey: "documents/1/a.txt",
		MimeType: "text/plain", CreatedAt: start, UpdatedAt: start}
	fresh := &model.Document{UserID: u.ID, OriginalName: "b.txt", StorageKey: "documents/1/b.txt",
		MimeType: "text/plain", CreatedAt: start, UpdatedAt: start}
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, fresh))
	require.NoError(t, repo.StartProcessing(ctx, old.ID, start))
	require.NoError(t, repo.StartProcessing(ctx, fresh.ID, start.Add(time.Hour)))

	n, err := repo.ReleaseStale(ctx, start.Add(30*time.Minute), start.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.Get(ctx, u.ID, old.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocPending, got.ProcessingStatus)
	got, err = repo.Get(ctx, u.ID, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocProcessing, got.ProcessingStatus)
}

func TestSettingsDefaultsAndUpsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	users := NewUserRepo(db)
	u := seedUser(t, users, "alice", model.RoleUser)
	repo := NewSettingsRepo(db)

	st, err := repo.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSettings(u.ID), *st)

	now := time.Now().UTC()
	st.Theme = model.ThemeDark
	st.EmailNotifications = false
	st.Preferences = model.Metadata{"density": "compact"}
	require.NoError(t, repo.Upsert(ctx, st, now))

	st.Timezone = "Asia/Tokyo"
	require.NoError(t, repo.Upsert(ctx, st, now.Add(time.Minute)))

	got, err := repo.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ThemeDark, got.Theme)
	assert.Equal(t, "Asia/Tokyo", got.Timezone)
	assert.False(t, got.EmailNotifications)
	assert.True(t, got.SecurityAlerts)
	assert.Equal(t, "compact", got.Preferences["density"])

	// settings go with the account
	_, err = users.Delete(ctx, u.ID)
	require.NoError(t, err)
	var rows int
	require.NoError(t, db.GetContext(ctx, &rows, "SELECT COUNT(*) FROM user_settings"))
	assert.Zero(t, rows)
}
