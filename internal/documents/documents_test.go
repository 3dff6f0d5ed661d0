package documents

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/dynamic-web-app/internal/database"
	"github.com/iliyamo/dynamic-web-app/internal/model"
	"github.com/iliyamo/dynamic-web-app/internal/queue"
	"github.com/iliyamo/dynamic-web-app/internal/repository"
	"github.com/iliyamo/dynamic-web-app/internal/storage"
	"github.com/iliyamo/dynamic-web-app/internal/validate"
)

type taskRecorder struct{ tasks []queue.DocumentTask }

func (r *taskRecorder) Publish(_ context.Context, q string, payload any) error {
	if t, ok := payload.(queue.DocumentTask); ok && q == queue.DocumentsQueue {
		r.tasks = append(r.tasks, t)
	}
	return nil
}

type fixture struct {
	svc   *Service
	proc  *Processor
	docs  *repository.DocumentRepo
	tasks *taskRecorder
	user  uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(ctx, db, "sqlite"))

	u := &model.User{Username: "owner", Email: "owner@example.com", PasswordHash: "x"}
	require.NoError(t, repository.NewUserRepo(db).Create(ctx, u))

	files, err := storage.NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)
	docs := repository.NewDocumentRepo(db)
	tasks := &taskRecorder{}
	proc := NewProcessor(docs, files, zap.NewNop())
	proc.Backoff = time.Millisecond
	return &fixture{
		svc:   NewService(docs, files, tasks, zap.NewNop(), 1<<20),
		proc:  proc,
		docs:  docs,
		tasks: tasks,
		user:  u.ID,
	}
}

func (f *fixture) run(t *testing.T, id uint64) {
	t.Helper()
	body, err := json.Marshal(queue.DocumentTask{DocumentID: id})
	require.NoError(t, err)
	require.NoError(t, f.proc.Handle(context.Background(), body))
}

func TestDetectType(t *testing.T) {
	assert.Equal(t, MimePDF, DetectType("a.pdf", []byte("%PDF-1.4\n...")))
	assert.Equal(t, MimeText, DetectType("notes.txt", []byte("hello world")))
	assert.Equal(t, MimeText, DetectType("README", []byte("hello world")))
	assert.Equal(t, "", DetectType("page.html", []byte("<html><body>hi</body></html>")))
	assert.Equal(t, "", DetectType("evil.exe", []byte("MZ\x90\x00\x03\x00\x00\x00")))
	assert.Equal(t, "", DetectType("script.sh", []byte("echo hi")))
}

func TestUploadAndProcessText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.Upload(ctx, f.user, "../../notes.txt", []byte("quarterly report for acme"))
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", d.OriginalName)
	assert.Equal(t, MimeText, d.MimeType)
	assert.True(t, strings.HasPrefix(d.StorageKey, "documents/"))
	require.Len(t, f.tasks.tasks, 1)
	assert.Equal(t, d.ID, f.tasks.tasks[0].DocumentID)

	got, err := f.svc.Get(ctx, f.user, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocPending, got.ProcessingStatus)

	f.run(t, d.ID)
	got, err = f.svc.Get(ctx, f.user, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocCompleted, got.ProcessingStatus)
	assert.Equal(t, "quarterly report for acme", got.ContentText)
	assert.Equal(t, 1, got.Attempts)
	assert.True(t, got.ProcessedAt.Valid)

	// a second delivery of the same task is a no-op
	f.run(t, d.ID)
	got, _ = f.svc.Get(ctx, f.user, d.ID)
	assert.Equal(t, 1, got.Attempts)

	found, err := f.svc.Search(ctx, f.user, "acme", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)

	_, rc, err := f.svc.Open(ctx, f.user, d.ID)
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "quarterly report for acme", string(b))
}

func TestRequeueReleasesAbandonedProcessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.svc.Upload(ctx, f.user, "notes.txt", []byte("left behind by a crashed worker"))
	require.NoError(t, err)

	// the worker claims the row and dies before finishing
	require.NoError(t, f.docs.StartProcessing(ctx, d.ID, time.Now().UTC()))
	f.tasks.tasks = nil

	f.svc.Lease = time.Hour
	n, err := f.svc.RequeuePending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.svc.Lease = 0
	f.svc.now = func() time.Time { return time.Now().Add(time.Minute) }
	n, err = f.svc.RequeuePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, f.tasks.tasks, 1)

	f.run(t, f.tasks.tasks[0].DocumentID)
	got, err := f.svc.Get(ctx, f.user, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocCompleted, got.ProcessingStatus)
	assert.Equal(t, "left behind by a crashed worker", got.ContentText)
}

// cancelAfterClaim cancels the task context as soon as the row is claimed,
// the way a shutdown does.
type cancelAfterClaim struct {
	*repository.DocumentRepo
	cancel context.CancelFunc
}

func (s cancelAfterClaim) StartProcessing(ctx context.Context, id uint64, now time.Time) error {
	err := s.DocumentRepo.StartProcessing(ctx, id, now)
	s.cancel()
	return err
}

func TestShutdownMidTaskLeavesDocumentPending(t *testing.T) {
	f := newFixture(t)
	d, err := f.svc.Upload(context.Background(), f.user, "notes.txt", []byte("interrupted"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	proc := NewProcessor(cancelAfterClaim{DocumentRepo: f.docs, cancel: cancel}, f.proc.Files, zap.NewNop())
	body, err := json.Marshal(queue.DocumentTask{DocumentID: d.ID})
	require.NoError(t, err)
	assert.ErrorIs(t, proc.Handle(ctx, body), context.Canceled)

	got, err := f.svc.Get(context.Background(), f.user, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocPending, got.ProcessingStatus)

	f.run(t, d.ID)
	got, err = f.svc.Get(context.Background(), f.user, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocCompleted, got.ProcessingStatus)
}

func TestBrokenPDFFailsAfterRetries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.svc.Upload(ctx, f.user, "broken.pdf", []byte("%PDF-1.4\nthis is not really a pdf"))
	require.NoError(t, err)
	assert.Equal(t, MimePDF, d.MimeType)

	f.run(t, d.ID)
	got, err := f.svc.Get(ctx, f.user, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocFailed, got.ProcessingStatus)
	assert.Equal(t, 3, got.Attempts)
	assert.NotEmpty(t, got.ErrorMessage)
}

func TestUploadValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, f.user, "a.txt", nil)
	assert.ErrorIs(t, err, validate.ErrInvalid)
	_, err = f.svc.Upload(ctx, f.user, "a.bin", []byte{0x00, 0x01, 0x02, 0xff})
	assert.ErrorIs(t, err, validate.ErrInvalid)
	_, err = f.svc.Upload(ctx, f.user, "big.txt", []byte(strings.Repeat("a", 2<<20)))
	assert.ErrorContains(t, err, "Maximum size is 1MB")
	_, err = f.svc.Upload(ctx, f.user, "", []byte("x"))
	assert.ErrorIs(t, err, validate.ErrInvalid)
	assert.Empty(t, f.tasks.tasks)
}

func TestOwnershipListAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.svc.Upload(ctx, f.user, "a.txt", []byte("alpha"))
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, f.user, "b.txt", []byte("beta"))
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, f.user+1, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	items, total, err := f.svc.List(ctx, f.user, model.DocPending, repository.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)
	_, _, err = f.svc.List(ctx, f.user, "bogus", repository.Page{Page: 1, Limit: 10})
	assert.ErrorIs(t, err, validate.ErrInvalid)

	n, err := f.svc.RequeuePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, f.tasks.tasks, 4)

	_, err = f.svc.Delete(ctx, f.user, d.ID)
	require.NoError(t, err)
	_, _, err = f.svc.Open(ctx, f.user, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Delete(ctx, f.user, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Search(ctx, f.user, "a", 10)
	assert.ErrorIs(t, err, validate.ErrInvalid)
}

func TestClip(t *testing.T) {
	s := strings.Repeat("é", MaxTextBytes/2+10)
	out := clip(s)
	assert.LessOrEqual(t, len(out), MaxTextBytes)
	assert.True(t, strings.HasPrefix(s, out))
	assert.Equal(t, "ab", clip("a\x00b"))
}
