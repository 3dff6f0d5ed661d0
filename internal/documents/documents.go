// Package documents stores user uploads and extracts their text in the
// background.
package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/dynamic-web-app/internal/model"
	"github.com/iliyamo/dynamic-web-app/internal/queue"
	"github.com/iliyamo/dynamic-web-app/internal/repository"
	"github.com/iliyamo/dynamic-web-app/internal/storage"
	"github.com/iliyamo/dynamic-web-app/internal/validate"
)

const (
	MimePDF  = "application/pdf"
	MimeText = "text/plain"
)

var ErrNotFound = errors.New("document not found")

// Store is the document persistence used by the service and processor.
type Store interface {
	Create(ctx context.Context, d *model.Document) error
	Get(ctx context.Context, userID, id uint64) (*model.Document, error)
	List(ctx context.Context, userID uint64, status string, p repository.Page) ([]model.Document, int, error)
	Search(ctx context.Context, userID uint64, q string, limit int) ([]model.Document, error)
	StartProcessing(ctx context.Context, id uint64, now time.Time) error
	Complete(ctx context.Context, id uint64, text string, pages int, now time.Time) error
	Fail(ctx context.Context, id uint64, msg string, retry bool, now time.Time) error
	Pending(ctx context.Context, limit int) ([]model.Document, error)
	ReleaseStale(ctx context.Context, cutoff, now time.Time) (int64, error)
	Delete(ctx context.Context, userID, id uint64) error
}

// DefaultLease is how long a document may stay in processing before
// RequeuePending considers its worker gone.
const DefaultLease = 10 * time.Minute

type Service struct {
	Docs     Store
	Files    storage.Store
	Tasks    queue.Publisher
	Log      *zap.Logger
	MaxBytes int64
	// Lease bounds how long a row may sit in processing. Zero releases every
	// processing row, which is right when this process is the only worker.
	Lease time.Duration

	now func() time.Time
}

func NewService(docs Store, files storage.Store, tasks queue.Publisher, log *zap.Logger, maxBytes int64) *Service {
	return &Service{Docs: docs, Files: files, Tasks: tasks, Log: log, MaxBytes: maxBytes, Lease: DefaultLease, now: time.Now}
}

// DetectType returns the accepted MIME type of data, or "" if the content
// is neither PDF nor plain text.
func DetectType(name string, data []byte) string {
	ct := http.DetectContentType(data)
	switch {
	case ct == MimePDF:
		return MimePDF
	case strings.HasPrefix(ct, "text/plain"):
		ext := strings.ToLower(filepath.Ext(name))
		if ext == "" || ext == ".txt" || ext == ".text" || ext == ".md" || ext == ".csv" {
			return MimeText
		}
	}
	return ""
}

// Upload stores data for userID, creates a pending document and queues it
// for text extraction. A failure to queue leaves the row pending; the
// startup sweep picks it up again.
func (s *Service) Upload(ctx context.Context, userID uint64, name string, data []byte) (*model.Document, error) {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return nil, &validate.Error{Field: "file", Message: "File name is required"}
	}
	if len(data) == 0 {
		return nil, &validate.Error{Field: "file", Message: "File is empty"}
	}
	if s.MaxBytes > 0 && int64(len(data)) > s.MaxBytes {
		return nil, &validate.Error{Field: "file", Message: fmt.Sprintf("File too large. Maximum size is %dMB", s.MaxBytes>>20)}
	}
	mime := DetectType(name, data)
	if mime == "" {
		return nil, &validate.Error{Field: "file", Message: "Only PDF and plain text files are allowed"}
	}
	if len(name) > 255 {
		name = name[:255]
	}

	ext := ".txt"
	if mime == MimePDF {
		ext = ".pdf"
	}
	key := fmt.Sprintf("documents/%d/%s%s", userID, uuid.NewString(), ext)
	if err := s.Files.Put(ctx, key, bytes.NewReader(data), int64(len(data)), mime); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	now := s.now().UTC()
	d := &model.Document{
		UserID:       userID,
		OriginalName: name,
		StorageKey:   key,
		MimeType:     mime,
		SizeBytes:    int64(len(data)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Docs.Create(ctx, d); err != nil {
		if derr := s.Files.Delete(ctx, key); derr != nil {
			s.Log.Warn("remove orphaned upload failed", zap.String("key", key), zap.Error(derr))
		}
		return nil, err
	}
	s.enqueue(ctx, d)
	return d, nil
}

func (s *Service) enqueue(ctx context.Context, d *model.Document) {
	if s.Tasks == nil {
		return
	}
	task := queue.DocumentTask{DocumentID: d.ID, UserID: d.UserID, EnqueuedAt: s.now().UTC()}
	if err := s.Tasks.Publish(ctx, queue.DocumentsQueue, task); err != nil {
		s.Log.Warn("enqueue document task failed", zap.Uint64("document_id", d.ID), zap.Error(err))
	}
}

// RequeuePending releases documents whose processing lease ran out and
// queues every document waiting for processing.
func (s *Service) RequeuePending(ctx context.Context) (int, error) {
	now := s.now().UTC()
	released, err := s.Docs.ReleaseStale(ctx, now.Add(-s.Lease), now)
	if err != nil {
		return 0, fmt.Errorf("release stale documents: %w", err)
	}
	if released > 0 {
		s.Log.Info("released stale documents", zap.Int64("count", released))
	}
	docs, err := s.Docs.Pending(ctx, 500)
	if err != nil {
		return 0, err
	}
	for i := range docs {
		s.enqueue(ctx, &docs[i])
	}
	return len(docs), nil
}

func (s *Service) Get(ctx context.Context, userID, id uint64) (*model.Document, error) {
	d, err := s.Docs.Get(ctx, userID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return d, err
}

func (s *Service) List(ctx context.Context, userID uint64, status string, p repository.Page) ([]model.Document, int, error) {
	if status != "" {
		if err := validate.OneOf("status", "Status", status,
			[]string{model.DocPending, model.DocProcessing, model.DocCompleted, model.DocFailed}); err != nil {
			return nil, 0, err
		}
	}
	return s.Docs.List(ctx, userID, status, p)
}

func (s *Service) Search(ctx context.Context, userID uint64, q string, limit int) ([]model.Document, error) {
	q = strings.TrimSpace(q)
	if err := validate.Length("q", "Search query", q, 2, 100); err != nil {
		return nil, err
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}
	return s.Docs.Search(ctx, userID, q, limit)
}

// Open returns the stored bytes of a document owned by userID.
func (s *Service) Open(ctx context.Context, userID, id uint64) (*model.Document, io.ReadCloser, error) {
	d, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.Files.Open(ctx, d.StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return d, rc, nil
}

// Delete removes the row and then the stored file.
func (s *Service) Delete(ctx context.Context, userID, id uint64) (*model.Document, error) {
	d, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.Docs.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := s.Files.Delete(ctx, d.StorageKey); err != nil {
		s.Log.Warn("delete document file failed", zap.String("key", d.StorageKey), zap.Error(err))
	}
	return d, nil
}
