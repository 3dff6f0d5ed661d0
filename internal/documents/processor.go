package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/iliyamo/dynamic-web-app/internal/queue"
	"github.com/iliyamo/dynamic-web-app/internal/repository"
	"github.com/iliyamo/dynamic-web-app/internal/storage"
)

// MaxTextBytes caps the extracted text stored per document.
const MaxTextBytes = 4 << 20

// Processor extracts text from queued documents. Each task gets up to
// MaxAttempts tries; between tries the row returns to pending.
type Processor struct {
	Docs        Store
	Files       storage.Store
	Log         *zap.Logger
	MaxAttempts int
	Backoff     time.Duration

	now func() time.Time
}

func NewProcessor(docs Store, files storage.Store, log *zap.Logger) *Processor {
	return &Processor{Docs: docs, Files: files, Log: log, MaxAttempts: 3, Backoff: 2 * time.Second, now: time.Now}
}

// Handle is a queue.Handler for the documents queue. Extraction failures
// are recorded on the row and acknowledged; only storage errors on the
// status updates are returned.
func (p *Processor) Handle(ctx context.Context, body []byte) error {
	var task queue.DocumentTask
	if err := json.Unmarshal(body, &task); err != nil {
		return fmt.Errorf("decode task: %w", err)
	}
	log := p.Log.With(zap.Uint64("document_id", task.DocumentID))

	wait := p.Backoff
	for attempt := 1; ; attempt++ {
		if err := p.Docs.StartProcessing(ctx, task.DocumentID, p.now().UTC()); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				log.Debug("document not pending, skipping")
				return nil
			}
			return err
		}
		text, pages, err := p.extract(ctx, task.DocumentID)
		// the row is ours now; its final status must land even during shutdown
		done := context.WithoutCancel(ctx)
		if err == nil {
			if err := p.Docs.Complete(done, task.DocumentID, text, pages, p.now().UTC()); err != nil {
				return err
			}
			log.Info("document processed", zap.Int("pages", pages), zap.Int("attempt", attempt))
			return nil
		}

		retry := attempt < p.MaxAttempts || ctx.Err() != nil
		log.Warn("document processing failed", zap.Int("attempt", attempt), zap.Bool("retry", retry), zap.Error(err))
		if ferr := p.Docs.Fail(done, task.DocumentID, err.Error(), retry, p.now().UTC()); ferr != nil {
			return ferr
		}
		if !retry {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
}

func (p *Processor) extract(ctx context.Context, id uint64) (string, int, error) {
	d, err := p.Docs.Get(ctx, 0, id)
	if err != nil {
		return "", 0, err
	}
	rc, err := p.Files.Open(ctx, d.StorageKey)
	if err != nil {
		return "", 0, fmt.Errorf("open file: %w", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return "", 0, fmt.Errorf("read file: %w", err)
	}

	switch d.MimeType {
	case MimeText:
		if !utf8.Valid(data) {
			return "", 0, errors.New("file is not valid UTF-8 text")
		}
		return clip(string(data)), 1, nil
	case MimePDF:
		return extractPDF(data)
	}
	return "", 0, fmt.Errorf("unsupported mime type %q", d.MimeType)
}

func extractPDF(data []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", 0, fmt.Errorf("extract pdf text: %w", err)
	}
	var buf strings.Builder
	if _, err := io.Copy(&buf, io.LimitReader(plain, MaxTextBytes+utf8.UTFMax)); err != nil {
		return "", 0, fmt.Errorf("read pdf text: %w", err)
	}
	return clip(buf.String()), r.NumPage(), nil
}

// clip trims s to MaxTextBytes without splitting a rune and drops NULs,
// which MySQL text columns reject.
func clip(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	if len(s) <= MaxTextBytes {
		return s
	}
	cut := MaxTextBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
