package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/dynamic-web-app/internal/model"
)

const documentColumns = `id, user_id, original_name, storage_key, mime_type, size_bytes, processing_status,
	content_text, page_count, error_message, attempts, processed_at, created_at, updated_at`

type DocumentRepo struct{ DB *sqlx.DB }

func NewDocumentRepo(db *sqlx.DB) *DocumentRepo { return &DocumentRepo{DB: db} }

// Create inserts a document in the pending state.
func (r *DocumentRepo) Create(ctx context.Context, d *model.Document) error {
	d.ProcessingStatus = model.DocPending
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO documents (user_id, original_name, storage_key, mime_type, size_bytes,
			processing_status, content_text, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		d.UserID, d.OriginalName, d.StorageKey, d.MimeType, d.SizeBytes,
		d.ProcessingStatus, "", d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = uint64(id)
	return nil
}

// Get returns a document by id. A zero userID skips the ownership check.
func (r *DocumentRepo) Get(ctx context.Context, userID, id uint64) (*model.Document, error) {
	q, args := "SELECT "+documentColumns+" FROM documents WHERE id=?", []any{id}
	if userID != 0 {
		q += " AND user_id=?"
		args = append(args, userID)
	}
	var d model.Document
	if err := r.DB.GetContext(ctx, &d, q, args...); err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// List returns the user's documents, newest first, optionally by status.
func (r *DocumentRepo) List(ctx context.Context, userID uint64, status string, p Page) ([]model.Document, int, error) {
	cond, args := "user_id=?", []any{userID}
	if status != "" {
		cond += " AND processing_status=?"
		args = append(args, status)
	}
	var total int
	if err := r.DB.GetContext(ctx, &total, "SELECT COUNT(*) FROM documents WHERE "+cond, args...); err != nil {
		return nil, 0, err
	}
	docs := []model.Document{}
	err := r.DB.SelectContext(ctx, &docs,
		"SELECT "+documentColumns+" FROM documents WHERE "+cond+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, p.Limit, p.Offset())...)
	return docs, total, err
}

// Search matches q against the extracted text and name of completed documents.
func (r *DocumentRepo) Search(ctx context.Context, userID uint64, q string, limit int) ([]model.Document, error) {
	like := "%" + q + "%"
	docs := []model.Document{}
	err := r.DB.SelectContext(ctx, &docs,
		"SELECT "+documentColumns+` FROM documents
		 WHERE user_id=? AND processing_status=? AND (content_text LIKE ? OR original_name LIKE ?)
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, model.DocCompleted, like, like, limit)
	return docs, err
}

// StartProcessing moves a pending document to processing and counts the
// attempt. It returns ErrNotFound if the document is not pending.
func (r *DocumentRepo) StartProcessing(ctx context.Context, id uint64, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE documents SET processing_status=?, attempts=attempts+1, updated_at=?
		 WHERE id=? AND processing_status=?`,
		model.DocProcessing, now, id, model.DocPending)
	return affectedOne(res, err)
}

// Complete stores the extracted text and marks the document completed.
func (r *DocumentRepo) Complete(ctx context.Context, id uint64, text string, pages int, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE documents SET processing_status=?, content_text=?, page_count=?, error_message='',
			processed_at=?, updated_at=?
		 WHERE id=?`,
		model.DocCompleted, text, pages, now, now, id)
	return affectedOne(res, err)
}

// Fail records a processing error. With retry the document goes back to
// pending for another attempt; otherwise it is marked failed.
func (r *DocumentRepo) Fail(ctx context.Context, id uint64, msg string, retry bool, now time.Time) error {
	status := model.DocFailed
	if retry {
		status = model.DocPending
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE documents SET processing_status=?, error_message=?, updated_at=? WHERE id=?`,
		status, truncate(msg, 1000), now, id)
	return affectedOne(res, err)
}

// ReleaseStale returns documents stuck in processing since before cutoff to
// pending, so a worker that died mid-task does not strand them.
func (r *DocumentRepo) ReleaseStale(ctx context.Context, cutoff, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE documents SET processing_status=?, updated_at=? WHERE processing_status=? AND updated_at<?`,
		model.DocPending, now, model.DocProcessing, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Pending lists documents waiting for processing, oldest first.
func (r *DocumentRepo) Pending(ctx context.Context, limit int) ([]model.Document, error) {
	docs := []model.Document{}
	err := r.DB.SelectContext(ctx, &docs,
		"SELECT "+documentColumns+" FROM documents WHERE processing_status=? ORDER BY created_at ASC, id ASC LIMIT ?",
		model.DocPending, limit)
	return docs, err
}

func (r *DocumentRepo) Delete(ctx context.Context, userID, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM documents WHERE id=? AND user_id=?", id, userID)
	return affectedOne(res, err)
}
