package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/dynamic-web-app/internal/model"
)

const noteColumns = "id, user_id, title, content, color, is_pinned, tags, created_at, updated_at"

// NoteRepo stores personal notes. Every query is scoped to the owning user.
type NoteRepo struct{ DB *sqlx.DB }

func NewNoteRepo(db *sqlx.DB) *NoteRepo { return &NoteRepo{DB: db} }

func (r *NoteRepo) Create(ctx context.Context, n *model.Note) error {
	if n.Tags == nil {
		n.Tags = model.Tags{}
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO notes (user_id, title, content, color, is_pinned, tags, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		n.UserID, n.Title, n.Content, n.Color, n.IsPinned, n.Tags, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	return nil
}

// Get returns the note only when it belongs to userID.
func (r *NoteRepo) Get(ctx context.Context, userID, id uint64) (*model.Note, error) {
	var n model.Note
	err := r.DB.GetContext(ctx, &n, "SELECT "+noteColumns+" FROM notes WHERE id=? AND user_id=?", id, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return &n, nil
}

// List returns the user's notes, pinned first, then most recently updated.
func (r *NoteRepo) List(ctx context.Context, userID uint64, search string, p Page) ([]model.Note, int, error) {
	cond, args := "user_id=?", []any{userID}
	if search != "" {
		cond += " AND (title LIKE ? OR content LIKE ?)"
		like := "%" + search + "%"
		args = append(args, like, like)
	}
	var total int
	if err := r.DB.GetContext(ctx, &total, "SELECT COUNT(*) FROM notes WHERE "+cond, args...); err != nil {
		return nil, 0, err
	}
	notes := []model.Note{}
	err := r.DB.SelectContext(ctx, &notes,
		"SELECT "+noteColumns+" FROM notes WHERE "+cond+" ORDER BY is_pinned DESC, updated_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, p.Limit, p.Offset())...)
	return notes, total, err
}

func (r *NoteRepo) Update(ctx context.Context, n *model.Note) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE notes SET title=?, content=?, color=?, is_pinned=?, tags=?, updated_at=?
		 WHERE id=? AND user_id=?`,
		n.Title, n.Content, n.Color, n.IsPinned, n.Tags, n.UpdatedAt, n.ID, n.UserID)
	return affectedOne(res, err)
}

func (r *NoteRepo) Delete(ctx context.Context, userID, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM notes WHERE id=? AND user_id=?", id, userID)
	return affectedOne(res, err)
}

