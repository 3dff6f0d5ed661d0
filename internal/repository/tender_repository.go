package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/dynamic-web-app/internal/model"
)

const tenderColumns = `id, title, description, reference_number, organization, category, location,
	estimated_value, currency, submission_deadline, published_date, status, contact_person,
	contact_email, requirements, view_count, created_by, created_at, updated_at`

type TenderRepo struct{ DB *sqlx.DB }

func NewTenderRepo(db *sqlx.DB) *TenderRepo { return &TenderRepo{DB: db} }

// TenderFilter narrows the public tender listing. Q matches title,
// description, organization or reference number.
type TenderFilter struct {
	Page
	Category string
	Location string
	Status   string
	Q        string
}

func (r *TenderRepo) Create(ctx context.Context, t *model.Tender) error {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO tenders (title, description, reference_number, organization, category, location,
			estimated_value, currency, submission_deadline, published_date, status, contact_person,
			contact_email, requirements, view_count, created_by, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.Title, t.Description, t.ReferenceNumber, t.Organization, t.Category, t.Location,
		t.EstimatedValue, t.Currency, t.SubmissionDeadline, t.PublishedDate, t.Status, t.ContactPerson,
		t.ContactEmail, t.Requirements, 0, t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

func (r *TenderRepo) Get(ctx context.Context, id uint64) (*model.Tender, error) {
	var t model.Tender
	if err := r.DB.GetContext(ctx, &t, "SELECT "+tenderColumns+" FROM tenders WHERE id=?", id); err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// IncrementViews bumps the view counter of a tender.
func (r *TenderRepo) IncrementViews(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE tenders SET view_count=view_count+1 WHERE id=?", id)
	return affectedOne(res, err)
}

// List returns tenders ordered by nearest submission deadline.
func (r *TenderRepo) List(ctx context.Context, f TenderFilter) ([]model.Tender, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		where = append(where, "category=?")
		args = append(args, f.Category)
	}
	if f.Location != "" {
		where = append(where, "location LIKE ?")
		args = append(args, "%"+f.Location+"%")
	}
	if f.Status != "" {
		where = append(where, "status=?")
		args = append(args, f.Status)
	}
	if q := strings.TrimSpace(f.Q); q != "" {
		where = append(where, "(title LIKE ? OR description LIKE ? OR organization LIKE ? OR reference_number LIKE ?)")
		like := "%" + q + "%"
		args = append(args, like, like, like, like)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}
	var total int
	if err := r.DB.GetContext(ctx, &total, "SELECT COUNT(*) FROM tenders"+cond, args...); err != nil {
		return nil, 0, err
	}
	items := []model.Tender{}
	err := r.DB.SelectContext(ctx, &items,
		"SELECT "+tenderColumns+" FROM tenders"+cond+" ORDER BY submission_deadline ASC, id ASC LIMIT ? OFFSET ?",
		append(args, f.Limit, f.Offset())...)
	return items, total, err
}

func (r *TenderRepo) Update(ctx context.Context, t *model.Tender) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE tenders SET title=?, description=?, reference_number=?, organization=?, category=?,
			location=?, estimated_value=?, currency=?, submission_deadline=?, status=?, contact_person=?,
			contact_email=?, requirements=?, updated_at=?
		 WHERE id=?`,
		t.Title, t.Description, t.ReferenceNumber, t.Organization, t.Category,
		t.Location, t.EstimatedValue, t.Currency, t.SubmissionDeadline, t.Status, t.ContactPerson,
		t.ContactEmail, t.Requirements, t.UpdatedAt, t.ID)
	if err != nil && isUniqueViolation(err) {
		return ErrConflict
	}
	return affectedOne(res, err)
}

func (r *TenderRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM tenders WHERE id=?", id)
	return affectedOne(res, err)
}
