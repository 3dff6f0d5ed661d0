package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/dynamic-web-app/internal/middleware"
	"github.com/iliyamo/dynamic-web-app/internal/model"
	"github.com/iliyamo/dynamic-web-app/internal/repository"
	"github.com/iliyamo/dynamic-web-app/internal/validate"
)

var tenderStatuses = []string{model.TenderActive, model.TenderClosed, model.TenderCancelled, model.TenderDraft}

// TenderHandler serves the public tender board and its admin mutations.
// Writes drop every cached listing under CachePrefix.
type TenderHandler struct {
	Tenders     *repository.TenderRepo
	Redis       *redis.Client
	CachePrefix string
	Log         *zap.Logger
	now         func() time.Time
}

func NewTenderHandler(t *repository.TenderRepo, rdb *redis.Client, cachePrefix string, log *zap.Logger) *TenderHandler {
	return &TenderHandler{Tenders: t, Redis: rdb, CachePrefix: cachePrefix, Log: log, now: time.Now}
}

type tenderReq struct {
	Title              *string  `json:"title"`
	Description        *string  `json:"description"`
	ReferenceNumber    *string  `json:"reference_number"`
	Organization       *string  `json:"organization"`
	Category           *string  `json:"category"`
	Location           *string  `json:"location"`
	EstimatedValue     *float64 `json:"estimated_value"`
	Currency           *string  `json:"currency"`
	SubmissionDeadline *string  `json:"submission_deadline"`
	Status             *string  `json:"status"`
	ContactPerson      *string  `json:"contact_person"`
	ContactEmail       *string  `json:"contact_email"`
	Requirements       *string  `json:"requirements"`
}

func parseDeadline(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &validate.Error{Field: "submission_deadline", Message: "Submission deadline must be a valid date"}
}

// apply validates the present fields and copies them onto t. With create
// set, the required fields must all be present.
func (r tenderReq) apply(t *model.Tender, create bool) error {
	text := func(field, label string, src *string, dst *string, min, max int) error {
		if src == nil {
			if create && min > 0 {
				return &validate.Error{Field: field, Message: label + " is required"}
			}
			return nil
		}
		v := validate.PlainText(*src)
		if err := validate.Length(field, label, v, min, max); err != nil {
			return err
		}
		*dst = v
		return nil
	}
	if err := validate.First(
		text("title", "Title", r.Title, &t.Title, 5, 255),
		text("reference_number", "Reference number", r.ReferenceNumber, &t.ReferenceNumber, 1, 100),
		text("organization", "Organization", r.Organization, &t.Organization, 2, 255),
		text("location", "Location", r.Location, &t.Location, 2, 255),
		text("contact_person", "Contact person", r.ContactPerson, &t.ContactPerson, 0, 255),
	); err != nil {
		return err
	}
	if r.Description != nil {
		d := validate.SanitizeHTML(*r.Description)
		if err := validate.Required("description", "Description", d); err != nil {
			return err
		}
		t.Description = d
	} else if create {
		return &validate.Error{Field: "description", Message: "Description is required"}
	}
	if r.Requirements != nil {
		t.Requirements = validate.SanitizeHTML(*r.Requirements)
	}
	if r.Category != nil {
		if err := validate.OneOf("category", "Category", *r.Category, model.TenderCategories); err != nil {
			return err
		}
		t.Category = *r.Category
	} else if create {
		return &validate.Error{Field: "category", Message: "Category is required"}
	}
	if r.Status != nil {
		if err := validate.OneOf("status", "Status", *r.Status, tenderStatuses); err != nil {
			return err
		}
		t.Status = *r.Status
	}
	if r.Currency != nil {
		cur := strings.ToUpper(strings.TrimSpace(*r.Currency))
		if err := validate.Currency(cur); err != nil {
			return err
		}
		t.Currency = cur
	}
	if r.EstimatedValue != nil {
		if *r.EstimatedValue < 0 {
			return &validate.Error{Field: "estimated_value", Message: "Estimated value must be a positive number"}
		}
		v := *r.EstimatedValue
		t.EstimatedValue = &v
	}
	if r.ContactEmail != nil {
		if strings.TrimSpace(*r.ContactEmail) == "" {
			t.ContactEmail = ""
		} else {
			e, err := validate.Email(*r.ContactEmail)
			if err != nil {
				return &validate.Error{Field: "contact_email", Message: err.Error()}
			}
			t.ContactEmail = e
		}
	}
	if r.SubmissionDeadline != nil {
		d, err := parseDeadline(*r.SubmissionDeadline)
		if err != nil {
			return err
		}
		t.SubmissionDeadline = d
	} else if create {
		return &validate.Error{Field: "submission_deadline", Message: "Submission deadline is required"}
	}
	return nil
}

// List is public and cached; filters are ?category=, ?location=, ?status=
// and ?q=.
func (h *TenderHandler) List(c echo.Context) error {
	f := repository.TenderFilter{
		Page:     pageFrom(c, 20, 100),
		Category: strings.TrimSpace(c.QueryParam("category")),
		Location: strings.TrimSpace(c.QueryParam("location")),
		Status:   strings.TrimSpace(c.QueryParam("status")),
		Q:        strings.TrimSpace(c.QueryParam("q")),
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	items, total, err := h.Tenders.List(ctx, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"tenders": items, "pagination": paginate(f.Page, total)})
}

func (h *TenderHandler) Get(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid tender id")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	t, err := h.Tenders.Get(ctx, id)
	if err != nil {
		return tenderErr(c, err)
	}
	if err := h.Tenders.IncrementViews(ctx, id); err != nil {
		h.Log.Warn("tender view count failed", zap.Uint64("tender_id", id), zap.Error(err))
	} else {
		t.ViewCount++
	}
	return c.JSON(http.StatusOK, echo.Map{"tender": t, "expired": t.IsExpired(h.now())})
}

func (h *TenderHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req tenderReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	now := h.now().UTC()
	t := &model.Tender{
		Currency: "USD", Status: model.TenderActive, PublishedDate: now,
		CreatedBy: &uid, CreatedAt: now, UpdatedAt: now,
	}
	if err := req.apply(t, true); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	if err := h.Tenders.Create(ctx, t); err != nil {
		return tenderErr(c, err)
	}
	h.invalidate(ctx)
	return c.JSON(http.StatusCreated, echo.Map{"tender": t})
}

func (h *TenderHandler) Update(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid tender id")
	}
	var req tenderReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	t, err := h.Tenders.Get(ctx, id)
	if err != nil {
		return tenderErr(c, err)
	}
	if err := req.apply(t, false); err != nil {
		return respondError(c, err)
	}
	t.UpdatedAt = h.now().UTC()
	if err := h.Tenders.Update(ctx, t); err != nil {
		return tenderErr(c, err)
	}
	h.invalidate(ctx)
	return c.JSON(http.StatusOK, echo.Map{"tender": t})
}

func (h *TenderHandler) Delete(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid tender id")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	if err := h.Tenders.Delete(ctx, id); err != nil {
		return tenderErr(c, err)
	}
	h.invalidate(ctx)
	return message(c, http.StatusOK, "Tender deleted successfully")
}

func (h *TenderHandler) invalidate(ctx context.Context) {
	if err := middleware.InvalidateCache(ctx, h.Redis, h.CachePrefix); err != nil {
		h.Log.Warn("tender cache invalidation failed", zap.Error(err))
	}
}

func tenderErr(c echo.Context, err error) error {
	switch {
	case errorsIsNotFound(err):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Tender not found"})
	case errorsIsConflict(err):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Reference number already exists", "field": "reference_number"})
	}
	return respondError(c, err)
}
