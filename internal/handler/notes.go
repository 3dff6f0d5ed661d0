package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dynamic-web-app/internal/model"
	"github.com/iliyamo/dynamic-web-app/internal/repository"
	"github.com/iliyamo/dynamic-web-app/internal/validate"
)

const (
	maxNoteTags   = 20
	maxTagLength  = 50
	defaultColour = "default"
)

// NoteHandler serves per-user notes. Every query is scoped to the caller.
type NoteHandler struct {
	Notes *repository.NoteRepo
	now   func() time.Time
}

func NewNoteHandler(notes *repository.NoteRepo) *NoteHandler {
	return &NoteHandler{Notes: notes, now: time.Now}
}

type noteReq struct {
	Title    *string   `json:"title"`
	Content  *string   `json:"content"`
	Color    *string   `json:"color"`
	IsPinned *bool     `json:"isPinned"`
	Tags     *[]string `json:"tags"`
}

// apply copies the present fields onto n after checking them.
func (r noteReq) apply(n *model.Note) error {
	if r.Title != nil {
		title := strings.TrimSpace(validate.PlainText(*r.Title))
		if err := validate.Length("title", "Title", title, 1, 255); err != nil {
			return err
		}
		n.Title = title
	}
	if r.Content != nil {
		n.Content = validate.SanitizeHTML(*r.Content)
	}
	if r.Color != nil {
		c := strings.TrimSpace(*r.Color)
		if c == "" {
			c = defaultColour
		}
		if err := validate.Length("color", "Color", c, 1, 20); err != nil {
			return err
		}
		n.Color = c
	}
	if r.IsPinned != nil {
		n.IsPinned = *r.IsPinned
	}
	if r.Tags != nil {
		if len(*r.Tags) > maxNoteTags {
			return &validate.Error{Field: "tags", Message: "A note can have at most 20 tags"}
		}
		tags := model.Tags{}
		for _, t := range *r.Tags {
			t = strings.TrimSpace(validate.PlainText(t))
			if t == "" {
				continue
			}
			if err := validate.Length("tags", "Tag", t, 1, maxTagLength); err != nil {
				return err
			}
			tags = append(tags, t)
		}
		n.Tags = tags
	}
	return nil
}

func (h *NoteHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	p := pageFrom(c, 50, 100)
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	notes, total, err := h.Notes.List(ctx, uid, strings.TrimSpace(c.QueryParam("search")), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"notes": notes, "pagination": paginate(p, total)})
}

func (h *NoteHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid note id")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	n, err := h.Notes.Get(ctx, uid, id)
	if err != nil {
		return noteErr(c, err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *NoteHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req noteReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Title == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Title is required", "field": "title"})
	}
	now := h.now().UTC()
	n := &model.Note{UserID: uid, Color: defaultColour, Tags: model.Tags{}, CreatedAt: now, UpdatedAt: now}
	if err := req.apply(n); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	if err := h.Notes.Create(ctx, n); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *NoteHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid note id")
	}
	var req noteReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	n, err := h.Notes.Get(ctx, uid, id)
	if err != nil {
		return noteErr(c, err)
	}
	if err := req.apply(n); err != nil {
		return respondError(c, err)
	}
	n.UpdatedAt = h.now().UTC()
	if err := h.Notes.Update(ctx, n); err != nil {
		return noteErr(c, err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *NoteHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid note id")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	if err := h.Notes.Delete(ctx, uid, id); err != nil {
		return noteErr(c, err)
	}
	return message(c, http.StatusOK, "Note deleted successfully")
}

func noteErr(c echo.Context, err error) error {
	if errorsIsNotFound(err) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Note not found"})
	}
	return respondError(c, err)
}
