package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dynamic-web-app/internal/documents"
)

// FileHandler serves uploaded documents and their extracted text.
type FileHandler struct {
	Docs *documents.Service
}

func NewFileHandler(d *documents.Service) *FileHandler {
	return &FileHandler{Docs: d}
}

// Upload accepts a multipart "file" field. Text extraction runs later; the
// response carries the pending document.
func (h *FileHandler) Upload(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "No file uploaded", "field": "file"})
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.Docs.MaxBytes+1))
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(c, uploadTimeout)
	defer cancel()
	d, err := h.Docs.Upload(ctx, uid, fh.Filename, data)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "File uploaded successfully", "file": documentOf(d, false)})
}

func (h *FileHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	p := pageFrom(c, 20, 100)
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	docs, total, err := h.Docs.List(ctx, uid, strings.TrimSpace(c.QueryParam("status")), p)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]documentResponse, 0, len(docs))
	for i := range docs {
		out = append(out, documentOf(&docs[i], false))
	}
	return c.JSON(http.StatusOK, echo.Map{"files": out, "pagination": paginate(p, total)})
}

// Search matches ?q= against the text of completed documents.
func (h *FileHandler) Search(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	docs, err := h.Docs.Search(ctx, uid, c.QueryParam("q"), limit)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]documentResponse, 0, len(docs))
	for i := range docs {
		out = append(out, documentOf(&docs[i], false))
	}
	return c.JSON(http.StatusOK, echo.Map{"files": out, "count": len(out)})
}

func (h *FileHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid file id")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	d, err := h.Docs.Get(ctx, uid, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, documentOf(d, true))
}

func (h *FileHandler) Download(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid file id")
	}
	ctx, cancel := withTimeout(c, uploadTimeout)
	defer cancel()

	d, rc, err := h.Docs.Open(ctx, uid, id)
	if err != nil {
		return respondError(c, err)
	}
	defer rc.Close()
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", d.OriginalName))
	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(d.SizeBytes, 10))
	return c.Stream(http.StatusOK, d.MimeType, rc)
}

func (h *FileHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid file id")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	if _, err := h.Docs.Delete(ctx, uid, id); err != nil {
		return respondError(c, err)
	}
	return message(c, http.StatusOK, "File deleted successfully")
}
