package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/dynamic-web-app/internal/documents"
	"github.com/iliyamo/dynamic-web-app/internal/model"
	"github.com/iliyamo/dynamic-web-app/internal/repository"
	"github.com/iliyamo/dynamic-web-app/internal/service"
	"github.com/iliyamo/dynamic-web-app/internal/validate"
)

func ptr[T any](v T) *T { return &v }

func TestDecodeProfileUpdate(t *testing.T) {
	upd, field, err := decodeProfileUpdate(strings.NewReader(`{"bio":"hello","location":null,"unknown":1}`))
	require.NoError(t, err)
	assert.Empty(t, field)
	assert.Equal(t, service.Some("hello"), upd.Bio)
	assert.Equal(t, service.Optional{Set: true}, upd.Location)
	assert.False(t, upd.Website.Set)
	assert.False(t, upd.Username.Set)

	_, field, err = decodeProfileUpdate(strings.NewReader(`{"website":42}`))
	require.Error(t, err)
	assert.Equal(t, "website", field)

	_, _, err = decodeProfileUpdate(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{&validate.Error{Field: "email", Message: "Email is required"}, http.StatusBadRequest, "Email is required"},
		{service.ErrUsernameTaken, http.StatusBadRequest, "Username already exists."},
		{service.ErrEmailTaken, http.StatusBadRequest, "Email already exists."},
		{service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password."},
		{service.ErrEmailNotVerified, http.StatusForbidden, "Please verify your email before logging in."},
		{service.ErrInvalidOrExpiredToken, http.StatusUnauthorized, "Invalid or expired refresh token."},
		{fmt.Errorf("lookup: %w", service.ErrUserNotFound), http.StatusNotFound, "User not found"},
		{service.ErrLastAdmin, http.StatusConflict, "Cannot remove the last remaining admin."},
		{documents.ErrNotFound, http.StatusNotFound, "File not found"},
		{repository.ErrNotFound, http.StatusNotFound, "Not found"},
	}
	for _, tc := range cases {
		status, msg, ok := errorStatus(tc.err)
		assert.True(t, ok, tc.err.Error())
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.msg, msg)
	}

	_, _, ok := errorStatus(errors.New("disk on fire"))
	assert.False(t, ok)
}

func respond(err error) (*httptest.ResponseRecorder, map[string]any, error) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	out := respondError(c, err)
	body := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body, out
}

func TestRespondError(t *testing.T) {
	rec, body, err := respond(&validate.Error{Field: "username", Message: "Username is too short"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "username", body["field"])

	rec, body, err = respond(service.ErrEmailNotVerified)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "EmailNotVerified", body["code"])

	boom := errors.New("boom")
	rec, _, err = respond(boom)
	assert.Same(t, boom, err)
	assert.Zero(t, rec.Body.Len())
}

func TestHTTPErrorHandler(t *testing.T) {
	run := func(production bool, err error) (int, map[string]any, *observer.ObservedLogs) {
		core, logs := observer.New(zapcore.DebugLevel)
		e := echo.New()
		e.HTTPErrorHandler = NewHTTPErrorHandler(zap.New(core), production)
		e.GET("/x", func(echo.Context) error { return err })
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		body := map[string]any{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return rec.Code, body, logs
	}

	code, body, logs := run(false, errors.New("db exploded"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Internal server error", body["error"])
	assert.Equal(t, "db exploded", body["detail"])
	assert.Equal(t, 1, logs.FilterMessage("request failed").Len())

	_, body, _ = run(true, errors.New("db exploded"))
	assert.NotContains(t, body, "detail")

	code, body, logs = run(false, echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"))
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	assert.Equal(t, "nope", body["error"])
	assert.Zero(t, logs.Len())

	code, body, _ = run(true, fmt.Errorf("wrapped: %w", repository.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Not found", body["error"])
}

func TestParseDeadline(t *testing.T) {
	want := time.Date(2026, 11, 3, 17, 30, 0, 0, time.UTC)
	for _, in := range []string{"2026-11-03T17:30:00Z", "2026-11-03T18:30:00+01:00", " 2026-11-03T17:30 "} {
		got, err := parseDeadline(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}
	day, err := parseDeadline("2026-11-03")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC), day)

	_, err = parseDeadline("next tuesday")
	assert.Equal(t, "submission_deadline", validate.FieldOf(err))
}

func validTender() tenderReq {
	return tenderReq{
		Title: ptr("Road resurfacing"), Description: ptr("Resurface <i>Main St</i>"),
		ReferenceNumber: ptr("RR-1"), Organization: ptr("Roads Dept"), Category: ptr("Construction"),
		Location: ptr("Shelbyville"), SubmissionDeadline: ptr("2026-12-01"),
	}
}

func TestTenderReqApply(t *testing.T) {
	tn := &model.Tender{Currency: "USD", Status: model.TenderActive}
	req := validTender()
	req.Currency = ptr(" gbp ")
	req.ContactEmail = ptr("Buyer@Roads.GOV")
	require.NoError(t, req.apply(tn, true))
	assert.Equal(t, "GBP", tn.Currency)
	assert.Equal(t, "buyer@roads.gov", tn.ContactEmail)
	assert.Equal(t, "Resurface <i>Main St</i>", tn.Description)
	assert.Equal(t, model.TenderActive, tn.Status)

	cases := map[string]func(r *tenderReq){
		"title":               func(r *tenderReq) { r.Title = ptr("Road") },
		"description":         func(r *tenderReq) { r.Description = nil },
		"category":            func(r *tenderReq) { r.Category = ptr("Catering") },
		"status":              func(r *tenderReq) { r.Status = ptr("Open") },
		"estimated_value":     func(r *tenderReq) { r.EstimatedValue = ptr(-1.0) },
		"contact_email":       func(r *tenderReq) { r.ContactEmail = ptr("nope") },
		"submission_deadline": func(r *tenderReq) { r.SubmissionDeadline = nil },
		"reference_number":    func(r *tenderReq) { r.ReferenceNumber = nil },
	}
	for field, mutate := range cases {
		r := validTender()
		mutate(&r)
		err := r.apply(&model.Tender{}, true)
		assert.Equal(t, field, validate.FieldOf(err), field)
	}

	// partial updates only touch what is present
	tn = &model.Tender{Title: "Existing title", Category: "Other"}
	require.NoError(t, tenderReq{Status: ptr(model.TenderClosed)}.apply(tn, false))
	assert.Equal(t, "Existing title", tn.Title)
	assert.Equal(t, model.TenderClosed, tn.Status)
}

func TestNoteReqApply(t *testing.T) {
	n := &model.Note{Color: defaultColour}
	require.NoError(t, noteReq{
		Title: ptr("  <b>Todo</b> "), Color: ptr(""), Tags: &[]string{"work", " ", "<i>home</i>"},
	}.apply(n))
	assert.Equal(t, "Todo", n.Title)
	assert.Equal(t, defaultColour, n.Color)
	assert.Equal(t, model.Tags{"work", "home"}, n.Tags)

	tags := make([]string, maxNoteTags+1)
	for i := range tags {
		tags[i] = fmt.Sprintf("t%d", i)
	}
	assert.Equal(t, "tags", validate.FieldOf(noteReq{Tags: &tags}.apply(n)))
	assert.Equal(t, "title", validate.FieldOf(noteReq{Title: ptr("   ")}.apply(n)))
}
