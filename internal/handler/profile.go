package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dynamic-web-app/internal/middleware"
	"github.com/iliyamo/dynamic-web-app/internal/model"
	"github.com/iliyamo/dynamic-web-app/internal/service"
)

// ProfileHandler serves the caller's own profile and public profiles.
type ProfileHandler struct {
	Profiles      *service.ProfileService
	MaxImageBytes int64
}

func NewProfileHandler(p *service.ProfileService, maxImageBytes int64) *ProfileHandler {
	return &ProfileHandler{Profiles: p, MaxImageBytes: maxImageBytes}
}

func (h *ProfileHandler) profileOf(u *model.User) profileResponse {
	return profileResponse{
		ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role, IsVerified: u.IsVerified,
		Bio: u.Bio, Location: u.Location, Website: u.Website,
		GithubURL: u.GithubURL, LinkedinURL: u.LinkedinURL, TwitterURL: u.TwitterURL,
		ProfilePicture:    h.pictureURL(u.ProfilePicture),
		PictureVariants:   h.Profiles.PictureURLs(u.ProfilePicture),
		ProfilePrivacy:    u.ProfilePrivacy,
		ProfileCompletion: u.ProfileCompletion,
		LastLogin:         nullTime(u.LastLogin.Time, u.LastLogin.Valid),
		LoginCount:        u.LoginCount,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

func (h *ProfileHandler) pictureURL(key string) *string {
	if key == "" {
		return nil
	}
	return nullString(h.Profiles.PictureURLs(key)["original"])
}

func (h *ProfileHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	u, err := h.Profiles.Get(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, h.profileOf(u))
}

// profileFields maps request keys to the update field they set.
var profileFields = map[string]func(*service.ProfileUpdate) *service.Optional{
	"username":        func(u *service.ProfileUpdate) *service.Optional { return &u.Username },
	"email":           func(u *service.ProfileUpdate) *service.Optional { return &u.Email },
	"bio":             func(u *service.ProfileUpdate) *service.Optional { return &u.Bio },
	"location":        func(u *service.ProfileUpdate) *service.Optional { return &u.Location },
	"website":         func(u *service.ProfileUpdate) *service.Optional { return &u.Website },
	"github_url":      func(u *service.ProfileUpdate) *service.Optional { return &u.GithubURL },
	"linkedin_url":    func(u *service.ProfileUpdate) *service.Optional { return &u.LinkedinURL },
	"twitter_url":     func(u *service.ProfileUpdate) *service.Optional { return &u.TwitterURL },
	"profile_privacy": func(u *service.ProfileUpdate) *service.Optional { return &u.ProfilePrivacy },
}

// decodeProfileUpdate keeps track of which keys were present: an absent key
// leaves the field alone, null or "" clears it.
func decodeProfileUpdate(r io.Reader) (service.ProfileUpdate, string, error) {
	var raw map[string]json.RawMessage
	var upd service.ProfileUpdate
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return upd, "", err
	}
	for key, val := range raw {
		field, ok := profileFields[key]
		if !ok {
			continue
		}
		opt := field(&upd)
		if string(val) == "null" {
			*opt = service.Optional{Set: true}
			continue
		}
		var s string
		if err := json.Unmarshal(val, &s); err != nil {
			return upd, key, err
		}
		*opt = service.Some(s)
	}
	return upd, "", nil
}

func (h *ProfileHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	upd, field, err := decodeProfileUpdate(c.Request().Body)
	if err != nil {
		if field != "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": field + " must be a string", "field": field})
		}
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	u, err := h.Profiles.Update(ctx, uid, upd, requestMeta(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Profile updated successfully", "data": h.profileOf(u)})
}

func (h *ProfileHandler) Stats(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	st, err := h.Profiles.Stats(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// UploadPicture accepts a multipart "picture" field.
func (h *ProfileHandler) UploadPicture(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	fh, err := c.FormFile("picture")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "No file uploaded", "field": "profile_picture"})
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	// one byte past the limit is enough for the size check to fire
	data, err := io.ReadAll(io.LimitReader(f, h.MaxImageBytes+1))
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(c, uploadTimeout)
	defer cancel()
	u, err := h.Profiles.UploadPicture(ctx, uid, data, requestMeta(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":         "Profile picture uploaded successfully",
		"profile_picture": h.pictureURL(u.ProfilePicture),
		"variants":        h.Profiles.PictureURLs(u.ProfilePicture),
	})
}

func (h *ProfileHandler) DeletePicture(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	if _, err := h.Profiles.DeletePicture(ctx, uid, requestMeta(c)); err != nil {
		return respondError(c, err)
	}
	return message(c, http.StatusOK, "Profile picture removed successfully")
}

// DeleteAccount removes the caller's account. The body must repeat the
// password and the confirmation phrase.
func (h *ProfileHandler) DeleteAccount(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req struct {
		Password     string `json:"password"`
		Confirmation string `json:"confirmation"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	if err := h.Profiles.DeleteAccount(ctx, uid, req.Password, req.Confirmation); err != nil {
		return respondError(c, err)
	}
	return message(c, http.StatusOK, "Account deleted successfully")
}

// PublicProfile is reachable without a token; a private profile is only
// visible to its owner.
func (h *ProfileHandler) PublicProfile(c echo.Context) error {
	viewer, _ := middleware.UserID(c)
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	u, err := h.Profiles.PublicProfile(ctx, c.Param("username"), viewer)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, publicProfile{
		Username: u.Username, Bio: u.Bio, Location: u.Location, Website: u.Website,
		GithubURL: u.GithubURL, LinkedinURL: u.LinkedinURL, TwitterURL: u.TwitterURL,
		ProfilePicture:  h.pictureURL(u.ProfilePicture),
		PictureVariants: h.Profiles.PictureURLs(u.ProfilePicture),
		MemberSince:     u.CreatedAt,
	})
}
