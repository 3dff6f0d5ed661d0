// Package validate holds the shape checks run on request input before any
// storage access, plus HTML sanitizing for free-text fields.
package validate

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata" // timezone names must resolve on hosts without zoneinfo
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"

	"github.com/iliyamo/dynamic-web-app/internal/model"
)

// Error is a validation failure on a single input field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is lets errors.Is(err, ErrInvalid) match any *Error.
func (e *Error) Is(target error) bool { return target == ErrInvalid }

// ErrInvalid matches every validation failure.
var ErrInvalid = errors.New("validation failed")

func fail(field, format string, args ...any) error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// FieldOf returns the offending field of a validation error, if any.
func FieldOf(err error) string {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Field
	}
	return ""
}

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	locationRe = regexp.MustCompile(`^[a-zA-Z0-9\s,.\-]+$`)
	scriptRe   = regexp.MustCompile(`(?i)<script|javascript:|data:`)
	currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)
)

var reservedUsernames = map[string]bool{"admin": true, "root": true}

var commonPasswords = map[string]bool{
	"password": true, "12345678": true, "qwerty123": true, "password123": true,
}

var disposableDomains = map[string]bool{
	"10minutemail.com": true, "tempmail.org": true, "guerrillamail.com": true,
}

// Username checks length 3-50 and the letters/digits/underscore charset.
// Reserved names are refused only when registering.
func Username(s string, registering bool) error {
	n := utf8.RuneCountInString(s)
	if n < 3 || n > 50 {
		return fail("username", "Username must be 3-50 characters long")
	}
	if !usernameRe.MatchString(s) {
		return fail("username", "Username can only contain letters, numbers, and underscores")
	}
	if registering && reservedUsernames[strings.ToLower(s)] {
		return fail("username", "This username is reserved")
	}
	return nil
}

// Email validates a bare address and returns it trimmed and lower-cased.
func Email(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || len(s) > 255 {
		return "", fail("email", "Please provide a valid email address")
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return "", fail("email", "Please provide a valid email address")
	}
	local, domain, _ := strings.Cut(s, "@")
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") || strings.Contains(s, "..") ||
		strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", fail("email", "Please provide a valid email address")
	}
	if disposableDomains[domain] {
		return "", fail("email", "Disposable email addresses are not allowed")
	}
	return s, nil
}

// Password enforces 8-128 characters with upper, lower, digit and one of
// @$!%*?&, and refuses a short list of common passwords.
func Password(field, s string) error {
	n := utf8.RuneCountInString(s)
	if n < 8 || n > 128 {
		return fail(field, "Password must be 8-128 characters long")
	}
	var upper, lower, digit, special bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune("@$!%*?&", r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return fail(field, "Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character (@$!%%*?&)")
	}
	if commonPasswords[strings.ToLower(s)] {
		return fail(field, "Password is too common")
	}
	return nil
}

// Bio allows up to 500 characters and no script-like content.
func Bio(s string) error {
	if utf8.RuneCountInString(s) > 500 {
		return fail("bio", "Bio must be less than 500 characters")
	}
	if scriptRe.MatchString(s) {
		return fail("bio", "Bio contains invalid content")
	}
	return nil
}

// Location allows up to 100 characters of letters, digits, spaces and ,.-
func Location(s string) error {
	if s == "" {
		return nil
	}
	if utf8.RuneCountInString(s) > 100 {
		return fail("location", "Location must be less than 100 characters")
	}
	if !locationRe.MatchString(s) {
		return fail("location", "Location contains invalid characters")
	}
	return nil
}

// URL checks an optional http(s) URL of at most 255 characters. When hosts
// is non-empty the URL host must equal or be a subdomain of one of them.
func URL(field, label, s string, hosts ...string) error {
	if s == "" {
		return nil
	}
	if len(s) > 255 {
		return fail(field, "%s URL must be less than 255 characters", label)
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" || !strings.Contains(u.Hostname(), ".") {
		return fail(field, "Please provide a valid %s URL", label)
	}
	if len(hosts) == 0 {
		return nil
	}
	h := strings.ToLower(u.Hostname())
	for _, want := range hosts {
		if h == want || strings.HasSuffix(h, "."+want) {
			return nil
		}
	}
	return fail(field, "Must be a valid %s URL", label)
}

// Privacy accepts public, private or friends.
func Privacy(s string) error {
	switch s {
	case model.PrivacyPublic, model.PrivacyPrivate, model.PrivacyFriends:
		return nil
	}
	return fail("profile_privacy", "Profile privacy must be public, private or friends")
}

// Theme accepts light, dark or auto.
func Theme(s string) error {
	switch s {
	case model.ThemeLight, model.ThemeDark, model.ThemeAuto:
		return nil
	}
	return fail("theme", "Theme must be: light, dark, or auto")
}

// Language parses a BCP 47 tag such as "en" or "pt-BR" and returns its
// canonical form.
func Language(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 35 {
		return "", fail("language", "Language must be a valid language tag")
	}
	tag, err := language.Parse(s)
	if err != nil {
		return "", fail("language", "Language must be a valid language tag")
	}
	return tag.String(), nil
}

// Timezone accepts IANA zone names like "Europe/Berlin" and "UTC".
func Timezone(s string) error {
	if s == "" || s == "Local" || len(s) > 64 {
		return fail("timezone", "Timezone must be a valid IANA time zone")
	}
	if _, err := time.LoadLocation(s); err != nil {
		return fail("timezone", "Timezone must be a valid IANA time zone")
	}
	return nil
}

// Role accepts user or admin.
func Role(s string) error {
	if s != model.RoleUser && s != model.RoleAdmin {
		return fail("role", `Role must be either "user" or "admin"`)
	}
	return nil
}

// Required fails when s is blank.
func Required(field, label, s string) error {
	if strings.TrimSpace(s) == "" {
		return fail(field, "%s is required", label)
	}
	return nil
}

// Length checks that s has between min and max characters.
func Length(field, label, s string, min, max int) error {
	n := utf8.RuneCountInString(s)
	if n < min || n > max {
		return fail(field, "%s must be between %d and %d characters", label, min, max)
	}
	return nil
}

// OneOf fails unless s is one of allowed.
func OneOf(field, label, s string, allowed []string) error {
	for _, a := range allowed {
		if s == a {
			return nil
		}
	}
	return fail(field, "%s must be one of: %s", label, strings.Join(allowed, ", "))
}

// Currency checks a three-letter upper-case code.
func Currency(s string) error {
	if !currencyRe.MatchString(s) {
		return fail("currency", "Currency must be 3 characters (e.g., USD, EUR)")
	}
	return nil
}

// First returns the first non-nil error.
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
