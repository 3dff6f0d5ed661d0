package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsername(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		registering bool
		ok          bool
	}{
		{"simple", "alice", true, true},
		{"underscore digits", "bob_42", true, true},
		{"too short", "ab", true, false},
		{"too long", strings.Repeat("a", 51), true, false},
		{"max length", strings.Repeat("a", 50), true, true},
		{"space", "bad name", true, false},
		{"dash", "bad-name", true, false},
		{"reserved on register", "Admin", true, false},
		{"reserved outside register", "admin", false, true},
		{"root", "root", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Username(tt.in, tt.registering)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Equal(t, "username", FieldOf(err))
			}
		})
	}
}

func TestEmail(t *testing.T) {
	got, err := Email("  ALICE@EX.com ")
	require.NoError(t, err)
	assert.Equal(t, "alice@ex.com", got)

	for _, bad := range []string{
		"", "user", "user@", "@example.com", ".user@example.com", "user.@example.com",
		"user..name@example.com", "User Name <user@example.com>", "user @example.com",
		"someone@10minutemail.com", strings.Repeat("a", 250) + "@x.com",
	} {
		_, err := Email(bad)
		assert.Error(t, err, bad)
	}
}

func TestPassword(t *testing.T) {
	assert.NoError(t, Password("password", "Password123!"))

	for _, bad := range []string{
		"Pa1!",                        // short
		strings.Repeat("Aa1!", 33),    // long
		"password123!",                // no upper
		"PASSWORD123!",                // no lower
		"Password!!!!",                // no digit
		"Password1234",                // no special
	} {
		err := Password("password", bad)
		assert.Error(t, err, bad)
		assert.True(t, errors.Is(err, ErrInvalid))
	}
}

func TestBioAndLocation(t *testing.T) {
	assert.NoError(t, Bio("Go developer"))
	assert.Error(t, Bio(strings.Repeat("x", 501)))
	assert.Error(t, Bio("hello <script>alert(1)</script>"))
	assert.Error(t, Bio("see javascript:void(0)"))

	assert.NoError(t, Location(""))
	assert.NoError(t, Location("Berlin, Germany"))
	assert.Error(t, Location("Berlin; DROP"))
	assert.Error(t, Location(strings.Repeat("a", 101)))
}

func TestURL(t *testing.T) {
	assert.NoError(t, URL("website", "website", ""))
	assert.NoError(t, URL("website", "website", "https://alice.dev"))
	assert.Error(t, URL("website", "website", "alice.dev"))
	assert.Error(t, URL("website", "website", "ftp://alice.dev"))
	assert.Error(t, URL("website", "website", "https://"+strings.Repeat("a", 250)+".com"))

	assert.NoError(t, URL("github_url", "GitHub", "https://github.com/alice", "github.com"))
	assert.Error(t, URL("github_url", "GitHub", "https://gitlab.com/alice", "github.com"))
	assert.Error(t, URL("github_url", "GitHub", "https://notgithub.com/alice", "github.com"))
	assert.NoError(t, URL("twitter_url", "Twitter", "https://x.com/alice", "twitter.com", "x.com"))
}

func TestEnums(t *testing.T) {
	assert.NoError(t, Privacy("friends"))
	assert.Error(t, Privacy("everyone"))
	assert.NoError(t, Role("admin"))
	assert.Error(t, Role("owner"))
	assert.NoError(t, OneOf("category", "Category", "Other", []string{"Other"}))
	assert.Error(t, OneOf("category", "Category", "other", []string{"Other"}))
	assert.NoError(t, Currency("EUR"))
	assert.Error(t, Currency("eu"))
}

func TestSettingsFields(t *testing.T) {
	assert.NoError(t, Theme("dark"))
	assert.Error(t, Theme("neon"))

	tag, err := Language("pt-br")
	require.NoError(t, err)
	assert.Equal(t, "pt-BR", tag)
	_, err = Language("not a tag")
	assert.Error(t, err)
	_, err = Language("")
	assert.Error(t, err)

	assert.NoError(t, Timezone("Europe/Berlin"))
	assert.NoError(t, Timezone("UTC"))
	assert.Error(t, Timezone("Mars/Olympus"))
	assert.Error(t, Timezone("Local"))
}

func TestFirst(t *testing.T) {
	e1 := Required("title", "Title", " ")
	assert.Equal(t, e1, First(nil, e1, Length("x", "X", "", 1, 2)))
	assert.NoError(t, First(nil, nil))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "<p>Hello</p>", SanitizeHTML("<p>Hello</p><script>alert('xss')</script>"))
	assert.NotContains(t, SanitizeHTML(`<a href="javascript:alert(1)">x</a>`), "javascript:")
	assert.Equal(t, "Hello & bye", PlainText("<b>Hello</b> &amp; bye"))
	assert.Equal(t, "", SanitizeHTML(""))
}
