package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": "0123456789abcdef0123",
	}))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, time.Hour, cfg.ResetTokenTTL)
	assert.True(t, cfg.SingleSession)
	assert.Equal(t, "dynamic-web-app", cfg.JWTIssuer)
	assert.Equal(t, "dynamic-web-app-users", cfg.JWTAudience)
	assert.Equal(t, int64(5*1024*1024), cfg.MaxProfileImageBytes)
	assert.False(t, cfg.SMTPEnabled())
}

func TestLoadFromMissingSecret(t *testing.T) {
	_, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{}))
	assert.Error(t, err)
}

func TestLoadFromRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"short secret", map[string]string{"JWT_SECRET": "short"}},
		{"driver", map[string]string{"JWT_SECRET": "0123456789abcdef0123", "DB_DRIVER": "oracle"}},
		{"s3 without bucket", map[string]string{"JWT_SECRET": "0123456789abcdef0123", "STORAGE_DRIVER": "s3"}},
		{"bcrypt cost", map[string]string{"JWT_SECRET": "0123456789abcdef0123", "BCRYPT_COST": "2"}},
		{"bad duration", map[string]string{"JWT_SECRET": "0123456789abcdef0123", "ACCESS_TOKEN_TTL": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(context.Background(), envconfig.MapLookuper(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLoadRateLimitConfigScopes(t *testing.T) {
	auth := LoadRateLimitConfig(ScopeAuth)
	assert.Equal(t, 5, auth.Capacity)
	assert.Equal(t, 15*time.Minute, auth.RefillInterval)
	assert.Equal(t, "rl:auth", auth.Prefix)

	reset := LoadRateLimitConfig(ScopePasswordReset)
	assert.Equal(t, 3, reset.Capacity)
	assert.Equal(t, time.Hour, reset.RefillInterval)
	assert.GreaterOrEqual(t, reset.TTL, 2*time.Hour)

	unknown := LoadRateLimitConfig("nope")
	assert.Equal(t, 100, unknown.Capacity)
}

func TestLoadRateLimitConfigOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_UPLOAD_CAPACITY", "2")
	t.Setenv("RATE_LIMIT_UPLOAD_REFILL_INTERVAL", "1m")
	t.Setenv("RATE_LIMIT_ENABLED", "off")

	cfg := LoadRateLimitConfig(ScopeUpload)
	assert.Equal(t, 2, cfg.Capacity)
	assert.Equal(t, time.Minute, cfg.RefillInterval)
	assert.False(t, cfg.Enabled)
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	cfg := LoadCacheConfig()
	assert.True(t, cfg.Methods["GET"])
	assert.True(t, cfg.Methods["HEAD"])
	assert.False(t, cfg.Methods["POST"])
}
