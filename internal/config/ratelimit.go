package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Rate limit scopes. Each scope gets its own bucket namespace and can be tuned
// with RATE_LIMIT_<SCOPE>_* variables on top of the shared RATE_LIMIT_* ones.
const (
	ScopeGeneral       = "general"
	ScopeAuth          = "auth"
	ScopeUpload        = "upload"
	ScopePasswordReset = "password_reset"
)

type RateLimitConfig struct {
	Scope          string
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Message        string
	Debug          bool
}

// scopeDefaults mirrors the public API limits: 100 requests per 15 minutes in
// general, 5 auth attempts per 15 minutes, 10 uploads and 3 reset requests per hour.
var scopeDefaults = map[string]RateLimitConfig{
	ScopeGeneral: {
		Capacity: 100, RefillTokens: 100, RefillInterval: 15 * time.Minute,
		KeyStrategy: "ip", Message: "Too many requests from this IP, please try again later.",
	},
	ScopeAuth: {
		Capacity: 5, RefillTokens: 5, RefillInterval: 15 * time.Minute,
		KeyStrategy: "ip", Message: "Too many authentication attempts, please try again later.",
	},
	ScopeUpload: {
		Capacity: 10, RefillTokens: 10, RefillInterval: time.Hour,
		KeyStrategy: "ip_user", Message: "Too many upload attempts, please try again later.",
	},
	ScopePasswordReset: {
		Capacity: 3, RefillTokens: 3, RefillInterval: time.Hour,
		KeyStrategy: "ip", Message: "Too many password reset attempts, please try again later.",
	},
}

// LoadRateLimitConfig builds the limiter settings for one scope. Unknown
// scopes fall back to the general defaults.
func LoadRateLimitConfig(scope string) RateLimitConfig {
	base, ok := scopeDefaults[scope]
	if !ok {
		base = scopeDefaults[ScopeGeneral]
	}
	p := "RATE_LIMIT_" + strings.ToUpper(scope) + "_"

	def := RateLimitConfig{
		Scope:          scope,
		Enabled:        envBool(p+"ENABLED", envBool("RATE_LIMIT_ENABLED", true)),
		Capacity:       envInt(p+"CAPACITY", base.Capacity),
		RefillTokens:   envInt(p+"REFILL_TOKENS", base.RefillTokens),
		RefillInterval: envDur(p+"REFILL_INTERVAL", base.RefillInterval),
		TTL:            envDur("RATE_LIMIT_TTL", 0),
		KeyStrategy:    envStr(p+"KEY_STRATEGY", base.KeyStrategy),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl") + ":" + scope,
		Message:        base.Message,
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	if def.Capacity < 1 { def.Capacity = 1 }
	if def.RefillTokens < 1 { def.RefillTokens = 1 }
	if def.RefillInterval <= 0 { def.RefillInterval = time.Second }
	minTTL := 2 * def.RefillInterval
	if def.TTL < minTTL { def.TTL = minTTL }
	return def
}

func envStr(k, d string) string { if v := os.Getenv(k); v != "" { return v }; return d }
func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" { return d }
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on": return true
	case "0", "false", "no", "off": return false
	}
	return d
}
func envInt(k string, d int) int {
	v := os.Getenv(k); if v == "" { return d }
	if n, err := strconv.Atoi(v); err == nil { return n }
	return d
}
func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k); if v == "" { return d }
	if dur, err := time.ParseDuration(v); err == nil { return dur }
	return d
}
