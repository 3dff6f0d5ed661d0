// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/nrednav/cuid2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/dynamic-web-app/internal/config"
	"github.com/iliyamo/dynamic-web-app/internal/handler"
	"github.com/iliyamo/dynamic-web-app/internal/middleware"
	"github.com/iliyamo/dynamic-web-app/internal/utils"
)

// Deps carries everything the routes need. Limits missing a scope fall back
// to config.LoadRateLimitConfig.
type Deps struct {
	Config      config.Config
	Log         *zap.Logger
	Signer      *utils.TokenSigner
	Redis       *redis.Client
	Limits      map[string]config.RateLimitConfig
	TenderCache config.CacheConfig

	Health        *handler.HealthHandler
	Auth          *handler.AuthHandler
	Profile       *handler.ProfileHandler
	Settings      *handler.SettingsHandler
	Admin         *handler.AdminHandler
	TestRoutes    *handler.TestRoutesHandler
	Notes         *handler.NoteHandler
	Notifications *handler.NotificationHandler
	Activity      *handler.ActivityHandler
	Tenders       *handler.TenderHandler
	Files         *handler.FileHandler
}

func (d Deps) limiter(scope string) echo.MiddlewareFunc {
	cfg, ok := d.Limits[scope]
	if !ok {
		cfg = config.LoadRateLimitConfig(scope)
	}
	return middleware.NewTokenBucket(cfg, d.Redis, d.Log)
}

// Setup installs the error handler and the global middleware chain: body
// limit, request id, panic recovery, security headers, CORS and request
// logging.
func Setup(e *echo.Echo, cfg config.Config, log *zap.Logger) {
	e.HideBanner = true
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(log, cfg.IsProduction())

	limit := cfg.MaxDocumentBytes
	if cfg.MaxProfileImageBytes > limit {
		limit = cfg.MaxProfileImageBytes
	}
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dK", limit>>10+1024)))
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: func() string { return cuid2.Generate() },
	}))
	e.Use(echomw.Recover())
	e.Use(echomw.SecureWithConfig(echomw.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'; img-src 'self' data: https:; object-src 'none'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderXRequestID},
		ExposeHeaders:    []string{echo.HeaderXRequestID, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After", "X-Cache"},
		AllowCredentials: true,
	}))
	e.Use(middleware.RequestLogger(log))
}

// RegisterRoutes registers every route. The /api group carries the general
// rate limit; stricter scopes sit on the routes they protect.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", d.Health.Health)
	if d.Config.StorageDriver == "local" && d.Config.UploadPath != "" {
		e.Static(d.Config.PublicBaseURL, d.Config.UploadPath)
	}

	api := e.Group("/api", d.limiter(config.ScopeGeneral))
	auth := middleware.JWTAuth(d.Signer)

	registerAuth(api, d, auth)
	registerProfile(api, d, auth)
	registerSettings(api, d, auth)
	registerAdmin(api, d, auth)
	registerContent(api, d, auth)
	if !d.Config.IsProduction() && d.TestRoutes != nil {
		test := api.Group("/test")
		test.POST("/verify-user", d.TestRoutes.VerifyUser)
		test.POST("/set-user-role", d.TestRoutes.SetUserRole)
	}
}
