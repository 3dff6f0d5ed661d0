package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dynamic-web-app/internal/config"
	"github.com/iliyamo/dynamic-web-app/internal/middleware"
)

func registerAuth(api *echo.Group, d Deps, auth echo.MiddlewareFunc) {
	a := d.Auth
	authLimit := d.limiter(config.ScopeAuth)
	resetLimit := d.limiter(config.ScopePasswordReset)

	api.POST("/register", a.Register, authLimit)
	api.POST("/login", a.Login, authLimit)
	api.POST("/refresh-token", a.Refresh, authLimit)
	api.POST("/verify-email", a.VerifyEmail)
	api.POST("/forgot-password", a.ForgotPassword, resetLimit)
	api.POST("/reset-password", a.ResetPassword, resetLimit)
	api.POST("/logout", a.Logout, auth)
	api.POST("/change-password", a.ChangePassword, auth)
}

func registerProfile(api *echo.Group, d Deps, auth echo.MiddlewareFunc) {
	p := d.Profile
	// the upload limiter keys on the user, so it runs after auth
	upload := d.limiter(config.ScopeUpload)

	g := api.Group("/profile", auth)
	g.GET("", p.Get)
	g.PUT("", p.Update)
	g.DELETE("", p.DeleteAccount)
	g.GET("/stats", p.Stats)
	g.POST("/picture", p.UploadPicture, upload)
	g.DELETE("/picture", p.DeletePicture)

	api.GET("/users/:username", p.PublicProfile, middleware.OptionalAuth(d.Signer))
}

func registerSettings(api *echo.Group, d Deps, auth echo.MiddlewareFunc) {
	g := api.Group("/settings", auth)
	g.GET("", d.Settings.Get)
	g.PUT("", d.Settings.Update)
	g.PUT("/email", d.Settings.UpdateEmail, d.limiter(config.ScopeAuth))
}

func registerAdmin(api *echo.Group, d Deps, auth echo.MiddlewareFunc) {
	g := api.Group("/admin", auth, middleware.RequireAdmin())
	g.GET("/users", d.Admin.ListUsers)
	g.PUT("/users/:id/role", d.Admin.UpdateRole)
	g.DELETE("/users/:id", d.Admin.DeleteUser)
}
