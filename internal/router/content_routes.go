package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dynamic-web-app/internal/config"
	"github.com/iliyamo/dynamic-web-app/internal/middleware"
)

// registerContent mounts notes, notifications, activity, tenders and files.
func registerContent(api *echo.Group, d Deps, auth echo.MiddlewareFunc) {
	notes := api.Group("/notes", auth)
	notes.GET("", d.Notes.List)
	notes.POST("", d.Notes.Create)
	notes.GET("/:id", d.Notes.Get)
	notes.PUT("/:id", d.Notes.Update)
	notes.DELETE("/:id", d.Notes.Delete)

	n := api.Group("/notifications", auth)
	n.GET("", d.Notifications.List)
	n.PUT("/read-all", d.Notifications.MarkAllRead)
	n.PUT("/:id/read", d.Notifications.MarkRead)
	n.DELETE("/:id", d.Notifications.Delete)

	api.GET("/activity", d.Activity.List, auth)

	// only the listing is cached; the detail view bumps a counter
	api.GET("/tenders", d.Tenders.List, middleware.NewRedisCache(d.TenderCache, d.Redis, d.Log))
	api.GET("/tenders/:id", d.Tenders.Get)
	admin := api.Group("/tenders", auth, middleware.RequireAdmin())
	admin.POST("", d.Tenders.Create)
	admin.PUT("/:id", d.Tenders.Update)
	admin.DELETE("/:id", d.Tenders.Delete)

	files := api.Group("/files", auth)
	files.POST("", d.Files.Upload, d.limiter(config.ScopeUpload))
	files.GET("", d.Files.List)
	files.GET("/search", d.Files.Search)
	files.GET("/:id", d.Files.Get)
	files.GET("/:id/download", d.Files.Download)
	files.DELETE("/:id", d.Files.Delete)
}
