package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports liveness for load balancers and monitoring.
type HealthHandler struct {
	DB    *sqlx.DB
	Redis *redis.Client
}

func NewHealthHandler(db *sqlx.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{DB: db, Redis: rdb}
}

// Health answers 200 while the database responds and 503 otherwise. Redis
// is optional, so its state is reported without failing the check.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	db := "ok"
	if err := h.DB.PingContext(ctx); err != nil {
		db, status, code = "down", "degraded", http.StatusServiceUnavailable
	}
	cache := "disabled"
	if h.Redis != nil {
		cache = "ok"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			cache = "down"
		}
	}
	return c.JSON(code, echo.Map{"status": status, "database": db, "redis": cache, "time": time.Now().UTC()})
}
