package handlers

import (
	"context"
	"net/http"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"

	"rifa/internal/store"
	"rifa/utils"
)

type HealthHandler struct {
	store store.Store
	redis *redis.Client
}

// NewHealthHandler builds the health check; redisClient may be nil.
func NewHealthHandler(s store.Store, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{store: s, redis: redisClient}
}

func (h *HealthHandler) Check(e *core.RequestEvent) error {
	ctx := e.Request.Context()

	if err := h.check(ctx); err != nil {
		return e.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *HealthHandler) check(ctx context.Context) error {
	if err := h.store.Ping(ctx); err != nil {
		return err
	}
	if h.redis != nil {
		return utils.RedisHealthCheck(ctx, h.redis)
	}
	return nil
}
