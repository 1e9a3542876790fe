package security

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// RateLimiter counts requests per client in fixed Redis windows.
type RateLimiter struct {
	redis  *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{redis: redisClient, limit: int64(limit), window: window}
}

// Allow reports whether the identifier is still under the limit for the
// current window. Redis errors let the request through.
func (r *RateLimiter) Allow(ctx context.Context, scope, identifier string) bool {
	return r.allow(ctx, fmt.Sprintf("ratelimit:%s:%s", scope, identifier), r.limit, r.window)
}

func (r *RateLimiter) allow(ctx context.Context, key string, limit int64, window time.Duration) bool {
	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		slog.Warn("Rate limiter unavailable", "key", key, "error", err)
		return true
	}
	if count == 1 {
		r.redis.Expire(ctx, key, window)
	}

	return count <= limit
}

// Middleware limits a route group by client IP.
func (r *RateLimiter) Middleware(scope string) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if r == nil || r.redis == nil {
			return e.Next()
		}

		ip := e.RealIP()
		if !r.Allow(e.Request.Context(), scope, ip) {
			slog.Warn("Rate limit exceeded", "scope", scope, "ip", ip)
			return apis.NewTooManyRequestsError("Demasiadas solicitudes, intenta de nuevo en un momento.", nil)
		}

		return e.Next()
	}
}

const antiBotLimit = 30

var suspiciousAgents = []string{"bot", "crawler", "spider", "scraper"}

// AntiBotMiddleware rejects automated user agents and caps each IP at
// antiBotLimit requests per minute. The user agent check runs without Redis.
func (r *RateLimiter) AntiBotMiddleware() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		ip := e.RealIP()

		if isSuspiciousUserAgent(e.Request.UserAgent()) {
			slog.Warn("Suspicious user agent blocked", "ip", ip)
			return apis.NewForbiddenError("Acceso denegado.", nil)
		}

		if r == nil || r.redis == nil {
			return e.Next()
		}

		if !r.allow(e.Request.Context(), "antibot:"+ip, antiBotLimit, time.Minute) {
			slog.Warn("Anti-bot limit exceeded", "ip", ip)
			return apis.NewTooManyRequestsError("Demasiadas solicitudes, intenta de nuevo en un momento.", nil)
		}

		return e.Next()
	}
}

func isSuspiciousUserAgent(ua string) bool {
	ua = strings.ToLower(ua)
	for _, pattern := range suspiciousAgents {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}
