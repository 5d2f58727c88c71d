package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"reviewhub_backend/internal/logger"
	"reviewhub_backend/pkg/apperrors"
)

// Counter - фиксированное окно; реализуется cache.Redis
type Counter interface {
	IncrWithExpire(ctx context.Context, key string, expiration time.Duration) (int64, error)
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	// Scope разделяет счётчики разных групп маршрутов
	Scope string
}

// RateLimit ограничивает запросы с одного IP; при ошибке Redis пропускает (fail-open)
func RateLimit(counter Counter, cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if counter == nil || cfg.Requests <= 0 {
			c.Next()
			return
		}

		window := cfg.Window
		if window <= 0 {
			window = time.Minute
		}
		windowStart := time.Now().Truncate(window)
		key := fmt.Sprintf("ratelimit:%s:%s:%d", cfg.Scope, c.ClientIP(), windowStart.Unix())

		count, err := counter.IncrWithExpire(c.Request.Context(), key, window)
		if err != nil {
			logger.CtxWarn(c.Request.Context(), "rate limiter unavailable, allowing request", "error", err)
			c.Next()
			return
		}

		remaining := cfg.Requests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		resetAt := windowStart.Add(window)

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if int(count) > cfg.Requests {
			retryAfter := int(time.Until(resetAt).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			apperrors.HandleError(c, apperrors.ErrRateLimited)
			return
		}

		c.Next()
	}
}
