package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ideaforge-api/pkg/logger"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled bool
	// Limit 窗口内允许的请求数
	Limit  int
	Window time.Duration
	// Endpoint 参与限流键的接口名
	Endpoint string
}

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// QuotaReporter 可选接口，限流器实现时响应带上剩余配额
type QuotaReporter interface {
	Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)
}

// KeyBuilder 由用户 ID 与接口名构建限流键
type KeyBuilder func(userID, endpoint string) string

// RateLimit 按用户限流，需挂在 Auth 之后
func RateLimit(cfg RateLimitConfig, limiter RateLimiter, key KeyBuilder) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "default"
	}

	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			userID = "anonymous"
		}

		limitKey := key(userID, cfg.Endpoint)
		allowed, err := limiter.Allow(c.Request.Context(), limitKey, cfg.Limit, cfg.Window)
		if err != nil {
			// 限流器故障时放行
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err.Error())
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		if !allowed {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":     429,
				"message":  "rate limit exceeded",
				"error":    "rate limit exceeded",
				"trace_id": c.GetString("trace_id"),
			})
			return
		}

		if reporter, ok := limiter.(QuotaReporter); ok {
			if remaining, err := reporter.Remaining(c.Request.Context(), limitKey, cfg.Limit, cfg.Window); err == nil {
				c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
			}
		}

		c.Next()
	}
}
