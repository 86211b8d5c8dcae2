package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pytake/taskqueue/internal/config"
	"github.com/pytake/taskqueue/internal/store"
)

// RateLimiter applies a fixed per-IP request budget over a fixed
// one-second window (the window starts at a client's first request and
// is not extended by later ones), backed by the same store the queue engine uses rather than a
// dedicated Redis client, so the whole process shares one connection
// pool.
func RateLimiter(db store.Store, cfg *config.Config) gin.HandlerFunc {
	if !cfg.RateLimit.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		clientIP := c.ClientIP()
		key := fmt.Sprintf("rate_limit:%s", clientIP)

		count, err := db.Incr(ctx, key)
		if err != nil {
			c.Next()
			return
		}

		if count == 1 {
			_ = db.Expire(ctx, key, time.Second)
		}

		limit := cfg.RateLimit.RequestsPerSec + cfg.RateLimit.Burst
		if count > int64(limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Writer.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
		c.Writer.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", int64(limit)-count))

		c.Next()
	}
}