package middleware

import (
	"fmt"
	"net/http"

	"github.com/duochat/duochat-backend/pkg/logger"
	"github.com/duochat/duochat-backend/pkg/ratelimit"
	"github.com/gin-gonic/gin"
)

// UserKeyFunc uses only user ID (requires authentication)
func UserKeyFunc(c *gin.Context) string {
	if userID := c.GetString(ContextUserID); userID != "" {
		return fmt.Sprintf("user:%s", userID)
	}
	return ""
}

// IPKeyFunc uses only IP address (for public endpoints)
func IPKeyFunc(c *gin.Context) string {
	return fmt.Sprintf("ip:%s", c.ClientIP())
}

// RateLimit rejects requests over the limiter's budget with 429. Limiter
// errors let the request through.
func RateLimit(limiter ratelimit.Limiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	if keyFunc == nil {
		keyFunc = UserKeyFunc
	}

	return func(c *gin.Context) {
		key := keyFunc(c)
		if key == "" {
			key = IPKeyFunc(c)
		}

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// Fail-open
			logger.Warn("Rate limit check failed", "key", key, "error", err)
			c.Next()
			return
		}

		if !allowed {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"ok":    false,
				"kind":  "rate_limited",
				"error": "Too many requests",
			})
			return
		}

		c.Next()
	}
}
