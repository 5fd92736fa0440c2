package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"github.com/gin-gonic/gin"
)

// RateLimiter is a fixed-window counter in redis. Without redis every
// request is allowed.
type RateLimiter struct {
	prefix string
	limit  int64
	window time.Duration
	key    func(c *gin.Context) string
}

func NewRateLimiter(prefix string, limit int64, window time.Duration, key func(c *gin.Context) string) *RateLimiter {
	if key == nil {
		key = func(c *gin.Context) string { return c.ClientIP() }
	}
	return &RateLimiter{
		prefix: prefix,
		limit:  limit,
		window: window,
		key:    key,
	}
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := rl.key(c)
		if id == "" {
			c.Next()
			return
		}
		count, err := config.IncrWindow(c.Request.Context(), "RateLimit:"+rl.prefix+":"+id, rl.window)
		if err != nil {
			// fail open
			config.LogError(config.GetLogger(), "rateLimitMiddleware.go", "Middleware", "IncrWindow", id, err)
			c.Next()
			return
		}
		if count > rl.limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
			})
			return
		}
		c.Next()
	}
}
