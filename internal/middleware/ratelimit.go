package middleware

import (
	"net/http"

	"github.com/TradeGateHQ/tradegate/internal/config"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit applies a global token bucket to the whole API surface.
func RateLimit(cfg config.RateConfig) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(cfg.QPS), cfg.Burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"suggestion": "slow down and retry after a short delay",
			})
			return
		}
		c.Next()
	}
}
