package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/TradeGateHQ/tradegate/internal/config"
	"github.com/gin-gonic/gin"
)

const HeaderGatewayKey = "X-Gateway-Key"

// GatewayAuth enforces the static gateway key when one is configured.
func GatewayAuth(cfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.RequireAPIKey {
			c.Next()
			return
		}
		provided := c.GetHeader(HeaderGatewayKey)
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(cfg.APIKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":       "AUTH_FAILED",
				"message":    "missing or invalid gateway key",
				"suggestion": "Check the gateway API key.",
			})
			return
		}
		c.Next()
	}
}
