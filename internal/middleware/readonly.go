package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ReadOnly blocks mutating verbs while the gateway is in read-only mode.
// Login routes stay open so operators can still establish sessions.
func ReadOnly(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"code":       "READ_ONLY",
			"message":    "gateway is in read-only mode",
			"suggestion": "Mutating operations are disabled by configuration.",
		})
	}
}
