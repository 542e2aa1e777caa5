package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AdminKeyHeader carries the operator API key on admin routes
const AdminKeyHeader = "X-Admin-Key"

// AdminKeyMiddleware authenticates operator requests against a bcrypt hash of
// the admin API key. The plaintext key never lives in configuration.
func AdminKeyMiddleware(apiKeyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKeyHash == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "admin_disabled",
				"message": "Admin API is not configured",
				"code":    "ADMIN_DISABLED",
			})
			c.Abort()
			return
		}

		key := c.GetHeader(AdminKeyHeader)
		if key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Admin API key is required",
				"code":    "MISSING_ADMIN_KEY",
			})
			c.Abort()
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(apiKeyHash), []byte(key)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Invalid admin API key",
				"code":    "INVALID_ADMIN_KEY",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
