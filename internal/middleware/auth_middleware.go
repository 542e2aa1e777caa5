package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/routemate/bus-booking-backend/pkg/jwt"
)

// CustomerContextKey is the key used to store customer information in Gin context
const CustomerContextKey = "customer"

// CustomerContext represents the authenticated customer's information
type CustomerContext struct {
	CustomerID string `json:"customer_id"`
	Phone      string `json:"phone"`
}

// AuthMiddleware creates a middleware that validates customer JWT tokens
func AuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Authorization header is required",
				"code":    "MISSING_AUTH_HEADER",
			})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Invalid authorization header format. Expected: Bearer <token>",
				"code":    "INVALID_AUTH_FORMAT",
			})
			c.Abort()
			return
		}

		tokenString := strings.TrimSpace(parts[1])

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			if jwtService.IsTokenExpired(tokenString) {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error":   "token_expired",
					"message": "Access token has expired",
					"code":    "TOKEN_EXPIRED",
				})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error":   "invalid_token",
					"message": "Invalid access token",
					"code":    "INVALID_TOKEN",
				})
			}
			c.Abort()
			return
		}

		c.Set(CustomerContextKey, CustomerContext{
			CustomerID: claims.CustomerID,
			Phone:      claims.Phone,
		})

		c.Next()
	}
}

// GetCustomerContext retrieves the customer context from Gin context
func GetCustomerContext(c *gin.Context) (CustomerContext, bool) {
	value, exists := c.Get(CustomerContextKey)
	if !exists {
		return CustomerContext{}, false
	}

	customerCtx, ok := value.(CustomerContext)
	if !ok {
		return CustomerContext{}, false
	}

	return customerCtx, true
}
