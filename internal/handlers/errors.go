package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/routemate/bus-booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// respondServiceError maps the service error taxonomy onto HTTP responses.
// Consistency failures are logged here because they indicate a broken seat
// accounting invariant, not a caller mistake.
func respondServiceError(c *gin.Context, logger *logrus.Logger, err error) {
	switch {
	case services.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case services.IsPrecondition(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case services.IsGatewayRejection(err):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})

	case services.IsTransient(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable, please retry"})

	case services.IsConsistency(err):
		logger.WithError(err).Error("Inventory consistency failure surfaced to handler")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})

	default:
		logger.WithError(err).Error("Unhandled service error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
