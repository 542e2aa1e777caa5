package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/routemate/bus-booking-backend/internal/middleware"
	"github.com/routemate/bus-booking-backend/internal/models"
	"github.com/routemate/bus-booking-backend/internal/services"
	"github.com/routemate/bus-booking-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// PaymentHandler handles payment initiation, verification and gateway webhooks
type PaymentHandler struct {
	payments *services.PaymentService
	logger   *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments *services.PaymentService, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		logger:   logger,
	}
}

// requestContext captures the caller's device fingerprint for the audit trail
func (h *PaymentHandler) requestContext(c *gin.Context) *services.RequestContext {
	return &services.RequestContext{
		DeviceInfo: utils.ParseUserAgent(utils.GetUserAgent(c)),
		IPAddress:  utils.GetRealIP(c),
	}
}

// InitiatePayment starts a gateway checkout session for a confirmed booking
// POST /api/v1/bookings/:id/payment/initiate
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	customer, exists := middleware.GetCustomerContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	resp, err := h.payments.Initiate(c.Request.Context(), c.Param("id"), customer.CustomerID, &req, h.requestContext(c))
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// VerifyPayment reconciles a transaction after the customer returns from the
// gateway. Safe to call repeatedly.
// POST /api/v1/payments/verify
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	var req models.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	resp, err := h.payments.Verify(c.Request.Context(), &req, h.requestContext(c))
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// webhookPayload is the minimal shape both gateways post on settlement
type webhookPayload struct {
	TransactionID string `json:"transactionId" binding:"required"`
}

// Webhook receives asynchronous settlement notifications from a gateway.
// Verification runs against the gateway API rather than trusting the payload.
// POST /api/v1/payments/webhook/:gateway
func (h *PaymentHandler) Webhook(c *gin.Context) {
	gateway := c.Param("gateway")

	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook payload"})
		return
	}

	req := &models.VerifyPaymentRequest{Gateway: gateway, TransactionID: payload.TransactionID}
	resp, err := h.payments.Verify(c.Request.Context(), req, h.requestContext(c))
	if err != nil {
		// A webhook for an unknown transaction is acknowledged so the
		// gateway stops retrying; everything else surfaces normally.
		if services.IsNotFound(err) {
			h.logger.WithField("transaction_id", payload.TransactionID).Warn("Webhook for unknown transaction")
			c.Status(http.StatusOK)
			return
		}
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// PaymentHistory returns the audit trail of a booking's payment attempts
// GET /api/v1/bookings/:id/payments
func (h *PaymentHandler) PaymentHistory(c *gin.Context) {
	customer, exists := middleware.GetCustomerContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	audits, err := h.payments.AuditTrail(c.Param("id"), customer.CustomerID)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": audits, "count": len(audits)})
}
