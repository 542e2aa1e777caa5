package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/routemate/bus-booking-backend/internal/middleware"
	"github.com/routemate/bus-booking-backend/internal/models"
	"github.com/routemate/bus-booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// BookingHandler handles customer booking operations
type BookingHandler struct {
	lifecycle  *services.LifecycleService
	enrichment *services.EnrichmentService
	notifier   *services.NotifierService
	logger     *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(
	lifecycle *services.LifecycleService,
	enrichment *services.EnrichmentService,
	notifier *services.NotifierService,
	logger *logrus.Logger,
) *BookingHandler {
	return &BookingHandler{
		lifecycle:  lifecycle,
		enrichment: enrichment,
		notifier:   notifier,
		logger:     logger,
	}
}

// CreateBooking reserves seats on a schedule
// POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	customer, exists := middleware.GetCustomerContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	booking, err := h.lifecycle.CreateBooking(c.Request.Context(), customer.CustomerID, &req)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// ListBookings returns the customer's bookings with schedule, bus, route and
// company resolved. Listing also opens the customer's notification session,
// seeded with the current state so only future transitions are announced.
// GET /api/v1/bookings
func (h *BookingHandler) ListBookings(c *gin.Context) {
	customer, exists := middleware.GetCustomerContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	enhanced, err := h.enrichment.ListBookings(c.Request.Context(), customer.CustomerID)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	bookings := make([]models.Booking, len(enhanced))
	for i := range enhanced {
		bookings[i] = enhanced[i].Booking
	}
	h.notifier.Subscribe(customer.CustomerID, bookings)

	c.JSON(http.StatusOK, gin.H{
		"bookings": enhanced,
		"count":    len(enhanced),
	})
}

// CancelBooking cancels a booking, or raises a cancellation request when the
// booking has already been paid
// POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	customer, exists := middleware.GetCustomerContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	resp, err := h.lifecycle.Cancel(c.Request.Context(), c.Param("id"), customer.CustomerID)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// DeleteBooking removes a cancelled booking from the customer's list
// DELETE /api/v1/bookings/:id
func (h *BookingHandler) DeleteBooking(c *gin.Context) {
	customer, exists := middleware.GetCustomerContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.lifecycle.DeleteCancelled(c.Request.Context(), c.Param("id"), customer.CustomerID); err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Unsubscribe tears down the customer's notification session
// POST /api/v1/notifications/unsubscribe
func (h *BookingHandler) Unsubscribe(c *gin.Context) {
	customer, exists := middleware.GetCustomerContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	h.notifier.Unsubscribe(customer.CustomerID)
	c.Status(http.StatusNoContent)
}
