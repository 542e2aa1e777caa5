package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/routemate/bus-booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// AdminBookingHandler handles operator actions on bookings
type AdminBookingHandler struct {
	lifecycle *services.LifecycleService
	logger    *logrus.Logger
}

// NewAdminBookingHandler creates a new AdminBookingHandler
func NewAdminBookingHandler(lifecycle *services.LifecycleService, logger *logrus.Logger) *AdminBookingHandler {
	return &AdminBookingHandler{
		lifecycle: lifecycle,
		logger:    logger,
	}
}

// ConfirmBooking approves a pending booking
// POST /api/v1/admin/bookings/:id/confirm
func (h *AdminBookingHandler) ConfirmBooking(c *gin.Context) {
	booking, err := h.lifecycle.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ApproveCancellation grants a paid booking's cancellation request: the
// booking is cancelled and its seats return to inventory
// POST /api/v1/admin/bookings/:id/cancellation/approve
func (h *AdminBookingHandler) ApproveCancellation(c *gin.Context) {
	booking, err := h.lifecycle.ApproveCancellation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// RejectCancellation declines a cancellation request; the booking stays
// confirmed and paid
// POST /api/v1/admin/bookings/:id/cancellation/reject
func (h *AdminBookingHandler) RejectCancellation(c *gin.Context) {
	booking, err := h.lifecycle.RejectCancellation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}
