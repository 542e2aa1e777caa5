package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/routemate/bus-booking-backend/internal/models"
	"github.com/routemate/bus-booking-backend/internal/queue"
	"github.com/sirupsen/logrus"
)

// EventPublisher delivers booking change events to the customer. Delivery is
// fire-and-forget: the booking core does not require a delivery guarantee.
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, event queue.BookingChangeEvent) error
	PublishPaymentChanged(ctx context.Context, event queue.BookingChangeEvent) error
}

// statusPair is the last-observed (booking status, payment status) of a
// watched booking
type statusPair struct {
	booking models.BookingStatus
	payment models.PaymentStatus
}

// NotifierService watches bookings per customer session and emits exactly one
// event per observed status transition. Sessions are created on Subscribe and
// torn down on Unsubscribe; the first observation of a booking seeds the
// last-seen map silently so a customer is never flooded with events for state
// that predates the subscription.
type NotifierService struct {
	mu        sync.Mutex
	sessions  map[string]map[string]statusPair // customerID -> bookingID -> last seen
	publisher EventPublisher
	logger    *logrus.Logger
}

// NewNotifierService creates a new NotifierService
func NewNotifierService(publisher EventPublisher, logger *logrus.Logger) *NotifierService {
	return &NotifierService{
		sessions:  make(map[string]map[string]statusPair),
		publisher: publisher,
		logger:    logger,
	}
}

// Subscribe opens a notification session for a customer. The bookings given
// seed the last-seen map without emitting anything.
func (s *NotifierService) Subscribe(customerID string, bookings []models.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := make(map[string]statusPair, len(bookings))
	for _, b := range bookings {
		session[b.ID] = statusPair{booking: b.BookingStatus, payment: b.PaymentStatus}
	}
	s.sessions[customerID] = session

	s.logger.WithFields(logrus.Fields{
		"customer_id": customerID,
		"bookings":    len(bookings),
	}).Debug("Notification session opened")
}

// Unsubscribe tears down a customer's notification session
func (s *NotifierService) Unsubscribe(customerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, customerID)
}

// Observe is called after every committed booking mutation. It compares the
// new status pair against the last-seen pair for the booking's customer and
// emits one event per changed dimension; both may fire from a single update.
// The map is updated after emitting so a transition is never reported twice.
func (s *NotifierService) Observe(ctx context.Context, booking *models.Booking) {
	s.mu.Lock()
	session, ok := s.sessions[booking.CustomerID]
	if !ok {
		s.mu.Unlock()
		return
	}

	last, seen := session[booking.ID]
	current := statusPair{booking: booking.BookingStatus, payment: booking.PaymentStatus}
	session[booking.ID] = current
	s.mu.Unlock()

	if !seen {
		// Initial synchronization: seed silently
		return
	}

	if last.booking != current.booking {
		event := s.buildEvent(booking,
			"Booking status updated",
			fmt.Sprintf("Booking %s is now %s", booking.BookingReference, current.booking),
			string(last.booking), string(current.booking))

		if err := s.publisher.PublishStatusChanged(ctx, event); err != nil {
			s.logger.WithError(err).WithField("booking_id", booking.ID).Warn("Status change event not delivered")
		}
	}

	if last.payment != current.payment {
		event := s.buildEvent(booking,
			"Payment update",
			fmt.Sprintf("Payment for booking %s is now %s", booking.BookingReference, current.payment),
			string(last.payment), string(current.payment))

		if err := s.publisher.PublishPaymentChanged(ctx, event); err != nil {
			s.logger.WithError(err).WithField("booking_id", booking.ID).Warn("Payment change event not delivered")
		}
	}
}

// Forget drops a booking from its customer's session, used after deletion
func (s *NotifierService) Forget(customerID, bookingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[customerID]; ok {
		delete(session, bookingID)
	}
}

func (s *NotifierService) buildEvent(booking *models.Booking, title, message, prev, next string) queue.BookingChangeEvent {
	return queue.BookingChangeEvent{
		BookingID:        booking.ID,
		CustomerID:       booking.CustomerID,
		BookingReference: booking.BookingReference,
		Title:            title,
		Message:          message,
		ActionURL:        fmt.Sprintf("/bookings/%s", booking.ID),
		PreviousStatus:   prev,
		NewStatus:        next,
		EmittedAt:        time.Now().UTC().Format(time.RFC3339),
	}
}
