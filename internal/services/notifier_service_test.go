package services

import (
	"context"
	"testing"

	"github.com/routemate/bus-booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func watchedBooking(status models.BookingStatus, payment models.PaymentStatus) *models.Booking {
	return &models.Booking{
		ID:               "bk-1",
		CustomerID:       "cust-1",
		BookingStatus:    status,
		PaymentStatus:    payment,
		BookingReference: "BK-20260829-A1B2C3",
	}
}

func TestNotifierObserve(t *testing.T) {
	ctx := context.Background()

	t.Run("Subscription Seed Emits Nothing", func(t *testing.T) {
		publisher := &capturePublisher{}
		notifier := NewNotifierService(publisher, newTestLogger())

		notifier.Subscribe("cust-1", []models.Booking{
			*watchedBooking(models.BookingStatusPending, models.PaymentStatusPending),
		})

		assert.Empty(t, publisher.statusEvents())
		assert.Empty(t, publisher.paymentEvents())
	})

	t.Run("First Observation Of Unknown Booking Seeds Silently", func(t *testing.T) {
		publisher := &capturePublisher{}
		notifier := NewNotifierService(publisher, newTestLogger())

		notifier.Subscribe("cust-1", nil)
		notifier.Observe(ctx, watchedBooking(models.BookingStatusPending, models.PaymentStatusPending))

		assert.Empty(t, publisher.statusEvents())

		// The next change of the now-tracked booking does emit
		notifier.Observe(ctx, watchedBooking(models.BookingStatusConfirmed, models.PaymentStatusPending))
		require.Len(t, publisher.statusEvents(), 1)
	})

	t.Run("Status Transition Emits Exactly Once", func(t *testing.T) {
		publisher := &capturePublisher{}
		notifier := NewNotifierService(publisher, newTestLogger())

		notifier.Subscribe("cust-1", []models.Booking{
			*watchedBooking(models.BookingStatusPending, models.PaymentStatusPending),
		})

		updated := watchedBooking(models.BookingStatusConfirmed, models.PaymentStatusPending)
		notifier.Observe(ctx, updated)
		notifier.Observe(ctx, updated)

		events := publisher.statusEvents()
		require.Len(t, events, 1)
		assert.Equal(t, "pending", events[0].PreviousStatus)
		assert.Equal(t, "confirmed", events[0].NewStatus)
		assert.Equal(t, "/bookings/bk-1", events[0].ActionURL)
		assert.Empty(t, publisher.paymentEvents())
	})

	t.Run("Combined Update Emits Both Event Kinds", func(t *testing.T) {
		publisher := &capturePublisher{}
		notifier := NewNotifierService(publisher, newTestLogger())

		notifier.Subscribe("cust-1", []models.Booking{
			*watchedBooking(models.BookingStatusPending, models.PaymentStatusPending),
		})

		notifier.Observe(ctx, watchedBooking(models.BookingStatusConfirmed, models.PaymentStatusPaid))

		assert.Len(t, publisher.statusEvents(), 1)
		require.Len(t, publisher.paymentEvents(), 1)
		assert.Equal(t, "paid", publisher.paymentEvents()[0].NewStatus)
	})

	t.Run("Unsubscribed Customer Gets Nothing", func(t *testing.T) {
		publisher := &capturePublisher{}
		notifier := NewNotifierService(publisher, newTestLogger())

		notifier.Subscribe("cust-1", []models.Booking{
			*watchedBooking(models.BookingStatusPending, models.PaymentStatusPending),
		})
		notifier.Unsubscribe("cust-1")

		notifier.Observe(ctx, watchedBooking(models.BookingStatusConfirmed, models.PaymentStatusPending))
		assert.Empty(t, publisher.statusEvents())
	})

	t.Run("Forgotten Booking Reseeds On Next Observation", func(t *testing.T) {
		publisher := &capturePublisher{}
		notifier := NewNotifierService(publisher, newTestLogger())

		notifier.Subscribe("cust-1", []models.Booking{
			*watchedBooking(models.BookingStatusCancelled, models.PaymentStatusPending),
		})
		notifier.Forget("cust-1", "bk-1")

		notifier.Observe(ctx, watchedBooking(models.BookingStatusPending, models.PaymentStatusPending))
		assert.Empty(t, publisher.statusEvents())
	})
}
