package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBooking() *Booking {
	return &Booking{
		ID:          "b-1",
		CustomerID:  "c-1",
		ScheduleID:  "s-1",
		CompanyID:   "co-1",
		SeatNumbers: SeatArray{"A1", "A2"},
		PassengerDetails: PassengerList{
			{Name: "Kasun Perera", Age: 34, Gender: "male", SeatNumber: "A1"},
			{Name: "Nimali Perera", Age: 31, Gender: "female", SeatNumber: "A2"},
		},
		TotalAmount:   250000,
		BookingStatus: BookingStatusPending,
		PaymentStatus: PaymentStatusPending,
	}
}

func TestValidateIntegrity(t *testing.T) {
	t.Run("Valid Booking", func(t *testing.T) {
		assert.NoError(t, validBooking().ValidateIntegrity())
	})

	t.Run("No Seats", func(t *testing.T) {
		b := validBooking()
		b.SeatNumbers = nil
		assert.Error(t, b.ValidateIntegrity())
	})

	t.Run("Duplicate Seat", func(t *testing.T) {
		b := validBooking()
		b.SeatNumbers = SeatArray{"A1", "A1"}
		err := b.ValidateIntegrity()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate seat")
	})

	t.Run("Passenger Count Mismatch", func(t *testing.T) {
		b := validBooking()
		b.PassengerDetails = b.PassengerDetails[:1]
		err := b.ValidateIntegrity()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not match seat count")
	})

	t.Run("Non Positive Amount", func(t *testing.T) {
		b := validBooking()
		b.TotalAmount = 0
		assert.Error(t, b.ValidateIntegrity())
	})
}

func TestDecideCancellation(t *testing.T) {
	now := time.Now()
	departure := now.Add(6 * time.Hour)

	t.Run("Pending Unpaid Cancels Outright", func(t *testing.T) {
		b := validBooking()
		outcome, err := b.DecideCancellation(departure, now)
		require.NoError(t, err)
		assert.Equal(t, CancelOutcomeCancelled, outcome)
	})

	t.Run("Confirmed Unpaid Cancels Outright", func(t *testing.T) {
		b := validBooking()
		b.BookingStatus = BookingStatusConfirmed
		outcome, err := b.DecideCancellation(departure, now)
		require.NoError(t, err)
		assert.Equal(t, CancelOutcomeCancelled, outcome)
	})

	t.Run("Paid Booking Only Raises Request", func(t *testing.T) {
		b := validBooking()
		b.BookingStatus = BookingStatusConfirmed
		b.PaymentStatus = PaymentStatusPaid
		outcome, err := b.DecideCancellation(departure, now)
		require.NoError(t, err)
		assert.Equal(t, CancelOutcomeRequested, outcome)
	})

	t.Run("Past Departure Rejected", func(t *testing.T) {
		b := validBooking()
		_, err := b.DecideCancellation(now.Add(-time.Hour), now)
		assert.ErrorIs(t, err, ErrDepartureInPast)
	})

	t.Run("Departure Exactly Now Rejected", func(t *testing.T) {
		b := validBooking()
		_, err := b.DecideCancellation(now, now)
		assert.ErrorIs(t, err, ErrDepartureInPast)
	})

	t.Run("Already Cancelled Rejected", func(t *testing.T) {
		b := validBooking()
		b.BookingStatus = BookingStatusCancelled
		_, err := b.DecideCancellation(departure, now)
		assert.ErrorIs(t, err, ErrNotCancellable)
	})

	t.Run("Completed Trip Is Read Only", func(t *testing.T) {
		b := validBooking()
		b.BookingStatus = BookingStatusCompleted
		b.PaymentStatus = PaymentStatusPaid
		_, err := b.DecideCancellation(departure, now)
		assert.ErrorIs(t, err, ErrNotCancellable)
	})
}

func TestTransitionGuards(t *testing.T) {
	t.Run("Only Pending Confirmable", func(t *testing.T) {
		b := validBooking()
		assert.True(t, b.CanConfirm())

		b.BookingStatus = BookingStatusConfirmed
		assert.False(t, b.CanConfirm())

		b.BookingStatus = BookingStatusCancelled
		assert.False(t, b.CanConfirm())
	})

	t.Run("Only Cancelled Deletable", func(t *testing.T) {
		b := validBooking()
		assert.False(t, b.CanDelete())

		b.BookingStatus = BookingStatusCancelled
		assert.True(t, b.CanDelete())
	})

	t.Run("Payment Only After Confirmation", func(t *testing.T) {
		b := validBooking()
		assert.False(t, b.CanInitiatePayment())

		b.BookingStatus = BookingStatusConfirmed
		assert.True(t, b.CanInitiatePayment())

		b.PaymentStatus = PaymentStatusPaid
		assert.False(t, b.CanInitiatePayment())
	})

	t.Run("Retry After Failed Payment", func(t *testing.T) {
		b := validBooking()
		b.BookingStatus = BookingStatusConfirmed
		b.PaymentStatus = PaymentStatusFailed
		assert.True(t, b.CanInitiatePayment())
	})
}

func TestScheduleInvariant(t *testing.T) {
	t.Run("Balanced", func(t *testing.T) {
		s := &Schedule{ID: "s-1", TotalSeats: 40, AvailableSeats: 38, BookedSeats: SeatArray{"A1", "A2"}}
		assert.NoError(t, s.CheckInvariant())
	})

	t.Run("Unbalanced", func(t *testing.T) {
		s := &Schedule{ID: "s-1", TotalSeats: 40, AvailableSeats: 39, BookedSeats: SeatArray{"A1", "A2"}}
		assert.Error(t, s.CheckInvariant())
	})

	t.Run("Negative Available", func(t *testing.T) {
		s := &Schedule{ID: "s-1", TotalSeats: 1, AvailableSeats: -1, BookedSeats: SeatArray{"A1", "A2"}}
		assert.Error(t, s.CheckInvariant())
	})
}
