package models

import (
	"errors"
	"fmt"
	"time"
)

// BookingStatus represents the lifecycle status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// PaymentStatus represents the payment status of a booking
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// CancelOutcome is the result of a customer cancellation request
type CancelOutcome string

const (
	// CancelOutcomeCancelled means the booking was cancelled and its seats released
	CancelOutcomeCancelled CancelOutcome = "cancelled"
	// CancelOutcomeRequested means a paid booking was flagged for admin adjudication;
	// seats remain held until an admin approves the request
	CancelOutcomeRequested CancelOutcome = "cancellation_requested"
)

var (
	ErrDepartureInPast   = errors.New("cannot cancel a booking after departure")
	ErrNotCancellable    = errors.New("booking is not in a cancellable state")
	ErrNotConfirmable    = errors.New("only pending bookings can be confirmed")
	ErrNotDeletable      = errors.New("only cancelled bookings can be deleted")
	ErrPaymentNotAllowed = errors.New("booking is not awaiting payment")
	ErrNoCancellation    = errors.New("booking has no pending cancellation request")
)

// PassengerDetail holds per-seat passenger information
type PassengerDetail struct {
	Name       string `json:"name"`
	Age        int    `json:"age"`
	Gender     string `json:"gender"`
	SeatNumber string `json:"seat_number"`
}

// Booking represents a customer's seat reservation on a scheduled departure
type Booking struct {
	ID                    string        `json:"id" db:"id"`
	CustomerID            string        `json:"customer_id" db:"customer_id"`
	ScheduleID            string        `json:"schedule_id" db:"schedule_id"`
	CompanyID             string        `json:"company_id" db:"company_id"`
	SeatNumbers           SeatArray     `json:"seat_numbers" db:"seat_numbers"`
	PassengerDetails      PassengerList `json:"passenger_details" db:"passenger_details"`
	TotalAmount           int64         `json:"total_amount" db:"total_amount"` // minor currency units
	BookingStatus         BookingStatus `json:"booking_status" db:"booking_status"`
	PaymentStatus         PaymentStatus `json:"payment_status" db:"payment_status"`
	CancellationRequested bool          `json:"cancellation_requested" db:"cancellation_requested"`
	BookingReference      string        `json:"booking_reference" db:"booking_reference"`
	PaymentReference      *string       `json:"payment_reference,omitempty" db:"payment_reference"`
	CreatedAt             time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at" db:"updated_at"`
}

// ValidateIntegrity checks the structural invariants of a booking record.
// Seat list must be non-empty and unique, with exactly one passenger per seat.
func (b *Booking) ValidateIntegrity() error {
	if len(b.SeatNumbers) == 0 {
		return errors.New("booking has no seats")
	}

	seen := make(map[string]bool, len(b.SeatNumbers))
	for _, seat := range b.SeatNumbers {
		if seat == "" {
			return errors.New("booking has an empty seat code")
		}
		if seen[seat] {
			return fmt.Errorf("duplicate seat code %s in booking", seat)
		}
		seen[seat] = true
	}

	if len(b.PassengerDetails) != len(b.SeatNumbers) {
		return fmt.Errorf("passenger count (%d) does not match seat count (%d)",
			len(b.PassengerDetails), len(b.SeatNumbers))
	}

	if b.TotalAmount <= 0 {
		return errors.New("booking amount must be positive")
	}

	return nil
}

// DecideCancellation is the pure state-machine decision for a customer
// cancellation. It performs no I/O: the caller supplies the schedule's
// departure time and the current time, and applies the returned outcome
// in the same atomic unit as the inventory adjustment.
//
// An unpaid booking cancels outright and its seats are released. A paid
// booking only raises a cancellation request; refund eligibility is
// adjudicated by an admin, so the seats stay held.
func (b *Booking) DecideCancellation(departure, now time.Time) (CancelOutcome, error) {
	if b.BookingStatus == BookingStatusCancelled || b.BookingStatus == BookingStatusCompleted {
		return "", ErrNotCancellable
	}

	if !departure.After(now) {
		return "", ErrDepartureInPast
	}

	if b.PaymentStatus == PaymentStatusPaid {
		return CancelOutcomeRequested, nil
	}

	return CancelOutcomeCancelled, nil
}

// CanConfirm reports whether an admin may confirm this booking
func (b *Booking) CanConfirm() bool {
	return b.BookingStatus == BookingStatusPending
}

// CanDelete reports whether the customer may delete this booking record
func (b *Booking) CanDelete() bool {
	return b.BookingStatus == BookingStatusCancelled
}

// CanInitiatePayment reports whether a payment session may be started
func (b *Booking) CanInitiatePayment() bool {
	return b.BookingStatus == BookingStatusConfirmed && b.PaymentStatus != PaymentStatusPaid
}

// IsPaid reports whether the booking has settled successfully
func (b *Booking) IsPaid() bool {
	return b.PaymentStatus == PaymentStatusPaid
}

// CreateBookingRequest is the request body for reserving seats
type CreateBookingRequest struct {
	ScheduleID       string            `json:"schedule_id" binding:"required"`
	SeatNumbers      []string          `json:"seat_numbers" binding:"required,min=1"`
	PassengerDetails []PassengerDetail `json:"passenger_details" binding:"required,min=1"`
}

// Validate checks the structural requirements of a reservation request
func (r *CreateBookingRequest) Validate() error {
	if len(r.SeatNumbers) == 0 {
		return errors.New("at least one seat must be selected")
	}
	if len(r.SeatNumbers) > 10 {
		return errors.New("maximum 10 seats can be booked at once")
	}
	if len(r.PassengerDetails) != len(r.SeatNumbers) {
		return errors.New("one passenger entry is required per seat")
	}
	return nil
}

// CancelBookingResponse is returned from the customer cancel endpoint
type CancelBookingResponse struct {
	Outcome   CancelOutcome `json:"outcome"`
	BookingID string        `json:"booking_id"`
}

// InitiatePaymentRequest is the request body for starting a payment session
type InitiatePaymentRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required"`
	ContactPhone  string `json:"contact_phone" binding:"required"`
	ContactEmail  string `json:"contact_email,omitempty"`
}

// InitiatePaymentResponse carries the gateway checkout handle back to the client
type InitiatePaymentResponse struct {
	CheckoutURL   string `json:"checkout_url"`
	TransactionID string `json:"transaction_id"`
	Gateway       string `json:"gateway"`
	Amount        int64  `json:"amount"`
}

// VerifyPaymentRequest is the request body for payment verification
type VerifyPaymentRequest struct {
	Gateway       string `json:"gateway" binding:"required"`
	TransactionID string `json:"transaction_id" binding:"required"`
}

// VerifyPaymentResponse reports the reconciled payment state
type VerifyPaymentResponse struct {
	Status    PaymentStatus `json:"status"`
	BookingID string        `json:"booking_id"`
}
