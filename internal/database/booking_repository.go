package database

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/routemate/bus-booking-backend/internal/models"
)

const bookingColumns = `id, customer_id, schedule_id, company_id, seat_numbers,
	   passenger_details, total_amount, booking_status, payment_status,
	   cancellation_requested, booking_reference, payment_reference,
	   created_at, updated_at`

// BookingRepository handles database operations for the bookings table
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// GenerateBookingReference generates a unique booking reference.
// Format: BK-YYYYMMDD-XXXXXX (6 char alphanumeric)
// Example: BK-20260829-A1B2C3
func (r *BookingRepository) GenerateBookingReference() (string, error) {
	todayStr := time.Now().Format("20060102")

	for attempts := 0; attempts < 10; attempts++ {
		randomBytes := make([]byte, 3)
		if _, err := rand.Read(randomBytes); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		randomStr := strings.ToUpper(hex.EncodeToString(randomBytes))

		newRef := fmt.Sprintf("BK-%s-%s", todayStr, randomStr)

		var count int
		err := r.db.Get(&count, `SELECT COUNT(*) FROM bookings WHERE booking_reference = $1`, newRef)
		if err != nil {
			return "", fmt.Errorf("failed to check reference uniqueness: %w", err)
		}

		if count == 0 {
			return newRef, nil
		}
	}

	return "", fmt.Errorf("failed to generate unique booking reference after 10 attempts")
}

// CreateTx inserts a new booking inside the caller's transaction
func (r *BookingRepository) CreateTx(tx *sqlx.Tx, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}

	query := `
		INSERT INTO bookings (
			id, customer_id, schedule_id, company_id, seat_numbers,
			passenger_details, total_amount, booking_status, payment_status,
			cancellation_requested, booking_reference
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		RETURNING created_at, updated_at
	`

	return tx.QueryRow(
		query,
		booking.ID, booking.CustomerID, booking.ScheduleID, booking.CompanyID,
		booking.SeatNumbers, booking.PassengerDetails, booking.TotalAmount,
		booking.BookingStatus, booking.PaymentStatus,
		booking.CancellationRequested, booking.BookingReference,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)
}

// GetByID retrieves a booking by ID
func (r *BookingRepository) GetByID(bookingID string) (*models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1`, bookingColumns)

	var booking models.Booking
	if err := r.db.Get(&booking, query, bookingID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	return &booking, nil
}

// GetByPaymentReference retrieves a booking by its gateway transaction reference
func (r *BookingRepository) GetByPaymentReference(reference string) (*models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE payment_reference = $1`, bookingColumns)

	var booking models.Booking
	if err := r.db.Get(&booking, query, reference); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking by payment reference: %w", err)
	}

	return &booking, nil
}

// GetByCustomerID retrieves all bookings for a customer, newest first
func (r *BookingRepository) GetByCustomerID(customerID string) ([]models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE customer_id = $1 ORDER BY created_at DESC`, bookingColumns)

	var bookings []models.Booking
	if err := r.db.Select(&bookings, query, customerID); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	return bookings, nil
}

// GetDepartedPaid returns ids of confirmed, paid bookings whose schedule has
// already departed. Used by the completion sweep.
func (r *BookingRepository) GetDepartedPaid(now time.Time) ([]string, error) {
	query := `
		SELECT b.id
		FROM bookings b
		JOIN schedules s ON s.id = b.schedule_id
		WHERE b.booking_status = 'confirmed'
		  AND b.payment_status = 'paid'
		  AND s.departure_datetime <= $1
	`

	var ids []string
	if err := r.db.Select(&ids, query, now); err != nil {
		return nil, fmt.Errorf("failed to list departed bookings: %w", err)
	}

	return ids, nil
}

// UpdateStatusTx updates booking and payment status inside the caller's
// transaction. The WHERE clause re-checks the previous status so a concurrent
// transition on the same booking loses cleanly instead of being overwritten.
func (r *BookingRepository) UpdateStatusTx(
	tx *sqlx.Tx,
	bookingID string,
	fromStatus, toStatus models.BookingStatus,
	paymentStatus models.PaymentStatus,
	cancellationRequested bool,
) error {
	query := `
		UPDATE bookings
		SET booking_status = $1, payment_status = $2,
		    cancellation_requested = $3, updated_at = NOW()
		WHERE id = $4 AND booking_status = $5
	`

	result, err := tx.Exec(query, toStatus, paymentStatus, cancellationRequested, bookingID, fromStatus)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SetCancellationRequested flips the cancellation request flag on a booking
func (r *BookingRepository) SetCancellationRequested(bookingID string, requested bool) error {
	query := `
		UPDATE bookings
		SET cancellation_requested = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.Exec(query, requested, bookingID)
	if err != nil {
		return fmt.Errorf("failed to update cancellation request: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdatePaymentStatus records the reconciled gateway result. Booking status is
// deliberately untouched: settlement never moves the lifecycle state itself.
func (r *BookingRepository) UpdatePaymentStatus(bookingID string, status models.PaymentStatus, transactionID *string) error {
	query := `
		UPDATE bookings
		SET payment_status = $1, payment_reference = $2, updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.db.Exec(query, status, transactionID, bookingID)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete physically removes a booking record. The lifecycle engine only calls
// this for cancelled bookings whose seats were already returned to inventory.
func (r *BookingRepository) Delete(bookingID string) error {
	result, err := r.db.Exec(`DELETE FROM bookings WHERE id = $1`, bookingID)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkCompleted transitions a departed paid booking to completed
func (r *BookingRepository) MarkCompleted(bookingID string) error {
	query := `
		UPDATE bookings
		SET booking_status = 'completed', updated_at = NOW()
		WHERE id = $1 AND booking_status = 'confirmed' AND payment_status = 'paid'
	`

	result, err := r.db.Exec(query, bookingID)
	if err != nil {
		return fmt.Errorf("failed to mark booking completed: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
