package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/routemate/bus-booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db *sqlx.DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log creates a new payment audit entry.
// Payment events must never fail silently: an insert error is logged at Error
// level in addition to being returned.
func (r *PaymentAuditRepository) Log(audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (
			id, booking_id, gateway, event_type, amount,
			transaction_id, error_message, device_info, ip_address, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)`

	_, err := r.db.Exec(query,
		audit.ID, audit.BookingID, audit.Gateway, audit.EventType, audit.Amount,
		audit.TransactionID, audit.ErrorMessage, audit.DeviceInfo, audit.IPAddress,
		audit.CreatedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": audit.BookingID,
			"event_type": audit.EventType,
		}).Error("Failed to write payment audit entry")
		return fmt.Errorf("failed to write payment audit: %w", err)
	}

	return nil
}

// GetByBookingID returns the audit trail for a booking, oldest first
func (r *PaymentAuditRepository) GetByBookingID(bookingID string) ([]models.PaymentAudit, error) {
	query := `
		SELECT id, booking_id, gateway, event_type, amount,
		       transaction_id, error_message, device_info, ip_address, created_at
		FROM payment_audits
		WHERE booking_id = $1
		ORDER BY created_at ASC
	`

	var audits []models.PaymentAudit
	if err := r.db.Select(&audits, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to get payment audits: %w", err)
	}

	return audits, nil
}
