package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventInitiated       PaymentEventType = "payment_initiated"
	PaymentEventInitiateFailed  PaymentEventType = "payment_initiate_failed"
	PaymentEventVerifyRequested PaymentEventType = "verify_requested"
	PaymentEventSuccess         PaymentEventType = "payment_success"
	PaymentEventFailed          PaymentEventType = "payment_failed"
	PaymentEventDuplicateVerify PaymentEventType = "duplicate_verify"
)

// JSONB wraps arbitrary JSON payloads stored in JSONB columns
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(src interface{}) error {
	if src == nil {
		*j = nil
		return nil
	}

	data, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported type for JSONB: %T", src)
	}
	return json.Unmarshal(data, j)
}

// PaymentAudit is an immutable log entry for every gateway interaction.
// Payment events must never fail silently, so each initiate and verify
// attempt leaves a row regardless of outcome.
type PaymentAudit struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	BookingID     string           `json:"booking_id" db:"booking_id"`
	Gateway       string           `json:"gateway" db:"gateway"`
	EventType     PaymentEventType `json:"event_type" db:"event_type"`
	Amount        *int64           `json:"amount,omitempty" db:"amount"`
	TransactionID *string          `json:"transaction_id,omitempty" db:"transaction_id"`
	ErrorMessage  *string          `json:"error_message,omitempty" db:"error_message"`
	DeviceInfo    JSONB            `json:"device_info,omitempty" db:"device_info"`
	IPAddress     *string          `json:"ip_address,omitempty" db:"ip_address"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
}
