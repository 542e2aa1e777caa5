// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingChangeEvent is published when a watched booking's status or payment
// state transitions. It carries enough information for downstream notification
// consumers to render a user-facing message without querying the database.
type BookingChangeEvent struct {
	BookingID        string `json:"booking_id"`
	CustomerID       string `json:"customer_id"`
	BookingReference string `json:"booking_reference"`
	Title            string `json:"title"`
	Message          string `json:"message"`
	ActionURL        string `json:"action_url,omitempty"`
	PreviousStatus   string `json:"previous_status"`
	NewStatus        string `json:"new_status"`
	EmittedAt        string `json:"emitted_at"`
}
