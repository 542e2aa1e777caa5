package services

import (
	"errors"
	"fmt"
)

// The booking core classifies every failure into one of five kinds so
// handlers can map them to responses without string matching:
//
//   - not-found:       record missing, surfaced to the caller, no retry
//   - precondition:    wrong state for the requested transition, caller must
//     correct or abandon
//   - consistency:     the seat accounting invariant would break; fatal
//     internal error, logged and aborted, never silently repaired
//   - transient:       network or gateway I/O failed after bounded retries;
//     the caller may retry later
//   - gateway:         the payment provider declined; booking state otherwise
//     unchanged

// NotFoundError indicates a missing booking, schedule or reference entity
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// PreconditionError indicates the requested transition is not allowed from
// the record's current state
type PreconditionError struct {
	Reason string
	Err    error
}

func (e *PreconditionError) Error() string {
	return e.Reason
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// ConsistencyError indicates a seat inventory invariant violation. The
// precondition checks should make this unreachable; when it fires anyway the
// whole atomic unit has been rolled back.
type ConsistencyError struct {
	ScheduleID string
	Err        error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("seat inventory conflict on schedule %s: %v", e.ScheduleID, e.Err)
}

func (e *ConsistencyError) Unwrap() error {
	return e.Err
}

// TransientError indicates an I/O failure that persisted through retries
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s failed after retries: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// GatewayError indicates the payment provider rejected the request
type GatewayError struct {
	Gateway string
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s rejected payment: %s", e.Gateway, e.Message)
}

// IsNotFound reports whether err is a not-found failure
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsPrecondition reports whether err is a precondition failure
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// IsConsistency reports whether err is an inventory consistency failure
func IsConsistency(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}

// IsTransient reports whether err is a retryable I/O failure
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsGatewayRejection reports whether err is a payment provider decline
func IsGatewayRejection(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}
