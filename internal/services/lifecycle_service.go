package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/routemate/bus-booking-backend/internal/cache"
	"github.com/routemate/bus-booking-backend/internal/database"
	"github.com/routemate/bus-booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// LifecycleService is the booking lifecycle engine. It owns every status
// transition and is the only component allowed to request seat inventory
// mutations. Each transition that touches inventory runs the booking update
// and the seat adjustment in one transaction: both commit or both roll back.
type LifecycleService struct {
	db           *sqlx.DB
	bookingRepo  *database.BookingRepository
	scheduleRepo *database.ScheduleRepository
	entityCache  *cache.EntityCache
	notifier     *NotifierService
	logger       *logrus.Logger
}

// NewLifecycleService creates a new LifecycleService
func NewLifecycleService(
	db *sqlx.DB,
	bookingRepo *database.BookingRepository,
	scheduleRepo *database.ScheduleRepository,
	entityCache *cache.EntityCache,
	notifier *NotifierService,
	logger *logrus.Logger,
) *LifecycleService {
	return &LifecycleService{
		db:           db,
		bookingRepo:  bookingRepo,
		scheduleRepo: scheduleRepo,
		entityCache:  entityCache,
		notifier:     notifier,
		logger:       logger,
	}
}

// CreateBooking reserves seats for a customer. The seat hold and the booking
// insert are one atomic unit; the new booking starts as pending/pending and
// waits for operator review.
func (s *LifecycleService) CreateBooking(ctx context.Context, customerID string, req *models.CreateBookingRequest) (*models.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, &PreconditionError{Reason: err.Error(), Err: err}
	}

	schedule, err := s.getSchedule(req.ScheduleID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if schedule.HasDeparted(now) {
		return nil, &PreconditionError{Reason: "schedule has already departed", Err: models.ErrDepartureInPast}
	}

	reference, err := s.bookingRepo.GenerateBookingReference()
	if err != nil {
		return nil, fmt.Errorf("failed to generate booking reference: %w", err)
	}

	booking := &models.Booking{
		CustomerID:       customerID,
		ScheduleID:       schedule.ID,
		CompanyID:        schedule.CompanyID,
		SeatNumbers:      models.SeatArray(req.SeatNumbers),
		PassengerDetails: models.PassengerList(req.PassengerDetails),
		TotalAmount:      schedule.Price * int64(len(req.SeatNumbers)),
		BookingStatus:    models.BookingStatusPending,
		PaymentStatus:    models.PaymentStatusPending,
		BookingReference: reference,
	}

	if err := booking.ValidateIntegrity(); err != nil {
		return nil, &PreconditionError{Reason: err.Error(), Err: err}
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.scheduleRepo.HoldSeatsTx(tx, schedule.ID, req.SeatNumbers); err != nil {
		if errors.Is(err, database.ErrInventoryConflict) {
			return nil, &PreconditionError{Reason: "selected seats are no longer available", Err: err}
		}
		return nil, fmt.Errorf("failed to hold seats: %w", err)
	}

	if err := s.bookingRepo.CreateTx(tx, booking); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit booking: %w", err)
	}

	s.entityCache.Invalidate(ctx, cache.Key("schedule", schedule.ID))
	s.notifier.Observe(ctx, booking)

	s.logger.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"customer_id": customerID,
		"schedule_id": schedule.ID,
		"seats":       len(booking.SeatNumbers),
		"reference":   booking.BookingReference,
	}).Info("Booking created")

	return booking, nil
}

// Cancel handles a customer cancellation. An unpaid booking is cancelled
// outright and its seats return to inventory in the same atomic unit. A paid
// booking only raises a cancellation request; the seats stay held until an
// admin adjudicates the refund.
func (s *LifecycleService) Cancel(ctx context.Context, bookingID, customerID string) (*models.CancelBookingResponse, error) {
	booking, err := s.getOwnedBooking(bookingID, customerID)
	if err != nil {
		return nil, err
	}

	if err := booking.ValidateIntegrity(); err != nil {
		return nil, &PreconditionError{Reason: fmt.Sprintf("booking data is inconsistent: %v", err), Err: err}
	}

	schedule, err := s.getSchedule(booking.ScheduleID)
	if err != nil {
		return nil, err
	}

	outcome, err := booking.DecideCancellation(schedule.DepartureDatetime, time.Now())
	if err != nil {
		return nil, &PreconditionError{Reason: err.Error(), Err: err}
	}

	if outcome == models.CancelOutcomeRequested {
		if err := s.bookingRepo.SetCancellationRequested(bookingID, true); err != nil {
			return nil, fmt.Errorf("failed to record cancellation request: %w", err)
		}
		booking.CancellationRequested = true
		s.notifier.Observe(ctx, booking)

		s.logger.WithFields(logrus.Fields{
			"booking_id": bookingID,
			"reference":  booking.BookingReference,
		}).Info("Cancellation requested on paid booking, awaiting adjudication")

		return &models.CancelBookingResponse{Outcome: outcome, BookingID: bookingID}, nil
	}

	if err := s.cancelAndRelease(booking); err != nil {
		return nil, err
	}

	s.entityCache.Invalidate(ctx, cache.Key("schedule", booking.ScheduleID))
	s.notifier.Observe(ctx, booking)

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"reference":  booking.BookingReference,
		"seats":      len(booking.SeatNumbers),
	}).Info("Booking cancelled, seats released")

	return &models.CancelBookingResponse{Outcome: outcome, BookingID: bookingID}, nil
}

// Confirm is the admin approval of a pending booking. No inventory change:
// the seats were held at reservation time.
func (s *LifecycleService) Confirm(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := s.getBooking(bookingID)
	if err != nil {
		return nil, err
	}

	if !booking.CanConfirm() {
		return nil, &PreconditionError{Reason: "only pending bookings can be confirmed", Err: models.ErrNotConfirmable}
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = s.bookingRepo.UpdateStatusTx(tx, bookingID,
		models.BookingStatusPending, models.BookingStatusConfirmed,
		booking.PaymentStatus, booking.CancellationRequested)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &PreconditionError{Reason: "booking was modified concurrently", Err: err}
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit confirmation: %w", err)
	}

	booking.BookingStatus = models.BookingStatusConfirmed
	s.notifier.Observe(ctx, booking)

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"reference":  booking.BookingReference,
	}).Info("Booking confirmed by admin")

	return booking, nil
}

// ApproveCancellation is the admin adjudication of a cancellation request on
// a paid booking: the booking becomes cancelled and its seats are released in
// one atomic unit. Refund settlement is handled outside the booking core.
func (s *LifecycleService) ApproveCancellation(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := s.getBooking(bookingID)
	if err != nil {
		return nil, err
	}

	if !booking.CancellationRequested || booking.BookingStatus != models.BookingStatusConfirmed {
		return nil, &PreconditionError{Reason: "booking has no pending cancellation request", Err: models.ErrNoCancellation}
	}

	if err := s.cancelAndRelease(booking); err != nil {
		return nil, err
	}

	s.entityCache.Invalidate(ctx, cache.Key("schedule", booking.ScheduleID))
	s.notifier.Observe(ctx, booking)

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"reference":  booking.BookingReference,
	}).Info("Cancellation request approved, seats released")

	return booking, nil
}

// RejectCancellation clears a cancellation request without changing anything
// else; the booking stays confirmed and paid.
func (s *LifecycleService) RejectCancellation(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := s.getBooking(bookingID)
	if err != nil {
		return nil, err
	}

	if !booking.CancellationRequested {
		return nil, &PreconditionError{Reason: "booking has no pending cancellation request", Err: models.ErrNoCancellation}
	}

	if err := s.bookingRepo.SetCancellationRequested(bookingID, false); err != nil {
		return nil, fmt.Errorf("failed to clear cancellation request: %w", err)
	}

	booking.CancellationRequested = false
	s.notifier.Observe(ctx, booking)

	return booking, nil
}

// DeleteCancelled removes a cancelled booking record at the customer's
// request. Inventory is untouched: the seats were already released at
// cancellation time.
func (s *LifecycleService) DeleteCancelled(ctx context.Context, bookingID, customerID string) error {
	booking, err := s.getOwnedBooking(bookingID, customerID)
	if err != nil {
		return err
	}

	if !booking.CanDelete() {
		return &PreconditionError{Reason: "only cancelled bookings can be deleted", Err: models.ErrNotDeletable}
	}

	if err := s.bookingRepo.Delete(bookingID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return &NotFoundError{Entity: "booking", ID: bookingID}
		}
		return fmt.Errorf("failed to delete booking: %w", err)
	}

	s.notifier.Forget(customerID, bookingID)

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"reference":  booking.BookingReference,
	}).Info("Cancelled booking deleted")

	return nil
}

// CompleteDepartedBookings transitions confirmed, paid bookings whose trip
// has departed into the completed state. Run periodically.
func (s *LifecycleService) CompleteDepartedBookings(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.bookingRepo.GetDepartedPaid(now)
	if err != nil {
		return 0, fmt.Errorf("failed to find departed bookings: %w", err)
	}

	completed := 0
	for _, id := range ids {
		if err := s.bookingRepo.MarkCompleted(id); err != nil {
			s.logger.WithError(err).WithField("booking_id", id).Warn("Failed to complete booking")
			continue
		}
		completed++

		if booking, err := s.bookingRepo.GetByID(id); err == nil {
			s.notifier.Observe(ctx, booking)
		}
	}

	if completed > 0 {
		s.logger.WithField("count", completed).Info("Departed bookings marked completed")
	}

	return completed, nil
}

// cancelAndRelease applies the cancelled status and returns the booking's
// seats to inventory as a single transaction. An inventory conflict means the
// accounting invariant would break; the unit rolls back and the failure is
// surfaced, never repaired silently.
func (s *LifecycleService) cancelAndRelease(booking *models.Booking) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = s.bookingRepo.UpdateStatusTx(tx, booking.ID,
		booking.BookingStatus, models.BookingStatusCancelled,
		booking.PaymentStatus, booking.CancellationRequested)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return &PreconditionError{Reason: "booking was modified concurrently", Err: err}
		}
		return err
	}

	if err := s.scheduleRepo.ReleaseSeatsTx(tx, booking.ScheduleID, booking.SeatNumbers); err != nil {
		if errors.Is(err, database.ErrInventoryConflict) {
			consistency := &ConsistencyError{ScheduleID: booking.ScheduleID, Err: err}
			s.logger.WithFields(logrus.Fields{
				"booking_id":  booking.ID,
				"schedule_id": booking.ScheduleID,
				"seats":       []string(booking.SeatNumbers),
			}).Error("Seat release would break inventory accounting, rolling back")
			return consistency
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cancellation: %w", err)
	}

	booking.BookingStatus = models.BookingStatusCancelled
	return nil
}

func (s *LifecycleService) getBooking(bookingID string) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "booking", ID: bookingID}
		}
		return nil, err
	}
	return booking, nil
}

func (s *LifecycleService) getOwnedBooking(bookingID, customerID string) (*models.Booking, error) {
	booking, err := s.getBooking(bookingID)
	if err != nil {
		return nil, err
	}

	// Ownership failures look identical to missing records on purpose
	if booking.CustomerID != customerID {
		return nil, &NotFoundError{Entity: "booking", ID: bookingID}
	}

	return booking, nil
}

func (s *LifecycleService) getSchedule(scheduleID string) (*models.Schedule, error) {
	schedule, err := s.scheduleRepo.GetByID(scheduleID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "schedule", ID: scheduleID}
		}
		return nil, err
	}
	return schedule, nil
}
