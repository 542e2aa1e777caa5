package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/routemate/bus-booking-backend/internal/database"
	"github.com/routemate/bus-booking-backend/internal/models"
	"github.com/routemate/bus-booking-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

const paymentCurrency = "LKR"

// PaymentService reconciles booking payments with the external gateways.
// Settlement only ever moves payment_status; the booking lifecycle state is
// owned by the lifecycle engine. Every initiate and verify attempt leaves a
// payment audit row regardless of outcome.
type PaymentService struct {
	bookingRepo  *database.BookingRepository
	scheduleRepo *database.ScheduleRepository
	routeRepo    *database.RouteRepository
	auditRepo    *database.PaymentAuditRepository
	gateways     map[string]PaymentGateway
	notifier     *NotifierService
	retry        utils.RetryConfig
	logger       *logrus.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	bookingRepo *database.BookingRepository,
	scheduleRepo *database.ScheduleRepository,
	routeRepo *database.RouteRepository,
	auditRepo *database.PaymentAuditRepository,
	gateways []PaymentGateway,
	notifier *NotifierService,
	logger *logrus.Logger,
) *PaymentService {
	byName := make(map[string]PaymentGateway, len(gateways))
	for _, gw := range gateways {
		byName[gw.Name()] = gw
	}

	return &PaymentService{
		bookingRepo:  bookingRepo,
		scheduleRepo: scheduleRepo,
		routeRepo:    routeRepo,
		auditRepo:    auditRepo,
		gateways:     byName,
		notifier:     notifier,
		retry:        utils.DefaultRetry,
		logger:       logger,
	}
}

// RequestContext carries the caller's device fingerprint for the audit trail
type RequestContext struct {
	DeviceInfo utils.DeviceInfo
	IPAddress  string
}

// Initiate starts a payment session for a confirmed, unpaid booking. A
// gateway failure leaves the booking untouched; only the audit trail records
// the attempt.
func (s *PaymentService) Initiate(ctx context.Context, bookingID, customerID string, req *models.InitiatePaymentRequest, rc *RequestContext) (*models.InitiatePaymentResponse, error) {
	booking, err := s.getOwnedBooking(bookingID, customerID)
	if err != nil {
		return nil, err
	}

	if !booking.CanInitiatePayment() {
		return nil, &PreconditionError{Reason: "booking is not awaiting payment", Err: models.ErrPaymentNotAllowed}
	}

	contact, err := normalizeContact(req.ContactPhone)
	if err != nil {
		return nil, &PreconditionError{Reason: err.Error(), Err: err}
	}

	schedule, err := s.scheduleRepo.GetByID(booking.ScheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}

	route, err := s.routeRepo.GetByID(schedule.RouteID)
	if err != nil {
		return nil, fmt.Errorf("failed to load route: %w", err)
	}

	gateway := s.gateways[selectGatewayName(req.PaymentMethod)]
	checkout := &CheckoutRequest{
		BookingID:      booking.ID,
		InvoiceID:      booking.BookingReference,
		Amount:         booking.TotalAmount,
		Currency:       paymentCurrency,
		ContactPhone:   contact,
		ContactEmail:   req.ContactEmail,
		RouteName:      route.DisplayName(),
		Departure:      schedule.DepartureDatetime,
		PassengerCount: len(booking.PassengerDetails),
		SeatCodes:      booking.SeatNumbers,
	}

	session, err := s.callCreateCheckout(ctx, gateway, checkout)
	if err != nil {
		s.audit(booking, gateway.Name(), models.PaymentEventInitiateFailed, nil, errText(err), rc)
		return nil, err
	}

	// Record the gateway reference so verification can find the booking;
	// payment status stays pending until the gateway settles.
	if err := s.bookingRepo.UpdatePaymentStatus(booking.ID, models.PaymentStatusPending, &session.TransactionID); err != nil {
		return nil, fmt.Errorf("failed to record payment reference: %w", err)
	}

	s.audit(booking, gateway.Name(), models.PaymentEventInitiated, &session.TransactionID, nil, rc)

	s.logger.WithFields(logrus.Fields{
		"booking_id":     booking.ID,
		"gateway":        gateway.Name(),
		"transaction_id": session.TransactionID,
		"amount":         booking.TotalAmount,
	}).Info("Payment session initiated")

	return &models.InitiatePaymentResponse{
		CheckoutURL:   session.CheckoutURL,
		TransactionID: session.TransactionID,
		Gateway:       gateway.Name(),
		Amount:        booking.TotalAmount,
	}, nil
}

// Verify reconciles a gateway transaction with the booking record. Verifying
// an already-paid booking is a no-op reporting the current state, so webhook
// deliveries and client polling can overlap safely.
func (s *PaymentService) Verify(ctx context.Context, req *models.VerifyPaymentRequest, rc *RequestContext) (*models.VerifyPaymentResponse, error) {
	gateway, ok := s.gateways[req.Gateway]
	if !ok {
		return nil, &PreconditionError{Reason: fmt.Sprintf("unknown payment gateway %q", req.Gateway)}
	}

	booking, err := s.bookingRepo.GetByPaymentReference(req.TransactionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "transaction", ID: req.TransactionID}
		}
		return nil, err
	}

	s.audit(booking, gateway.Name(), models.PaymentEventVerifyRequested, &req.TransactionID, nil, rc)

	if booking.IsPaid() {
		s.audit(booking, gateway.Name(), models.PaymentEventDuplicateVerify, &req.TransactionID, nil, rc)
		return &models.VerifyPaymentResponse{Status: booking.PaymentStatus, BookingID: booking.ID}, nil
	}

	result, err := s.callVerify(ctx, gateway, req.TransactionID)
	if err != nil {
		return nil, err
	}

	switch result.Status {
	case "paid":
		if err := s.bookingRepo.UpdatePaymentStatus(booking.ID, models.PaymentStatusPaid, &req.TransactionID); err != nil {
			return nil, fmt.Errorf("failed to record settlement: %w", err)
		}
		booking.PaymentStatus = models.PaymentStatusPaid
		s.audit(booking, gateway.Name(), models.PaymentEventSuccess, &req.TransactionID, nil, rc)
		s.notifier.Observe(ctx, booking)

		s.logger.WithFields(logrus.Fields{
			"booking_id":     booking.ID,
			"transaction_id": req.TransactionID,
		}).Info("Payment settled")

	case "failed":
		if err := s.bookingRepo.UpdatePaymentStatus(booking.ID, models.PaymentStatusFailed, &req.TransactionID); err != nil {
			return nil, fmt.Errorf("failed to record payment failure: %w", err)
		}
		booking.PaymentStatus = models.PaymentStatusFailed
		s.audit(booking, gateway.Name(), models.PaymentEventFailed, &req.TransactionID, nil, rc)
		s.notifier.Observe(ctx, booking)

	default:
		// Still pending at the gateway, nothing to record
	}

	return &models.VerifyPaymentResponse{Status: booking.PaymentStatus, BookingID: booking.ID}, nil
}

// AuditTrail returns the payment history of a booking the customer owns
func (s *PaymentService) AuditTrail(bookingID, customerID string) ([]models.PaymentAudit, error) {
	if _, err := s.getOwnedBooking(bookingID, customerID); err != nil {
		return nil, err
	}
	return s.auditRepo.GetByBookingID(bookingID)
}

// callCreateCheckout retries transport failures with bounded backoff. A
// gateway decline is final and never retried.
func (s *PaymentService) callCreateCheckout(ctx context.Context, gateway PaymentGateway, req *CheckoutRequest) (*CheckoutSession, error) {
	var (
		session  *CheckoutSession
		declined error
	)

	err := utils.Retry(ctx, s.retry, func() error {
		var callErr error
		session, callErr = gateway.CreateCheckout(ctx, req)
		if callErr != nil && IsGatewayRejection(callErr) {
			declined = callErr
			return nil
		}
		return callErr
	})
	if err != nil {
		return nil, &TransientError{Op: "payment initiation", Err: err}
	}
	if declined != nil {
		return nil, declined
	}

	return session, nil
}

func (s *PaymentService) callVerify(ctx context.Context, gateway PaymentGateway, transactionID string) (*VerificationResult, error) {
	var (
		result   *VerificationResult
		declined error
	)

	err := utils.Retry(ctx, s.retry, func() error {
		var callErr error
		result, callErr = gateway.VerifyTransaction(ctx, transactionID)
		if callErr != nil && IsGatewayRejection(callErr) {
			declined = callErr
			return nil
		}
		return callErr
	})
	if err != nil {
		return nil, &TransientError{Op: "payment verification", Err: err}
	}
	if declined != nil {
		return nil, declined
	}

	return result, nil
}

func (s *PaymentService) audit(booking *models.Booking, gateway string, event models.PaymentEventType, transactionID, errorMessage *string, rc *RequestContext) {
	entry := &models.PaymentAudit{
		BookingID:     booking.ID,
		Gateway:       gateway,
		EventType:     event,
		Amount:        &booking.TotalAmount,
		TransactionID: transactionID,
		ErrorMessage:  errorMessage,
	}

	if rc != nil {
		entry.DeviceInfo = models.JSONB(rc.DeviceInfo.ToMap())
		if rc.IPAddress != "" {
			ip := rc.IPAddress
			entry.IPAddress = &ip
		}
	}

	// Log already reports insert failures; the payment flow never aborts on
	// a broken audit write.
	_ = s.auditRepo.Log(entry)
}

func (s *PaymentService) getOwnedBooking(bookingID, customerID string) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "booking", ID: bookingID}
		}
		return nil, err
	}

	if booking.CustomerID != customerID {
		return nil, &NotFoundError{Entity: "booking", ID: bookingID}
	}

	return booking, nil
}

// normalizeContact strips formatting from a phone number and rewrites the
// local 0 prefix to the +94 country code
func normalizeContact(phone string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, phone)

	if strings.HasPrefix(cleaned, "0") && len(cleaned) == 10 {
		cleaned = "+94" + cleaned[1:]
	}

	if len(cleaned) < 10 {
		return "", fmt.Errorf("invalid contact number")
	}

	return cleaned, nil
}

func errText(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}
