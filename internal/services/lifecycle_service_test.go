package services

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/jmoiron/sqlx"
	"github.com/routemate/bus-booking-backend/internal/cache"
	"github.com/routemate/bus-booking-backend/internal/database"
	"github.com/routemate/bus-booking-backend/internal/models"
	"github.com/routemate/bus-booking-backend/internal/queue"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturePublisher records emitted events instead of touching a broker
type capturePublisher struct {
	mu      sync.Mutex
	status  []queue.BookingChangeEvent
	payment []queue.BookingChangeEvent
}

func (p *capturePublisher) PublishStatusChanged(_ context.Context, event queue.BookingChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = append(p.status, event)
	return nil
}

func (p *capturePublisher) PublishPaymentChanged(_ context.Context, event queue.BookingChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payment = append(p.payment, event)
	return nil
}

func (p *capturePublisher) statusEvents() []queue.BookingChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.BookingChangeEvent(nil), p.status...)
}

func (p *capturePublisher) paymentEvents() []queue.BookingChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.BookingChangeEvent(nil), p.payment...)
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type lifecycleFixture struct {
	service   *LifecycleService
	notifier  *NotifierService
	publisher *capturePublisher
	mock      sqlmock.Sqlmock
	redisMock redismock.ClientMock
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	sqlxDB := sqlx.NewDb(db, "sqlmock")

	redisClient, redisMock := redismock.NewClientMock()
	logger := newTestLogger()

	publisher := &capturePublisher{}
	notifier := NewNotifierService(publisher, logger)

	service := NewLifecycleService(
		sqlxDB,
		database.NewBookingRepository(sqlxDB),
		database.NewScheduleRepository(sqlxDB),
		cache.NewEntityCache(redisClient, time.Minute, logger),
		notifier,
		logger,
	)

	return &lifecycleFixture{
		service:   service,
		notifier:  notifier,
		publisher: publisher,
		mock:      mock,
		redisMock: redisMock,
	}
}

func svcBookingRows(status models.BookingStatus, payment models.PaymentStatus, requested bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "customer_id", "schedule_id", "company_id", "seat_numbers",
		"passenger_details", "total_amount", "booking_status", "payment_status",
		"cancellation_requested", "booking_reference", "payment_reference",
		"created_at", "updated_at",
	}).AddRow(
		"bk-1", "cust-1", "sched-1", "co-1", "{A1,A2}",
		[]byte(`[{"name":"Kasun Perera","age":34,"gender":"male","seat_number":"A1"},
		         {"name":"Nimali Perera","age":31,"gender":"female","seat_number":"A2"}]`),
		250000, string(status), string(payment),
		requested, "BK-20260829-A1B2C3", nil,
		now, now,
	)
}

func svcScheduleRows(departure time.Time) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "company_id", "bus_id", "route_id", "departure_datetime",
		"arrival_datetime", "price", "total_seats", "available_seats",
		"booked_seats", "created_at", "updated_at",
	}).AddRow(
		"sched-1", "co-1", "bus-1", "route-1", departure,
		departure.Add(4*time.Hour), 125000, 40, 38,
		"{A1,A2}", now, now,
	)
}

func validCreateRequest() *models.CreateBookingRequest {
	return &models.CreateBookingRequest{
		ScheduleID:  "sched-1",
		SeatNumbers: []string{"B1", "B2"},
		PassengerDetails: []models.PassengerDetail{
			{Name: "Kasun Perera", Age: 34, Gender: "male", SeatNumber: "B1"},
			{Name: "Nimali Perera", Age: 31, Gender: "female", SeatNumber: "B2"},
		},
	}
}

func TestCreateBooking(t *testing.T) {
	t.Run("Seat Hold And Insert Commit Together", func(t *testing.T) {
		f := newLifecycleFixture(t)
		now := time.Now()

		f.mock.ExpectQuery(`SELECT (.+) FROM schedules`).
			WithArgs("sched-1").
			WillReturnRows(svcScheduleRows(now.Add(24 * time.Hour)))
		f.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		f.mock.ExpectBegin()
		f.mock.ExpectExec(`UPDATE schedules`).
			WithArgs("sched-1", 2, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectQuery(`INSERT INTO bookings`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		f.mock.ExpectCommit()
		f.redisMock.ExpectDel("entity:schedule:sched-1").SetVal(1)

		booking, err := f.service.CreateBooking(context.Background(), "cust-1", validCreateRequest())
		require.NoError(t, err)

		assert.Equal(t, models.BookingStatusPending, booking.BookingStatus)
		assert.Equal(t, models.PaymentStatusPending, booking.PaymentStatus)
		assert.Equal(t, int64(250000), booking.TotalAmount)
		assert.Regexp(t, `^BK-\d{8}-[0-9A-F]{6}$`, booking.BookingReference)

		assert.NoError(t, f.mock.ExpectationsWereMet())
		assert.NoError(t, f.redisMock.ExpectationsWereMet())
	})

	t.Run("Seat Conflict Rolls Back Insert", func(t *testing.T) {
		f := newLifecycleFixture(t)
		now := time.Now()

		f.mock.ExpectQuery(`SELECT (.+) FROM schedules`).
			WithArgs("sched-1").
			WillReturnRows(svcScheduleRows(now.Add(24 * time.Hour)))
		f.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		f.mock.ExpectBegin()
		f.mock.ExpectExec(`UPDATE schedules`).
			WithArgs("sched-1", 2, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))
		f.mock.ExpectRollback()

		_, err := f.service.CreateBooking(context.Background(), "cust-1", validCreateRequest())
		assert.True(t, IsPrecondition(err))

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Departed Schedule Rejected", func(t *testing.T) {
		f := newLifecycleFixture(t)

		f.mock.ExpectQuery(`SELECT (.+) FROM schedules`).
			WithArgs("sched-1").
			WillReturnRows(svcScheduleRows(time.Now().Add(-time.Hour)))

		_, err := f.service.CreateBooking(context.Background(), "cust-1", validCreateRequest())
		assert.True(t, IsPrecondition(err))

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Malformed Request Rejected Without IO", func(t *testing.T) {
		f := newLifecycleFixture(t)

		req := validCreateRequest()
		req.PassengerDetails = req.PassengerDetails[:1]

		_, err := f.service.CreateBooking(context.Background(), "cust-1", req)
		assert.True(t, IsPrecondition(err))

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestConfirmBooking(t *testing.T) {
	t.Run("Pending Booking Confirmed", func(t *testing.T) {
		f := newLifecycleFixture(t)

		f.mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WithArgs("bk-1").
			WillReturnRows(svcBookingRows(models.BookingStatusPending, models.PaymentStatusPending, false))
		f.mock.ExpectBegin()
		f.mock.ExpectExec(`UPDATE bookings`).
			WithArgs(models.BookingStatusConfirmed, models.PaymentStatusPending, false, "bk-1", models.BookingStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectCommit()

		booking, err := f.service.Confirm(context.Background(), "bk-1")
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusConfirmed, booking.BookingStatus)

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Already Confirmed Rejected", func(t *testing.T) {
		f := newLifecycleFixture(t)

		f.mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WithArgs("bk-1").
			WillReturnRows(svcBookingRows(models.BookingStatusConfirmed, models.PaymentStatusPending, false))

		_, err := f.service.Confirm(context.Background(), "bk-1")
		assert.True(t, IsPrecondition(err))

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Concurrent Transition Loses Cleanly", func(t *testing.T) {
		f := newLifecycleFixture(t)

		f.mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WithArgs("bk-1").
			WillReturnRows(svcBookingRows(models.BookingStatusPending, models.PaymentStatusPending, false))
		f.mock.ExpectBegin()
		f.mock.ExpectExec(`UPDATE bookings`).
			WithArgs(models.BookingStatusConfirmed, models.PaymentStatusPending, false, "bk-1", models.BookingStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 0))
		f.mock.ExpectRollback()

		_, err := f.service.Confirm(context.Background(), "bk-1")
		assert.True(t, IsPrecondition(err))

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestCancelBooking(t *testing.T) {
	t.Run("Unpaid Booking Cancels And Releases Seats", func(t *testing.T) {
		f := newLifecycleFixture(t)
		now := time.Now()

		// The customer watches their bookings, so the cancellation must emit
		// exactly one status change event.
		f.notifier.Subscribe("cust-1", []models.Booking{{
			ID:            "bk-1",
			CustomerID:    "cust-1",
			BookingStatus: models.BookingStatusConfirmed,
			PaymentStatus: models.PaymentStatusPending,
		}})

		f.mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WithArgs("bk-1").
			WillReturnRows(svcBookingRows(models.BookingStatusConfirmed, models.PaymentStatusPending, false))
		f.mock.ExpectQuery(`SELECT (.+) FROM schedules`).
			WithArgs("sched-1").
			WillReturnRows(svcScheduleRows(now.Add(24 * time.Hour)))
		f.mock.ExpectBegin()
		f.mock.ExpectExec(`UPDATE bookings`).
			WithArgs(models.BookingStatusCancelled, models.PaymentStatusPending, false, "bk-1", models.BookingStatusConfirmed).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectExec(`UPDATE schedules`).
			WithArgs("sched-1", 2, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectCommit()
		f.redisMock.ExpectDel("entity:schedule:sched-1").SetVal(1)

		resp, err := f.service.Cancel(context.Background(), "bk-1", "cust-1")
		require.NoError(t, err)
		assert.Equal(t, models.CancelOutcomeCancelled, resp.Outcome)

		events := f.publisher.statusEvents()
		require.Len(t, events, 1)
		assert.Equal(t, string(models.BookingStatusCancelled), events[0].NewStatus)

		assert.NoError(t, f.mock.ExpectationsWereMet())
		assert.NoError(t, f.redisMock.ExpectationsWereMet())
	})

	t.Run("Paid Booking Raises Request, Seats Stay Held", func(t *testing.T) {
		f := newLifecycleFixture(t)
		now := time.Now()

		f.mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WithArgs("bk-1").
			WillReturnRows(svcBookingRows(models.BookingStatusConfirmed, models.PaymentStatusPaid, false))
		f.mock.ExpectQuery(`SELECT (.+) FROM schedules`).
			WithArgs("sched-1").
			WillReturnRows(svcScheduleRows(now.Add(24 * time.Hour)))
		f.mock.ExpectExec(`UPDATE bookings`).
			WithArgs(true, "bk-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		resp, err := f.service.Cancel(context.Background(), "bk-1", "cust-1")
		require.NoError(t, err)
		assert.Equal(t, models.CancelOutcomeRequested, resp.Outcome)

		// No schedule update was expected: the inventory is untouched until
		// an admin adjudicates the request.
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Past Departure Rejected Without Writes", func(t *testing.T) {
		f := newLifecycleFixture(t)

		f.mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WithArgs("bk-1").
			WillReturnRows(svcBookingRows(models.BookingStatusConfirmed, models.PaymentStatusPending, false))
		f.mock.ExpectQuery(`SELECT (.+) FROM schedules`).
			WithArgs("sched-1").
			WillReturnRows(svcScheduleRows(time.Now().Add(-time.Hour)))

		_, err := f.service.Cancel(context.Background(), "bk-1", "cust-1")
		assert.True(t, IsPrecondition(err))

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Inventory Conflict Rolls Back Whole Unit", func(t *testing.T) {
		f := newLifecycleFixture(t)
		now := time.Now()

		f.mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WithArgs("bk-1").
			WillReturnRows(svcBookingRows(models.BookingStatusConfirmed, models.PaymentStatusPending, false))
		f.mock.ExpectQuery(`SELECT (.+) FROM schedules`).
			WithArgs("sched-1").
			WillReturnRows(svcScheduleRows(now.Add(24 * time.Hour)))
		f.mock.ExpectBegin()
		f.mock.ExpectExec(`UPDATE bookings`).
			WithArgs(models.BookingStatusCancelled, models.PaymentStatusPending, false, "bk-1", models.BookingStatusConfirmed).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectExec(`UPDATE schedules`).
			WithArgs("sched-1", 2, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))
		f.mock.ExpectRollback()

		_, err := f.service.Cancel(context.Background(), "bk-1", "cust-1")
		assert.True(t, IsConsistency(err))

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Foreign Booking Looks Missing", func(t *testing.T) {
		f := newLifecycleFixture(t)

		f.mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WithArgs("bk-1").
			WillReturnRows(svcBookingRows(models.BookingStatusConfirmed, models.PaymentStatusPending, false))

		_, err := f.service.Cancel(context.Background(), "bk-1", "someone-else")
		assert.True(t, IsNotFound(err))

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestApproveCancellation(t *testing.T) {
	t.Run("Seats Released, Payment State Preserved", func(t *testing.T) {
		f := newLifecycleFixture(t)

		f.mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WithArgs("bk-1").
			WillReturnRows(svcBookingRows(models.BookingStatusConfirmed, models.PaymentStatusPaid, true))
		f.mock.ExpectBegin()
		f.mock.ExpectExec(`UPDATE bookings`).
			WithArgs(models.BookingStatusCancelled, models.PaymentStatusPaid, true, "bk-1", models.BookingStatusConfirmed).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectExec(`UPDATE schedules`).
			WithArgs("sched-1", 2, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectCommit()
		f.redisMock.ExpectDel("entity:schedule:sched-1").SetVal(1)

		booking, err := f.service.ApproveCancellation(context.Background(), "bk-1")
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusCancelled, booking.BookingStatus)
		assert.True(t, booking.IsPaid())

		assert.NoError(t, f.mock.ExpectationsWereMet())
		assert.NoError(t, f.redisMock.ExpectationsWereMet())
	})

	t.Run("No Pending Request Rejected", func(t *testing.T) {
		f := newLifecycleFixture(t)

		f.mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WithArgs("bk-1").
			WillReturnRows(svcBookingRows(models.BookingStatusConfirmed, models.PaymentStatusPaid, false))

		_, err := f.service.ApproveCancellation(context.Background(), "bk-1")
		assert.True(t, IsPrecondition(err))

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestRejectCancellation(t *testing.T) {
	f := newLifecycleFixture(t)

	f.mock.ExpectQuery(`SELECT (.+) FROM bookings`).
		WithArgs("bk-1").
		WillReturnRows(svcBookingRows(models.BookingStatusConfirmed, models.PaymentStatusPaid, true))
	f.mock.ExpectExec(`UPDATE bookings`).
		WithArgs(false, "bk-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	booking, err := f.service.RejectCancellation(context.Background(), "bk-1")
	require.NoError(t, err)
	assert.False(t, booking.CancellationRequested)
	assert.Equal(t, models.BookingStatusConfirmed, booking.BookingStatus)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestDeleteCancelled(t *testing.T) {
	t.Run("Cancelled Booking Removed", func(t *testing.T) {
		f := newLifecycleFixture(t)

		f.mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WithArgs("bk-1").
			WillReturnRows(svcBookingRows(models.BookingStatusCancelled, models.PaymentStatusPending, false))
		f.mock.ExpectExec(`DELETE FROM bookings`).
			WithArgs("bk-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, f.service.DeleteCancelled(context.Background(), "bk-1", "cust-1"))
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Active Booking Not Deletable", func(t *testing.T) {
		f := newLifecycleFixture(t)

		f.mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WithArgs("bk-1").
			WillReturnRows(svcBookingRows(models.BookingStatusConfirmed, models.PaymentStatusPending, false))

		err := f.service.DeleteCancelled(context.Background(), "bk-1", "cust-1")
		assert.True(t, IsPrecondition(err))

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestCompleteDepartedBookings(t *testing.T) {
	f := newLifecycleFixture(t)
	now := time.Now()

	f.mock.ExpectQuery(`SELECT b\.id`).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("bk-1"))
	f.mock.ExpectExec(`UPDATE bookings`).
		WithArgs("bk-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery(`SELECT (.+) FROM bookings`).
		WithArgs("bk-1").
		WillReturnRows(svcBookingRows(models.BookingStatusCompleted, models.PaymentStatusPaid, false))

	completed, err := f.service.CompleteDepartedBookings(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, completed)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}
