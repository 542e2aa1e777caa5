package database

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/routemate/bus-booking-backend/internal/models"
)

const scheduleColumns = `id, company_id, bus_id, route_id, departure_datetime,
	   arrival_datetime, price, total_seats, available_seats, booked_seats,
	   created_at, updated_at`

// ScheduleRepository owns the seat inventory of scheduled departures. It is
// the only component that mutates available_seats / booked_seats, and every
// mutation happens inside the caller's transaction so booking status and
// inventory commit or roll back together.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new ScheduleRepository
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// GetByID retrieves a schedule by ID
func (r *ScheduleRepository) GetByID(scheduleID string) (*models.Schedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedules WHERE id = $1`, scheduleColumns)

	var schedule models.Schedule
	if err := r.db.Get(&schedule, query, scheduleID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}

	return &schedule, nil
}

// GetByIDs retrieves a batch of schedules in one round trip
func (r *ScheduleRepository) GetByIDs(scheduleIDs []string) ([]models.Schedule, error) {
	if len(scheduleIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM schedules WHERE id = ANY($1)`, scheduleColumns)

	var schedules []models.Schedule
	if err := r.db.Select(&schedules, query, pq.Array(scheduleIDs)); err != nil {
		return nil, fmt.Errorf("failed to get schedules: %w", err)
	}

	return schedules, nil
}

// ReleaseSeatsTx returns the given seats to inventory inside the caller's
// transaction. The adjustment is relative (counter delta plus set difference),
// never an absolute overwrite, so concurrent releases on the same schedule
// compose regardless of interleaving.
//
// The WHERE clause refuses the update unless every released seat is currently
// held and the new count stays within capacity. Zero rows affected means the
// accounting invariant would break and surfaces ErrInventoryConflict; the
// caller must roll back the whole unit.
func (r *ScheduleRepository) ReleaseSeatsTx(tx *sqlx.Tx, scheduleID string, seats []string) error {
	if len(seats) == 0 {
		return fmt.Errorf("no seats to release")
	}

	query := `
		UPDATE schedules
		SET available_seats = available_seats + $2,
		    booked_seats = (
		        SELECT COALESCE(array_agg(seat ORDER BY seat), '{}')
		        FROM unnest(booked_seats) AS seat
		        WHERE seat <> ALL($3)
		    ),
		    updated_at = NOW()
		WHERE id = $1
		  AND booked_seats @> $3
		  AND available_seats + $2 <= total_seats
	`

	result, err := tx.Exec(query, scheduleID, len(seats), pq.Array(seats))
	if err != nil {
		return fmt.Errorf("failed to release seats: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return ErrInventoryConflict
	}

	return nil
}

// HoldSeatsTx removes the given seats from availability inside the caller's
// transaction. Rejected when any requested seat is already held or the
// available counter would go negative.
func (r *ScheduleRepository) HoldSeatsTx(tx *sqlx.Tx, scheduleID string, seats []string) error {
	if len(seats) == 0 {
		return fmt.Errorf("no seats to hold")
	}

	query := `
		UPDATE schedules
		SET available_seats = available_seats - $2,
		    booked_seats = booked_seats || $3,
		    updated_at = NOW()
		WHERE id = $1
		  AND available_seats >= $2
		  AND NOT (booked_seats && $3)
	`

	result, err := tx.Exec(query, scheduleID, len(seats), pq.Array(seats))
	if err != nil {
		return fmt.Errorf("failed to hold seats: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return ErrInventoryConflict
	}

	return nil
}
