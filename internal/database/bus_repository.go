package database

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/routemate/bus-booking-backend/internal/models"
)

// BusRepository handles read access to the buses table
type BusRepository struct {
	db DB
}

// NewBusRepository creates a new BusRepository
func NewBusRepository(db DB) *BusRepository {
	return &BusRepository{db: db}
}

// GetByID retrieves a bus by ID
func (r *BusRepository) GetByID(busID string) (*models.Bus, error) {
	query := `
		SELECT id, company_id, bus_number, bus_type, total_seats, amenities,
		       created_at, updated_at
		FROM buses
		WHERE id = $1
	`

	var bus models.Bus
	if err := r.db.Get(&bus, query, busID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bus: %w", err)
	}

	return &bus, nil
}

// GetByIDs retrieves a batch of buses in one round trip
func (r *BusRepository) GetByIDs(busIDs []string) ([]models.Bus, error) {
	if len(busIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, company_id, bus_number, bus_type, total_seats, amenities,
		       created_at, updated_at
		FROM buses
		WHERE id = ANY($1)
	`

	var buses []models.Bus
	if err := r.db.Select(&buses, query, pq.Array(busIDs)); err != nil {
		return nil, fmt.Errorf("failed to get buses: %w", err)
	}

	return buses, nil
}
