package database

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/routemate/bus-booking-backend/internal/models"
)

// RouteRepository handles read access to the routes table
type RouteRepository struct {
	db DB
}

// NewRouteRepository creates a new RouteRepository
func NewRouteRepository(db DB) *RouteRepository {
	return &RouteRepository{db: db}
}

// GetByID retrieves a route by ID
func (r *RouteRepository) GetByID(routeID string) (*models.Route, error) {
	query := `
		SELECT id, origin, destination, distance_km, created_at, updated_at
		FROM routes
		WHERE id = $1
	`

	var route models.Route
	if err := r.db.Get(&route, query, routeID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get route: %w", err)
	}

	return &route, nil
}

// GetByIDs retrieves a batch of routes in one round trip
func (r *RouteRepository) GetByIDs(routeIDs []string) ([]models.Route, error) {
	if len(routeIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, origin, destination, distance_km, created_at, updated_at
		FROM routes
		WHERE id = ANY($1)
	`

	var routes []models.Route
	if err := r.db.Select(&routes, query, pq.Array(routeIDs)); err != nil {
		return nil, fmt.Errorf("failed to get routes: %w", err)
	}

	return routes, nil
}
