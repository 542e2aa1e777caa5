package models

import "time"

// Bus represents a vehicle. Reference data for the booking core: looked up
// by id, cached, never mutated here.
type Bus struct {
	ID         string    `json:"id" db:"id"`
	CompanyID  string    `json:"company_id" db:"company_id"`
	BusNumber  string    `json:"bus_number" db:"bus_number"`
	BusType    string    `json:"bus_type" db:"bus_type"` // luxury, semi_luxury, normal
	TotalSeats int       `json:"total_seats" db:"total_seats"`
	Amenities  SeatArray `json:"amenities" db:"amenities"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Route represents an origin/destination pair. Reference data.
type Route struct {
	ID          string    `json:"id" db:"id"`
	Origin      string    `json:"origin" db:"origin"`
	Destination string    `json:"destination" db:"destination"`
	DistanceKM  float64   `json:"distance_km" db:"distance_km"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName renders the route for customer-facing text and gateway payloads
func (r *Route) DisplayName() string {
	return r.Origin + " - " + r.Destination
}

// Company represents a bus operator. Reference data.
type Company struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	ContactPhone string    `json:"contact_phone" db:"contact_phone"`
	ContactEmail string    `json:"contact_email" db:"contact_email"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// EnhancedBooking is the joined presentation view of a booking with its
// resolved schedule, bus, route and company. Built in memory only, never
// persisted; staleness is bounded by the entity cache TTL and explicit
// invalidation on inventory writes.
type EnhancedBooking struct {
	Booking
	Schedule *Schedule `json:"schedule,omitempty"`
	Bus      *Bus      `json:"bus,omitempty"`
	Route    *Route    `json:"route,omitempty"`
	Company  *Company  `json:"company,omitempty"`
}
