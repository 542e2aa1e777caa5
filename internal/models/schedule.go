package models

import (
	"fmt"
	"time"
)

// Schedule represents one scheduled departure and owns its seat inventory.
// availableSeats and bookedSeats are only ever mutated through
// ScheduleRepository inside a booking transaction.
type Schedule struct {
	ID                string    `json:"id" db:"id"`
	CompanyID         string    `json:"company_id" db:"company_id"`
	BusID             string    `json:"bus_id" db:"bus_id"`
	RouteID           string    `json:"route_id" db:"route_id"`
	DepartureDatetime time.Time `json:"departure_datetime" db:"departure_datetime"`
	ArrivalDatetime   time.Time `json:"arrival_datetime" db:"arrival_datetime"`
	Price             int64     `json:"price" db:"price"` // minor currency units per seat
	TotalSeats        int       `json:"total_seats" db:"total_seats"`
	AvailableSeats    int       `json:"available_seats" db:"available_seats"`
	BookedSeats       SeatArray `json:"booked_seats" db:"booked_seats"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// CheckInvariant verifies the seat accounting identity:
// available seats plus held seats must always equal capacity.
func (s *Schedule) CheckInvariant() error {
	if s.AvailableSeats < 0 {
		return fmt.Errorf("schedule %s has negative available seats (%d)", s.ID, s.AvailableSeats)
	}
	if s.AvailableSeats+len(s.BookedSeats) != s.TotalSeats {
		return fmt.Errorf("schedule %s seat accounting broken: %d available + %d booked != %d total",
			s.ID, s.AvailableSeats, len(s.BookedSeats), s.TotalSeats)
	}
	return nil
}

// HasDeparted reports whether the departure time has passed
func (s *Schedule) HasDeparted(now time.Time) bool {
	return !s.DepartureDatetime.After(now)
}
