package database

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrInventoryConflict is returned when a seat adjustment would break the
	// seat accounting invariant (oversell, double release, or a release of a
	// seat that is not currently held). The enclosing transaction must be
	// rolled back when this is returned.
	ErrInventoryConflict = errors.New("seat inventory conflict")
)
