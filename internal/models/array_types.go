package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

// SeatArray is a custom type for handling TEXT[] seat code columns in PostgreSQL
type SeatArray []string

// Value implements the driver.Valuer interface
func (a SeatArray) Value() (driver.Value, error) {
	if a == nil {
		return pq.Array([]string{}).Value()
	}
	return pq.Array([]string(a)).Value()
}

// Scan implements the sql.Scanner interface
func (a *SeatArray) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}
	slice := (*[]string)(a)
	return pq.Array(slice).Scan(src)
}

// Contains reports whether the seat code is present in the array
func (a SeatArray) Contains(seat string) bool {
	for _, s := range a {
		if s == seat {
			return true
		}
	}
	return false
}

// PassengerList is a custom type for handling JSONB passenger detail columns
type PassengerList []PassengerDetail

// Value implements the driver.Valuer interface
func (p PassengerList) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p)
}

// Scan implements the sql.Scanner interface
func (p *PassengerList) Scan(src interface{}) error {
	if src == nil {
		*p = nil
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for PassengerList: %T", src)
	}

	return json.Unmarshal(data, p)
}
