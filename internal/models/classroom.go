package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// SeatPosition addresses a single seat inside a classroom grid (zero-based).
type SeatPosition struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// SeatPositions is stored as a JSON array column.
type SeatPositions []SeatPosition

// Value implements driver.Valuer.
func (p SeatPositions) Value() (driver.Value, error) {
	if p == nil {
		return []byte(`[]`), nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner.
func (p *SeatPositions) Scan(src interface{}) error {
	raw, err := jsonColumnBytes(src)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		*p = SeatPositions{}
		return nil
	}
	return json.Unmarshal(raw, p)
}

// Classroom is a physical exam room. Rows and Columns define the seat grid; Capacity is the
// declared figure used for capacity checks and utilisation.
type Classroom struct {
	ID               string        `db:"id" json:"id"`
	Name             string        `db:"name" json:"name"`
	Building         string        `db:"building" json:"building"`
	Floor            int           `db:"floor" json:"floor"`
	Capacity         int           `db:"capacity" json:"capacity"`
	Rows             int           `db:"rows" json:"rows"`
	Columns          int           `db:"columns" json:"columns"`
	UnavailableSeats SeatPositions `db:"unavailable_seats" json:"unavailable_seats"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}
