package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SeatingPlanStatus represents lifecycle phases for generated seating plans.
type SeatingPlanStatus string

const (
	SeatingPlanStatusDraft     SeatingPlanStatus = "draft"
	SeatingPlanStatusFinalized SeatingPlanStatus = "finalized"
	SeatingPlanStatusPublished SeatingPlanStatus = "published"
)

// Valid reports whether the status is one of the known lifecycle values.
func (s SeatingPlanStatus) Valid() bool {
	switch s {
	case SeatingPlanStatusDraft, SeatingPlanStatusFinalized, SeatingPlanStatusPublished:
		return true
	}
	return false
}

// SeatStudent is the candidate placed on a seat.
type SeatStudent struct {
	RollNumber string `json:"roll_number"`
	Name       string `json:"name"`
	CourseCode string `json:"course_code"`
}

// Seat is one cell of a seat matrix. Occupied with a nil Student marks a structurally
// unavailable seat; Occupied=false is a free seat.
type Seat struct {
	Occupied bool         `json:"occupied"`
	Student  *SeatStudent `json:"student"`
}

// HasStudent reports whether a candidate is seated here.
func (s Seat) HasStudent() bool {
	return s.Occupied && s.Student != nil
}

// SeatMatrix is a row-major grid of seats.
type SeatMatrix [][]Seat

// NewSeatMatrix allocates a rows x columns grid of free seats.
func NewSeatMatrix(rows, columns int) SeatMatrix {
	if rows < 0 {
		rows = 0
	}
	if columns < 0 {
		columns = 0
	}
	matrix := make(SeatMatrix, rows)
	for r := range matrix {
		matrix[r] = make([]Seat, columns)
	}
	return matrix
}

// InBounds reports whether (row, column) addresses a seat of the matrix.
func (m SeatMatrix) InBounds(row, column int) bool {
	return row >= 0 && row < len(m) && column >= 0 && column < len(m[row])
}

// OccupiedByStudents counts seats holding a candidate.
func (m SeatMatrix) OccupiedByStudents() int {
	count := 0
	for _, row := range m {
		for _, seat := range row {
			if seat.HasStudent() {
				count++
			}
		}
	}
	return count
}

// Value implements driver.Valuer.
func (m SeatMatrix) Value() (driver.Value, error) {
	if m == nil {
		return []byte(`[]`), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *SeatMatrix) Scan(src interface{}) error {
	raw, err := jsonColumnBytes(src)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		*m = SeatMatrix{}
		return nil
	}
	return json.Unmarshal(raw, m)
}

// ClassroomAllocation is the seat matrix produced for one classroom of a plan.
type ClassroomAllocation struct {
	Classroom  Classroom  `json:"classroom"`
	SeatMatrix SeatMatrix `json:"seat_matrix"`
}

// ClassroomUtilization is the share of a classroom's declared capacity occupied by candidates.
type ClassroomUtilization struct {
	Classroom   string `json:"classroom"`
	Utilization int    `json:"utilization"`
}

// SeatingStatistics summarises a seating plan.
type SeatingStatistics struct {
	TotalStudents        int                    `json:"total_students"`
	TotalSeats           int                    `json:"total_seats"`
	CourseCounts         map[string]int         `json:"course_counts"`
	ClassroomUtilization []ClassroomUtilization `json:"classroom_utilization"`
}

// Value implements driver.Valuer.
func (s SeatingStatistics) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *SeatingStatistics) Scan(src interface{}) error {
	raw, err := jsonColumnBytes(src)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		*s = SeatingStatistics{}
		return nil
	}
	return json.Unmarshal(raw, s)
}

// SeatingPlanResult is the output of one allocation run.
type SeatingPlanResult struct {
	ClassroomAllocations []ClassroomAllocation `json:"classroom_allocations"`
	Statistics           SeatingStatistics     `json:"statistics"`
}

// SeatingPlan is a persisted allocation for an exam.
type SeatingPlan struct {
	ID                   string                `db:"id" json:"id"`
	ExamID               string                `db:"exam_id" json:"exam_id"`
	Status               SeatingPlanStatus     `db:"status" json:"status"`
	Statistics           SeatingStatistics     `db:"statistics" json:"statistics"`
	GeneratedAt          time.Time             `db:"generated_at" json:"generated_at"`
	UpdatedAt            time.Time             `db:"updated_at" json:"updated_at"`
	ClassroomAllocations []ClassroomAllocation `db:"-" json:"classroom_allocations"`
}

// Locked reports whether manual edits are refused.
func (p *SeatingPlan) Locked() bool {
	return p != nil && p.Status == SeatingPlanStatusPublished
}

// SeatingPlanSummary is the lightweight list projection of a plan.
type SeatingPlanSummary struct {
	ID             string            `db:"id" json:"id"`
	ExamID         string            `db:"exam_id" json:"exam_id"`
	ExamName       string            `db:"exam_name" json:"exam_name"`
	Status         SeatingPlanStatus `db:"status" json:"status"`
	ClassroomCount int               `db:"classroom_count" json:"classroom_count"`
	GeneratedAt    time.Time         `db:"generated_at" json:"generated_at"`
}

// SeatRef addresses a seat inside one classroom of a plan.
type SeatRef struct {
	ClassroomID string `json:"classroom_id" validate:"required"`
	Row         int    `json:"row"`
	Column      int    `json:"column"`
}

func jsonColumnBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported json column type %T", src)
	}
}
