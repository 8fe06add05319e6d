package dto

import (
	"time"

	"github.com/noah-isme/exam-seating-api/internal/models"
)

// StudentRequest is one candidate in a course roster payload.
type StudentRequest struct {
	RollNumber string `json:"roll_number" validate:"required,max=64"`
	Name       string `json:"name" validate:"max=200"`
}

// CourseRosterRequest carries a course and its full candidate list.
type CourseRosterRequest struct {
	CourseCode  string           `json:"course_code" validate:"required,max=32"`
	CourseTitle string           `json:"course_title" validate:"max=200"`
	Semester    int              `json:"semester" validate:"min=0"`
	Branch      string           `json:"branch" validate:"max=100"`
	Students    []StudentRequest `json:"students" validate:"dive"`
}

// CreateExamRequest defines the payload for registering an exam.
type CreateExamRequest struct {
	Name    string                `json:"name" validate:"required,max=200"`
	Date    time.Time             `json:"date" validate:"required"`
	Courses []CourseRosterRequest `json:"courses" validate:"dive"`
}

// ClassroomRequest defines the payload for creating a classroom.
type ClassroomRequest struct {
	Name             string                `json:"name" validate:"required,max=100"`
	Building         string                `json:"building" validate:"required,max=100"`
	Floor            int                   `json:"floor"`
	Capacity         int                   `json:"capacity" validate:"required,min=1"`
	Rows             int                   `json:"rows" validate:"required,min=1"`
	Columns          int                   `json:"columns" validate:"required,min=1"`
	UnavailableSeats []models.SeatPosition `json:"unavailable_seats"`
}

// UpdateClassroomRequest applies a partial classroom update.
type UpdateClassroomRequest struct {
	Name             *string               `json:"name" validate:"omitempty,max=100"`
	Building         *string               `json:"building" validate:"omitempty,max=100"`
	Floor            *int                  `json:"floor"`
	Capacity         *int                  `json:"capacity" validate:"omitempty,min=1"`
	Rows             *int                  `json:"rows" validate:"omitempty,min=1"`
	Columns          *int                  `json:"columns" validate:"omitempty,min=1"`
	UnavailableSeats *[]models.SeatPosition `json:"unavailable_seats"`
}

// GenerateSeatingPlanRequest asks for a new plan. Classrooms are filled in the given order.
type GenerateSeatingPlanRequest struct {
	ExamID       string   `json:"exam_id" validate:"required"`
	ClassroomIDs []string `json:"classroom_ids" validate:"required,min=1,dive,required"`
}

// UpdateSeatingPlanStatusRequest moves a plan through its lifecycle.
type UpdateSeatingPlanStatusRequest struct {
	Status models.SeatingPlanStatus `json:"status" validate:"required"`
}

// SwapSeatsRequest exchanges the candidates of two seats.
type SwapSeatsRequest struct {
	From models.SeatRef `json:"from"`
	To   models.SeatRef `json:"to"`
}

// SwapSeatsResponse reports whether the swap moved anyone.
type SwapSeatsResponse struct {
	Swapped bool                `json:"swapped"`
	Plan    *models.SeatingPlan `json:"plan"`
}

// AllocationUpdate replaces the seat matrix of one classroom in a plan.
type AllocationUpdate struct {
	ClassroomID string            `json:"classroom_id" validate:"required"`
	SeatMatrix  models.SeatMatrix `json:"seat_matrix" validate:"required"`
}

// UpdateSeatingPlanRequest carries manually edited seat matrices.
type UpdateSeatingPlanRequest struct {
	ClassroomAllocations []AllocationUpdate `json:"classroom_allocations" validate:"required,min=1,dive"`
}

// ExportSeatingPlanRequest selects the output format of a plan export.
type ExportSeatingPlanRequest struct {
	Format string `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportResponse points at a rendered export behind a signed URL.
type ExportResponse struct {
	URL       string    `json:"url"`
	Format    string    `json:"format"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SeatingPlanQuery filters plan listings.
type SeatingPlanQuery struct {
	ExamID string                   `form:"exam_id"`
	Status models.SeatingPlanStatus `form:"status" validate:"omitempty,oneof=draft finalized published"`
}
