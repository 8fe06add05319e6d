package seating

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyRequest is returned when no courses are supplied.
	ErrEmptyRequest = errors.New("seating: no courses supplied")
	// ErrInsufficientCapacity matches any *CapacityError.
	ErrInsufficientCapacity = errors.New("seating: insufficient capacity")
	// ErrPlanLocked is returned when a published plan is edited.
	ErrPlanLocked = errors.New("seating: plan is published")
)

// CapacityError reports how many declared seats are missing for a request.
type CapacityError struct {
	Required  int
	Available int
}

// Error implements the error interface.
func (e *CapacityError) Error() string {
	return fmt.Sprintf("not enough seats for all students: need %d seats but only have %d", e.Required, e.Available)
}

// Shortfall is the number of additional seats needed.
func (e *CapacityError) Shortfall() int {
	if e.Required <= e.Available {
		return 0
	}
	return e.Required - e.Available
}

// Is lets errors.Is match ErrInsufficientCapacity.
func (e *CapacityError) Is(target error) bool {
	return target == ErrInsufficientCapacity
}
