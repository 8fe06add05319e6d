package seating

import "github.com/noah-isme/exam-seating-api/internal/models"

// Swap exchanges the candidates of two seats, possibly across classrooms, and refreshes the
// plan statistics. Occupied flags are left as they are, so a candidate moved onto an
// unavailable seat keeps that seat marked unavailable. Unknown classrooms or coordinates
// outside the grid are ignored and reported as false.
func Swap(plan *models.SeatingPlan, from, to models.SeatRef) (bool, error) {
	if plan == nil {
		return false, nil
	}
	if plan.Locked() {
		return false, ErrPlanLocked
	}

	a := locateSeat(plan.ClassroomAllocations, from)
	b := locateSeat(plan.ClassroomAllocations, to)
	if a == nil || b == nil {
		return false, nil
	}
	if a.Student == nil && b.Student == nil {
		return false, nil
	}

	a.Student, b.Student = b.Student, a.Student
	RefreshStatistics(plan)
	return true, nil
}

func locateSeat(allocations []models.ClassroomAllocation, ref models.SeatRef) *models.Seat {
	for i := range allocations {
		if allocations[i].Classroom.ID != ref.ClassroomID {
			continue
		}
		matrix := allocations[i].SeatMatrix
		if !matrix.InBounds(ref.Row, ref.Column) {
			return nil
		}
		return &matrix[ref.Row][ref.Column]
	}
	return nil
}
