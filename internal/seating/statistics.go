package seating

import "github.com/noah-isme/exam-seating-api/internal/models"

// CalculateStatistics derives plan totals from the original roster sizes and the current
// allocations. It is used after generation and after every manual edit.
func CalculateStatistics(courseCounts map[string]int, allocations []models.ClassroomAllocation) models.SeatingStatistics {
	counts := make(map[string]int, len(courseCounts))
	for code, n := range courseCounts {
		counts[code] = n
	}

	stats := models.SeatingStatistics{
		CourseCounts:         counts,
		ClassroomUtilization: make([]models.ClassroomUtilization, 0, len(allocations)),
	}
	for _, allocation := range allocations {
		occupied := allocation.SeatMatrix.OccupiedByStudents()
		stats.TotalStudents += occupied
		stats.TotalSeats += allocation.Classroom.Capacity
		stats.ClassroomUtilization = append(stats.ClassroomUtilization, models.ClassroomUtilization{
			Classroom:   allocation.Classroom.Name,
			Utilization: Utilization(occupied, allocation.Classroom.Capacity),
		})
	}
	return stats
}

// Utilization is occupied/capacity as a percentage rounded half up. A non-positive capacity
// reports zero.
func Utilization(occupied, capacity int) int {
	if capacity <= 0 || occupied <= 0 {
		return 0
	}
	return (occupied*200 + capacity) / (2 * capacity)
}

// RefreshStatistics recomputes a plan's statistics in place, keeping its course counts.
func RefreshStatistics(plan *models.SeatingPlan) {
	if plan == nil {
		return
	}
	plan.Statistics = CalculateStatistics(plan.Statistics.CourseCounts, plan.ClassroomAllocations)
}
