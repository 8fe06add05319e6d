package seating

import (
	"sort"

	"github.com/noah-isme/exam-seating-api/internal/models"
)

// Lanes holds the course index bound to even (A) and odd (B) columns. It is threaded through
// every room of a request so a run continues exactly where the previous room stopped.
type Lanes struct {
	A int
	B int
}

func (l Lanes) index(even bool) int {
	if even {
		return l.A
	}
	return l.B
}

func (l Lanes) with(even bool, idx int) Lanes {
	if even {
		l.A = idx
	} else {
		l.B = idx
	}
	return l
}

// InitialLanes binds lane A to the largest course and lane B to its preferred partner.
func InitialLanes(pairs []int) Lanes {
	if len(pairs) == 0 {
		return Lanes{A: 0, B: 1}
	}
	return Lanes{A: 0, B: pairs[0]}
}

// Allocate seats every candidate of the supplied courses into the classrooms, in classroom
// order. Courses are drawn largest first, alternating two lanes column by column.
func Allocate(courses []models.ExamCourse, classrooms []models.Classroom) (*models.SeatingPlanResult, error) {
	rosters, err := BuildRosters(courses)
	if err != nil {
		return nil, err
	}

	required := 0
	for _, roster := range rosters {
		required += roster.Size()
	}
	available := 0
	for _, classroom := range classrooms {
		available += classroom.Capacity
	}
	if required > available {
		return nil, &CapacityError{Required: required, Available: available}
	}

	pool := orderBySize(rosters)
	sizes := make([]int, len(pool))
	for i, roster := range pool {
		sizes[i] = roster.Size()
	}
	lanes := InitialLanes(PairCourses(sizes))

	allocations := make([]models.ClassroomAllocation, 0, len(classrooms))
	for _, classroom := range classrooms {
		var allocation models.ClassroomAllocation
		allocation, lanes = allocateRoom(classroom, pool, lanes)
		allocations = append(allocations, allocation)
	}

	return &models.SeatingPlanResult{
		ClassroomAllocations: allocations,
		Statistics:           CalculateStatistics(CourseCounts(rosters), allocations),
	}, nil
}

// CourseCounts maps each course code to its original roster size.
func CourseCounts(rosters []*Roster) map[string]int {
	counts := make(map[string]int, len(rosters))
	for _, roster := range rosters {
		counts[roster.Code] += roster.Size()
	}
	return counts
}

func orderBySize(rosters []*Roster) []*Roster {
	pool := make([]*Roster, len(rosters))
	copy(pool, rosters)
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Size() > pool[j].Size()
	})
	return pool
}

func allocateRoom(classroom models.Classroom, pool []*Roster, lanes Lanes) (models.ClassroomAllocation, Lanes) {
	matrix := models.NewSeatMatrix(classroom.Rows, classroom.Columns)
	for _, pos := range classroom.UnavailableSeats {
		if matrix.InBounds(pos.Row, pos.Column) {
			matrix[pos.Row][pos.Column] = models.Seat{Occupied: true}
		}
	}

	for col := 0; col < classroom.Columns; col++ {
		even := col%2 == 0
		idx := lanes.index(even)
		if idx < 0 || idx >= len(pool) {
			continue
		}

		free := freeSeatsInColumn(matrix, col)
		if pool[idx].Remaining() < free && len(pool) > 2 {
			if closest, ok := closestRoster(pool, idx, free); ok {
				lanes = lanes.with(even, closest)
			}
		}

		for row := range matrix {
			if matrix[row][col].Occupied {
				continue
			}
			if place(&matrix[row][col], pool[lanes.index(even)]) {
				continue
			}
			lanes = advance(lanes, even, pool)
			place(&matrix[row][col], pool[lanes.index(even)])
		}
	}

	return models.ClassroomAllocation{Classroom: classroom, SeatMatrix: matrix}, lanes
}

func freeSeatsInColumn(matrix models.SeatMatrix, col int) int {
	free := 0
	for row := range matrix {
		if !matrix[row][col].Occupied {
			free++
		}
	}
	return free
}

// closestRoster finds the course, other than skip, whose remaining roster is nearest to free.
func closestRoster(pool []*Roster, skip, free int) (int, bool) {
	best := -1
	bestDiff := 0
	for i, roster := range pool {
		if i == skip || roster.Remaining() == 0 {
			continue
		}
		diff := roster.Remaining() - free
		if diff < 0 {
			diff = -diff
		}
		if diff == 0 {
			return i, true
		}
		if best < 0 || diff < bestDiff {
			best = i
			bestDiff = diff
		}
	}
	return best, best >= 0
}

// advance moves the exhausted lane to the next course, stepping over the other lane's course
// while more than one course still has candidates to seat.
func advance(lanes Lanes, even bool, pool []*Roster) Lanes {
	next := (lanes.index(even) + 1) % len(pool)
	if next == lanes.index(!even) && coursesWithRemaining(pool) > 1 {
		next = (next + 1) % len(pool)
	}
	return lanes.with(even, next)
}

func coursesWithRemaining(pool []*Roster) int {
	count := 0
	for _, roster := range pool {
		if roster.Remaining() > 0 {
			count++
		}
	}
	return count
}

func place(seat *models.Seat, roster *Roster) bool {
	student, ok := roster.Next()
	if !ok {
		return false
	}
	*seat = models.Seat{
		Occupied: true,
		Student: &models.SeatStudent{
			RollNumber: student.RollNumber,
			Name:       student.Name,
			CourseCode: roster.Code,
		},
	}
	return true
}
