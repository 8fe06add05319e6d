package seating

import (
	"sort"

	"github.com/noah-isme/exam-seating-api/internal/models"
)

// Roster is a course's candidates in draw order. The student slice is never mutated;
// drawing advances a cursor so the same roster can be replayed in tests.
type Roster struct {
	Code     string
	students []models.ExamStudent
	next     int
}

// BuildRosters groups candidates per course, sorted ascending by roll number. Course order
// is preserved. Duplicate roll numbers are kept as supplied.
func BuildRosters(courses []models.ExamCourse) ([]*Roster, error) {
	if len(courses) == 0 {
		return nil, ErrEmptyRequest
	}
	rosters := make([]*Roster, 0, len(courses))
	for _, course := range courses {
		students := make([]models.ExamStudent, len(course.Students))
		copy(students, course.Students)
		sort.SliceStable(students, func(i, j int) bool {
			return students[i].RollNumber < students[j].RollNumber
		})
		rosters = append(rosters, &Roster{Code: course.CourseCode, students: students})
	}
	return rosters, nil
}

// Size is the original roster length.
func (r *Roster) Size() int {
	return len(r.students)
}

// Remaining is the number of candidates not yet drawn.
func (r *Roster) Remaining() int {
	return len(r.students) - r.next
}

// Next draws the lowest remaining roll number.
func (r *Roster) Next() (models.ExamStudent, bool) {
	if r.next >= len(r.students) {
		return models.ExamStudent{}, false
	}
	student := r.students[r.next]
	r.next++
	return student, true
}
