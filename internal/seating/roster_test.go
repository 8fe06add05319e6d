package seating

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-seating-api/internal/models"
)

func course(code string, size int) models.ExamCourse {
	students := make([]models.ExamStudent, size)
	for i := range students {
		roll := fmt.Sprintf("%s%03d", code, i+1)
		students[i] = models.ExamStudent{RollNumber: roll, Name: "Student " + roll}
	}
	return models.ExamCourse{CourseCode: code, CourseTitle: code + " title", Semester: 1, Branch: "CS", Students: students}
}

func TestBuildRostersSortsByRollNumber(t *testing.T) {
	input := []models.ExamCourse{{
		CourseCode: "CS101",
		Students: []models.ExamStudent{
			{RollNumber: "B003", Name: "c"},
			{RollNumber: "B001", Name: "a"},
			{RollNumber: "B010", Name: "d"},
			{RollNumber: "B002", Name: "b"},
		},
	}}

	rosters, err := BuildRosters(input)
	require.NoError(t, err)
	require.Len(t, rosters, 1)

	var rolls []string
	for s, ok := rosters[0].Next(); ok; s, ok = rosters[0].Next() {
		rolls = append(rolls, s.RollNumber)
	}
	assert.Equal(t, []string{"B001", "B002", "B003", "B010"}, rolls)
	assert.Equal(t, "B003", input[0].Students[0].RollNumber, "input must not be reordered")
}

func TestBuildRostersKeepsDuplicates(t *testing.T) {
	rosters, err := BuildRosters([]models.ExamCourse{{
		CourseCode: "X",
		Students:   []models.ExamStudent{{RollNumber: "1"}, {RollNumber: "1"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, rosters[0].Size())
}

func TestBuildRostersEmpty(t *testing.T) {
	_, err := BuildRosters(nil)
	assert.ErrorIs(t, err, ErrEmptyRequest)
}

func TestRosterCursor(t *testing.T) {
	rosters, err := BuildRosters([]models.ExamCourse{course("A", 2)})
	require.NoError(t, err)
	r := rosters[0]

	first, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, "A001", first.RollNumber)
	assert.Equal(t, 1, r.Remaining())
	assert.Equal(t, 2, r.Size())

	_, ok = r.Next()
	require.True(t, ok)
	_, ok = r.Next()
	assert.False(t, ok)
	assert.Equal(t, 0, r.Remaining())
	assert.Equal(t, 2, r.Size(), "size keeps the original roster length")
}
