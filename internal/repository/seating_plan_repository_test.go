package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-seating-api/internal/models"
)

func samplePlan() *models.SeatingPlan {
	matrix := models.NewSeatMatrix(1, 2)
	matrix[0][0] = models.Seat{Occupied: true, Student: &models.SeatStudent{RollNumber: "A001", CourseCode: "A"}}
	return &models.SeatingPlan{
		ExamID: "exam-1",
		Statistics: models.SeatingStatistics{
			TotalStudents: 1,
			TotalSeats:    2,
			CourseCounts:  map[string]int{"A": 1},
		},
		ClassroomAllocations: []models.ClassroomAllocation{
			{Classroom: models.Classroom{ID: "r1", Name: "101", Capacity: 2, Rows: 1, Columns: 2}, SeatMatrix: matrix},
			{Classroom: models.Classroom{ID: "r2", Name: "102", Capacity: 2, Rows: 1, Columns: 2}, SeatMatrix: models.NewSeatMatrix(1, 2)},
		},
	}
}

func TestSeatingPlanRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSeatingPlanRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO seating_plans").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO seating_plan_allocations").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO seating_plan_allocations").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	plan := samplePlan()
	require.NoError(t, repo.Create(context.Background(), plan))
	assert.NotEmpty(t, plan.ID)
	assert.Equal(t, models.SeatingPlanStatusDraft, plan.Status)
	assert.False(t, plan.GeneratedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatingPlanRepositoryCreateRollsBackOnAllocationFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSeatingPlanRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO seating_plans").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO seating_plan_allocations").WillReturnError(sql.ErrTxDone)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), samplePlan())
	assert.ErrorIs(t, err, sql.ErrTxDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatingPlanRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSeatingPlanRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, exam_id, status, statistics, generated_at, updated_at FROM seating_plans WHERE id = $1")).
		WithArgs("plan-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "exam_id", "status", "statistics", "generated_at", "updated_at"}).
			AddRow("plan-1", "exam-1", "draft", []byte(`{"total_students":1,"total_seats":2,"course_counts":{"A":1},"classroom_utilization":[{"classroom":"101","utilization":50}]}`), now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM seating_plan_allocations WHERE plan_id = $1 ORDER BY position ASC")).
		WithArgs("plan-1").
		WillReturnRows(sqlmock.NewRows([]string{"plan_id", "position", "classroom_id", "classroom", "seat_matrix"}).
			AddRow("plan-1", 0, "r1", []byte(`{"id":"r1","name":"101","capacity":2,"rows":1,"columns":2}`),
				[]byte(`[[{"occupied":true,"student":{"roll_number":"A001","name":"Ana","course_code":"A"}},{"occupied":false,"student":null}]]`)))

	plan, err := repo.FindByID(context.Background(), "plan-1")
	require.NoError(t, err)
	assert.Equal(t, models.SeatingPlanStatusDraft, plan.Status)
	assert.Equal(t, 1, plan.Statistics.CourseCounts["A"])
	require.Len(t, plan.ClassroomAllocations, 1)
	assert.Equal(t, "101", plan.ClassroomAllocations[0].Classroom.Name)
	assert.Equal(t, "A001", plan.ClassroomAllocations[0].SeatMatrix[0][0].Student.RollNumber)
	assert.False(t, plan.ClassroomAllocations[0].SeatMatrix[0][1].Occupied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatingPlanRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSeatingPlanRepository(db)

	mock.ExpectQuery("FROM seating_plans WHERE id").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatingPlanRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSeatingPlanRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE p.exam_id = $1 AND p.status = $2 ORDER BY p.generated_at DESC")).
		WithArgs("exam-1", models.SeatingPlanStatusPublished).
		WillReturnRows(sqlmock.NewRows([]string{"id", "exam_id", "exam_name", "status", "generated_at", "classroom_count"}).
			AddRow("plan-1", "exam-1", "Midterm", "published", time.Now(), 3))

	plans, err := repo.List(context.Background(), SeatingPlanFilter{ExamID: "exam-1", Status: models.SeatingPlanStatusPublished})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, 3, plans[0].ClassroomCount)
	assert.Equal(t, "Midterm", plans[0].ExamName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatingPlanRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSeatingPlanRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE seating_plans SET status = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(models.SeatingPlanStatusFinalized, sqlmock.AnyArg(), "plan-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "plan-1", models.SeatingPlanStatusFinalized))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatingPlanRepositoryReplaceAllocations(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSeatingPlanRepository(db)

	plan := samplePlan()
	plan.ID = "plan-1"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE seating_plans SET statistics = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "plan-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM seating_plan_allocations WHERE plan_id = $1")).
		WithArgs("plan-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO seating_plan_allocations").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO seating_plan_allocations").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceAllocations(context.Background(), plan))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatingPlanRepositoryReplaceAllocationsMissingPlan(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSeatingPlanRepository(db)

	plan := samplePlan()
	plan.ID = "missing"

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE seating_plans SET statistics").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ReplaceAllocations(context.Background(), plan)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatingPlanRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSeatingPlanRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM seating_plans WHERE id = $1")).
		WithArgs("plan-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "plan-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
