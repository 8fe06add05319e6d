package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-seating-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestExamRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "exam_date", "created_at", "updated_at"}).
		AddRow("exam-1", "Midterm", now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, exam_date, created_at, updated_at FROM exams ORDER BY exam_date DESC, name ASC")).
		WillReturnRows(rows)

	exams, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, exams, 1)
	assert.Equal(t, "Midterm", exams[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryListCoursesGroupsStudents(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM exam_courses WHERE exam_id = $1 ORDER BY course_code ASC")).
		WithArgs("exam-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "exam_id", "course_code", "course_title", "semester", "branch"}).
			AddRow("c1", "exam-1", "CS101", "Programming", 1, "CSE").
			AddRow("c2", "exam-1", "EE101", "Circuits", 1, "EEE"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM exam_students s")).
		WithArgs("exam-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "roll_number", "name"}).
			AddRow("s1", "c1", "R001", "Ana").
			AddRow("s2", "c1", "R002", "Budi").
			AddRow("s3", "c9", "R003", "Orphan"))

	courses, err := repo.ListCourses(context.Background(), "exam-1")
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Len(t, courses[0].Students, 2)
	assert.Equal(t, "R001", courses[0].Students[0].RollNumber)
	assert.NotNil(t, courses[1].Students)
	assert.Empty(t, courses[1].Students)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryListCoursesEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM exam_courses WHERE exam_id = $1")).
		WithArgs("exam-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "exam_id", "course_code", "course_title", "semester", "branch"}))

	courses, err := repo.ListCourses(context.Background(), "exam-1")
	require.NoError(t, err)
	assert.Empty(t, courses)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryCreateWithCourses(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO exams").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO exam_courses").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO exam_students (id, course_id, roll_number, name) VALUES ($1, $2, $3, $4)")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "R001", "Ana").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	exam := &models.Exam{
		Name: "Midterm",
		Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Courses: []models.ExamCourse{{
			CourseCode: "CS101",
			Students:   []models.ExamStudent{{RollNumber: "R001", Name: "Ana"}},
		}},
	}
	require.NoError(t, repo.Create(context.Background(), exam))
	assert.NotEmpty(t, exam.ID)
	assert.Equal(t, exam.ID, exam.Courses[0].ExamID)
	assert.Equal(t, exam.Courses[0].ID, exam.Courses[0].Students[0].CourseID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryCreateRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO exams").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Exam{Name: "Midterm"})
	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryUpsertCourseReplacesRoster(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM exam_courses WHERE exam_id = $1 AND course_code = $2 FOR UPDATE")).
		WithArgs("exam-1", "CS101").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("c1"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE exam_courses SET course_title = $1, semester = $2, branch = $3 WHERE id = $4")).
		WithArgs("Programming", 2, "CSE", "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM exam_students WHERE course_id = $1")).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO exam_students").
		WithArgs(sqlmock.AnyArg(), "c1", "R010", "Citra").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE exams SET updated_at = $1 WHERE id = $2")).
		WithArgs(sqlmock.AnyArg(), "exam-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	course := &models.ExamCourse{
		ExamID:      "exam-1",
		CourseCode:  "CS101",
		CourseTitle: "Programming",
		Semester:    2,
		Branch:      "CSE",
		Students:    []models.ExamStudent{{RollNumber: "R010", Name: "Citra"}},
	}
	require.NoError(t, repo.UpsertCourse(context.Background(), course))
	assert.Equal(t, "c1", course.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryUpsertCourseInsertsNew(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM exam_courses").
		WithArgs("exam-1", "EE101").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO exam_courses").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE exams SET updated_at").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	course := &models.ExamCourse{ExamID: "exam-1", CourseCode: "EE101"}
	require.NoError(t, repo.UpsertCourse(context.Background(), course))
	assert.NotEmpty(t, course.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryDeleteNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM exams WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
