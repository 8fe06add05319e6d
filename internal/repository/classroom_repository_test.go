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

var classroomRowColumns = []string{"id", "name", "building", "floor", "capacity", "rows", "columns", "unavailable_seats", "created_at", "updated_at"}

func TestClassroomRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassroomRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(classroomRowColumns).
		AddRow("r1", "101", "A", 1, 30, 5, 6, []byte(`[{"row":0,"column":1}]`), now, now).
		AddRow("r2", "102", "A", 1, 20, 4, 5, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM classrooms ORDER BY building ASC, name ASC")).WillReturnRows(rows)

	classrooms, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, classrooms, 2)
	assert.Equal(t, models.SeatPositions{{Row: 0, Column: 1}}, classrooms[0].UnavailableSeats)
	assert.Empty(t, classrooms[1].UnavailableSeats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassroomRepositoryFindByIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassroomRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM classrooms WHERE id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(classroomRowColumns).AddRow("r2", "102", "A", 1, 20, 4, 5, []byte(`[]`), now, now))

	classrooms, err := repo.FindByIDs(context.Background(), []string{"r1", "r2"})
	require.NoError(t, err)
	require.Len(t, classrooms, 1)
	assert.Equal(t, "r2", classrooms[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassroomRepositoryFindByIDsEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassroomRepository(db)

	classrooms, err := repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, classrooms)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassroomRepositoryCreateAndUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassroomRepository(db)

	mock.ExpectExec("INSERT INTO classrooms").WillReturnResult(sqlmock.NewResult(1, 1))
	classroom := &models.Classroom{Name: "101", Building: "A", Capacity: 30, Rows: 5, Columns: 6}
	require.NoError(t, repo.Create(context.Background(), classroom))
	assert.NotEmpty(t, classroom.ID)
	assert.False(t, classroom.CreatedAt.IsZero())

	mock.ExpectExec("UPDATE classrooms SET").WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Update(context.Background(), classroom)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassroomRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassroomRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM classrooms WHERE id = $1")).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "r1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
