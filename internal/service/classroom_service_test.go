package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-seating-api/internal/dto"
	"github.com/noah-isme/exam-seating-api/internal/models"
	appErrors "github.com/noah-isme/exam-seating-api/pkg/errors"
)

type mockClassroomRepo struct {
	items map[string]*models.Classroom
}

func (m *mockClassroomRepo) List(ctx context.Context) ([]models.Classroom, error) {
	return nil, nil
}

func (m *mockClassroomRepo) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	if c, ok := m.items[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassroomRepo) Create(ctx context.Context, classroom *models.Classroom) error {
	if m.items == nil {
		m.items = make(map[string]*models.Classroom)
	}
	classroom.ID = "room-1"
	cp := *classroom
	m.items[classroom.ID] = &cp
	return nil
}

func (m *mockClassroomRepo) Update(ctx context.Context, classroom *models.Classroom) error {
	cp := *classroom
	m.items[classroom.ID] = &cp
	return nil
}

func (m *mockClassroomRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

func TestClassroomServiceCreate(t *testing.T) {
	repo := &mockClassroomRepo{}
	svc := NewClassroomService(repo, nil, nil)

	classroom, err := svc.Create(context.Background(), dto.ClassroomRequest{
		Name: "101", Building: "Main", Capacity: 30, Rows: 5, Columns: 6,
		UnavailableSeats: []models.SeatPosition{{Row: 9, Column: 9}},
	})
	require.NoError(t, err)
	assert.Equal(t, "room-1", classroom.ID)
	assert.Equal(t, models.SeatPositions{{Row: 9, Column: 9}}, classroom.UnavailableSeats, "out of range seats are stored as given")

	classroom, err = svc.Create(context.Background(), dto.ClassroomRequest{Name: "102", Building: "Main", Capacity: 4, Rows: 2, Columns: 2})
	require.NoError(t, err)
	assert.NotNil(t, classroom.UnavailableSeats)

	_, err = svc.Create(context.Background(), dto.ClassroomRequest{Name: "103", Building: "Main", Capacity: 0, Rows: 2, Columns: 2})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestClassroomServiceUpdate(t *testing.T) {
	repo := &mockClassroomRepo{items: map[string]*models.Classroom{
		"r1": {ID: "r1", Name: "101", Building: "Main", Capacity: 30, Rows: 5, Columns: 6},
	}}
	svc := NewClassroomService(repo, nil, nil)

	capacity := 24
	seats := []models.SeatPosition{{Row: 0, Column: 0}}
	classroom, err := svc.Update(context.Background(), "r1", dto.UpdateClassroomRequest{Capacity: &capacity, UnavailableSeats: &seats})
	require.NoError(t, err)
	assert.Equal(t, 24, classroom.Capacity)
	assert.Equal(t, "101", classroom.Name)
	assert.Len(t, repo.items["r1"].UnavailableSeats, 1)

	zero := 0
	_, err = svc.Update(context.Background(), "r1", dto.UpdateClassroomRequest{Rows: &zero})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Update(context.Background(), "missing", dto.UpdateClassroomRequest{Capacity: &capacity})
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestClassroomServiceDelete(t *testing.T) {
	repo := &mockClassroomRepo{items: map[string]*models.Classroom{"r1": {ID: "r1"}}}
	svc := NewClassroomService(repo, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "r1"))
	err := svc.Delete(context.Background(), "r1")
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)

	classrooms, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, classrooms)
}
