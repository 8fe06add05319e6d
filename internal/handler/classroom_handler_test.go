package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-seating-api/internal/dto"
	"github.com/noah-isme/exam-seating-api/internal/models"
	appErrors "github.com/noah-isme/exam-seating-api/pkg/errors"
)

type classroomServiceStub struct {
	classroom *models.Classroom
	err       error
	createReq dto.ClassroomRequest
	updateReq dto.UpdateClassroomRequest
	lastID    string
}

func (s *classroomServiceStub) List(ctx context.Context) ([]models.Classroom, error) {
	return []models.Classroom{}, s.err
}

func (s *classroomServiceStub) Get(ctx context.Context, id string) (*models.Classroom, error) {
	s.lastID = id
	return s.classroom, s.err
}

func (s *classroomServiceStub) Create(ctx context.Context, req dto.ClassroomRequest) (*models.Classroom, error) {
	s.createReq = req
	return s.classroom, s.err
}

func (s *classroomServiceStub) Update(ctx context.Context, id string, req dto.UpdateClassroomRequest) (*models.Classroom, error) {
	s.lastID = id
	s.updateReq = req
	return s.classroom, s.err
}

func (s *classroomServiceStub) Delete(ctx context.Context, id string) error {
	s.lastID = id
	return s.err
}

func newClassroomRouter(stub *classroomServiceStub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewClassroomHandler(stub)
	r := gin.New()
	r.GET("/classrooms", h.List)
	r.POST("/classrooms", h.Create)
	r.GET("/classrooms/:id", h.Get)
	r.PUT("/classrooms/:id", h.Update)
	r.DELETE("/classrooms/:id", h.Delete)
	return r
}

func TestClassroomHandlerCreate(t *testing.T) {
	stub := &classroomServiceStub{classroom: &models.Classroom{ID: "r1", Name: "101"}}
	r := newClassroomRouter(stub)

	w := doJSON(r, http.MethodPost, "/classrooms",
		`{"name":"101","building":"Main","capacity":4,"rows":2,"columns":2,"unavailable_seats":[{"row":1,"column":1}]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 2, stub.createReq.Rows)
	assert.Equal(t, []models.SeatPosition{{Row: 1, Column: 1}}, stub.createReq.UnavailableSeats)

	w = doJSON(r, http.MethodPost, "/classrooms", `{"rows":"two"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClassroomHandlerUpdatePartial(t *testing.T) {
	stub := &classroomServiceStub{classroom: &models.Classroom{ID: "r1"}}
	r := newClassroomRouter(stub)

	w := doJSON(r, http.MethodPut, "/classrooms/r1", `{"capacity":30}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "r1", stub.lastID)
	require.NotNil(t, stub.updateReq.Capacity)
	assert.Equal(t, 30, *stub.updateReq.Capacity)
	assert.Nil(t, stub.updateReq.Name)
}

func TestClassroomHandlerErrors(t *testing.T) {
	stub := &classroomServiceStub{err: appErrors.Wrap(errors.New("db down"), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete classroom")}
	r := newClassroomRouter(stub)

	w := doJSON(r, http.MethodDelete, "/classrooms/r1", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	stub.err = appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
	w = doJSON(r, http.MethodGet, "/classrooms/r9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
