package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-seating-api/internal/dto"
	"github.com/noah-isme/exam-seating-api/internal/models"
	appErrors "github.com/noah-isme/exam-seating-api/pkg/errors"
)

type examServiceStub struct {
	exam      *models.Exam
	err       error
	createReq dto.CreateExamRequest
	courseReq dto.CourseRosterRequest
	lastID    string
}

func (s *examServiceStub) List(ctx context.Context) ([]models.Exam, error) {
	if s.exam == nil {
		return []models.Exam{}, s.err
	}
	return []models.Exam{*s.exam}, s.err
}

func (s *examServiceStub) Get(ctx context.Context, id string) (*models.Exam, error) {
	s.lastID = id
	return s.exam, s.err
}

func (s *examServiceStub) Create(ctx context.Context, req dto.CreateExamRequest) (*models.Exam, error) {
	s.createReq = req
	return s.exam, s.err
}

func (s *examServiceStub) UpsertCourse(ctx context.Context, examID string, req dto.CourseRosterRequest) (*models.ExamCourse, error) {
	s.lastID = examID
	s.courseReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.ExamCourse{ExamID: examID, CourseCode: req.CourseCode}, nil
}

func (s *examServiceStub) Delete(ctx context.Context, id string) error {
	s.lastID = id
	return s.err
}

func newExamRouter(stub *examServiceStub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewExamHandler(stub)
	r := gin.New()
	r.GET("/exams", h.List)
	r.POST("/exams", h.Create)
	r.GET("/exams/:id", h.Get)
	r.PUT("/exams/:id/courses", h.UpsertCourse)
	r.DELETE("/exams/:id", h.Delete)
	return r
}

func TestExamHandlerCreate(t *testing.T) {
	stub := &examServiceStub{exam: &models.Exam{ID: "exam-1", Name: "Midterm"}}
	r := newExamRouter(stub)

	w := doJSON(r, http.MethodPost, "/exams", dto.CreateExamRequest{
		Name: "Midterm",
		Date: time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC),
		Courses: []dto.CourseRosterRequest{
			{CourseCode: "CS101", Students: []dto.StudentRequest{{RollNumber: "CS001"}}},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Midterm", stub.createReq.Name)
	require.Len(t, stub.createReq.Courses, 1)
	assert.Equal(t, "CS001", stub.createReq.Courses[0].Students[0].RollNumber)

	w = doJSON(r, http.MethodPost, "/exams", `not-json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrValidation.Code)
}

func TestExamHandlerUpsertCourse(t *testing.T) {
	stub := &examServiceStub{}
	r := newExamRouter(stub)

	w := doJSON(r, http.MethodPut, "/exams/exam-1/courses", dto.CourseRosterRequest{CourseCode: "MA201"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "exam-1", stub.lastID)
	assert.Equal(t, "MA201", stub.courseReq.CourseCode)
}

func TestExamHandlerNotFound(t *testing.T) {
	stub := &examServiceStub{err: appErrors.Clone(appErrors.ErrNotFound, "exam not found")}
	r := newExamRouter(stub)

	w := doJSON(r, http.MethodGet, "/exams/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "missing", stub.lastID)

	w = doJSON(r, http.MethodDelete, "/exams/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExamHandlerListAndDelete(t *testing.T) {
	stub := &examServiceStub{exam: &models.Exam{ID: "exam-1"}}
	r := newExamRouter(stub)

	w := doJSON(r, http.MethodGet, "/exams", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"exam-1"`)

	w = doJSON(r, http.MethodDelete, "/exams/exam-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
