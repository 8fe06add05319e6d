package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-seating-api/internal/dto"
	"github.com/noah-isme/exam-seating-api/internal/models"
	appErrors "github.com/noah-isme/exam-seating-api/pkg/errors"
)

type classroomRepository interface {
	List(ctx context.Context) ([]models.Classroom, error)
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
	Create(ctx context.Context, classroom *models.Classroom) error
	Update(ctx context.Context, classroom *models.Classroom) error
	Delete(ctx context.Context, id string) error
}

// ClassroomService manages the exam rooms available for seating.
type ClassroomService struct {
	repo      classroomRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassroomService constructs a ClassroomService.
func NewClassroomService(repo classroomRepository, validate *validator.Validate, logger *zap.Logger) *ClassroomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassroomService{repo: repo, validator: validate, logger: logger}
}

// List returns every classroom ordered by building and name.
func (s *ClassroomService) List(ctx context.Context) ([]models.Classroom, error) {
	classrooms, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classrooms")
	}
	if classrooms == nil {
		classrooms = []models.Classroom{}
	}
	return classrooms, nil
}

// Get returns a classroom by id.
func (s *ClassroomService) Get(ctx context.Context, id string) (*models.Classroom, error) {
	classroom, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	return classroom, nil
}

// Create registers a classroom. Unavailable seat coordinates are stored as given.
func (s *ClassroomService) Create(ctx context.Context, req dto.ClassroomRequest) (*models.Classroom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
	}
	classroom := &models.Classroom{
		Name:             strings.TrimSpace(req.Name),
		Building:         strings.TrimSpace(req.Building),
		Floor:            req.Floor,
		Capacity:         req.Capacity,
		Rows:             req.Rows,
		Columns:          req.Columns,
		UnavailableSeats: models.SeatPositions(req.UnavailableSeats),
	}
	if classroom.UnavailableSeats == nil {
		classroom.UnavailableSeats = models.SeatPositions{}
	}
	if err := s.repo.Create(ctx, classroom); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create classroom")
	}
	return classroom, nil
}

// Update applies the non-nil fields of req to a classroom.
func (s *ClassroomService) Update(ctx context.Context, id string, req dto.UpdateClassroomRequest) (*models.Classroom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
	}
	classroom, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		classroom.Name = strings.TrimSpace(*req.Name)
	}
	if req.Building != nil {
		classroom.Building = strings.TrimSpace(*req.Building)
	}
	if req.Floor != nil {
		classroom.Floor = *req.Floor
	}
	if req.Capacity != nil {
		classroom.Capacity = *req.Capacity
	}
	if req.Rows != nil {
		classroom.Rows = *req.Rows
	}
	if req.Columns != nil {
		classroom.Columns = *req.Columns
	}
	if req.UnavailableSeats != nil {
		classroom.UnavailableSeats = models.SeatPositions(*req.UnavailableSeats)
	}

	if err := s.repo.Update(ctx, classroom); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update classroom")
	}
	return classroom, nil
}

// Delete removes a classroom. Existing plans keep their own snapshot of it.
func (s *ClassroomService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete classroom")
	}
	return nil
}
