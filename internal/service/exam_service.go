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

type examRepository interface {
	List(ctx context.Context) ([]models.Exam, error)
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	ListCourses(ctx context.Context, examID string) ([]models.ExamCourse, error)
	Create(ctx context.Context, exam *models.Exam) error
	UpsertCourse(ctx context.Context, course *models.ExamCourse) error
	Delete(ctx context.Context, id string) error
}

// ExamService manages exams and the course rosters sitting them.
type ExamService struct {
	repo      examRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExamService constructs an ExamService.
func NewExamService(repo examRepository, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{repo: repo, validator: validate, logger: logger}
}

// List returns every exam without rosters.
func (s *ExamService) List(ctx context.Context) ([]models.Exam, error) {
	exams, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	if exams == nil {
		exams = []models.Exam{}
	}
	return exams, nil
}

// Get returns an exam with its courses and candidates.
func (s *ExamService) Get(ctx context.Context, id string) (*models.Exam, error) {
	exam, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	courses, err := s.repo.ListCourses(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam courses")
	}
	exam.Courses = courses
	return exam, nil
}

// Create registers an exam, optionally with its course rosters.
func (s *ExamService) Create(ctx context.Context, req dto.CreateExamRequest) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	exam := &models.Exam{
		Name: strings.TrimSpace(req.Name),
		Date: req.Date.UTC(),
	}
	seen := make(map[string]struct{}, len(req.Courses))
	for _, course := range req.Courses {
		code := strings.TrimSpace(course.CourseCode)
		if _, dup := seen[code]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate course code "+code)
		}
		seen[code] = struct{}{}
		exam.Courses = append(exam.Courses, courseFromRequest(course))
	}

	if err := s.repo.Create(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}
	s.logger.Info("exam created", zap.String("exam_id", exam.ID), zap.Int("courses", len(exam.Courses)))
	return exam, nil
}

// UpsertCourse replaces the roster of a course, adding the course when the exam lacks it.
func (s *ExamService) UpsertCourse(ctx context.Context, examID string, req dto.CourseRosterRequest) (*models.ExamCourse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if _, err := s.repo.FindByID(ctx, examID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}

	course := courseFromRequest(req)
	course.ExamID = examID
	if err := s.repo.UpsertCourse(ctx, &course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save course roster")
	}
	s.logger.Info("course roster saved",
		zap.String("exam_id", examID),
		zap.String("course_code", course.CourseCode),
		zap.Int("students", len(course.Students)),
	)
	return &course, nil
}

// Delete removes an exam together with its rosters.
func (s *ExamService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete exam")
	}
	return nil
}

func courseFromRequest(req dto.CourseRosterRequest) models.ExamCourse {
	course := models.ExamCourse{
		CourseCode:  strings.TrimSpace(req.CourseCode),
		CourseTitle: strings.TrimSpace(req.CourseTitle),
		Semester:    req.Semester,
		Branch:      strings.TrimSpace(req.Branch),
		Students:    make([]models.ExamStudent, 0, len(req.Students)),
	}
	for _, student := range req.Students {
		course.Students = append(course.Students, models.ExamStudent{
			RollNumber: strings.TrimSpace(student.RollNumber),
			Name:       strings.TrimSpace(student.Name),
		})
	}
	return course
}
