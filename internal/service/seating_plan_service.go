package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-seating-api/internal/dto"
	"github.com/noah-isme/exam-seating-api/internal/models"
	"github.com/noah-isme/exam-seating-api/internal/repository"
	"github.com/noah-isme/exam-seating-api/internal/seating"
	appErrors "github.com/noah-isme/exam-seating-api/pkg/errors"
	"github.com/noah-isme/exam-seating-api/pkg/storage"
)

// Generation outcomes reported to metrics.
const (
	GenerationOutcomeSuccess              = "success"
	GenerationOutcomeEmpty                = "empty_request"
	GenerationOutcomeInsufficientCapacity = "insufficient_capacity"
	GenerationOutcomeError                = "error"
)

// Swap results reported to metrics.
const (
	SwapResultSwapped = "swapped"
	SwapResultIgnored = "ignored"
	SwapResultLocked  = "locked"
)

const planCacheKeyPrefix = "seating_plan:"

type seatingPlanStore interface {
	Create(ctx context.Context, plan *models.SeatingPlan) error
	FindByID(ctx context.Context, id string) (*models.SeatingPlan, error)
	List(ctx context.Context, filter repository.SeatingPlanFilter) ([]models.SeatingPlanSummary, error)
	UpdateStatus(ctx context.Context, id string, status models.SeatingPlanStatus) error
	ReplaceAllocations(ctx context.Context, plan *models.SeatingPlan) error
	Delete(ctx context.Context, id string) error
}

type examReader interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	ListCourses(ctx context.Context, examID string) ([]models.ExamCourse, error)
}

type classroomFinder interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Classroom, error)
}

type planCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

type planEventSink interface {
	Dispatch(event PlanEvent)
}

type planExporter interface {
	ExportPlan(ctx context.Context, plan *models.SeatingPlan, exam *models.Exam, courses []models.ExamCourse, format string) (*ExportResult, error)
	ParseToken(token string, allowExpired bool) (planID, relPath string, expiresAt time.Time, err error)
	Open(relPath string) (*os.File, error)
	DeletePlanExports(planID string) error
}

// SeatingPlanConfig tunes plan generation and caching.
type SeatingPlanConfig struct {
	MaxClassrooms int
	CacheTTL      time.Duration
}

// SeatingPlanService generates, edits and exports seating plans.
type SeatingPlanService struct {
	plans      seatingPlanStore
	exams      examReader
	classrooms classroomFinder
	cache      planCache
	events     planEventSink
	exporter   planExporter
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        SeatingPlanConfig
	locks      *planLocks
}

// NewSeatingPlanService wires a SeatingPlanService. cache, events and metrics are optional.
func NewSeatingPlanService(
	plans seatingPlanStore,
	exams examReader,
	classrooms classroomFinder,
	cache planCache,
	events planEventSink,
	exporter planExporter,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SeatingPlanConfig,
) *SeatingPlanService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeatingPlanService{
		plans:      plans,
		exams:      exams,
		classrooms: classrooms,
		cache:      cache,
		events:     events,
		exporter:   exporter,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		locks:      newPlanLocks(),
	}
}

// Generate allocates the exam's candidates to the requested classrooms and stores a draft plan.
// Classrooms are filled in request order; unknown classroom IDs are skipped.
func (s *SeatingPlanService) Generate(ctx context.Context, req dto.GenerateSeatingPlanRequest) (*models.SeatingPlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid seating plan request")
	}
	ids := uniqueIDs(req.ClassroomIDs)
	if s.cfg.MaxClassrooms > 0 && len(ids) > s.cfg.MaxClassrooms {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d classrooms per plan", s.cfg.MaxClassrooms))
	}

	if _, err := s.exams.FindByID(ctx, req.ExamID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	courses, err := s.exams.ListCourses(ctx, req.ExamID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam courses")
	}
	classrooms, err := s.loadClassrooms(ctx, ids)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := seating.Allocate(courses, classrooms)
	elapsed := time.Since(start)
	if err != nil {
		return nil, s.generationError(req.ExamID, err, elapsed)
	}
	s.metrics.ObservePlanGeneration(GenerationOutcomeSuccess, result.Statistics.TotalStudents, elapsed)

	plan := &models.SeatingPlan{
		ExamID:               req.ExamID,
		Status:               models.SeatingPlanStatusDraft,
		Statistics:           result.Statistics,
		ClassroomAllocations: result.ClassroomAllocations,
	}
	saveStart := time.Now()
	err = s.plans.Create(ctx, plan)
	s.metrics.ObserveDBQuery("seating_plan_create", time.Since(saveStart))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save seating plan")
	}

	s.logger.Info("seating plan generated",
		zap.String("plan_id", plan.ID),
		zap.String("exam_id", plan.ExamID),
		zap.Int("classrooms", len(plan.ClassroomAllocations)),
		zap.Int("students", plan.Statistics.TotalStudents),
		zap.Duration("elapsed", elapsed),
	)
	s.storeCached(ctx, plan)
	s.dispatch(PlanEventGenerated, plan)
	return plan, nil
}

// Get returns a plan, served from cache when possible. The bool reports a cache hit.
func (s *SeatingPlanService) Get(ctx context.Context, id string) (*models.SeatingPlan, bool, error) {
	if s.cache != nil {
		var cached models.SeatingPlan
		if hit, err := s.cache.Get(ctx, planCacheKey(id), &cached); err == nil && hit {
			return &cached, true, nil
		}
	}
	plan, err := s.load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	s.storeCached(ctx, plan)
	return plan, false, nil
}

// List returns plan summaries matching query.
func (s *SeatingPlanService) List(ctx context.Context, query dto.SeatingPlanQuery) ([]models.SeatingPlanSummary, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid seating plan filter")
	}
	plans, err := s.plans.List(ctx, repository.SeatingPlanFilter{ExamID: query.ExamID, Status: query.Status})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list seating plans")
	}
	if plans == nil {
		plans = []models.SeatingPlanSummary{}
	}
	return plans, nil
}

// UpdateStatus moves a plan to any lifecycle status.
func (s *SeatingPlanService) UpdateStatus(ctx context.Context, id string, req dto.UpdateSeatingPlanStatusRequest) (*models.SeatingPlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown seating plan status")
	}
	unlock := s.locks.lock(id)
	defer unlock()

	if err := s.plans.UpdateStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "seating plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update seating plan status")
	}
	s.invalidate(ctx, id)

	plan, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("seating plan status changed", zap.String("plan_id", id), zap.String("status", string(plan.Status)))
	s.dispatch(PlanEventStatusChanged, plan)
	return plan, nil
}

// Swap exchanges the candidates of two seats. Swaps that address no movable candidate are
// reported with Swapped=false and leave the plan untouched.
func (s *SeatingPlanService) Swap(ctx context.Context, id string, req dto.SwapSeatsRequest) (*dto.SwapSeatsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid swap payload")
	}
	unlock := s.locks.lock(id)
	defer unlock()

	plan, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	swapped, err := seating.Swap(plan, req.From, req.To)
	if err != nil {
		if errors.Is(err, seating.ErrPlanLocked) {
			s.metrics.RecordSeatSwap(SwapResultLocked)
			return nil, appErrors.ErrPlanLocked
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to swap seats")
	}
	if !swapped {
		s.metrics.RecordSeatSwap(SwapResultIgnored)
		return &dto.SwapSeatsResponse{Swapped: false, Plan: plan}, nil
	}

	if err := s.persistEdit(ctx, plan); err != nil {
		return nil, err
	}
	s.metrics.RecordSeatSwap(SwapResultSwapped)
	return &dto.SwapSeatsResponse{Swapped: true, Plan: plan}, nil
}

// UpdateAllocations replaces seat matrices of classrooms already in the plan. Matrix dimensions
// must match the stored ones.
func (s *SeatingPlanService) UpdateAllocations(ctx context.Context, id string, req dto.UpdateSeatingPlanRequest) (*models.SeatingPlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid seating plan payload")
	}
	unlock := s.locks.lock(id)
	defer unlock()

	plan, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.Locked() {
		return nil, appErrors.ErrPlanLocked
	}

	for _, update := range req.ClassroomAllocations {
		idx := allocationIndex(plan.ClassroomAllocations, update.ClassroomID)
		if idx < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("classroom %s is not part of this plan", update.ClassroomID))
		}
		if !sameShape(plan.ClassroomAllocations[idx].SeatMatrix, update.SeatMatrix) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("seat matrix for classroom %s does not match its grid", update.ClassroomID))
		}
		plan.ClassroomAllocations[idx].SeatMatrix = update.SeatMatrix
	}
	seating.RefreshStatistics(plan)

	if err := s.persistEdit(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// Delete removes a plan together with its rendered exports.
func (s *SeatingPlanService) Delete(ctx context.Context, id string) error {
	unlock := s.locks.lock(id)
	defer unlock()

	if err := s.plans.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "seating plan not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete seating plan")
	}
	s.invalidate(ctx, id)
	if s.exporter != nil {
		if err := s.exporter.DeletePlanExports(id); err != nil {
			s.logger.Warn("failed to delete plan exports", zap.String("plan_id", id), zap.Error(err))
		}
	}
	s.dispatch(PlanEventDeleted, &models.SeatingPlan{ID: id})
	return nil
}

// Export renders the plan in the requested format and returns a signed download link.
func (s *SeatingPlanService) Export(ctx context.Context, id string, req dto.ExportSeatingPlanRequest) (*dto.ExportResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	plan, _, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	exam, err := s.exams.FindByID(ctx, plan.ExamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	courses, err := s.exams.ListCourses(ctx, plan.ExamID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam courses")
	}

	result, err := s.exporter.ExportPlan(ctx, plan, exam, courses, req.Format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export seating plan")
	}
	s.metrics.RecordExport(req.Format)
	return &dto.ExportResponse{URL: result.URL, Format: result.Format, ExpiresAt: result.ExpiresAt}, nil
}

// OpenExport resolves a signed download token to the stored file.
func (s *SeatingPlanService) OpenExport(token string) (*os.File, error) {
	_, relPath, _, err := s.exporter.ParseToken(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.ErrExportExpired
		}
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export not found")
	}
	file, err := s.exporter.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export not found")
	}
	return file, nil
}

func (s *SeatingPlanService) load(ctx context.Context, id string) (*models.SeatingPlan, error) {
	start := time.Now()
	plan, err := s.plans.FindByID(ctx, id)
	s.metrics.ObserveDBQuery("seating_plan_find", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "seating plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load seating plan")
	}
	return plan, nil
}

// loadClassrooms returns the classrooms for ids in request order.
func (s *SeatingPlanService) loadClassrooms(ctx context.Context, ids []string) ([]models.Classroom, error) {
	found, err := s.classrooms.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classrooms")
	}
	byID := make(map[string]models.Classroom, len(found))
	for _, classroom := range found {
		byID[classroom.ID] = classroom
	}
	ordered := make([]models.Classroom, 0, len(ids))
	for _, id := range ids {
		if classroom, ok := byID[id]; ok {
			ordered = append(ordered, classroom)
		}
	}
	if len(ordered) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no classrooms found")
	}
	return ordered, nil
}

func (s *SeatingPlanService) generationError(examID string, err error, elapsed time.Duration) error {
	var capacityErr *seating.CapacityError
	switch {
	case errors.As(err, &capacityErr):
		s.metrics.ObservePlanGeneration(GenerationOutcomeInsufficientCapacity, 0, elapsed)
		s.logger.Info("seating plan rejected",
			zap.String("exam_id", examID),
			zap.Int("required", capacityErr.Required),
			zap.Int("available", capacityErr.Available),
		)
		appErr := appErrors.WithDetails(appErrors.ErrInsufficientCapacity, map[string]interface{}{
			"required":  capacityErr.Required,
			"available": capacityErr.Available,
			"shortfall": capacityErr.Shortfall(),
		})
		appErr.Message = capacityErr.Error()
		appErr.Err = err
		return appErr
	case errors.Is(err, seating.ErrEmptyRequest):
		s.metrics.ObservePlanGeneration(GenerationOutcomeEmpty, 0, elapsed)
		return appErrors.ErrEmptyRequest
	default:
		s.metrics.ObservePlanGeneration(GenerationOutcomeError, 0, elapsed)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate seats")
	}
}

func (s *SeatingPlanService) persistEdit(ctx context.Context, plan *models.SeatingPlan) error {
	if err := s.plans.ReplaceAllocations(ctx, plan); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "seating plan not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save seating plan")
	}
	s.invalidate(ctx, plan.ID)
	s.dispatch(PlanEventEdited, plan)
	return nil
}

func (s *SeatingPlanService) storeCached(ctx context.Context, plan *models.SeatingPlan) {
	if s.cache == nil || plan == nil {
		return
	}
	_ = s.cache.Set(ctx, planCacheKey(plan.ID), plan, s.cfg.CacheTTL)
}

func (s *SeatingPlanService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, planCacheKey(id))
}

func (s *SeatingPlanService) dispatch(eventType string, plan *models.SeatingPlan) {
	if s.events == nil {
		return
	}
	s.events.Dispatch(NewPlanEvent(eventType, plan))
}

func planCacheKey(id string) string {
	return planCacheKeyPrefix + id
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func allocationIndex(allocations []models.ClassroomAllocation, classroomID string) int {
	for i := range allocations {
		if allocations[i].Classroom.ID == classroomID {
			return i
		}
	}
	return -1
}

func sameShape(a, b models.SeatMatrix) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
	}
	return true
}

// planLocks serialises edits per plan. Entries are reference counted and removed once unused.
type planLocks struct {
	mu    sync.Mutex
	locks map[string]*planLock
}

type planLock struct {
	mu   sync.Mutex
	refs int
}

func newPlanLocks() *planLocks {
	return &planLocks{locks: make(map[string]*planLock)}
}

func (l *planLocks) lock(id string) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &planLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
