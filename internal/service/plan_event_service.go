package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-seating-api/internal/models"
	"github.com/noah-isme/exam-seating-api/pkg/jobs"
)

// Seating plan lifecycle event types.
const (
	PlanEventGenerated     = "seating_plan.generated"
	PlanEventStatusChanged = "seating_plan.status_changed"
	PlanEventEdited        = "seating_plan.edited"
	PlanEventDeleted       = "seating_plan.deleted"
)

// PlanEvent is the message published for every plan lifecycle change.
type PlanEvent struct {
	Type          string                   `json:"type"`
	PlanID        string                   `json:"plan_id"`
	ExamID        string                   `json:"exam_id,omitempty"`
	Status        models.SeatingPlanStatus `json:"status,omitempty"`
	TotalStudents int                      `json:"total_students"`
	OccurredAt    time.Time                `json:"occurred_at"`
}

// NewPlanEvent snapshots plan into an event of the given type.
func NewPlanEvent(eventType string, plan *models.SeatingPlan) PlanEvent {
	event := PlanEvent{Type: eventType, OccurredAt: time.Now().UTC()}
	if plan != nil {
		event.PlanID = plan.ID
		event.ExamID = plan.ExamID
		event.Status = plan.Status
		event.TotalStudents = plan.Statistics.TotalStudents
	}
	return event
}

type eventPublisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

// PlanEventDispatcher hands plan events to a background queue that publishes them to the broker,
// so request handlers never wait on RabbitMQ.
type PlanEventDispatcher struct {
	queue     *jobs.Queue[PlanEvent]
	publisher eventPublisher
	metrics   *MetricsService
	logger    *zap.Logger
	timeout   time.Duration
}

// NewPlanEventDispatcher constructs a dispatcher publishing through publisher.
func NewPlanEventDispatcher(publisher eventPublisher, cfg jobs.QueueConfig, metrics *MetricsService, logger *zap.Logger) *PlanEventDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Logger = logger
	d := &PlanEventDispatcher{
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		timeout:   5 * time.Second,
	}
	d.queue = jobs.NewQueue[PlanEvent]("plan-events", d.handle, cfg)
	return d
}

// Start launches the publishing workers.
func (d *PlanEventDispatcher) Start(ctx context.Context) {
	if d == nil {
		return
	}
	d.queue.Start(ctx)
}

// Stop waits for in-flight publishes to return.
func (d *PlanEventDispatcher) Stop() {
	if d == nil {
		return
	}
	d.queue.Stop()
}

// Stats exposes the queue counters.
func (d *PlanEventDispatcher) Stats() jobs.Stats {
	if d == nil {
		return jobs.Stats{}
	}
	return d.queue.Stats()
}

// Dispatch enqueues event without blocking. Events are dropped when the queue is full.
func (d *PlanEventDispatcher) Dispatch(event PlanEvent) {
	if d == nil {
		return
	}
	if err := d.queue.TryEnqueue(jobs.Job[PlanEvent]{ID: uuid.NewString(), Payload: event}); err != nil {
		d.metrics.RecordPlanEvent(event.Type, "dropped")
		d.logger.Warn("plan event dropped", zap.String("type", event.Type), zap.String("plan_id", event.PlanID), zap.Error(err))
	}
}

func (d *PlanEventDispatcher) handle(ctx context.Context, job jobs.Job[PlanEvent]) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.publisher.Publish(ctx, job.Payload.Type, job.Payload); err != nil {
		d.metrics.RecordPlanEvent(job.Payload.Type, "error")
		return err
	}
	d.metrics.RecordPlanEvent(job.Payload.Type, "published")
	return nil
}
