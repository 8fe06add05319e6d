package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/exam-seating-api/internal/models"
)

// SeatingPlanFilter narrows plan listings.
type SeatingPlanFilter struct {
	ExamID string
	Status models.SeatingPlanStatus
}

// allocationRow stores one classroom of a plan. The classroom is kept as a snapshot so a plan
// still renders after the classroom record changes or is removed.
type allocationRow struct {
	PlanID      string            `db:"plan_id"`
	Position    int               `db:"position"`
	ClassroomID string            `db:"classroom_id"`
	Classroom   types.JSONText    `db:"classroom"`
	SeatMatrix  models.SeatMatrix `db:"seat_matrix"`
}

// SeatingPlanRepository persists generated seating plans and their allocations.
type SeatingPlanRepository struct {
	db *sqlx.DB
}

// NewSeatingPlanRepository constructs repository.
func NewSeatingPlanRepository(db *sqlx.DB) *SeatingPlanRepository {
	return &SeatingPlanRepository{db: db}
}

// Create inserts a plan and all its allocations in a single transaction.
func (r *SeatingPlanRepository) Create(ctx context.Context, plan *models.SeatingPlan) (err error) {
	if plan == nil {
		return fmt.Errorf("seating plan payload is nil")
	}
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if plan.Status == "" {
		plan.Status = models.SeatingPlanStatusDraft
	}
	now := time.Now().UTC()
	if plan.GeneratedAt.IsZero() {
		plan.GeneratedAt = now
	}
	plan.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seating plan transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO seating_plans (id, exam_id, status, statistics, generated_at, updated_at)
VALUES (:id, :exam_id, :status, :statistics, :generated_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("insert seating plan: %w", err)
	}
	if err = insertAllocations(ctx, tx, plan); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit seating plan: %w", err)
	}
	return nil
}

// FindByID loads a plan with its allocations in generation order.
func (r *SeatingPlanRepository) FindByID(ctx context.Context, id string) (*models.SeatingPlan, error) {
	const planQuery = `SELECT id, exam_id, status, statistics, generated_at, updated_at FROM seating_plans WHERE id = $1`
	var plan models.SeatingPlan
	if err := r.db.GetContext(ctx, &plan, planQuery, id); err != nil {
		return nil, err
	}

	const allocationQuery = `SELECT plan_id, position, classroom_id, classroom, seat_matrix FROM seating_plan_allocations WHERE plan_id = $1 ORDER BY position ASC`
	var rows []allocationRow
	if err := r.db.SelectContext(ctx, &rows, allocationQuery, id); err != nil {
		return nil, fmt.Errorf("list seating plan allocations: %w", err)
	}

	plan.ClassroomAllocations = make([]models.ClassroomAllocation, 0, len(rows))
	for _, row := range rows {
		var classroom models.Classroom
		if err := row.Classroom.Unmarshal(&classroom); err != nil {
			return nil, fmt.Errorf("decode classroom snapshot %s: %w", row.ClassroomID, err)
		}
		plan.ClassroomAllocations = append(plan.ClassroomAllocations, models.ClassroomAllocation{
			Classroom:  classroom,
			SeatMatrix: row.SeatMatrix,
		})
	}
	return &plan, nil
}

// List returns plan summaries, newest first.
func (r *SeatingPlanRepository) List(ctx context.Context, filter SeatingPlanFilter) ([]models.SeatingPlanSummary, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.ExamID != "" {
		conditions = append(conditions, fmt.Sprintf("p.exam_id = $%d", len(args)+1))
		args = append(args, filter.ExamID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	query := `SELECT p.id, p.exam_id, e.name AS exam_name, p.status, p.generated_at,
(SELECT COUNT(*) FROM seating_plan_allocations a WHERE a.plan_id = p.id) AS classroom_count
FROM seating_plans p JOIN exams e ON e.id = p.exam_id`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY p.generated_at DESC"

	var plans []models.SeatingPlanSummary
	if err := r.db.SelectContext(ctx, &plans, query, args...); err != nil {
		return nil, fmt.Errorf("list seating plans: %w", err)
	}
	return plans, nil
}

// UpdateStatus changes the lifecycle status of a plan.
func (r *SeatingPlanRepository) UpdateStatus(ctx context.Context, id string, status models.SeatingPlanStatus) error {
	const query = `UPDATE seating_plans SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update seating plan status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("seating plan status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReplaceAllocations stores edited seat matrices and refreshed statistics for a plan.
func (r *SeatingPlanRepository) ReplaceAllocations(ctx context.Context, plan *models.SeatingPlan) (err error) {
	if plan == nil {
		return fmt.Errorf("seating plan payload is nil")
	}
	plan.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seating plan transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const updateQuery = `UPDATE seating_plans SET statistics = $1, updated_at = $2 WHERE id = $3`
	result, err := tx.ExecContext(ctx, updateQuery, plan.Statistics, plan.UpdatedAt, plan.ID)
	if err != nil {
		return fmt.Errorf("update seating plan statistics: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("seating plan rows affected: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	const deleteQuery = `DELETE FROM seating_plan_allocations WHERE plan_id = $1`
	if _, err = tx.ExecContext(ctx, deleteQuery, plan.ID); err != nil {
		return fmt.Errorf("clear seating plan allocations: %w", err)
	}
	if err = insertAllocations(ctx, tx, plan); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit seating plan allocations: %w", err)
	}
	return nil
}

// Delete removes a plan; allocations cascade.
func (r *SeatingPlanRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM seating_plans WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete seating plan: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("seating plan rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func insertAllocations(ctx context.Context, tx *sqlx.Tx, plan *models.SeatingPlan) error {
	const query = `INSERT INTO seating_plan_allocations (plan_id, position, classroom_id, classroom, seat_matrix)
VALUES (:plan_id, :position, :classroom_id, :classroom, :seat_matrix)`
	for i, allocation := range plan.ClassroomAllocations {
		snapshot, err := json.Marshal(allocation.Classroom)
		if err != nil {
			return fmt.Errorf("encode classroom snapshot: %w", err)
		}
		row := allocationRow{
			PlanID:      plan.ID,
			Position:    i,
			ClassroomID: allocation.Classroom.ID,
			Classroom:   types.JSONText(snapshot),
			SeatMatrix:  allocation.SeatMatrix,
		}
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return fmt.Errorf("insert seating plan allocation: %w", err)
		}
	}
	return nil
}
