package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/exam-seating-api/internal/models"
)

const classroomColumns = `id, name, building, floor, capacity, rows, columns, unavailable_seats, created_at, updated_at`

// ClassroomRepository manages persistence for exam classrooms.
type ClassroomRepository struct {
	db *sqlx.DB
}

// NewClassroomRepository constructs a new classroom repository.
func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// List returns classrooms ordered by building then name.
func (r *ClassroomRepository) List(ctx context.Context) ([]models.Classroom, error) {
	query := `SELECT ` + classroomColumns + ` FROM classrooms ORDER BY building ASC, name ASC`
	var classrooms []models.Classroom
	if err := r.db.SelectContext(ctx, &classrooms, query); err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}
	return classrooms, nil
}

// FindByID returns a classroom by ID.
func (r *ClassroomRepository) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	query := `SELECT ` + classroomColumns + ` FROM classrooms WHERE id = $1`
	var classroom models.Classroom
	if err := r.db.GetContext(ctx, &classroom, query, id); err != nil {
		return nil, err
	}
	return &classroom, nil
}

// FindByIDs returns the classrooms matching ids. Row order is unspecified; callers reorder.
func (r *ClassroomRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Classroom, error) {
	if len(ids) == 0 {
		return []models.Classroom{}, nil
	}
	query := `SELECT ` + classroomColumns + ` FROM classrooms WHERE id = ANY($1)`
	var classrooms []models.Classroom
	if err := r.db.SelectContext(ctx, &classrooms, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find classrooms: %w", err)
	}
	return classrooms, nil
}

// Create persists a classroom record.
func (r *ClassroomRepository) Create(ctx context.Context, classroom *models.Classroom) error {
	if classroom.ID == "" {
		classroom.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if classroom.CreatedAt.IsZero() {
		classroom.CreatedAt = now
	}
	classroom.UpdatedAt = now

	const query = `INSERT INTO classrooms (id, name, building, floor, capacity, rows, columns, unavailable_seats, created_at, updated_at)
VALUES (:id, :name, :building, :floor, :capacity, :rows, :columns, :unavailable_seats, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, classroom); err != nil {
		return fmt.Errorf("create classroom: %w", err)
	}
	return nil
}

// Update modifies a classroom record.
func (r *ClassroomRepository) Update(ctx context.Context, classroom *models.Classroom) error {
	classroom.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classrooms SET name = :name, building = :building, floor = :floor, capacity = :capacity, rows = :rows, columns = :columns, unavailable_seats = :unavailable_seats, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, classroom)
	if err != nil {
		return fmt.Errorf("update classroom: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("classroom rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a classroom record.
func (r *ClassroomRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM classrooms WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete classroom: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("classroom rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
