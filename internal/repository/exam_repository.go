package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-seating-api/internal/models"
)

// ExamRepository persists exams together with their course rosters.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs a new exam repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// List returns exams, most recent date first.
func (r *ExamRepository) List(ctx context.Context) ([]models.Exam, error) {
	const query = `SELECT id, name, exam_date, created_at, updated_at FROM exams ORDER BY exam_date DESC, name ASC`
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query); err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	return exams, nil
}

// FindByID returns an exam without its courses.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	const query = `SELECT id, name, exam_date, created_at, updated_at FROM exams WHERE id = $1`
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// ListCourses loads the courses of an exam with their students ordered by roll number.
func (r *ExamRepository) ListCourses(ctx context.Context, examID string) ([]models.ExamCourse, error) {
	const courseQuery = `SELECT id, exam_id, course_code, course_title, semester, branch FROM exam_courses WHERE exam_id = $1 ORDER BY course_code ASC`
	var courses []models.ExamCourse
	if err := r.db.SelectContext(ctx, &courses, courseQuery, examID); err != nil {
		return nil, fmt.Errorf("list exam courses: %w", err)
	}
	if len(courses) == 0 {
		return courses, nil
	}

	const studentQuery = `SELECT s.id, s.course_id, s.roll_number, s.name FROM exam_students s
JOIN exam_courses c ON c.id = s.course_id
WHERE c.exam_id = $1 ORDER BY s.roll_number ASC`
	var students []models.ExamStudent
	if err := r.db.SelectContext(ctx, &students, studentQuery, examID); err != nil {
		return nil, fmt.Errorf("list exam students: %w", err)
	}

	index := make(map[string]int, len(courses))
	for i := range courses {
		courses[i].Students = []models.ExamStudent{}
		index[courses[i].ID] = i
	}
	for _, student := range students {
		if i, ok := index[student.CourseID]; ok {
			courses[i].Students = append(courses[i].Students, student)
		}
	}
	return courses, nil
}

// Create persists an exam and any courses supplied with it in one transaction.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) (err error) {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = now
	}
	exam.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin exam transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO exams (id, name, exam_date, created_at, updated_at) VALUES (:id, :name, :exam_date, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	for i := range exam.Courses {
		exam.Courses[i].ExamID = exam.ID
		if err = insertCourse(ctx, tx, &exam.Courses[i]); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit exam: %w", err)
	}
	return nil
}

// UpsertCourse replaces the roster of the course with the same code, or adds the course.
func (r *ExamRepository) UpsertCourse(ctx context.Context, course *models.ExamCourse) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin course transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var existingID string
	const selectQuery = `SELECT id FROM exam_courses WHERE exam_id = $1 AND course_code = $2 FOR UPDATE`
	err = tx.GetContext(ctx, &existingID, selectQuery, course.ExamID, course.CourseCode)
	switch {
	case err == sql.ErrNoRows:
		if err = insertCourse(ctx, tx, course); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("lock exam course: %w", err)
	default:
		course.ID = existingID
		const updateQuery = `UPDATE exam_courses SET course_title = $1, semester = $2, branch = $3 WHERE id = $4`
		if _, err = tx.ExecContext(ctx, updateQuery, course.CourseTitle, course.Semester, course.Branch, course.ID); err != nil {
			return fmt.Errorf("update exam course: %w", err)
		}
		const deleteQuery = `DELETE FROM exam_students WHERE course_id = $1`
		if _, err = tx.ExecContext(ctx, deleteQuery, course.ID); err != nil {
			return fmt.Errorf("clear exam students: %w", err)
		}
		if err = insertStudents(ctx, tx, course); err != nil {
			return err
		}
	}

	const touchQuery = `UPDATE exams SET updated_at = $1 WHERE id = $2`
	if _, err = tx.ExecContext(ctx, touchQuery, time.Now().UTC(), course.ExamID); err != nil {
		return fmt.Errorf("touch exam: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit exam course: %w", err)
	}
	return nil
}

// Delete removes an exam; courses and students cascade.
func (r *ExamRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM exams WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("exam rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func insertCourse(ctx context.Context, tx *sqlx.Tx, course *models.ExamCourse) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	const query = `INSERT INTO exam_courses (id, exam_id, course_code, course_title, semester, branch) VALUES (:id, :exam_id, :course_code, :course_title, :semester, :branch)`
	if _, err := tx.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("insert exam course: %w", err)
	}
	return insertStudents(ctx, tx, course)
}

func insertStudents(ctx context.Context, tx *sqlx.Tx, course *models.ExamCourse) error {
	const query = `INSERT INTO exam_students (id, course_id, roll_number, name) VALUES ($1, $2, $3, $4)`
	for i := range course.Students {
		student := &course.Students[i]
		if student.ID == "" {
			student.ID = uuid.NewString()
		}
		student.CourseID = course.ID
		if _, err := tx.ExecContext(ctx, query, student.ID, student.CourseID, student.RollNumber, student.Name); err != nil {
			return fmt.Errorf("insert exam student %s: %w", student.RollNumber, err)
		}
	}
	return nil
}
