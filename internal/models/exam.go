package models

import "time"

// Exam groups the courses sitting a paper on the same date.
type Exam struct {
	ID        string       `db:"id" json:"id"`
	Name      string       `db:"name" json:"name"`
	Date      time.Time    `db:"exam_date" json:"date"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
	Courses   []ExamCourse `db:"-" json:"courses,omitempty"`
}

// ExamCourse is one course sitting an exam together with its candidates.
type ExamCourse struct {
	ID          string        `db:"id" json:"id"`
	ExamID      string        `db:"exam_id" json:"exam_id"`
	CourseCode  string        `db:"course_code" json:"course_code"`
	CourseTitle string        `db:"course_title" json:"course_title"`
	Semester    int           `db:"semester" json:"semester"`
	Branch      string        `db:"branch" json:"branch"`
	Students    []ExamStudent `db:"-" json:"students"`
}

// ExamStudent is a candidate registered for a course. The roll number is the identity.
type ExamStudent struct {
	ID         string `db:"id" json:"id,omitempty"`
	CourseID   string `db:"course_id" json:"-"`
	RollNumber string `db:"roll_number" json:"roll_number"`
	Name       string `db:"name" json:"name"`
}

// StudentCount returns the roster size.
func (c ExamCourse) StudentCount() int {
	return len(c.Students)
}
