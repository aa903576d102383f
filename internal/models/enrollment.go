package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. The single-letter values match the
// course-selection schema.
const (
	EnrollmentStatusActive    EnrollmentStatus = "A"
	EnrollmentStatusWithdrawn EnrollmentStatus = "W"
	EnrollmentStatusCompleted EnrollmentStatus = "C"
)

// Valid reports whether the status is one of the known values.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusActive, EnrollmentStatusWithdrawn, EnrollmentStatusCompleted:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// transition. Withdrawal is reversible (W back to A on re-enrollment);
// Completed is terminal.
func (s EnrollmentStatus) CanTransition(next EnrollmentStatus) bool {
	switch s {
	case EnrollmentStatusActive:
		return next == EnrollmentStatusWithdrawn || next == EnrollmentStatusCompleted
	case EnrollmentStatusWithdrawn:
		return next == EnrollmentStatusActive
	}
	return false
}

// Enrollment captures one student's registration to a course. The grade
// triple (Grade, LetterGrade, GradePoint) is either fully absent or fully
// present; letter and point are derived from the numeric grade.
type Enrollment struct {
	ID          int64            `db:"id" json:"id"`
	StudentID   int64            `db:"student_id" json:"student_id"`
	CourseID    int64            `db:"course_id" json:"course_id"`
	Grade       *int             `db:"grade" json:"grade,omitempty"`
	LetterGrade *string          `db:"letter_grade" json:"letter_grade,omitempty"`
	GradePoint  *float64         `db:"grade_point" json:"grade_point,omitempty"`
	Status      EnrollmentStatus `db:"status" json:"status"`
	RowVersion  int              `db:"row_version" json:"row_version"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// HasGrade reports whether a numeric grade has been recorded.
func (e *Enrollment) HasGrade() bool {
	return e != nil && e.Grade != nil
}

// EnrollmentDetail enriches Enrollment with student and course info for
// read endpoints and reports.
type EnrollmentDetail struct {
	Enrollment
	StudentFirstName string `db:"student_first_name" json:"student_first_name"`
	StudentLastName  string `db:"student_last_name" json:"student_last_name"`
	StudentEmail     string `db:"student_email" json:"student_email"`
	CourseCode       string `db:"course_code" json:"course_code"`
	CourseTitle      string `db:"course_title" json:"course_title"`
	CourseCredits    int    `db:"course_credits" json:"course_credits"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID int64
	CourseID  int64
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
