package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-select-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, student_id, course_id, grade, letter_grade, grade_point, status, row_version, created_at, updated_at`

// FindByStudentAndCourse returns the enrollment for the pair, withdrawn or
// not. Returns sql.ErrNoRows when no record exists.
func (r *EnrollmentRepository) FindByStudentAndCourse(ctx context.Context, studentID, courseID int64) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE student_id = $1 AND course_id = $2`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetail returns the enrollment with student and course context.
func (r *EnrollmentRepository) FindDetail(ctx context.Context, studentID, courseID int64) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.course_id, e.grade, e.letter_grade, e.grade_point, e.status, e.row_version, e.created_at, e.updated_at,
        s.first_name AS student_first_name, s.last_name AS student_last_name, s.email AS student_email,
        c.code AS course_code, c.title AS course_title, c.credits AS course_credits
        FROM enrollments e
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN courses c ON c.id = e.course_id
        WHERE e.student_id = $1 AND e.course_id = $2`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, studentID, courseID); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create persists a new enrollment record and fills the generated id.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	const query = `INSERT INTO enrollments (student_id, course_id, grade, letter_grade, grade_point, status, row_version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		enrollment.StudentID,
		enrollment.CourseID,
		enrollment.Grade,
		enrollment.LetterGrade,
		enrollment.GradePoint,
		enrollment.Status,
		enrollment.RowVersion,
		enrollment.CreatedAt,
		enrollment.UpdatedAt,
	).Scan(&enrollment.ID); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Update writes the mutable fields of an existing enrollment.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	const query = `UPDATE enrollments
        SET grade = $2, letter_grade = $3, grade_point = $4, status = $5, row_version = $6, created_at = $7, updated_at = $8
        WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query,
		enrollment.ID,
		enrollment.Grade,
		enrollment.LetterGrade,
		enrollment.GradePoint,
		enrollment.Status,
		enrollment.RowVersion,
		enrollment.CreatedAt,
		enrollment.UpdatedAt,
	); err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return nil
}

// List returns non-withdrawn enrollments filtered by the provided criteria.
// Withdrawn records are retained in storage but hidden from listings.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN courses c ON c.id = e.course_id`
	conditions := []string{"e.status <> $1"}
	args := []interface{}{models.EnrollmentStatusWithdrawn}

	if filter.StudentID != 0 {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != 0 {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}

	clause := " WHERE " + strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"created_at":   "e.created_at",
		"student_name": "s.last_name",
		"course_code":  "c.code",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "e.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.course_id, e.grade, e.letter_grade, e.grade_point, e.status, e.row_version, e.created_at, e.updated_at,
        s.first_name AS student_first_name, s.last_name AS student_last_name, s.email AS student_email,
        c.code AS course_code, c.title AS course_title, c.credits AS course_credits
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ListByCourse returns all non-withdrawn enrollments for a course.
func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID int64) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE course_id = $1 AND status <> $2`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, courseID, models.EnrollmentStatusWithdrawn); err != nil {
		return nil, fmt.Errorf("list course enrollments: %w", err)
	}
	return enrollments, nil
}
