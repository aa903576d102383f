package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-select-api/internal/grading"
	"github.com/noah-isme/course-select-api/internal/models"
	appErrors "github.com/noah-isme/course-select-api/pkg/errors"
)

type enrollmentStore interface {
	FindByStudentAndCourse(ctx context.Context, studentID, courseID int64) (*models.Enrollment, error)
	FindDetail(ctx context.Context, studentID, courseID int64) (*models.EnrollmentDetail, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Update(ctx context.Context, enrollment *models.Enrollment) error
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id int64) (*models.Course, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id int64) (*models.Student, error)
}

// UpdateGradeRequest carries an admin grade entry. Grade is a pointer so a
// missing score is distinguishable from an explicit zero.
type UpdateGradeRequest struct {
	StudentID int64 `json:"student_id" validate:"required"`
	CourseID  int64 `json:"course_id" validate:"required"`
	Grade     *int  `json:"grade" validate:"required"`
}

// EnrollOutcome reports the result of an enrollment attempt. Reenrolled is
// true when a withdrawn record was reactivated instead of a new one created.
type EnrollOutcome struct {
	Enrollment *models.EnrollmentDetail `json:"enrollment"`
	Reenrolled bool                     `json:"reenrolled"`
	Message    string                   `json:"message"`
}

// EnrollmentService orchestrates the enrollment lifecycle: enroll,
// withdraw, grade entry and completion. All transitions go through
// EnrollmentStatus.CanTransition so illegal moves are rejected in one place.
type EnrollmentService struct {
	enrollments enrollmentStore
	courses     courseReader
	students    studentReader
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(enrollments enrollmentStore, courses courseReader, students studentReader, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments: enrollments,
		courses:     courses,
		students:    students,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns non-withdrawn enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns the enrollment for the pair. Withdrawn records are reported
// as already withdrawn even though they still exist in storage.
func (s *EnrollmentService) Get(ctx context.Context, studentID, courseID int64) (*models.EnrollmentDetail, error) {
	if studentID == 0 || courseID == 0 {
		return nil, appErrors.ErrMissingIDs
	}
	detail, err := s.enrollments.FindDetail(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if detail.Status == models.EnrollmentStatusWithdrawn {
		return nil, appErrors.ErrAlreadyWithdrawn
	}
	return detail, nil
}

// Enroll registers the student to the course. A withdrawn enrollment for
// the same pair is reactivated in place rather than duplicated.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID, courseID int64) (*EnrollOutcome, error) {
	if studentID == 0 || courseID == 0 {
		return nil, appErrors.ErrMissingIDs
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Usable() {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "student is inactive")
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Enrollable() {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "course is closed or deleted")
	}

	existing, err := s.enrollments.FindByStudentAndCourse(ctx, studentID, courseID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}

	now := s.now()
	reenrolled := false
	switch {
	case existing == nil:
		enrollment := &models.Enrollment{
			StudentID: studentID,
			CourseID:  courseID,
			Status:    models.EnrollmentStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.enrollments.Create(ctx, enrollment); err != nil {
			s.logger.Error("enrollment create failed", zap.Int64("student_id", studentID), zap.Int64("course_id", courseID), zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
		}
	case existing.Status.CanTransition(models.EnrollmentStatusActive):
		// Reactivation of a withdrawn record: CreatedAt is refreshed so the
		// enrollment date reflects the re-enrollment, not the original one.
		existing.Status = models.EnrollmentStatusActive
		existing.CreatedAt = now
		existing.UpdatedAt = now
		if err := s.enrollments.Update(ctx, existing); err != nil {
			s.logger.Error("enrollment reactivate failed", zap.Int64("student_id", studentID), zap.Int64("course_id", courseID), zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reactivate enrollment")
		}
		reenrolled = true
	case existing.Status == models.EnrollmentStatusCompleted:
		return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "course already completed")
	default:
		s.logger.Warn("duplicate enrollment attempt", zap.Int64("student_id", studentID), zap.Int64("course_id", courseID))
		return nil, appErrors.ErrAlreadyEnrolled
	}

	detail, err := s.enrollments.FindDetail(ctx, studentID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	message := "enrolled"
	if reenrolled {
		message = "re-enrolled"
	}
	return &EnrollOutcome{Enrollment: detail, Reenrolled: reenrolled, Message: message}, nil
}

// UpdateGrade records or overwrites the grade for an enrollment. Precedence
// of precondition checks: presence, range, existence, status. Overwriting an
// existing grade bumps the revision counter; a first grade does not.
func (s *EnrollmentService) UpdateGrade(ctx context.Context, req UpdateGradeRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMissingIDs.Code, appErrors.ErrMissingIDs.Status, "student id, course id and grade are required")
	}
	if *req.Grade < 0 || *req.Grade > 100 {
		return nil, appErrors.ErrGradeOutOfRange
	}

	enrollment, err := s.enrollments.FindByStudentAndCourse(ctx, req.StudentID, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	switch enrollment.Status {
	case models.EnrollmentStatusWithdrawn:
		return nil, appErrors.ErrAlreadyWithdrawn
	case models.EnrollmentStatusCompleted:
		return nil, appErrors.ErrCourseEnded
	}

	if enrollment.HasGrade() {
		enrollment.RowVersion++
	}
	grade := *req.Grade
	letter := string(grading.FromScore(grade))
	point := grading.Point(grading.Letter(letter))
	enrollment.Grade = &grade
	enrollment.LetterGrade = &letter
	enrollment.GradePoint = &point
	enrollment.UpdatedAt = s.now()

	if err := s.enrollments.Update(ctx, enrollment); err != nil {
		s.logger.Error("grade update failed", zap.Int64("student_id", req.StudentID), zap.Int64("course_id", req.CourseID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grade")
	}

	detail, err := s.enrollments.FindDetail(ctx, req.StudentID, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// Withdraw marks the enrollment withdrawn. A graded enrollment can never be
// withdrawn, whatever its status; the record itself is kept for audit.
func (s *EnrollmentService) Withdraw(ctx context.Context, studentID, courseID int64) error {
	if studentID == 0 || courseID == 0 {
		return appErrors.ErrMissingIDs
	}
	enrollment, err := s.enrollments.FindByStudentAndCourse(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.HasGrade() {
		s.logger.Warn("withdraw rejected, grade present", zap.Int64("student_id", studentID), zap.Int64("course_id", courseID))
		return appErrors.ErrHasGrade
	}
	if !enrollment.Status.CanTransition(models.EnrollmentStatusWithdrawn) {
		if enrollment.Status == models.EnrollmentStatusCompleted {
			return appErrors.ErrCourseEnded
		}
		return appErrors.ErrAlreadyWithdrawn
	}

	enrollment.Status = models.EnrollmentStatusWithdrawn
	enrollment.UpdatedAt = s.now()
	if err := s.enrollments.Update(ctx, enrollment); err != nil {
		s.logger.Error("withdraw failed", zap.Int64("student_id", studentID), zap.Int64("course_id", courseID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw enrollment")
	}
	return nil
}

// Complete moves a graded active enrollment to its terminal state, after
// which the grade can no longer be edited.
func (s *EnrollmentService) Complete(ctx context.Context, studentID, courseID int64) (*models.EnrollmentDetail, error) {
	if studentID == 0 || courseID == 0 {
		return nil, appErrors.ErrMissingIDs
	}
	enrollment, err := s.enrollments.FindByStudentAndCourse(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if !enrollment.Status.CanTransition(models.EnrollmentStatusCompleted) {
		if enrollment.Status == models.EnrollmentStatusCompleted {
			return nil, appErrors.ErrCourseEnded
		}
		return nil, appErrors.ErrAlreadyWithdrawn
	}
	if !enrollment.HasGrade() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cannot complete an ungraded enrollment")
	}

	enrollment.Status = models.EnrollmentStatusCompleted
	enrollment.UpdatedAt = s.now()
	if err := s.enrollments.Update(ctx, enrollment); err != nil {
		s.logger.Error("complete failed", zap.Int64("student_id", studentID), zap.Int64("course_id", courseID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete enrollment")
	}

	detail, err := s.enrollments.FindDetail(ctx, studentID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}
