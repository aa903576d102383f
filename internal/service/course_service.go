package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-select-api/internal/models"
	appErrors "github.com/noah-isme/course-select-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id int64) (*models.Course, error)
	FindByCode(ctx context.Context, code string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	SoftDelete(ctx context.Context, id int64, at time.Time) error
}

type courseEnrollmentCounter interface {
	ListByCourse(ctx context.Context, courseID int64) ([]models.Enrollment, error)
}

// CreateCourseRequest captures fields for creating catalog entries.
type CreateCourseRequest struct {
	Code    string `json:"code" validate:"required"`
	Title   string `json:"title" validate:"required"`
	Credits int    `json:"credits" validate:"required,min=1,max=30"`
}

// UpdateCourseRequest modifies catalog entry fields.
type UpdateCourseRequest struct {
	Title    string `json:"title" validate:"required"`
	Credits  int    `json:"credits" validate:"required,min=1,max=30"`
	IsActive *bool  `json:"is_active" validate:"required"`
}

type cachedCourseList struct {
	Courses    []models.Course    `json:"courses"`
	Pagination *models.Pagination `json:"pagination"`
}

const courseCachePrefix = "catalog:courses"

// CourseService handles the course catalog. Listings are cached in Redis;
// any write invalidates the whole catalog keyspace.
type CourseService struct {
	repo        courseRepository
	enrollments courseEnrollmentCounter
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewCourseService creates a new course service.
func NewCourseService(repo courseRepository, enrollments courseEnrollmentCounter, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		repo:        repo,
		enrollments: enrollments,
		cache:       cache,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func courseListCacheKey(filter models.CourseFilter) string {
	active := "any"
	if filter.Active != nil {
		active = fmt.Sprintf("%t", *filter.Active)
	}
	return fmt.Sprintf("%s:list:%s:%s:%d:%d:%s:%s", courseCachePrefix, strings.ToLower(filter.Search), active, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}

// List returns paginated catalog entries, served from cache when possible.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	key := courseListCacheKey(filter)
	var cached cachedCourseList
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached.Courses, cached.Pagination, nil
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	pagination := models.NewPagination(filter.Page, filter.PageSize, total)

	if err := s.cache.Set(ctx, key, cachedCourseList{Courses: courses, Pagination: pagination}, 0); err != nil {
		s.logger.Warn("course list cache write failed", zap.Error(err))
	}
	return courses, pagination, nil
}

// Get returns a catalog entry by identifier. Soft-deleted entries are not
// visible through the catalog.
func (s *CourseService) Get(ctx context.Context, id int64) (*models.Course, error) {
	if id == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course id is required")
	}
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.IsDel {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return course, nil
}

// Create adds a catalog entry ensuring code uniqueness.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))

	if _, err := s.repo.FindByCode(ctx, req.Code); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}

	now := s.now()
	course := &models.Course{
		Code:      req.Code,
		Title:     req.Title,
		Credits:   req.Credits,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: &now,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.invalidateCatalog(ctx)
	return course, nil
}

// Update modifies a catalog entry. The code is immutable once created.
func (s *CourseService) Update(ctx context.Context, id int64, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	course.Title = req.Title
	course.Credits = req.Credits
	course.IsActive = *req.IsActive
	course.UpdatedAt = &now

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.invalidateCatalog(ctx)
	return course, nil
}

// Delete soft-deletes a catalog entry. Entries with live enrollments cannot
// be removed; close them with IsActive=false instead.
func (s *CourseService) Delete(ctx context.Context, id int64) error {
	course, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	enrollments, err := s.enrollments.ListByCourse(ctx, course.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course enrollments")
	}
	for _, e := range enrollments {
		if e.Status == models.EnrollmentStatusActive {
			return appErrors.Clone(appErrors.ErrConflict, "course has active enrollments")
		}
	}

	if err := s.repo.SoftDelete(ctx, id, s.now()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}

	s.invalidateCatalog(ctx)
	return nil
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, courseCachePrefix+":*"); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}
