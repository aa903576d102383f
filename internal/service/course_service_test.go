package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/course-select-api/internal/models"
	appErrors "github.com/noah-isme/course-select-api/pkg/errors"
)

type mockCourseRepo struct {
	courses map[int64]models.Course
	nextID  int64
	lists   int
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{courses: make(map[int64]models.Course), nextID: 1}
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	m.lists++
	var out []models.Course
	for _, c := range m.courses {
		if c.IsDel {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		copied := c
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	for _, c := range m.courses {
		if c.Code == code && !c.IsDel {
			copied := c
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	course.ID = m.nextID
	m.nextID++
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	c := m.courses[id]
	c.IsDel = true
	c.IsActive = false
	m.courses[id] = c
	return nil
}

type mockCourseEnrollments struct {
	byCourse map[int64][]models.Enrollment
}

func (m *mockCourseEnrollments) ListByCourse(ctx context.Context, courseID int64) ([]models.Enrollment, error) {
	return m.byCourse[courseID], nil
}

// memoryCache is an in-process CacheRepository used to observe cache behaviour.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]interface{}
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]interface{})}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok {
		return appErrors.ErrCacheMiss
	}
	return nil
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]interface{})
	return nil
}

func newCourseServiceForTest(withCache bool) (*CourseService, *mockCourseRepo, *memoryCache) {
	repo := newMockCourseRepo()
	enrollments := &mockCourseEnrollments{byCourse: make(map[int64][]models.Enrollment)}
	var cacheRepo *memoryCache
	var cache *CacheService
	if withCache {
		cacheRepo = newMemoryCache()
		cache = NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	} else {
		cache = NewCacheService(nil, nil, 0, zap.NewNop(), false)
	}
	svc := NewCourseService(repo, enrollments, cache, validator.New(), zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC) }
	return svc, repo, cacheRepo
}

func TestCourseCreateNormalisesCode(t *testing.T) {
	svc, _, _ := newCourseServiceForTest(false)

	course, err := svc.Create(context.Background(), CreateCourseRequest{Code: " cs101 ", Title: "Intro", Credits: 3})
	require.NoError(t, err)
	assert.Equal(t, "CS101", course.Code)
	assert.True(t, course.IsActive)
}

func TestCourseCreateDuplicateCode(t *testing.T) {
	svc, _, _ := newCourseServiceForTest(false)

	_, err := svc.Create(context.Background(), CreateCourseRequest{Code: "CS101", Title: "Intro", Credits: 3})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateCourseRequest{Code: "CS101", Title: "Other", Credits: 4})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestCourseCreateInvalidPayload(t *testing.T) {
	svc, _, _ := newCourseServiceForTest(false)

	_, err := svc.Create(context.Background(), CreateCourseRequest{Code: "CS101", Title: "Intro"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCourseGetHidesDeleted(t *testing.T) {
	svc, repo, _ := newCourseServiceForTest(false)

	course, err := svc.Create(context.Background(), CreateCourseRequest{Code: "CS101", Title: "Intro", Credits: 3})
	require.NoError(t, err)
	require.NoError(t, repo.SoftDelete(context.Background(), course.ID, time.Now()))

	_, err = svc.Get(context.Background(), course.ID)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestCourseUpdateTogglesActive(t *testing.T) {
	svc, _, _ := newCourseServiceForTest(false)

	course, err := svc.Create(context.Background(), CreateCourseRequest{Code: "CS101", Title: "Intro", Credits: 3})
	require.NoError(t, err)

	inactive := false
	updated, err := svc.Update(context.Background(), course.ID, UpdateCourseRequest{Title: "Intro v2", Credits: 4, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "Intro v2", updated.Title)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "CS101", updated.Code)
}

func TestCourseDeleteBlockedByActiveEnrollments(t *testing.T) {
	svc, repo, _ := newCourseServiceForTest(false)
	course, err := svc.Create(context.Background(), CreateCourseRequest{Code: "CS101", Title: "Intro", Credits: 3})
	require.NoError(t, err)

	enrollments := svc.enrollments.(*mockCourseEnrollments)
	enrollments.byCourse[course.ID] = []models.Enrollment{{StudentID: 1, CourseID: course.ID, Status: models.EnrollmentStatusActive}}

	err = svc.Delete(context.Background(), course.ID)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.False(t, repo.courses[course.ID].IsDel)
}

func TestCourseListUsesCache(t *testing.T) {
	svc, repo, cacheRepo := newCourseServiceForTest(true)

	_, err := svc.Create(context.Background(), CreateCourseRequest{Code: "CS101", Title: "Intro", Credits: 3})
	require.NoError(t, err)

	filter := models.CourseFilter{Page: 1, PageSize: 20}
	_, _, err = svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lists)
	assert.NotEmpty(t, cacheRepo.entries)

	// Second listing of the same filter is served from cache.
	_, _, err = svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lists)
}

func TestCourseWriteInvalidatesCache(t *testing.T) {
	svc, _, cacheRepo := newCourseServiceForTest(true)

	_, err := svc.Create(context.Background(), CreateCourseRequest{Code: "CS101", Title: "Intro", Credits: 3})
	require.NoError(t, err)

	_, _, err = svc.List(context.Background(), models.CourseFilter{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.NotEmpty(t, cacheRepo.entries)

	_, err = svc.Create(context.Background(), CreateCourseRequest{Code: "CS201", Title: "Data", Credits: 4})
	require.NoError(t, err)
	assert.Empty(t, cacheRepo.entries)
}
