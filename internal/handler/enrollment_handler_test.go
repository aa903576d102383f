package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-select-api/internal/middleware"
	"github.com/noah-isme/course-select-api/internal/models"
	"github.com/noah-isme/course-select-api/internal/service"
	"github.com/noah-isme/course-select-api/pkg/response"
)

type enrollmentStoreStub struct {
	records map[[2]int64]models.Enrollment
	nextID  int64
}

func newEnrollmentStoreStub() *enrollmentStoreStub {
	return &enrollmentStoreStub{records: make(map[[2]int64]models.Enrollment), nextID: 1}
}

func (s *enrollmentStoreStub) FindByStudentAndCourse(ctx context.Context, studentID, courseID int64) (*models.Enrollment, error) {
	if e, ok := s.records[[2]int64{studentID, courseID}]; ok {
		copied := e
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *enrollmentStoreStub) FindDetail(ctx context.Context, studentID, courseID int64) (*models.EnrollmentDetail, error) {
	if e, ok := s.records[[2]int64{studentID, courseID}]; ok {
		return &models.EnrollmentDetail{Enrollment: e}, nil
	}
	return nil, sql.ErrNoRows
}

func (s *enrollmentStoreStub) Create(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = s.nextID
	s.nextID++
	s.records[[2]int64{enrollment.StudentID, enrollment.CourseID}] = *enrollment
	return nil
}

func (s *enrollmentStoreStub) Update(ctx context.Context, enrollment *models.Enrollment) error {
	s.records[[2]int64{enrollment.StudentID, enrollment.CourseID}] = *enrollment
	return nil
}

func (s *enrollmentStoreStub) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var out []models.EnrollmentDetail
	for _, e := range s.records {
		if e.Status == models.EnrollmentStatusWithdrawn {
			continue
		}
		if filter.StudentID != 0 && e.StudentID != filter.StudentID {
			continue
		}
		out = append(out, models.EnrollmentDetail{Enrollment: e})
	}
	return out, len(out), nil
}

type courseReaderStub struct{ courses map[int64]models.Course }

func (s courseReaderStub) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	if c, ok := s.courses[id]; ok {
		copied := c
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

type studentReaderStub struct{ students map[int64]models.Student }

func (s studentReaderStub) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	if st, ok := s.students[id]; ok {
		copied := st
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func newEnrollmentHandlerForTest() (*EnrollmentHandler, *enrollmentStoreStub) {
	store := newEnrollmentStoreStub()
	svc := service.NewEnrollmentService(
		store,
		courseReaderStub{courses: map[int64]models.Course{10: {ID: 10, Code: "CS101", Title: "Intro", Credits: 3, IsActive: true}}},
		studentReaderStub{students: map[int64]models.Student{1: {ID: 1, FirstName: "Ada", LastName: "Lin", IsActive: true}}},
		nil, nil,
	)
	return NewEnrollmentHandler(svc, service.NewMetricsService()), store
}

func studentClaims(studentID int64) *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent, StudentID: &studentID}
}

func postJSON(t *testing.T, body interface{}, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodPost, "/enrollments", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestEnrollmentHandlerEnrollAsStudent(t *testing.T) {
	h, store := newEnrollmentHandlerForTest()

	// The acting student comes from the token; the body names another
	// student which must be ignored for the STUDENT role.
	c, w := postJSON(t, EnrollRequest{StudentID: 999, CourseID: 10}, studentClaims(1))
	h.Enroll(c)

	require.Equal(t, http.StatusCreated, w.Code)
	_, ok := store.records[[2]int64{1, 10}]
	assert.True(t, ok)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, "enrolled", env.Message)
}

func TestEnrollmentHandlerEnrollDuplicate(t *testing.T) {
	h, _ := newEnrollmentHandlerForTest()

	c, w := postJSON(t, EnrollRequest{CourseID: 10}, studentClaims(1))
	h.Enroll(c)
	require.Equal(t, http.StatusCreated, w.Code)

	c, w = postJSON(t, EnrollRequest{CourseID: 10}, studentClaims(1))
	h.Enroll(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ALREADY_ENROLLED", env.Error.Code)
}

func TestEnrollmentHandlerReenrollReturnsOK(t *testing.T) {
	h, _ := newEnrollmentHandlerForTest()

	c, w := postJSON(t, EnrollRequest{CourseID: 10}, studentClaims(1))
	h.Enroll(c)
	require.Equal(t, http.StatusCreated, w.Code)

	c, w = postJSON(t, PairRequest{CourseID: 10}, studentClaims(1))
	h.Withdraw(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = postJSON(t, EnrollRequest{CourseID: 10}, studentClaims(1))
	h.Enroll(c)
	require.Equal(t, http.StatusOK, w.Code)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "re-enrolled", env.Message)
}

func TestEnrollmentHandlerEnrollMissingBody(t *testing.T) {
	h, _ := newEnrollmentHandlerForTest()

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/enrollments", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, studentClaims(1))

	h.Enroll(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollmentHandlerGradeAsAdmin(t *testing.T) {
	h, store := newEnrollmentHandlerForTest()

	c, w := postJSON(t, EnrollRequest{StudentID: 1, CourseID: 10}, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	h.Enroll(c)
	require.Equal(t, http.StatusCreated, w.Code)

	grade := 92
	c, w = postJSON(t, service.UpdateGradeRequest{StudentID: 1, CourseID: 10, Grade: &grade}, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	h.UpdateGrade(c)
	require.Equal(t, http.StatusOK, w.Code)

	record := store.records[[2]int64{1, 10}]
	require.NotNil(t, record.Grade)
	assert.Equal(t, 92, *record.Grade)
	assert.Equal(t, "A", *record.LetterGrade)
}

func TestEnrollmentHandlerWithdrawMissing(t *testing.T) {
	h, _ := newEnrollmentHandlerForTest()

	c, w := postJSON(t, PairRequest{CourseID: 10}, studentClaims(1))
	h.Withdraw(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
