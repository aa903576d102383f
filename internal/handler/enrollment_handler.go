package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-select-api/internal/models"
	"github.com/noah-isme/course-select-api/internal/service"
	appErrors "github.com/noah-isme/course-select-api/pkg/errors"
	"github.com/noah-isme/course-select-api/pkg/response"
)

// EnrollmentHandler exposes the enrollment workflow endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	metrics     *service.MetricsService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService, metrics *service.MetricsService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, metrics: metrics}
}

// EnrollRequest identifies the course to enroll into. StudentID is only
// honoured for admin callers; students always act on their own record.
type EnrollRequest struct {
	StudentID int64 `json:"student_id"`
	CourseID  int64 `json:"course_id"`
}

// PairRequest identifies an enrollment by its student/course pair.
type PairRequest struct {
	StudentID int64 `json:"student_id"`
	CourseID  int64 `json:"course_id"`
}

func (h *EnrollmentHandler) record(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = appErrors.FromError(err).Code
	}
	h.metrics.RecordEnrollmentOperation(operation, outcome)
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param student_id query int false "Filter by student"
// @Param course_id query int false "Filter by course"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	var filter models.EnrollmentFilter
	if id, err := strconv.ParseInt(c.Query("student_id"), 10, 64); err == nil {
		filter.StudentID = id
	}
	if id, err := strconv.ParseInt(c.Query("course_id"), 10, 64); err == nil {
		filter.CourseID = id
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	claims := claimsFromContext(c)
	if claims != nil && claims.Role == models.RoleStudent {
		if claims.StudentID == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "account has no student record"))
			return
		}
		filter.StudentID = *claims.StudentID
	}

	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "enrollments", enrollments, pagination)
}

// Get godoc
// @Summary Get one enrollment by student and course
// @Tags Enrollments
// @Produce json
// @Param student_id query int false "Student ID (admin only)"
// @Param course_id query int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/detail [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	courseID, _ := strconv.ParseInt(c.Query("course_id"), 10, 64)
	explicit, _ := strconv.ParseInt(c.Query("student_id"), 10, 64)
	studentID := actingStudentID(c, explicit)

	detail, err := h.enrollments.Get(c.Request.Context(), studentID, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "enrollment", detail, nil)
}

// Enroll godoc
// @Summary Enroll a student into a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body handler.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	studentID := actingStudentID(c, req.StudentID)

	outcome, err := h.enrollments.Enroll(c.Request.Context(), studentID, req.CourseID)
	h.record("enroll", err)
	if err != nil {
		response.Error(c, err)
		return
	}
	if outcome.Reenrolled {
		response.JSON(c, http.StatusOK, outcome.Message, outcome.Enrollment, nil)
		return
	}
	response.Created(c, outcome.Message, outcome.Enrollment)
}

// Withdraw godoc
// @Summary Withdraw a student from a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body handler.PairRequest true "Withdrawal payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/withdraw [post]
func (h *EnrollmentHandler) Withdraw(c *gin.Context) {
	var req PairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	studentID := actingStudentID(c, req.StudentID)

	err := h.enrollments.Withdraw(c.Request.Context(), studentID, req.CourseID)
	h.record("withdraw", err)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "withdrawn", nil, nil)
}

// UpdateGrade godoc
// @Summary Record or overwrite a grade
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.UpdateGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/grade [put]
func (h *EnrollmentHandler) UpdateGrade(c *gin.Context) {
	var req service.UpdateGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	detail, err := h.enrollments.UpdateGrade(c.Request.Context(), req)
	h.record("grade", err)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "grade recorded", detail, nil)
}

// Complete godoc
// @Summary Complete a graded enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body handler.PairRequest true "Completion payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/complete [post]
func (h *EnrollmentHandler) Complete(c *gin.Context) {
	var req PairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	detail, err := h.enrollments.Complete(c.Request.Context(), req.StudentID, req.CourseID)
	h.record("complete", err)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "completed", detail, nil)
}
