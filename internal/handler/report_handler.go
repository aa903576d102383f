package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-select-api/internal/models"
	"github.com/noah-isme/course-select-api/internal/service"
	"github.com/noah-isme/course-select-api/pkg/response"
)

// ReportHandler serves rendered transcript and roster exports.
type ReportHandler struct {
	service *service.ExportService
}

// NewReportHandler constructs a report handler.
func NewReportHandler(svc *service.ExportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

func reportFormat(c *gin.Context) models.ReportFormat {
	return models.ReportFormat(c.DefaultQuery("format", "csv"))
}

func serveReport(c *gin.Context, file *models.ReportFile) {
	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Data(200, file.ContentType, file.Payload)
}

// Transcript godoc
// @Summary Export a student transcript
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param id path int true "Student ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /reports/transcript/{id} [get]
func (h *ReportHandler) Transcript(c *gin.Context) {
	explicit, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	studentID := actingStudentID(c, explicit)

	file, err := h.service.Transcript(c.Request.Context(), studentID, reportFormat(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveReport(c, file)
}

// Roster godoc
// @Summary Export a course roster
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param id path int true "Course ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /reports/roster/{id} [get]
func (h *ReportHandler) Roster(c *gin.Context) {
	courseID, _ := strconv.ParseInt(c.Param("id"), 10, 64)

	file, err := h.service.Roster(c.Request.Context(), courseID, reportFormat(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveReport(c, file)
}
