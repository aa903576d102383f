package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/course-select-api/internal/models"
	appErrors "github.com/noah-isme/course-select-api/pkg/errors"
	"github.com/noah-isme/course-select-api/pkg/export"
)

type enrollmentListStub struct {
	details []models.EnrollmentDetail
}

func (s enrollmentListStub) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return s.details, len(s.details), nil
}

type pagedEnrollmentStub struct {
	details []models.EnrollmentDetail
}

func (s pagedEnrollmentStub) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(s.details) {
		return nil, len(s.details), nil
	}
	end := start + filter.PageSize
	if end > len(s.details) {
		end = len(s.details)
	}
	return s.details[start:end], len(s.details), nil
}

type studentStub struct {
	student *models.Student
}

func (s studentStub) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	if s.student == nil || s.student.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.student, nil
}

type courseStub struct {
	course *models.Course
}

func (s courseStub) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	if s.course == nil || s.course.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.course, nil
}

func strPtr(v string) *string     { return &v }
func floatPtr(v float64) *float64 { return &v }

func newExportServiceForTest() *ExportService {
	grade := 85
	details := []models.EnrollmentDetail{
		{
			Enrollment: models.Enrollment{
				StudentID:   1,
				CourseID:    10,
				Status:      models.EnrollmentStatusActive,
				Grade:       &grade,
				LetterGrade: strPtr("B"),
				GradePoint:  floatPtr(3.0),
				CreatedAt:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
			},
			StudentFirstName: "Ada",
			StudentLastName:  "Lin",
			StudentEmail:     "ada@example.com",
			CourseCode:       "CS101",
			CourseTitle:      "Intro",
			CourseCredits:    3,
		},
	}
	return NewExportService(
		enrollmentListStub{details: details},
		studentStub{student: &models.Student{ID: 1, FirstName: "Ada", LastName: "Lin"}},
		courseStub{course: &models.Course{ID: 10, Code: "CS101", Title: "Intro"}},
		zap.NewNop(),
		export.NewCSVExporter(),
		export.NewPDFExporter(),
	)
}

func TestTranscriptCSV(t *testing.T) {
	svc := newExportServiceForTest()

	file, err := svc.Transcript(context.Background(), 1, models.ReportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.True(t, strings.HasPrefix(file.Filename, "transcript_1_"))

	body := string(file.Payload)
	assert.Contains(t, body, "CS101")
	assert.Contains(t, body, "85")
	assert.Contains(t, body, "GPA")
	assert.Contains(t, body, "3.00")
}

func TestTranscriptPDF(t *testing.T) {
	svc := newExportServiceForTest()

	file, err := svc.Transcript(context.Background(), 1, models.ReportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Greater(t, len(file.Payload), 0)
}

func TestTranscriptUnknownStudent(t *testing.T) {
	svc := newExportServiceForTest()

	_, err := svc.Transcript(context.Background(), 99, models.ReportFormatCSV)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestTranscriptBadFormat(t *testing.T) {
	svc := newExportServiceForTest()

	_, err := svc.Transcript(context.Background(), 1, models.ReportFormat("xlsx"))
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestTranscriptSpansListingPages(t *testing.T) {
	var details []models.EnrollmentDetail
	for i := 0; i < 250; i++ {
		details = append(details, models.EnrollmentDetail{
			Enrollment: models.Enrollment{
				StudentID: 1,
				CourseID:  int64(100 + i),
				Status:    models.EnrollmentStatusActive,
				CreatedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
			},
			CourseCode:    fmt.Sprintf("CS%03d", i),
			CourseTitle:   "Course",
			CourseCredits: 3,
		})
	}
	svc := NewExportService(
		pagedEnrollmentStub{details: details},
		studentStub{student: &models.Student{ID: 1, FirstName: "Ada", LastName: "Lin"}},
		courseStub{},
		zap.NewNop(),
		export.NewCSVExporter(),
		export.NewPDFExporter(),
	)

	file, err := svc.Transcript(context.Background(), 1, models.ReportFormatCSV)
	require.NoError(t, err)

	body := strings.TrimRight(string(file.Payload), "\n")
	// header + 250 enrollments + GPA footer
	assert.Len(t, strings.Split(body, "\n"), 252)
	assert.Contains(t, body, "CS000")
	assert.Contains(t, body, "CS249")
}

func TestRosterCSV(t *testing.T) {
	svc := newExportServiceForTest()

	file, err := svc.Roster(context.Background(), 10, models.ReportFormatCSV)
	require.NoError(t, err)

	body := string(file.Payload)
	assert.Contains(t, body, "Ada Lin")
	assert.Contains(t, body, "ada@example.com")
	assert.Contains(t, body, "2025-02-01")
}
