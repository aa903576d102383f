package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-select-api/internal/models"
	appErrors "github.com/noah-isme/course-select-api/pkg/errors"
	"github.com/noah-isme/course-select-api/pkg/export"
)

type exportEnrollmentReader interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type exportStudentReader interface {
	FindByID(ctx context.Context, id int64) (*models.Student, error)
}

type exportCourseReader interface {
	FindByID(ctx context.Context, id int64) (*models.Course, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService renders transcript and roster reports as CSV or PDF.
type ExportService struct {
	enrollments exportEnrollmentReader
	students    exportStudentReader
	courses     exportCourseReader
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
	now         func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(enrollments exportEnrollmentReader, students exportStudentReader, courses exportCourseReader, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		enrollments: enrollments,
		students:    students,
		courses:     courses,
		csv:         csv,
		pdf:         pdf,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Transcript renders all of a student's visible enrollments with a GPA
// footer. Withdrawn enrollments are excluded by the listing itself.
func (s *ExportService) Transcript(ctx context.Context, studentID int64, format models.ReportFormat) (*models.ReportFile, error) {
	if studentID == 0 {
		return nil, appErrors.ErrMissingIDs
	}
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	details, err := s.listAll(ctx, models.EnrollmentFilter{StudentID: studentID, SortBy: "course_code", SortOrder: "ASC"})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	dataset := export.Dataset{
		Headers: []string{"Course Code", "Course Title", "Credits", "Status", "Grade", "Letter", "Points"},
	}
	var totalPoints float64
	var totalCredits int
	for _, d := range details {
		grade, letter, points := "", "", ""
		if d.Grade != nil {
			grade = strconv.Itoa(*d.Grade)
		}
		if d.LetterGrade != nil {
			letter = *d.LetterGrade
		}
		if d.GradePoint != nil {
			points = fmt.Sprintf("%.1f", *d.GradePoint)
			totalPoints += *d.GradePoint * float64(d.CourseCredits)
			totalCredits += d.CourseCredits
		}
		dataset.Rows = append(dataset.Rows, []string{
			d.CourseCode, d.CourseTitle, strconv.Itoa(d.CourseCredits), string(d.Status), grade, letter, points,
		})
	}
	gpa := ""
	if totalCredits > 0 {
		gpa = fmt.Sprintf("%.2f", totalPoints/float64(totalCredits))
	}
	dataset.Rows = append(dataset.Rows, []string{"", "", "", "", "", "GPA", gpa})

	title := fmt.Sprintf("Transcript - %s %s", student.FirstName, student.LastName)
	return s.render(dataset, title, fmt.Sprintf("transcript_%d", studentID), format)
}

// Roster renders the list of students enrolled in a course.
func (s *ExportService) Roster(ctx context.Context, courseID int64, format models.ReportFormat) (*models.ReportFile, error) {
	if courseID == 0 {
		return nil, appErrors.ErrMissingIDs
	}
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	details, err := s.listAll(ctx, models.EnrollmentFilter{CourseID: courseID, SortBy: "student_name", SortOrder: "ASC"})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Email", "Status", "Grade", "Letter", "Enrolled At"},
	}
	for _, d := range details {
		grade, letter := "", ""
		if d.Grade != nil {
			grade = strconv.Itoa(*d.Grade)
		}
		if d.LetterGrade != nil {
			letter = *d.LetterGrade
		}
		dataset.Rows = append(dataset.Rows, []string{
			d.StudentFirstName + " " + d.StudentLastName,
			d.StudentEmail,
			string(d.Status),
			grade,
			letter,
			d.CreatedAt.Format("2006-01-02"),
		})
	}

	title := fmt.Sprintf("Roster - %s %s", course.Code, course.Title)
	return s.render(dataset, title, fmt.Sprintf("roster_%s", course.Code), format)
}

// exportPageSize matches the largest page the enrollment listing serves.
const exportPageSize = 100

// listAll walks every page of the enrollment listing so reports are never
// truncated to a single page.
func (s *ExportService) listAll(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	filter.PageSize = exportPageSize
	var all []models.EnrollmentDetail
	for page := 1; ; page++ {
		filter.Page = page
		details, total, err := s.enrollments.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, details...)
		if len(details) == 0 || len(all) >= total {
			return all, nil
		}
	}
}

func (s *ExportService) render(dataset export.Dataset, title, baseName string, format models.ReportFormat) (*models.ReportFile, error) {
	var payload []byte
	var err error
	var contentType, ext string
	switch format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType, ext = "text/csv", "csv"
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		contentType, ext = "application/pdf", "pdf"
	}
	if err != nil {
		s.logger.Error("report render failed", zap.String("title", title), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	return &models.ReportFile{
		Filename:    fmt.Sprintf("%s_%s.%s", baseName, s.now().Format("20060102_150405"), ext),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}
