package models

// ReportFormat selects the rendered output format for exports.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// Valid reports whether the format is supported.
func (f ReportFormat) Valid() bool {
	return f == ReportFormatCSV || f == ReportFormatPDF
}

// ReportFile is a rendered export ready to be served.
type ReportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}
