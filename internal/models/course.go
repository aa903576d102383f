package models

import "time"

// Course represents a catalog entry students can enroll into. IsActive and
// IsDel are independent soft flags: a course can be closed for enrollment
// without being deleted.
type Course struct {
	ID        int64      `db:"id" json:"id"`
	Code      string     `db:"code" json:"code"`
	Title     string     `db:"title" json:"title"`
	Credits   int        `db:"credits" json:"credits"`
	IsActive  bool       `db:"is_active" json:"is_active"`
	IsDel     bool       `db:"is_del" json:"-"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Enrollable reports whether the course can accept enrollments.
func (c *Course) Enrollable() bool {
	return c != nil && c.IsActive && !c.IsDel
}

// CourseFilter captures search parameters for listing courses.
type CourseFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
