package database

import (
	"context"
	"time"
)

// StudentReader provides read-only access to enrolled students
type StudentReader interface {
	// Get retrieves a student by ID, returns nil if not found
	Get(ctx context.Context, studentID string) (*Student, error)
	// Has checks if a student exists
	Has(ctx context.Context, studentID string) (bool, error)
	// Count returns the total number of students
	Count(ctx context.Context) (int, error)
	// CountEnrolled returns the number of students with a face template
	CountEnrolled(ctx context.Context) (int, error)
	// List returns students matching the query and class filter.
	// Names are normalized before comparison (lowercase, no diacritics, dashes to spaces),
	// so "novak" matches "Jan Novák". Empty query and class match everything.
	List(ctx context.Context, query, class string, limit, offset int) ([]Student, error)
	// ListForMatching returns all students with a face template, ordered by
	// student ID. The stable order makes score ties resolve the same way on
	// every call.
	ListForMatching(ctx context.Context) ([]Student, error)
	// FindSimilar finds students whose templates are closest to the embedding,
	// using cosine distance. Returns students and their distances.
	FindSimilar(ctx context.Context, embedding []float32, limit int) ([]Student, []float64, error)
}

// StudentWriter provides write access to enrolled students
type StudentWriter interface {
	StudentReader

	// Save stores a student (upsert by student ID)
	Save(ctx context.Context, student *Student) error

	// UpdateProfile updates name and class without touching the face template
	UpdateProfile(ctx context.Context, studentID, name, class string) error

	// UpdateEmbedding replaces the student's face template
	UpdateEmbedding(ctx context.Context, studentID string, embedding []float32, imageCount int, method, model string, dim int) error

	// UpdateLastCheckin records the time of the latest successful check-in
	UpdateLastCheckin(ctx context.Context, studentID string, at time.Time) error

	// Delete removes a student. Attendance records are kept with the student
	// reference cleared.
	Delete(ctx context.Context, studentID string) error
}

// AttendanceReader provides read-only access to attendance records
type AttendanceReader interface {
	// GetRecord retrieves a record by log ID, returns nil if not found
	GetRecord(ctx context.Context, logID string) (*AttendanceRecord, error)
	// ListByDate returns records whose check-in time falls on the given day,
	// newest first. Empty location matches all gates.
	ListByDate(ctx context.Context, day time.Time, location string) ([]AttendanceRecord, error)
	// ListByStudent returns records for a student since the given time, newest first
	ListByStudent(ctx context.Context, studentID string, since time.Time) ([]AttendanceRecord, error)
	// StatsByDate returns aggregate counts for the given day.
	// Empty location matches all gates.
	StatsByDate(ctx context.Context, day time.Time, location string) (*AttendanceStats, error)
}

// AttendanceWriter provides write access to attendance records
type AttendanceWriter interface {
	AttendanceReader

	// SaveRecord stores a check-in attempt. A log ID is assigned when empty.
	SaveRecord(ctx context.Context, record *AttendanceRecord) error
}
