// Package constants provides shared constants used across the codebase.
package constants

// Handler pagination constants
const (
	// DefaultStudentPageSize is the page size for the student listing endpoint
	DefaultStudentPageSize = 100

	// MaxStudentsPerFetch is the maximum number of students to fetch in a single operation
	MaxStudentsPerFetch = 10000
)

// File upload constants
const (
	// MaxUploadSize is the maximum multipart upload size in bytes (32MB)
	MaxUploadSize = 32 << 20
)
