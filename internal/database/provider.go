package database

import (
	"context"
	"fmt"
)

// HNSWRebuilder is an interface for repositories that support HNSW index rebuilding
type HNSWRebuilder interface {
	// RebuildHNSW rebuilds the in-memory HNSW index
	RebuildHNSW(ctx context.Context) error
	// HNSWCount returns the number of items in the HNSW index
	HNSWCount() int
	// IsHNSWEnabled returns whether HNSW is enabled
	IsHNSWEnabled() bool
	// SaveHNSWIndex saves the current index to disk (if path configured)
	SaveHNSWIndex() error
}

var (
	postgresStudentReader    func() StudentReader
	postgresStudentWriter    func() StudentWriter
	postgresAttendanceWriter func() AttendanceWriter
	postgresStudentHNSW      HNSWRebuilder // Singleton for student HNSW rebuilding
	postgresInitialized      bool
)

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(
	studentReader func() StudentReader,
	studentWriter func() StudentWriter,
	attendanceWriter func() AttendanceWriter,
) {
	postgresStudentReader = studentReader
	postgresStudentWriter = studentWriter
	postgresAttendanceWriter = attendanceWriter
	postgresInitialized = true
}

// RegisterStudentHNSWRebuilder registers the HNSW rebuilder for the student repository.
// This allows rebuilding the in-memory HNSW index without knowing the concrete type.
func RegisterStudentHNSWRebuilder(rebuilder HNSWRebuilder) {
	postgresStudentHNSW = rebuilder
}

// GetStudentHNSWRebuilder returns the registered student HNSW rebuilder, or nil if not registered.
func GetStudentHNSWRebuilder() HNSWRebuilder {
	return postgresStudentHNSW
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	return postgresInitialized
}

// GetStudentReader returns a StudentReader from the PostgreSQL backend
func GetStudentReader(ctx context.Context) (StudentReader, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresStudentReader == nil {
		return nil, fmt.Errorf("PostgreSQL student reader not registered")
	}
	return postgresStudentReader(), nil
}

// GetStudentWriter returns a StudentWriter from the PostgreSQL backend
func GetStudentWriter(ctx context.Context) (StudentWriter, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresStudentWriter == nil {
		return nil, fmt.Errorf("PostgreSQL student writer not registered")
	}
	return postgresStudentWriter(), nil
}

// GetAttendanceReader returns an AttendanceReader from the PostgreSQL backend
func GetAttendanceReader(ctx context.Context) (AttendanceReader, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresAttendanceWriter == nil {
		return nil, fmt.Errorf("PostgreSQL attendance writer not registered")
	}
	return postgresAttendanceWriter(), nil
}

// GetAttendanceWriter returns an AttendanceWriter from the PostgreSQL backend
func GetAttendanceWriter(ctx context.Context) (AttendanceWriter, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresAttendanceWriter == nil {
		return nil, fmt.Errorf("PostgreSQL attendance writer not registered")
	}
	return postgresAttendanceWriter(), nil
}
