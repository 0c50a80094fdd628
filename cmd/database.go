package cmd

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/database/postgres"
)

// initDatabaseBackend connects to PostgreSQL and registers the student and
// attendance repositories. CLI commands skip the HNSW index; matching falls
// back to pgvector queries, which is fine for one-shot invocations.
func initDatabaseBackend() (*config.Config, error) {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	if err := postgres.Initialize(&cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	pool := postgres.GetGlobalPool()
	studentRepo := postgres.NewStudentRepository(pool)
	attendanceRepo := postgres.NewAttendanceRepository(pool)
	database.RegisterPostgresBackend(
		func() database.StudentReader { return studentRepo },
		func() database.StudentWriter { return studentRepo },
		func() database.AttendanceWriter { return attendanceRepo },
	)
	return cfg, nil
}
