package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/database/postgres"
	"github.com/kozaktomas/facegate/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the check-in server",
	Long: `Start the Facegate check-in server.
The server accepts verification frames from gate cameras, manages
student enrollment, and serves the attendance dashboard.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// initStudentHNSW builds or loads the HNSW index over face templates for fast matching.
func initStudentHNSW(ctx context.Context, studentRepo *postgres.StudentRepository, indexPath string) {
	if indexPath != "" {
		fmt.Printf("Loading face template HNSW index from %s...\n", indexPath)
	} else {
		fmt.Printf("Building in-memory HNSW index for face matching...\n")
	}
	if err := studentRepo.EnableHNSW(ctx, indexPath); err != nil {
		fmt.Printf("Warning: Failed to build HNSW index: %v\n", err)
		fmt.Printf("Face matching will use PostgreSQL queries (slower)\n")
	} else if indexPath != "" {
		fmt.Printf("HNSW index ready with %d templates (persisted to %s)\n", studentRepo.HNSWCount(), indexPath)
	} else {
		fmt.Printf("HNSW index built with %d templates (in-memory only)\n", studentRepo.HNSWCount())
	}
}

// registerServeBackends registers all database backends and repositories for the serve command.
func registerServeBackends(studentRepo *postgres.StudentRepository, attendanceRepo *postgres.AttendanceRepository) {
	database.RegisterPostgresBackend(
		func() database.StudentReader { return studentRepo },
		func() database.StudentWriter { return studentRepo },
		func() database.AttendanceWriter { return attendanceRepo },
	)
	database.RegisterStudentHNSWRebuilder(studentRepo)
	fmt.Printf("Using PostgreSQL backend\n")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

// saveStudentHNSWIndex saves the HNSW index to disk during shutdown.
func saveStudentHNSWIndex() {
	if rebuilder := database.GetStudentHNSWRebuilder(); rebuilder != nil {
		if err := rebuilder.SaveHNSWIndex(); err != nil {
			fmt.Printf("Warning: failed to save HNSW index: %v\n", err)
		} else {
			fmt.Println("HNSW index saved to disk")
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	if err := postgres.Initialize(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	pool := postgres.GetGlobalPool()
	studentRepo := postgres.NewStudentRepository(pool)
	attendanceRepo := postgres.NewAttendanceRepository(pool)
	ctx := context.Background()

	initStudentHNSW(ctx, studentRepo, cfg.Database.HNSWIndexPath)

	registerServeBackends(studentRepo, attendanceRepo)
	port, host := resolveServeHostPort(cmd)

	server, err := web.NewServer(cfg, port, host)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		saveStudentHNSWIndex()

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Facegate on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
