package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/facegate/internal/database"
)

// AttendanceRepository provides PostgreSQL-backed attendance log storage.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// newLogID generates a unique identifier for an attendance record.
func newLogID() string {
	return uuid.New().String()
}

// SaveRecord stores an attendance record. A log ID is assigned when empty,
// and the check-in time defaults to now.
func (r *AttendanceRepository) SaveRecord(ctx context.Context, record *database.AttendanceRecord) error {
	if record.LogID == "" {
		record.LogID = newLogID()
	}
	if record.CheckinTime.IsZero() {
		record.CheckinTime = time.Now()
	}

	// Failed check-ins have no matched student; the foreign key stays NULL.
	var studentID sql.NullString
	if record.StudentID != "" {
		studentID = sql.NullString{String: record.StudentID, Valid: true}
	}
	var snapshotPath sql.NullString
	if record.SnapshotPath != "" {
		snapshotPath = sql.NullString{String: record.SnapshotPath, Valid: true}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO attendance (log_id, student_id, student_name, class, checkin_time, location, confidence, status, face_detected, snapshot_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		record.LogID,
		studentID,
		record.StudentName,
		record.Class,
		record.CheckinTime,
		record.Location,
		record.Confidence,
		record.Status,
		record.FaceDetected,
		snapshotPath,
	)
	if err != nil {
		return fmt.Errorf("save attendance record: %w", err)
	}
	return nil
}

// GetRecord retrieves an attendance record by log ID, returns nil if not found.
func (r *AttendanceRepository) GetRecord(ctx context.Context, logID string) (*database.AttendanceRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT log_id, student_id, student_name, class, checkin_time, location, confidence, status, face_detected, snapshot_path
		FROM attendance
		WHERE log_id = $1
	`, logID)

	record, err := scanAttendanceRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByDate returns all records for the calendar day of the given time,
// newest first. An empty location matches all locations.
func (r *AttendanceRepository) ListByDate(ctx context.Context, day time.Time, location string) ([]database.AttendanceRecord, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	rows, err := r.pool.Query(ctx, `
		SELECT log_id, student_id, student_name, class, checkin_time, location, confidence, status, face_detected, snapshot_path
		FROM attendance
		WHERE checkin_time >= $1 AND checkin_time < $2
		  AND ($3 = '' OR location = $3)
		ORDER BY checkin_time DESC
	`, dayStart, dayEnd, location)
	if err != nil {
		return nil, fmt.Errorf("query attendance by date: %w", err)
	}
	defer rows.Close()

	return scanAttendanceRecords(rows)
}

// ListByStudent returns a student's records since the given time, newest first.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string, since time.Time) ([]database.AttendanceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT log_id, student_id, student_name, class, checkin_time, location, confidence, status, face_detected, snapshot_path
		FROM attendance
		WHERE student_id = $1 AND checkin_time >= $2
		ORDER BY checkin_time DESC
	`, studentID, since)
	if err != nil {
		return nil, fmt.Errorf("query attendance by student: %w", err)
	}
	defer rows.Close()

	return scanAttendanceRecords(rows)
}

// StatsByDate aggregates check-in counts for the calendar day of the given
// time. Unique students counts distinct successful check-ins only.
func (r *AttendanceRepository) StatsByDate(ctx context.Context, day time.Time, location string) (*database.AttendanceStats, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var stats database.AttendanceStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'success'),
			COUNT(*) FILTER (WHERE status = 'uncertain'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(DISTINCT student_id) FILTER (WHERE status = 'success')
		FROM attendance
		WHERE checkin_time >= $1 AND checkin_time < $2
		  AND ($3 = '' OR location = $3)
	`, dayStart, dayEnd, location).Scan(
		&stats.Total,
		&stats.Success,
		&stats.Uncertain,
		&stats.Failed,
		&stats.UniqueStudents,
	)
	if err != nil {
		return nil, fmt.Errorf("query attendance stats: %w", err)
	}

	return &stats, nil
}

func scanAttendanceRecord(scanner interface{ Scan(...any) error }) (database.AttendanceRecord, error) {
	var record database.AttendanceRecord
	var studentID sql.NullString
	var snapshotPath sql.NullString

	err := scanner.Scan(
		&record.LogID,
		&studentID,
		&record.StudentName,
		&record.Class,
		&record.CheckinTime,
		&record.Location,
		&record.Confidence,
		&record.Status,
		&record.FaceDetected,
		&snapshotPath,
	)
	if err != nil {
		return record, fmt.Errorf("scan attendance record: %w", err)
	}

	record.StudentID = studentID.String
	record.SnapshotPath = snapshotPath.String
	return record, nil
}

func scanAttendanceRecords(rows *sql.Rows) ([]database.AttendanceRecord, error) {
	var records []database.AttendanceRecord
	for rows.Next() {
		record, err := scanAttendanceRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return records, nil
}

// Verify interface compliance.
var _ database.AttendanceReader = (*AttendanceRepository)(nil)
var _ database.AttendanceWriter = (*AttendanceRepository)(nil)
