package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/report"
)

// AttendanceHandler handles attendance ledger endpoints
type AttendanceHandler struct {
	config     *config.Config
	attendance database.AttendanceReader
	students   database.StudentReader
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(cfg *config.Config) *AttendanceHandler {
	h := &AttendanceHandler{
		config: cfg,
	}
	if reader, err := database.GetAttendanceReader(context.Background()); err == nil {
		h.attendance = reader
	}
	if reader, err := database.GetStudentReader(context.Background()); err == nil {
		h.students = reader
	}
	return h
}

// requireLedger responds with an error when no attendance store is
// configured. Returns false when the request has already been answered.
func (h *AttendanceHandler) requireLedger(w http.ResponseWriter) bool {
	if h.attendance == nil {
		respondError(w, http.StatusServiceUnavailable, "database not configured")
		return false
	}
	return true
}

// AttendanceRecordResponse represents one ledger entry in API responses
type AttendanceRecordResponse struct {
	LogID        string  `json:"log_id"`
	StudentID    string  `json:"student_id,omitempty"`
	StudentName  string  `json:"student_name,omitempty"`
	Class        string  `json:"class,omitempty"`
	CheckinTime  string  `json:"checkin_time"`
	Location     string  `json:"location"`
	Confidence   float64 `json:"confidence"`
	Status       string  `json:"status"`
	FaceDetected bool    `json:"face_detected"`
	HasSnapshot  bool    `json:"has_snapshot"`
}

func recordToResponse(r *database.AttendanceRecord) AttendanceRecordResponse {
	return AttendanceRecordResponse{
		LogID:        r.LogID,
		StudentID:    r.StudentID,
		StudentName:  r.StudentName,
		Class:        r.Class,
		CheckinTime:  r.CheckinTime.Format(time.RFC3339),
		Location:     r.Location,
		Confidence:   r.Confidence,
		Status:       r.Status,
		FaceDetected: r.FaceDetected,
		HasSnapshot:  r.SnapshotPath != "",
	}
}

// AttendanceStatsResponse summarizes one day of check-in attempts
type AttendanceStatsResponse struct {
	TotalAttempts     int     `json:"total_attempts"`
	Successful        int     `json:"successful"`
	Uncertain         int     `json:"uncertain"`
	Failed            int     `json:"failed"`
	UniqueStudents    int     `json:"unique_students"`
	SuccessRate       float64 `json:"success_rate"`
	AverageConfidence float64 `json:"average_confidence"`
}

// statsToResponse folds store aggregates and the per-record confidences
// into the response shape. The confidence average runs over all attempts,
// failed ones included, so a gate with bad lighting drags it down visibly.
func statsToResponse(stats *database.AttendanceStats, records []database.AttendanceRecord) AttendanceStatsResponse {
	resp := AttendanceStatsResponse{
		TotalAttempts:  stats.Total,
		Successful:     stats.Success,
		Uncertain:      stats.Uncertain,
		Failed:         stats.Failed,
		UniqueStudents: stats.UniqueStudents,
	}
	if stats.Total > 0 {
		resp.SuccessRate = float64(stats.Success) / float64(stats.Total) * 100
	}
	if len(records) > 0 {
		var sum float64
		for _, r := range records {
			sum += r.Confidence
		}
		resp.AverageConfidence = sum / float64(len(records))
	}
	return resp
}

// TodayResponse represents today's attendance overview
type TodayResponse struct {
	Date     string                     `json:"date"`
	Location string                     `json:"location,omitempty"`
	Stats    AttendanceStatsResponse    `json:"stats"`
	Records  []AttendanceRecordResponse `json:"records"`
}

// Today returns today's check-in records together with aggregate stats
func (h *AttendanceHandler) Today(w http.ResponseWriter, r *http.Request) {
	if !h.requireLedger(w) {
		return
	}

	location := r.URL.Query().Get("location")
	ctx := r.Context()
	now := time.Now()

	records, err := h.attendance.ListByDate(ctx, now, location)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load attendance records")
		return
	}
	stats, err := h.attendance.StatsByDate(ctx, now, location)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load attendance stats")
		return
	}

	response := TodayResponse{
		Date:     now.Format("2006-01-02"),
		Location: location,
		Stats:    statsToResponse(stats, records),
		Records:  make([]AttendanceRecordResponse, len(records)),
	}
	for i := range records {
		response.Records[i] = recordToResponse(&records[i])
	}
	respondJSON(w, http.StatusOK, response)
}

// HistoryResponse represents one student's recent check-in records
type HistoryResponse struct {
	StudentID string                     `json:"student_id"`
	Days      int                        `json:"days"`
	Records   []AttendanceRecordResponse `json:"records"`
}

// History returns one student's check-in records over the last N days
func (h *AttendanceHandler) History(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	if studentID == "" {
		respondError(w, http.StatusBadRequest, "studentID is required")
		return
	}
	if !h.requireLedger(w) {
		return
	}

	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 {
		days = h.config.Attendance.HistoryDays
	}

	ctx := r.Context()
	if h.students != nil {
		exists, err := h.students.Has(ctx, studentID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to check student")
			return
		}
		if !exists {
			respondError(w, http.StatusNotFound, "student not found")
			return
		}
	}

	since := time.Now().AddDate(0, 0, -days)
	records, err := h.attendance.ListByStudent(ctx, studentID, since)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load attendance records")
		return
	}

	response := HistoryResponse{
		StudentID: studentID,
		Days:      days,
		Records:   make([]AttendanceRecordResponse, len(records)),
	}
	for i := range records {
		response.Records[i] = recordToResponse(&records[i])
	}
	respondJSON(w, http.StatusOK, response)
}

// Snapshot serves the stored gate capture for one ledger entry
func (h *AttendanceHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	logID := chi.URLParam(r, "logID")
	if logID == "" {
		respondError(w, http.StatusBadRequest, "logID is required")
		return
	}
	if !h.requireLedger(w) {
		return
	}

	record, err := h.attendance.GetRecord(r.Context(), logID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load attendance record")
		return
	}
	if record == nil {
		respondError(w, http.StatusNotFound, "record not found")
		return
	}
	if record.SnapshotPath == "" || h.config.Attendance.SnapshotDir == "" {
		respondError(w, http.StatusNotFound, "no snapshot for this record")
		return
	}

	// Base strips any path segments that may have ended up in the column.
	path := filepath.Join(h.config.Attendance.SnapshotDir, filepath.Base(record.SnapshotPath))
	if _, err := os.Stat(path); err != nil {
		respondError(w, http.StatusNotFound, "snapshot file missing")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	http.ServeFile(w, r, path)
}

// Export renders one day of attendance as a downloadable document
func (h *AttendanceHandler) Export(w http.ResponseWriter, r *http.Request) {
	if !h.requireLedger(w) {
		return
	}

	day := time.Now()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		day = parsed
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "markdown"
	}
	if format != "markdown" && format != "csv" {
		respondError(w, http.StatusBadRequest, "format must be markdown or csv")
		return
	}

	location := r.URL.Query().Get("location")
	ctx := r.Context()

	records, err := h.attendance.ListByDate(ctx, day, location)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load attendance records")
		return
	}
	stats, err := h.attendance.StatsByDate(ctx, day, location)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load attendance stats")
		return
	}

	sheet := &report.DaySheet{
		Date:     day,
		Location: location,
		Stats:    stats,
		Records:  records,
	}

	filename := fmt.Sprintf("attendance-%s", day.Format("2006-01-02"))
	switch format {
	case "csv":
		rendered, err := report.RenderCSV(sheet)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to render export")
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".csv"))
		_, _ = w.Write([]byte(rendered))
	default:
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".md"))
		_, _ = w.Write([]byte(report.RenderMarkdown(sheet)))
	}
}
