package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/constants"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/embedding"
	"github.com/kozaktomas/facegate/internal/imaging"
	"github.com/kozaktomas/facegate/internal/recognition"
)

// VerifyHandler handles gate check-in requests
type VerifyHandler struct {
	config     *config.Config
	matcher    *recognition.Matcher
	embedder   *embedding.Client
	students   database.StudentWriter
	attendance database.AttendanceWriter
}

// NewVerifyHandler creates a new verify handler
func NewVerifyHandler(cfg *config.Config, matcher *recognition.Matcher, embedder *embedding.Client) *VerifyHandler {
	h := &VerifyHandler{
		config:   cfg,
		matcher:  matcher,
		embedder: embedder,
	}
	if writer, err := database.GetStudentWriter(context.Background()); err == nil {
		h.students = writer
	}
	if writer, err := database.GetAttendanceWriter(context.Background()); err == nil {
		h.attendance = writer
	}
	return h
}

// VerifyStudent identifies the matched student in a check-in response
type VerifyStudent struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Class     string `json:"class,omitempty"`
}

// VerifyResponse represents the outcome of one check-in attempt
type VerifyResponse struct {
	Matched      bool           `json:"matched"`
	Status       string         `json:"status"`
	FaceDetected bool           `json:"face_detected"`
	Confidence   float64        `json:"confidence"`
	Student      *VerifyStudent `json:"student,omitempty"`
	LogID        string         `json:"log_id,omitempty"`
}

// Verify matches a gate capture against all enrolled students and records
// the attempt in the attendance ledger. Every processed capture produces a
// ledger entry, including failed ones.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if h.students == nil || h.attendance == nil {
		respondError(w, http.StatusServiceUnavailable, "database not configured")
		return
	}

	imageData, err := readVerifyImage(r)
	if err != nil {
		respondEnrollError(w, err)
		return
	}

	location := strings.TrimSpace(r.FormValue("location"))
	if location == "" {
		location = h.config.Attendance.Location
	}

	ctx := r.Context()
	probe, err := h.embedder.EmbedFace(ctx, imageData)
	if errors.Is(err, embedding.ErrNoFace) {
		h.recordNoFace(ctx, w, imageData, location)
		return
	}
	if err != nil {
		log.Printf("Verify: embedding failed: %v", err)
		respondError(w, http.StatusBadGateway, "embedding service unavailable")
		return
	}

	gallery, err := h.loadGallery(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load enrolled students")
		return
	}
	if len(gallery) == 0 {
		respondError(w, http.StatusConflict, "no students enrolled")
		return
	}

	best, err := h.matcher.FindBestMatch(probe, gallery)
	if err != nil {
		log.Printf("Verify: matching failed: %v", err)
		respondError(w, http.StatusUnprocessableEntity, "capture could not be matched")
		return
	}

	record := &database.AttendanceRecord{
		Location:     location,
		Confidence:   best.Score,
		FaceDetected: true,
		SnapshotPath: h.saveSnapshot(imageData),
	}

	switch best.Status {
	case recognition.Match:
		record.Status = database.StatusSuccess
		record.StudentID = best.Candidate.ID
		record.StudentName = best.Candidate.Name
		record.Class = best.Candidate.Class
	case recognition.Uncertain:
		record.Status = database.StatusUncertain
		record.StudentID = best.Candidate.ID
		record.StudentName = best.Candidate.Name
		record.Class = best.Candidate.Class
	default:
		// The near miss stays out of the record and the response; it
		// would leak enrolled identities to whoever stands at the gate.
		record.Status = database.StatusFailed
		log.Printf("Verify: no match at %s (best %.3f, threshold %.3f)",
			sanitizeForLog(location), best.Score, h.matcher.UncertainThreshold())
	}

	if err := h.attendance.SaveRecord(ctx, record); err != nil {
		log.Printf("Verify: saving attendance record failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to record attendance")
		return
	}

	resp := VerifyResponse{
		Matched:      best.Status == recognition.Match,
		Status:       record.Status,
		FaceDetected: true,
		Confidence:   best.Score,
		LogID:        record.LogID,
	}
	if record.StudentID != "" {
		resp.Student = &VerifyStudent{
			StudentID: best.Candidate.ID,
			Name:      best.Candidate.Name,
			Class:     best.Candidate.Class,
		}
	}

	if best.Status == recognition.Match {
		if err := h.students.UpdateLastCheckin(ctx, best.Candidate.ID, time.Now()); err != nil {
			log.Printf("Verify: updating last check-in for %s failed: %v",
				sanitizeForLog(best.Candidate.ID), err)
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// readVerifyImage pulls the capture out of the multipart form.
func readVerifyImage(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		return nil, &enrollmentError{status: http.StatusBadRequest, message: "failed to parse multipart form"}
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, &enrollmentError{status: http.StatusBadRequest, message: "image is required"}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, constants.MaxUploadSize))
	if err != nil {
		return nil, &enrollmentError{status: http.StatusBadRequest, message: "failed to read image"}
	}
	if _, _, err := imaging.Decode(data); err != nil {
		return nil, &enrollmentError{status: http.StatusBadRequest, message: "invalid image"}
	}
	return data, nil
}

// loadGallery converts all enrolled students into matcher candidates.
func (h *VerifyHandler) loadGallery(ctx context.Context) ([]recognition.Candidate, error) {
	students, err := h.students.ListForMatching(ctx)
	if err != nil {
		return nil, err
	}
	gallery := make([]recognition.Candidate, len(students))
	for i, s := range students {
		gallery[i] = recognition.Candidate{
			ID:        s.StudentID,
			Name:      s.Name,
			Class:     s.Class,
			Embedding: s.Embedding,
		}
	}
	return gallery, nil
}

// recordNoFace logs a capture where the detector found no face. The attempt
// still lands in the ledger so gate problems show up in the statistics.
func (h *VerifyHandler) recordNoFace(ctx context.Context, w http.ResponseWriter, imageData []byte, location string) {
	record := &database.AttendanceRecord{
		Location:     location,
		Status:       database.StatusFailed,
		FaceDetected: false,
		SnapshotPath: h.saveSnapshot(imageData),
	}
	if err := h.attendance.SaveRecord(ctx, record); err != nil {
		log.Printf("Verify: saving attendance record failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to record attendance")
		return
	}

	respondJSON(w, http.StatusOK, VerifyResponse{
		Matched:      false,
		Status:       database.StatusFailed,
		FaceDetected: false,
		LogID:        record.LogID,
	})
}

// saveSnapshot stores a downscaled copy of the capture and returns its
// filename. Snapshots are disabled when no directory is configured; storage
// failures only cost the snapshot, never the check-in.
func (h *VerifyHandler) saveSnapshot(imageData []byte) string {
	dir := h.config.Attendance.SnapshotDir
	if dir == "" {
		return ""
	}

	thumb, err := imaging.Snapshot(imageData, constants.MaxSnapshotSize)
	if err != nil {
		log.Printf("Verify: snapshot encode failed: %v", err)
		return ""
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("Verify: snapshot dir: %v", err)
		return ""
	}

	name := uuid.New().String() + ".jpg"
	if err := os.WriteFile(filepath.Join(dir, name), thumb, 0o644); err != nil {
		log.Printf("Verify: snapshot write failed: %v", err)
		return ""
	}
	return name
}
