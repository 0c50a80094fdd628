package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/constants"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/embedding"
	"github.com/kozaktomas/facegate/internal/recognition"
)

// StudentsHandler handles student enrollment and management endpoints
type StudentsHandler struct {
	config     *config.Config
	aggregator *recognition.Aggregator
	embedder   *embedding.Client
	students   database.StudentWriter
	stats      *StatsHandler
}

// NewStudentsHandler creates a new students handler
func NewStudentsHandler(cfg *config.Config, aggregator *recognition.Aggregator, embedder *embedding.Client, stats *StatsHandler) *StudentsHandler {
	h := &StudentsHandler{
		config:     cfg,
		aggregator: aggregator,
		embedder:   embedder,
		stats:      stats,
	}
	if writer, err := database.GetStudentWriter(context.Background()); err == nil {
		h.students = writer
	}
	return h
}

// invalidateStats drops the cached dashboard stats after enrollment changes.
func (h *StudentsHandler) invalidateStats() {
	if h.stats != nil {
		h.stats.InvalidateCache()
	}
}

// requireStore responds with an error when no student store is configured.
// Returns false when the request has already been answered.
func (h *StudentsHandler) requireStore(w http.ResponseWriter) bool {
	if h.students == nil {
		respondError(w, http.StatusServiceUnavailable, "database not configured")
		return false
	}
	return true
}

// StudentResponse represents a student in API responses
type StudentResponse struct {
	StudentID   string `json:"student_id"`
	Name        string `json:"name"`
	Class       string `json:"class,omitempty"`
	Enrolled    bool   `json:"enrolled"`
	ImageCount  int    `json:"image_count,omitempty"`
	Method      string `json:"method,omitempty"`
	Model       string `json:"model,omitempty"`
	Dim         int    `json:"dim,omitempty"`
	LastCheckin string `json:"last_checkin,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

func studentToResponse(s *database.Student) StudentResponse {
	resp := StudentResponse{
		StudentID:  s.StudentID,
		Name:       s.Name,
		Class:      s.Class,
		Enrolled:   s.Enrolled(),
		ImageCount: s.ImageCount,
		Method:     s.Method,
		Model:      s.Model,
		Dim:        s.Dim,
	}
	if s.LastCheckin != nil {
		resp.LastCheckin = s.LastCheckin.Format(time.RFC3339)
	}
	if !s.CreatedAt.IsZero() {
		resp.CreatedAt = s.CreatedAt.Format(time.RFC3339)
	}
	if !s.UpdatedAt.IsZero() {
		resp.UpdatedAt = s.UpdatedAt.Format(time.RFC3339)
	}
	return resp
}

// EnrollmentResponse represents the outcome of an enrollment request
type EnrollmentResponse struct {
	Student          StudentResponse   `json:"student"`
	ImagesReceived   int               `json:"images_received"`
	ImagesUsed       int               `json:"images_used"`
	ImagesDiscarded  int               `json:"images_discarded"`
	Method           string            `json:"method"`
	DuplicateWarning *duplicateWarning `json:"duplicate_warning,omitempty"`
}

// Create enrolls a new student from a set of face images
func (h *StudentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	form, err := parseEnrollForm(r)
	if err != nil {
		respondEnrollError(w, err)
		return
	}

	studentID := strings.TrimSpace(r.FormValue("student_id"))
	name := strings.TrimSpace(r.FormValue("name"))
	class := strings.TrimSpace(r.FormValue("class"))
	if studentID == "" || name == "" {
		respondError(w, http.StatusBadRequest, "student_id and name are required")
		return
	}

	ctx := r.Context()
	exists, err := h.students.Has(ctx, studentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to check student")
		return
	}
	if exists {
		respondError(w, http.StatusConflict, "student already exists")
		return
	}

	result, err := h.buildTemplate(ctx, form.files, form.method)
	if err != nil {
		respondEnrollError(w, err)
		return
	}

	student := &database.Student{
		StudentID:  studentID,
		Name:       name,
		Class:      class,
		Embedding:  result.Template,
		ImageCount: result.ImagesUsed,
		Method:     result.Method,
		Model:      h.embedder.Model(),
		Dim:        len(result.Template),
	}
	if err := h.students.Save(ctx, student); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save student")
		return
	}

	log.Printf("Enrolled student %s from %d/%d images (%s)",
		sanitizeForLog(studentID), result.ImagesUsed, result.ImagesReceived, result.Method)
	h.invalidateStats()

	respondJSON(w, http.StatusCreated, EnrollmentResponse{
		Student:          studentToResponse(student),
		ImagesReceived:   result.ImagesReceived,
		ImagesUsed:       result.ImagesUsed,
		ImagesDiscarded:  result.ImagesDiscarded,
		Method:           result.Method,
		DuplicateWarning: h.checkDuplicate(ctx, result.Template, studentID),
	})
}

// List returns students matching the optional query and class filters
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	query := r.URL.Query().Get("q")
	class := r.URL.Query().Get("class")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = constants.DefaultStudentPageSize
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	students, err := h.students.List(r.Context(), query, class, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list students")
		return
	}

	response := make([]StudentResponse, len(students))
	for i := range students {
		response[i] = studentToResponse(&students[i])
	}
	respondJSON(w, http.StatusOK, response)
}

// Get returns a single student by ID
func (h *StudentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	if studentID == "" {
		respondError(w, http.StatusBadRequest, "studentID is required")
		return
	}
	if !h.requireStore(w) {
		return
	}

	student, err := h.students.Get(r.Context(), studentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get student")
		return
	}
	if student == nil {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	respondJSON(w, http.StatusOK, studentToResponse(student))
}

// StudentUpdateRequest represents the request body for updating a student
type StudentUpdateRequest struct {
	Name  *string `json:"name,omitempty"`
	Class *string `json:"class,omitempty"`
}

// Update changes a student's profile fields, leaving the face template alone
func (h *StudentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	if studentID == "" {
		respondError(w, http.StatusBadRequest, "studentID is required")
		return
	}

	var req StudentUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if !h.requireStore(w) {
		return
	}

	ctx := r.Context()
	student, err := h.students.Get(ctx, studentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get student")
		return
	}
	if student == nil {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	name := student.Name
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
	}
	class := student.Class
	if req.Class != nil {
		class = strings.TrimSpace(*req.Class)
	}
	if name == "" {
		respondError(w, http.StatusBadRequest, "name cannot be empty")
		return
	}

	if err := h.students.UpdateProfile(ctx, studentID, name, class); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update student")
		return
	}

	student.Name = name
	student.Class = class
	respondJSON(w, http.StatusOK, studentToResponse(student))
}

// Delete removes a student and their face template
func (h *StudentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	if studentID == "" {
		respondError(w, http.StatusBadRequest, "studentID is required")
		return
	}
	if !h.requireStore(w) {
		return
	}

	ctx := r.Context()
	exists, err := h.students.Has(ctx, studentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to check student")
		return
	}
	if !exists {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	if err := h.students.Delete(ctx, studentID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete student")
		return
	}

	log.Printf("Deleted student %s", sanitizeForLog(studentID))
	h.invalidateStats()
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// SimilarStudent represents a lookalike search result
type SimilarStudent struct {
	StudentID  string  `json:"student_id"`
	Name       string  `json:"name"`
	Class      string  `json:"class,omitempty"`
	Similarity float64 `json:"similarity"`
}

// Similar returns enrolled students whose templates are closest to the
// given student's template. Useful for spotting double enrollments.
func (h *StudentsHandler) Similar(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	if studentID == "" {
		respondError(w, http.StatusBadRequest, "studentID is required")
		return
	}
	if !h.requireStore(w) {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = constants.DefaultSimilarLimit
	}

	ctx := r.Context()
	student, err := h.students.Get(ctx, studentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get student")
		return
	}
	if student == nil {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}
	if !student.Enrolled() {
		respondError(w, http.StatusUnprocessableEntity, "student has no face template")
		return
	}

	// Fetch one extra so the student themselves can be dropped.
	students, distances, err := h.students.FindSimilar(ctx, student.Embedding, limit+1)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "similarity search failed")
		return
	}

	results := make([]SimilarStudent, 0, limit)
	for i := range students {
		if students[i].StudentID == studentID {
			continue
		}
		if len(results) >= limit {
			break
		}
		results = append(results, SimilarStudent{
			StudentID:  students[i].StudentID,
			Name:       students[i].Name,
			Class:      students[i].Class,
			Similarity: 1 - distances[i],
		})
	}
	respondJSON(w, http.StatusOK, results)
}

// ReplacePhotos rebuilds a student's face template from a new set of images
func (h *StudentsHandler) ReplacePhotos(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	if studentID == "" {
		respondError(w, http.StatusBadRequest, "studentID is required")
		return
	}
	if !h.requireStore(w) {
		return
	}

	ctx := r.Context()
	student, err := h.students.Get(ctx, studentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get student")
		return
	}
	if student == nil {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	form, err := parseEnrollForm(r)
	if err != nil {
		respondEnrollError(w, err)
		return
	}

	result, err := h.buildTemplate(ctx, form.files, form.method)
	if err != nil {
		respondEnrollError(w, err)
		return
	}

	model := h.embedder.Model()
	if err := h.students.UpdateEmbedding(ctx, studentID, result.Template,
		result.ImagesUsed, result.Method, model, len(result.Template)); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update face template")
		return
	}

	log.Printf("Re-enrolled student %s from %d/%d images (%s)",
		sanitizeForLog(studentID), result.ImagesUsed, result.ImagesReceived, result.Method)
	h.invalidateStats()

	student.Embedding = result.Template
	student.ImageCount = result.ImagesUsed
	student.Method = result.Method
	student.Model = model
	student.Dim = len(result.Template)

	respondJSON(w, http.StatusOK, EnrollmentResponse{
		Student:          studentToResponse(student),
		ImagesReceived:   result.ImagesReceived,
		ImagesUsed:       result.ImagesUsed,
		ImagesDiscarded:  result.ImagesDiscarded,
		Method:           result.Method,
		DuplicateWarning: h.checkDuplicate(ctx, result.Template, studentID),
	})
}
