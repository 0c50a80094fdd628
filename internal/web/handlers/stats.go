package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/database"
)

// Attendance moves minute to minute, so the cache only smooths out
// dashboard refresh bursts.
const statsCacheTTL = 30 * time.Second

// statsCache holds cached stats with expiry
type statsCache struct {
	mu        sync.RWMutex
	data      *StatsResponse
	expiresAt time.Time
}

func (c *statsCache) get() (*StatsResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil || time.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.data, true
}

func (c *statsCache) set(data *StatsResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.expiresAt = time.Now().Add(statsCacheTTL)
}

func (c *statsCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
}

// StatsHandler handles statistics endpoints
type StatsHandler struct {
	config     *config.Config
	students   database.StudentReader
	attendance database.AttendanceReader
	cache      statsCache
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(cfg *config.Config) *StatsHandler {
	h := &StatsHandler{
		config: cfg,
	}
	if reader, err := database.GetStudentReader(context.Background()); err == nil {
		h.students = reader
	}
	if reader, err := database.GetAttendanceReader(context.Background()); err == nil {
		h.attendance = reader
	}
	return h
}

// InvalidateCache clears the cached stats so the next request fetches fresh data
func (h *StatsHandler) InvalidateCache() {
	h.cache.invalidate()
}

// StatsResponse represents the statistics response
type StatsResponse struct {
	TotalStudents    int                     `json:"total_students"`
	EnrolledStudents int                     `json:"enrolled_students"`
	Today            AttendanceStatsResponse `json:"today"`
	HNSWEnabled      bool                    `json:"hnsw_enabled"`
	HNSWCount        int                     `json:"hnsw_count"`
}

// Get returns enrollment counts and today's check-in aggregates
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if cached, ok := h.cache.get(); ok {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	if h.students == nil || h.attendance == nil {
		respondError(w, http.StatusServiceUnavailable, "database not configured")
		return
	}

	ctx := r.Context()
	total, err := h.students.Count(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count students")
		return
	}
	enrolled, err := h.students.CountEnrolled(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count students")
		return
	}

	now := time.Now()
	todayStats, err := h.attendance.StatsByDate(ctx, now, "")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load attendance stats")
		return
	}
	// The record list only feeds the confidence average; losing it costs
	// one number, not the endpoint.
	records, _ := h.attendance.ListByDate(ctx, now, "")

	stats := &StatsResponse{
		TotalStudents:    total,
		EnrolledStudents: enrolled,
		Today:            statsToResponse(todayStats, records),
	}
	if hnsw := database.GetStudentHNSWRebuilder(); hnsw != nil {
		stats.HNSWEnabled = hnsw.IsHNSWEnabled()
		stats.HNSWCount = hnsw.HNSWCount()
	}

	h.cache.set(stats)
	respondJSON(w, http.StatusOK, stats)
}
