package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/kozaktomas/facegate/internal/ai"
	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/constants"
	"github.com/kozaktomas/facegate/internal/database"
)

// DigestHandler generates AI summaries of a day's attendance
type DigestHandler struct {
	config     *config.Config
	attendance database.AttendanceReader
}

// NewDigestHandler creates a new digest handler
func NewDigestHandler(cfg *config.Config) *DigestHandler {
	h := &DigestHandler{
		config: cfg,
	}
	if reader, err := database.GetAttendanceReader(context.Background()); err == nil {
		h.attendance = reader
	}
	return h
}

// DigestRequest represents the request body for a digest
type DigestRequest struct {
	Date     string `json:"date,omitempty"`     // YYYY-MM-DD, defaults to today
	Location string `json:"location,omitempty"` // empty matches all gates
	Provider string `json:"provider,omitempty"` // defaults to the configured provider
}

// DigestUsage reports token usage and cost of the digest request
type DigestUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// DigestResponse represents the generated digest
type DigestResponse struct {
	Date     string      `json:"date"`
	Location string      `json:"location,omitempty"`
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Digest   string      `json:"digest"`
	Usage    DigestUsage `json:"usage"`
}

// Generate produces an AI-written summary of one day's attendance
func (h *DigestHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if h.attendance == nil {
		respondError(w, http.StatusServiceUnavailable, "database not configured")
		return
	}

	var req DigestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	day := time.Now()
	if req.Date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		day = parsed
	}

	providerName := req.Provider
	if providerName == "" {
		providerName = h.config.AI.Provider
	}
	if providerName == "" {
		respondError(w, http.StatusBadRequest, "no AI provider configured")
		return
	}

	provider, err := h.createAIProvider(providerName)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	records, err := h.attendance.ListByDate(ctx, day, req.Location)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load attendance records")
		return
	}
	stats, err := h.attendance.StatsByDate(ctx, day, req.Location)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load attendance stats")
		return
	}
	if stats.Total == 0 {
		respondError(w, http.StatusUnprocessableEntity, "no attendance records to summarize")
		return
	}

	summary := buildSummary(day, req.Location, stats, records)
	digest, err := provider.SummarizeAttendance(ctx, summary)
	if err != nil {
		log.Printf("Digest: %s provider failed: %v", sanitizeForLog(providerName), err)
		respondError(w, http.StatusBadGateway, "digest generation failed")
		return
	}

	usage := provider.GetUsage()
	respondJSON(w, http.StatusOK, DigestResponse{
		Date:     day.Format("2006-01-02"),
		Location: req.Location,
		Provider: providerName,
		Model:    provider.Name(),
		Digest:   digest,
		Usage: DigestUsage{
			InputTokens:  usage.InputTokens,
			OutputTokens: usage.OutputTokens,
			CostUSD:      usage.TotalCost,
		},
	})
}

// buildSummary folds ledger rows into the prompt-ready shape.
func buildSummary(day time.Time, location string, stats *database.AttendanceStats, records []database.AttendanceRecord) *ai.AttendanceSummary {
	summary := &ai.AttendanceSummary{
		Date:           day.Format("2006-01-02"),
		Location:       location,
		TotalAttempts:  stats.Total,
		Successful:     stats.Success,
		Uncertain:      stats.Uncertain,
		Failed:         stats.Failed,
		UniqueStudents: stats.UniqueStudents,
		Records:        make([]ai.CheckinLine, len(records)),
	}
	for i, r := range records {
		summary.Records[i] = ai.CheckinLine{
			Time:       r.CheckinTime.Format("15:04"),
			Name:       r.StudentName,
			Class:      r.Class,
			Status:     r.Status,
			Confidence: r.Confidence,
		}
	}
	return summary
}

func (h *DigestHandler) createAIProvider(providerName string) (ai.Provider, error) {
	switch providerName {
	case constants.ProviderOpenAI:
		return h.createOpenAIProvider()
	case constants.ProviderGemini:
		return h.createGeminiProvider()
	default:
		return nil, fmt.Errorf("unknown provider: %s", providerName)
	}
}

func (h *DigestHandler) createOpenAIProvider() (ai.Provider, error) {
	if h.config.OpenAI.Token == "" {
		return nil, errors.New("OPENAI_TOKEN environment variable is required")
	}
	pricing := h.config.GetModelPricing("gpt-4.1-mini")
	return ai.NewOpenAIProvider(h.config.OpenAI.Token,
		ai.RequestPricing{Input: pricing.Input, Output: pricing.Output},
	), nil
}

func (h *DigestHandler) createGeminiProvider() (ai.Provider, error) {
	if h.config.Gemini.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY environment variable is required")
	}
	pricing := h.config.GetModelPricing("gemini-2.5-flash")
	provider, err := ai.NewGeminiProvider(context.Background(), h.config.Gemini.APIKey,
		ai.RequestPricing{Input: pricing.Input, Output: pricing.Output},
	)
	if err != nil {
		return nil, fmt.Errorf("creating Gemini provider: %w", err)
	}
	return provider, nil
}
