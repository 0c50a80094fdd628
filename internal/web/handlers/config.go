package handlers

import (
	"net/http"

	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/constants"
	"github.com/kozaktomas/facegate/internal/database"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	MatchThreshold     float64        `json:"match_threshold"`
	UncertainThreshold float64        `json:"uncertain_threshold"`
	AggregationMethod  string         `json:"aggregation_method"`
	MaxEnrollImages    int            `json:"max_enroll_images"`
	Location           string         `json:"location"`
	SnapshotsEnabled   bool           `json:"snapshots_enabled"`
	Providers          []ProviderInfo `json:"providers"`
	DatabaseReady      bool           `json:"database_ready"`
}

// ProviderInfo represents information about an AI provider
type ProviderInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// Get returns the effective configuration the dashboard needs
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	providers := []ProviderInfo{
		{
			Name:      constants.ProviderOpenAI,
			Available: h.config.OpenAI.Token != "",
		},
		{
			Name:      constants.ProviderGemini,
			Available: h.config.Gemini.APIKey != "",
		},
	}

	response := ConfigResponse{
		MatchThreshold:     h.config.Recognition.MatchThreshold,
		UncertainThreshold: h.config.Recognition.UncertainThreshold,
		AggregationMethod:  h.config.Recognition.AggregationMethod,
		MaxEnrollImages:    h.config.Recognition.MaxEnrollImages,
		Location:           h.config.Attendance.Location,
		SnapshotsEnabled:   h.config.Attendance.SnapshotDir != "",
		Providers:          providers,
		DatabaseReady:      database.IsInitialized(),
	}

	respondJSON(w, http.StatusOK, response)
}
