package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

//go:embed prices.yaml
var pricesYAML []byte

type Config struct {
	Recognition RecognitionConfig
	Embedding   EmbeddingConfig
	Database    DatabaseConfig
	SIS         SISConfig
	Attendance  AttendanceConfig
	Web         WebConfig
	AI          AIConfig
	OpenAI      OpenAIConfig
	Gemini      GeminiConfig
	Prices      PricesConfig
}

type RecognitionConfig struct {
	MatchThreshold     float64 // min similarity for a confident match
	UncertainThreshold float64 // min similarity for an uncertain match
	OutlierThreshold   float64 // min similarity to the centroid during enrollment filtering
	Dimension          int     // embedding dimension produced by the face model
	AggregationMethod  string  // mean, median or trimmed_mean
	MaxEnrollImages    int     // larger enrollment sets are thinned to this size
}

type EmbeddingConfig struct {
	URL            string // face embedding server, defaults to http://localhost:8000
	Model          string // model name for reference only
	TimeoutSeconds int    // per-request timeout (default 30)
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist the student HNSW index (optional, if empty index is rebuilt on startup)
}

type SISConfig struct {
	DatabaseURL string // MariaDB DSN for the school information system (e.g., sis:sis@tcp(mariadb:3306)/sis)
}

type AttendanceConfig struct {
	Location    string // recorded on every check-in (default main_gate)
	SnapshotDir string // directory for check-in snapshots; snapshots disabled when empty
	HistoryDays int    // default lookback for per-student history queries
}

type WebConfig struct {
	Port     int
	Host     string
	APIToken string // bearer token required on API routes; auth disabled when empty
}

type AIConfig struct {
	Provider string // openai or gemini
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

type PricesConfig struct {
	Models map[string]RequestPricing `yaml:"models"`
}

// RequestPricing holds input/output prices per 1M tokens.
type RequestPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// defaultValues mirrors defaults.yaml.
type defaultValues struct {
	Recognition struct {
		MatchThreshold     float64 `yaml:"match_threshold"`
		UncertainThreshold float64 `yaml:"uncertain_threshold"`
		OutlierThreshold   float64 `yaml:"outlier_threshold"`
		Dimension          int     `yaml:"dimension"`
		AggregationMethod  string  `yaml:"aggregation_method"`
		MaxEnrollImages    int     `yaml:"max_enroll_images"`
	} `yaml:"recognition"`
	Attendance struct {
		Location    string `yaml:"location"`
		HistoryDays int    `yaml:"history_days"`
	} `yaml:"attendance"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envStr reads an environment variable, falling back to the default when unset.
func envStr(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var def defaultValues
	if err := yaml.Unmarshal(defaultsYAML, &def); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	var prices PricesConfig
	if err := yaml.Unmarshal(pricesYAML, &prices); err != nil {
		panic("failed to unmarshal embedded prices.yaml: " + err.Error())
	}

	return &Config{
		Recognition: RecognitionConfig{
			MatchThreshold:     envFloat("MATCH_THRESHOLD", def.Recognition.MatchThreshold),
			UncertainThreshold: envFloat("UNCERTAIN_THRESHOLD", def.Recognition.UncertainThreshold),
			OutlierThreshold:   envFloat("OUTLIER_THRESHOLD", def.Recognition.OutlierThreshold),
			Dimension:          envInt("EMBEDDING_DIM", def.Recognition.Dimension),
			AggregationMethod:  envStr("AGGREGATION_METHOD", def.Recognition.AggregationMethod),
			MaxEnrollImages:    envInt("MAX_ENROLL_IMAGES", def.Recognition.MaxEnrollImages),
		},
		Embedding: EmbeddingConfig{
			URL:            os.Getenv("EMBEDDING_URL"),
			Model:          os.Getenv("EMBEDDING_MODEL"),
			TimeoutSeconds: envInt("EMBEDDING_TIMEOUT_SECONDS", 30),
		},
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		SIS: SISConfig{
			DatabaseURL: os.Getenv("SIS_DATABASE_URL"),
		},
		Attendance: AttendanceConfig{
			Location:    envStr("ATTENDANCE_LOCATION", def.Attendance.Location),
			SnapshotDir: os.Getenv("SNAPSHOT_DIR"),
			HistoryDays: envInt("ATTENDANCE_HISTORY_DAYS", def.Attendance.HistoryDays),
		},
		Web: WebConfig{
			Port:     envInt("WEB_PORT", 8080),
			Host:     envStr("WEB_HOST", "0.0.0.0"),
			APIToken: os.Getenv("WEB_API_TOKEN"),
		},
		AI: AIConfig{
			Provider: os.Getenv("AI_PROVIDER"),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Prices: prices,
	}
}

// GetModelPricing returns pricing for a specific model.
// Unknown models get zero pricing, which keeps cost reporting safe.
func (c *Config) GetModelPricing(modelName string) RequestPricing {
	return c.Prices.Models[modelName]
}
