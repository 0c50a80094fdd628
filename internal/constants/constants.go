// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Enrollment constants
const (
	// MinImagesForOutlierFiltering is the minimum number of enrollment images
	// before inconsistent captures are filtered out
	MinImagesForOutlierFiltering = 3

	// MaxSnapshotSize is the maximum dimension (width or height) for stored
	// check-in snapshots
	MaxSnapshotSize = 800
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel workers for batch enrollment
	WorkerPoolSize = 5

	// IndexSaveInterval is the number of index mutations before persisting the
	// similarity index to disk
	IndexSaveInterval = 50
)

// Similarity search constants
const (
	// DefaultSimilarLimit is the default number of lookalike students to return
	DefaultSimilarLimit = 5

	// DefaultDuplicateThreshold is the default min cosine similarity for flagging
	// two enrolled students as likely duplicates
	DefaultDuplicateThreshold = 0.85
)

// AI provider names
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)
