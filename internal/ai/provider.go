package ai

import "context"

// AttendanceSummary is one day of check-in data prepared for the digest prompt.
type AttendanceSummary struct {
	Date           string // YYYY-MM-DD
	Location       string
	TotalAttempts  int
	Successful     int
	Uncertain      int
	Failed         int
	UniqueStudents int
	Records        []CheckinLine
}

// CheckinLine is a single check-in formatted for the prompt.
type CheckinLine struct {
	Time       string // HH:MM
	Name       string // empty for failed attempts
	Class      string
	Status     string
	Confidence float64
}

// Provider defines the interface for AI digest backends.
type Provider interface {
	Name() string
	SummarizeAttendance(ctx context.Context, summary *AttendanceSummary) (string, error)

	// Usage tracking.
	GetUsage() *Usage
	ResetUsage()
}

// Usage tracks token usage and calculates cost.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalCost    float64 // in USD
}
