package ai

import (
	"fmt"
	"strings"
)

// buildDigestPrompt returns the embedded attendance digest prompt.
func buildDigestPrompt() string {
	return attendanceDigestPrompt
}

// buildDigestContent builds the user message content for the digest.
// This is shared across all AI providers.
func buildDigestContent(summary *AttendanceSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\n", summary.Date)
	if summary.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", summary.Location)
	}
	fmt.Fprintf(&b, "Attempts: %d (successful: %d, uncertain: %d, failed: %d)\n",
		summary.TotalAttempts, summary.Successful, summary.Uncertain, summary.Failed)
	fmt.Fprintf(&b, "Unique students checked in: %d\n", summary.UniqueStudents)

	b.WriteString("\nCheck-ins:\n")
	if len(summary.Records) == 0 {
		b.WriteString("(none)\n")
		return b.String()
	}
	for i, r := range summary.Records {
		name := r.Name
		if name == "" {
			name = "unknown"
		}
		fmt.Fprintf(&b, "%d. %s %s", i+1, r.Time, name)
		if r.Class != "" {
			fmt.Fprintf(&b, " (%s)", r.Class)
		}
		fmt.Fprintf(&b, " - %s, confidence %.2f\n", r.Status, r.Confidence)
	}
	return b.String()
}
