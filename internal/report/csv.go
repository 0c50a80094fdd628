package report

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RenderCSV renders the day sheet as CSV with one row per check-in,
// oldest first. Quoting is handled by the writer, so names with commas
// or newlines survive a spreadsheet import.
func RenderCSV(sheet *DaySheet) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	header := []string{
		"log_id", "checkin_time", "student_id", "student_name", "class",
		"location", "status", "confidence", "face_detected",
	}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range sheet.chronological() {
		row := []string{
			r.LogID,
			r.CheckinTime.Format(time.RFC3339),
			r.StudentID,
			r.StudentName,
			r.Class,
			r.Location,
			r.Status,
			strconv.FormatFloat(r.Confidence, 'f', 4, 64),
			strconv.FormatBool(r.FaceDetected),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return b.String(), nil
}
