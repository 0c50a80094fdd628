package report

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/facegate/internal/database"
)

func sampleSheet() *DaySheet {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return &DaySheet{
		Date:     day,
		Location: "main_gate",
		Stats: &database.AttendanceStats{
			Total:          3,
			Success:        2,
			Uncertain:      0,
			Failed:         1,
			UniqueStudents: 2,
		},
		// Newest first, the order the store returns them in.
		Records: []database.AttendanceRecord{
			{
				LogID:        "log-3",
				StudentID:    "",
				StudentName:  "",
				CheckinTime:  day.Add(8*time.Hour + 10*time.Minute),
				Location:     "main_gate",
				Confidence:   0.22,
				Status:       database.StatusFailed,
				FaceDetected: true,
			},
			{
				LogID:        "log-2",
				StudentID:    "S002",
				StudentName:  "Anna Svobodová",
				Class:        "3B",
				CheckinTime:  day.Add(7*time.Hour + 52*time.Minute),
				Location:     "main_gate",
				Confidence:   0.78,
				Status:       database.StatusSuccess,
				FaceDetected: true,
			},
			{
				LogID:        "log-1",
				StudentID:    "S001",
				StudentName:  "Jan Novák",
				Class:        "3A",
				CheckinTime:  day.Add(7*time.Hour + 45*time.Minute),
				Location:     "main_gate",
				Confidence:   0.91,
				Status:       database.StatusSuccess,
				FaceDetected: true,
			},
		},
	}
}

func TestRenderMarkdown(t *testing.T) {
	got := RenderMarkdown(sampleSheet())

	contains := []string{
		"# Attendance for 2026-03-02 (main_gate)",
		"- Total attempts: 3",
		"- Unique students: 2",
		"- Success rate: 66.7%",
		"| Time | Student | Class | Status | Confidence |",
		"| 07:45:00 | Jan Novák | 3A | success | 0.91 |",
		"| 08:10:00 | unknown |  | failed | 0.22 |",
	}
	for _, want := range contains {
		if !strings.Contains(got, want) {
			t.Errorf("RenderMarkdown output missing %q, got:\n%s", want, got)
		}
	}
}

func TestRenderMarkdown_ChronologicalOrder(t *testing.T) {
	got := RenderMarkdown(sampleSheet())

	first := strings.Index(got, "07:45:00")
	last := strings.Index(got, "08:10:00")
	if first == -1 || last == -1 || first > last {
		t.Errorf("expected oldest check-in rendered first, got:\n%s", got)
	}
}

func TestRenderMarkdown_EscapesPipes(t *testing.T) {
	sheet := sampleSheet()
	sheet.Records = sheet.Records[:1]
	sheet.Records[0].StudentName = "Evil | Name"

	got := RenderMarkdown(sheet)

	if !strings.Contains(got, `Evil \| Name`) {
		t.Errorf("expected pipe to be escaped, got:\n%s", got)
	}
}

func TestRenderMarkdown_EmptyDay(t *testing.T) {
	sheet := &DaySheet{
		Date:  time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Stats: &database.AttendanceStats{},
	}

	got := RenderMarkdown(sheet)

	if !strings.Contains(got, "No check-ins recorded.") {
		t.Errorf("expected empty day notice, got:\n%s", got)
	}
	if !strings.Contains(got, "- Success rate: 0.0%") {
		t.Errorf("expected zero success rate without division error, got:\n%s", got)
	}
}

func TestRenderCSV(t *testing.T) {
	got, err := RenderCSV(sampleSheet())
	if err != nil {
		t.Fatalf("RenderCSV failed: %v", err)
	}

	rows, err := csv.NewReader(strings.NewReader(got)).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "log_id" || rows[0][7] != "confidence" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	// Oldest first
	if rows[1][0] != "log-1" || rows[3][0] != "log-3" {
		t.Errorf("expected chronological order, got first=%s last=%s", rows[1][0], rows[3][0])
	}
	if rows[1][3] != "Jan Novák" {
		t.Errorf("expected student name in row, got %v", rows[1])
	}
	if rows[1][7] != "0.9100" {
		t.Errorf("expected formatted confidence 0.9100, got %s", rows[1][7])
	}
}

func TestRenderCSV_QuotesCommasInNames(t *testing.T) {
	sheet := sampleSheet()
	sheet.Records = sheet.Records[:1]
	sheet.Records[0].StudentName = "Novák, Jan"

	got, err := RenderCSV(sheet)
	if err != nil {
		t.Fatalf("RenderCSV failed: %v", err)
	}

	rows, err := csv.NewReader(strings.NewReader(got)).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if rows[1][3] != "Novák, Jan" {
		t.Errorf("expected comma preserved through quoting, got %s", rows[1][3])
	}
}
