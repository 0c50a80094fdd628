package report

import (
	"fmt"
	"strings"
)

// markdownEscaper neutralizes characters that would break a table cell.
var markdownEscaper = strings.NewReplacer(
	`|`, `\|`,
	"\n", " ",
	"\r", " ",
)

// RenderMarkdown renders the day sheet as a Markdown document with a stats
// summary and a per-record table, oldest check-in first.
func RenderMarkdown(sheet *DaySheet) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Attendance for %s", sheet.Date.Format("2006-01-02"))
	if sheet.Location != "" {
		fmt.Fprintf(&b, " (%s)", markdownEscaper.Replace(sheet.Location))
	}
	b.WriteString("\n\n")

	if sheet.Stats != nil {
		fmt.Fprintf(&b, "- Total attempts: %d\n", sheet.Stats.Total)
		fmt.Fprintf(&b, "- Successful: %d\n", sheet.Stats.Success)
		fmt.Fprintf(&b, "- Uncertain: %d\n", sheet.Stats.Uncertain)
		fmt.Fprintf(&b, "- Failed: %d\n", sheet.Stats.Failed)
		fmt.Fprintf(&b, "- Unique students: %d\n", sheet.Stats.UniqueStudents)
		fmt.Fprintf(&b, "- Success rate: %.1f%%\n", sheet.successRate())
		b.WriteString("\n")
	}

	records := sheet.chronological()
	if len(records) == 0 {
		b.WriteString("No check-ins recorded.\n")
		return b.String()
	}

	b.WriteString("| Time | Student | Class | Status | Confidence |\n")
	b.WriteString("|------|---------|-------|--------|------------|\n")
	for _, r := range records {
		name := r.StudentName
		if name == "" {
			name = "unknown"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %.2f |\n",
			r.CheckinTime.Format("15:04:05"),
			markdownEscaper.Replace(name),
			markdownEscaper.Replace(r.Class),
			r.Status,
			r.Confidence,
		)
	}

	return b.String()
}
