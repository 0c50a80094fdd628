package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/report"
	"github.com/spf13/cobra"
)

var attendanceExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export one day of attendance as Markdown or CSV",
	Long: `Export one day of attendance as a Markdown or CSV report.

The report is printed to stdout unless --output is given.

Examples:
  # Today's report on stdout
  facegate attendance export

  # A specific day as CSV
  facegate attendance export --date 2026-01-15 --format csv

  # Write to a file
  facegate attendance export --date 2026-01-15 --output attendance-2026-01-15.md`,
	RunE: runAttendanceExport,
}

func init() {
	attendanceCmd.AddCommand(attendanceExportCmd)

	attendanceExportCmd.Flags().String("date", "", "Day to export as YYYY-MM-DD (default today)")
	attendanceExportCmd.Flags().String("format", "markdown", "Report format: markdown or csv")
	attendanceExportCmd.Flags().String("location", "", "Only include check-ins at this gate")
	attendanceExportCmd.Flags().String("output", "", "Write the report to this file instead of stdout")
}

func runAttendanceExport(cmd *cobra.Command, args []string) error {
	dateStr := mustGetString(cmd, "date")
	format := mustGetString(cmd, "format")
	location := mustGetString(cmd, "location")
	output := mustGetString(cmd, "output")

	day := time.Now()
	if dateStr != "" {
		parsed, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
		if err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", dateStr)
		}
		day = parsed
	}
	if format != "markdown" && format != "csv" {
		return fmt.Errorf("format must be markdown or csv, got %q", format)
	}

	if _, err := initDatabaseBackend(); err != nil {
		return err
	}

	ctx := context.Background()
	reader, err := database.GetAttendanceReader(ctx)
	if err != nil {
		return err
	}

	records, err := reader.ListByDate(ctx, day, location)
	if err != nil {
		return fmt.Errorf("failed to load attendance records: %w", err)
	}
	stats, err := reader.StatsByDate(ctx, day, location)
	if err != nil {
		return fmt.Errorf("failed to load attendance stats: %w", err)
	}

	sheet := &report.DaySheet{
		Date:     day,
		Location: location,
		Stats:    stats,
		Records:  records,
	}

	var rendered string
	if format == "csv" {
		rendered, err = report.RenderCSV(sheet)
		if err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}
	} else {
		rendered = report.RenderMarkdown(sheet)
	}

	if output == "" {
		fmt.Print(rendered)
		return nil
	}

	if err := os.WriteFile(output, []byte(rendered), 0o644); err != nil { //nolint:gosec // operator-supplied path
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Printf("Wrote %s (%d attempts)\n", output, stats.Total)
	return nil
}
