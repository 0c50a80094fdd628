package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/spf13/cobra"
)

var attendanceTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's check-ins",
	Long: `Show today's check-in attempts and their aggregate counts.

Examples:
  # All gates
  facegate attendance today

  # One gate only
  facegate attendance today --location main_gate

  # Output as JSON
  facegate attendance today --json`,
	RunE: runAttendanceToday,
}

func init() {
	attendanceCmd.AddCommand(attendanceTodayCmd)

	attendanceTodayCmd.Flags().String("location", "", "Only show check-ins at this gate")
	attendanceTodayCmd.Flags().Bool("json", false, "Output as JSON")
}

// attendanceTodayOutput is the JSON shape of the today listing.
type attendanceTodayOutput struct {
	Date     string                    `json:"date"`
	Location string                    `json:"location,omitempty"`
	Stats    *database.AttendanceStats `json:"stats"`
	Records  []attendanceTodayRecord   `json:"records"`
}

type attendanceTodayRecord struct {
	LogID       string  `json:"log_id"`
	CheckinTime string  `json:"checkin_time"`
	StudentID   string  `json:"student_id,omitempty"`
	StudentName string  `json:"student_name,omitempty"`
	Class       string  `json:"class,omitempty"`
	Location    string  `json:"location"`
	Status      string  `json:"status"`
	Confidence  float64 `json:"confidence"`
}

func runAttendanceToday(cmd *cobra.Command, args []string) error {
	location := mustGetString(cmd, "location")
	jsonOutput := mustGetBool(cmd, "json")

	if _, err := initDatabaseBackend(); err != nil {
		return err
	}

	ctx := context.Background()
	reader, err := database.GetAttendanceReader(ctx)
	if err != nil {
		return err
	}

	day := time.Now()
	stats, err := reader.StatsByDate(ctx, day, location)
	if err != nil {
		return fmt.Errorf("failed to load attendance stats: %w", err)
	}
	records, err := reader.ListByDate(ctx, day, location)
	if err != nil {
		return fmt.Errorf("failed to load attendance records: %w", err)
	}

	// The store hands records out newest first; a day listing reads
	// better in check-in order.
	sort.Slice(records, func(i, j int) bool {
		return records[i].CheckinTime.Before(records[j].CheckinTime)
	})

	if jsonOutput {
		out := attendanceTodayOutput{
			Date:     day.Format("2006-01-02"),
			Location: location,
			Stats:    stats,
			Records:  make([]attendanceTodayRecord, 0, len(records)),
		}
		for i := range records {
			r := &records[i]
			out.Records = append(out.Records, attendanceTodayRecord{
				LogID:       r.LogID,
				CheckinTime: r.CheckinTime.Format(time.RFC3339),
				StudentID:   r.StudentID,
				StudentName: r.StudentName,
				Class:       r.Class,
				Location:    r.Location,
				Status:      r.Status,
				Confidence:  r.Confidence,
			})
		}
		return outputJSON(out)
	}

	fmt.Printf("Attendance for %s", day.Format("2006-01-02"))
	if location != "" {
		fmt.Printf(" at %s", location)
	}
	fmt.Println()
	fmt.Printf("  Attempts: %d (%d success, %d uncertain, %d failed)\n",
		stats.Total, stats.Success, stats.Uncertain, stats.Failed)
	fmt.Printf("  Students: %d\n", stats.UniqueStudents)

	if len(records) == 0 {
		fmt.Println("\nNo check-ins yet.")
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSTUDENT\tCLASS\tGATE\tSTATUS\tCONFIDENCE")
	fmt.Fprintln(w, "----\t-------\t-----\t----\t------\t----------")

	for i := range records {
		r := &records[i]
		student := "-"
		if r.StudentName != "" {
			student = fmt.Sprintf("%s (%s)", r.StudentName, r.StudentID)
		}
		class := r.Class
		if class == "" {
			class = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f\n",
			r.CheckinTime.Format("15:04:05"), student, class, r.Location, r.Status, r.Confidence)
	}

	w.Flush()
	return nil
}
