package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/facegate/internal/constants"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/spf13/cobra"
)

var studentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled students",
	Long: `List students with their class, enrollment state and last check-in.

Examples:
  # List all students
  facegate student list

  # Search by name or student ID (diacritics-insensitive)
  facegate student list --q novak

  # Filter by class
  facegate student list --class 4A

  # Output as JSON
  facegate student list --json`,
	RunE: runStudentList,
}

func init() {
	studentCmd.AddCommand(studentListCmd)

	studentListCmd.Flags().String("q", "", "Search by name or student ID")
	studentListCmd.Flags().String("class", "", "Filter by class")
	studentListCmd.Flags().Int("limit", constants.DefaultStudentPageSize, "Maximum number of students to list")
	studentListCmd.Flags().Bool("json", false, "Output as JSON")
}

// outputJSON writes data to stdout as indented JSON.
func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// studentListEntry is the JSON shape of one listed student.
type studentListEntry struct {
	StudentID   string `json:"student_id"`
	Name        string `json:"name"`
	Class       string `json:"class,omitempty"`
	Enrolled    bool   `json:"enrolled"`
	ImageCount  int    `json:"image_count,omitempty"`
	LastCheckin string `json:"last_checkin,omitempty"`
}

func runStudentList(cmd *cobra.Command, args []string) error {
	query := mustGetString(cmd, "q")
	class := mustGetString(cmd, "class")
	limit := mustGetInt(cmd, "limit")
	jsonOutput := mustGetBool(cmd, "json")

	if _, err := initDatabaseBackend(); err != nil {
		return err
	}

	ctx := context.Background()
	reader, err := database.GetStudentReader(ctx)
	if err != nil {
		return err
	}

	students, err := reader.List(ctx, query, class, limit, 0)
	if err != nil {
		return fmt.Errorf("failed to list students: %w", err)
	}

	if jsonOutput {
		entries := make([]studentListEntry, 0, len(students))
		for i := range students {
			s := &students[i]
			entry := studentListEntry{
				StudentID:  s.StudentID,
				Name:       s.Name,
				Class:      s.Class,
				Enrolled:   s.Enrolled(),
				ImageCount: s.ImageCount,
			}
			if s.LastCheckin != nil {
				entry.LastCheckin = s.LastCheckin.Format("2006-01-02 15:04:05")
			}
			entries = append(entries, entry)
		}
		return outputJSON(entries)
	}

	if len(students) == 0 {
		fmt.Println("No students found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STUDENT ID\tNAME\tCLASS\tTEMPLATE\tLAST CHECK-IN")
	fmt.Fprintln(w, "----------\t----\t-----\t--------\t-------------")

	for i := range students {
		s := &students[i]
		class := s.Class
		if class == "" {
			class = "-"
		}
		template := "-"
		if s.Enrolled() {
			template = fmt.Sprintf("%d images", s.ImageCount)
		}
		lastCheckin := "-"
		if s.LastCheckin != nil {
			lastCheckin = s.LastCheckin.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.StudentID, s.Name, class, template, lastCheckin)
	}

	w.Flush()
	fmt.Printf("\nStudents: %d\n", len(students))
	return nil
}
