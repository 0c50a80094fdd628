package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"text/tabwriter"

	"github.com/kozaktomas/facegate/internal/constants"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/sis"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var rosterSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync names and classes from the SIS",
	Long: `Sync student names and classes from the school information system.

Profiles of already-enrolled students are updated when the SIS has a
different name or class. Students present in the SIS but not enrolled
are listed so they can be enrolled. Face templates are never touched.

Examples:
  # Sync all classes
  facegate roster sync

  # Preview without writing
  facegate roster sync --dry-run

  # One class only
  facegate roster sync --class 4A`,
	RunE: runRosterSync,
}

func init() {
	rosterCmd.AddCommand(rosterSyncCmd)

	rosterSyncCmd.Flags().String("class", "", "Only sync this class")
	rosterSyncCmd.Flags().Bool("dry-run", false, "Report changes without applying them")
}

// profileChange describes one pending or applied profile update.
type profileChange struct {
	studentID string
	from      string
	to        string
}

// formatStudentRef renders "Name (class)" with the class omitted when empty.
func formatStudentRef(name, class string) string {
	if class == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, class)
}

// rosterSyncResult accumulates the outcome of one sync run.
type rosterSyncResult struct {
	mu          sync.Mutex
	updated     []profileChange
	unchanged   int
	notEnrolled []sis.RosterEntry
	errorCount  int
}

// syncRosterEntry reconciles one SIS row against the student database.
func syncRosterEntry(ctx context.Context, writer database.StudentWriter, entry sis.RosterEntry, dryRun bool, result *rosterSyncResult) {
	student, err := writer.Get(ctx, entry.StudentID)
	if err != nil {
		result.mu.Lock()
		result.errorCount++
		result.mu.Unlock()
		fmt.Fprintf(os.Stderr, "\n  Error looking up %s: %v\n", entry.StudentID, err)
		return
	}

	if student == nil {
		result.mu.Lock()
		result.notEnrolled = append(result.notEnrolled, entry)
		result.mu.Unlock()
		return
	}

	if student.Name == entry.Name && student.Class == entry.Class {
		result.mu.Lock()
		result.unchanged++
		result.mu.Unlock()
		return
	}

	change := profileChange{
		studentID: entry.StudentID,
		from:      formatStudentRef(student.Name, student.Class),
		to:        formatStudentRef(entry.Name, entry.Class),
	}

	if !dryRun {
		if err := writer.UpdateProfile(ctx, entry.StudentID, entry.Name, entry.Class); err != nil {
			result.mu.Lock()
			result.errorCount++
			result.mu.Unlock()
			fmt.Fprintf(os.Stderr, "\n  Error updating %s: %v\n", entry.StudentID, err)
			return
		}
	}

	result.mu.Lock()
	result.updated = append(result.updated, change)
	result.mu.Unlock()
}

func runRosterSync(cmd *cobra.Command, args []string) error {
	class := mustGetString(cmd, "class")
	dryRun := mustGetBool(cmd, "dry-run")

	cfg, err := initDatabaseBackend()
	if err != nil {
		return err
	}
	if cfg.SIS.DatabaseURL == "" {
		return errors.New("SIS_DATABASE_URL environment variable is required")
	}

	fmt.Println("Connecting to SIS...")
	sisPool, err := sis.NewPool(cfg.SIS.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to SIS: %w", err)
	}
	defer sisPool.Close()

	ctx := context.Background()
	roster, err := sisPool.GetRoster(ctx, class)
	if err != nil {
		return fmt.Errorf("failed to load SIS roster: %w", err)
	}
	if len(roster) == 0 {
		fmt.Println("SIS roster is empty.")
		return nil
	}
	fmt.Printf("SIS roster: %d students\n\n", len(roster))

	writer, err := database.GetStudentWriter(ctx)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(roster),
		progressbar.OptionSetDescription("Syncing roster"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("students"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	result := &rosterSyncResult{}
	sem := make(chan struct{}, constants.WorkerPoolSize)
	var wg sync.WaitGroup

	for _, entry := range roster {
		wg.Add(1)
		go func(entry sis.RosterEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			defer bar.Add(1)

			syncRosterEntry(ctx, writer, entry, dryRun, result)
		}(entry)
	}

	wg.Wait()
	fmt.Println()

	// The pool finishes entries in arbitrary order; restore roster order
	// for the output.
	sort.Slice(result.updated, func(i, j int) bool {
		return result.updated[i].studentID < result.updated[j].studentID
	})
	sort.Slice(result.notEnrolled, func(i, j int) bool {
		if result.notEnrolled[i].Class != result.notEnrolled[j].Class {
			return result.notEnrolled[i].Class < result.notEnrolled[j].Class
		}
		return result.notEnrolled[i].StudentID < result.notEnrolled[j].StudentID
	})

	if len(result.updated) > 0 {
		if dryRun {
			fmt.Printf("\n[DRY-RUN] Would update %d profile(s):\n", len(result.updated))
		} else {
			fmt.Printf("\nUpdated %d profile(s):\n", len(result.updated))
		}
		for _, change := range result.updated {
			fmt.Printf("  %s: %s -> %s\n", change.studentID, change.from, change.to)
		}
	}

	if len(result.notEnrolled) > 0 {
		fmt.Printf("\nIn SIS but not enrolled (%d):\n\n", len(result.notEnrolled))
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STUDENT ID\tNAME\tCLASS")
		fmt.Fprintln(w, "----------\t----\t-----")
		for _, entry := range result.notEnrolled {
			class := entry.Class
			if class == "" {
				class = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", entry.StudentID, entry.Name, class)
		}
		w.Flush()
	}

	fmt.Printf("\nSummary: %d updated, %d unchanged, %d not enrolled, %d errors\n",
		len(result.updated), result.unchanged, len(result.notEnrolled), result.errorCount)
	return nil
}
