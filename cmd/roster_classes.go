package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/sis"
	"github.com/spf13/cobra"
)

var rosterClassesCmd = &cobra.Command{
	Use:   "classes",
	Short: "List class names from the SIS",
	Long: `Lists the distinct class names in the school information system.
Useful for finding valid values for the --class filters.`,
	RunE: runRosterClasses,
}

func init() {
	rosterCmd.AddCommand(rosterClassesCmd)
}

func runRosterClasses(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.SIS.DatabaseURL == "" {
		return errors.New("SIS_DATABASE_URL environment variable is required")
	}

	sisPool, err := sis.NewPool(cfg.SIS.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to SIS: %w", err)
	}
	defer sisPool.Close()

	classes, err := sisPool.GetClasses(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load classes: %w", err)
	}

	if len(classes) == 0 {
		fmt.Println("No classes found.")
		return nil
	}

	for _, class := range classes {
		fmt.Println(class)
	}
	fmt.Printf("\nTotal: %d classes\n", len(classes))

	return nil
}
