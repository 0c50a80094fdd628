package cmd

import (
	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Inspect and export the attendance ledger",
	Long:  `Commands for viewing today's check-ins and exporting daily reports.`,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
}
