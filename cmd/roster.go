package cmd

import (
	"github.com/spf13/cobra"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Work with the school information system roster",
	Long:  `Commands for syncing student data from the school information system.`,
}

func init() {
	rootCmd.AddCommand(rosterCmd)
}
