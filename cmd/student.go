package cmd

import (
	"github.com/spf13/cobra"
)

var studentCmd = &cobra.Command{
	Use:   "student",
	Short: "Manage enrolled students",
	Long:  `Commands for enrolling students, listing them and removing them.`,
}

func init() {
	rootCmd.AddCommand(studentCmd)
}
