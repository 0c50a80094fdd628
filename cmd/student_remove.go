package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/spf13/cobra"
)

var studentRemoveCmd = &cobra.Command{
	Use:   "remove <student-id>",
	Short: "Remove a student and their face template",
	Long: `Remove a student from the database.

The face template is deleted. Attendance records are kept with the
student reference cleared.

Example:
  facegate student remove s123`,
	Args: cobra.ExactArgs(1),
	RunE: runStudentRemove,
}

func init() {
	studentCmd.AddCommand(studentRemoveCmd)

	studentRemoveCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
}

func confirmAction(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func runStudentRemove(cmd *cobra.Command, args []string) error {
	studentID := args[0]
	skipConfirm := mustGetBool(cmd, "yes")

	if _, err := initDatabaseBackend(); err != nil {
		return err
	}

	ctx := context.Background()
	writer, err := database.GetStudentWriter(ctx)
	if err != nil {
		return err
	}

	student, err := writer.Get(ctx, studentID)
	if err != nil {
		return fmt.Errorf("failed to look up student: %w", err)
	}
	if student == nil {
		return fmt.Errorf("student not found: %s", studentID)
	}

	fmt.Printf("Student: %s (%s)", student.Name, student.StudentID)
	if student.Class != "" {
		fmt.Printf(", class %s", student.Class)
	}
	fmt.Println()

	if !skipConfirm && !confirmAction(fmt.Sprintf("\nRemove %s and their face template? [y/N]: ", student.Name)) {
		fmt.Println("Cancelled.")
		return nil
	}

	if err := writer.Delete(ctx, studentID); err != nil {
		return fmt.Errorf("failed to remove student: %w", err)
	}

	fmt.Printf("Removed %s (%s). Attendance records are kept.\n", student.Name, student.StudentID)
	return nil
}
