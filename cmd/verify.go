package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/embedding"
	"github.com/kozaktomas/facegate/internal/imaging"
	"github.com/kozaktomas/facegate/internal/recognition"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <image>",
	Short: "Match one image against all enrolled students",
	Long: `Match a single image against the enrolled students and print the verdict.

This is a diagnostic tool: unlike the verify endpoint it writes nothing
to the attendance ledger and always shows the closest student, including
below-threshold near misses.

Examples:
  # Check who a capture resembles
  facegate verify capture.jpg

  # Try a stricter match threshold
  facegate verify capture.jpg --threshold 0.75

  # Output as JSON
  facegate verify capture.jpg --json`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().Float64("threshold", 0, "Override the match threshold (0 = use configured value)")
	verifyCmd.Flags().Bool("json", false, "Output as JSON")
}

// verifyOutput is the JSON shape of a one-shot verification.
type verifyOutput struct {
	Status       string         `json:"status"`
	FaceDetected bool           `json:"face_detected"`
	Score        float64        `json:"score,omitempty"`
	Closest      *verifyStudent `json:"closest,omitempty"`
}

type verifyStudent struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Class     string `json:"class,omitempty"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	imagePath := args[0]
	thresholdOverride := mustGetFloat64(cmd, "threshold")
	jsonOutput := mustGetBool(cmd, "json")

	data, err := os.ReadFile(imagePath) //nolint:gosec // operator-supplied path
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	if _, _, err := imaging.Decode(data); err != nil {
		return fmt.Errorf("%s is not a usable image: %w", imagePath, err)
	}

	cfg, err := initDatabaseBackend()
	if err != nil {
		return err
	}

	matchThreshold := cfg.Recognition.MatchThreshold
	if thresholdOverride > 0 {
		matchThreshold = thresholdOverride
	}
	matcher, err := recognition.NewMatcher(matchThreshold, cfg.Recognition.UncertainThreshold)
	if err != nil {
		return fmt.Errorf("invalid match thresholds: %w", err)
	}

	ctx := context.Background()
	embedder := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.Model, time.Duration(cfg.Embedding.TimeoutSeconds)*time.Second)

	probe, err := embedder.EmbedFace(ctx, data)
	if errors.Is(err, embedding.ErrNoFace) {
		if jsonOutput {
			return outputJSON(verifyOutput{Status: "NO_FACE", FaceDetected: false})
		}
		fmt.Printf("No face detected in %s\n", imagePath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("embedding service: %w", err)
	}

	reader, err := database.GetStudentReader(ctx)
	if err != nil {
		return err
	}
	students, err := reader.ListForMatching(ctx)
	if err != nil {
		return fmt.Errorf("failed to load enrolled students: %w", err)
	}
	if len(students) == 0 {
		if jsonOutput {
			return outputJSON(verifyOutput{Status: "NO_MATCH", FaceDetected: true})
		}
		fmt.Println("No students enrolled.")
		return nil
	}

	gallery := make([]recognition.Candidate, len(students))
	for i, s := range students {
		gallery[i] = recognition.Candidate{
			ID:        s.StudentID,
			Name:      s.Name,
			Class:     s.Class,
			Embedding: s.Embedding,
		}
	}

	best, err := matcher.FindBestMatch(probe, gallery)
	if err != nil {
		return fmt.Errorf("matching failed: %w", err)
	}

	if jsonOutput {
		return outputJSON(verifyOutput{
			Status:       best.Status.String(),
			FaceDetected: true,
			Score:        best.Score,
			Closest: &verifyStudent{
				StudentID: best.Candidate.ID,
				Name:      best.Candidate.Name,
				Class:     best.Candidate.Class,
			},
		})
	}

	label := "Student"
	if best.Status != recognition.Match {
		label = "Closest"
	}
	fmt.Printf("Verdict:  %s\n", best.Status)
	fmt.Printf("%s:  %s (%s)", label, best.Candidate.Name, best.Candidate.ID)
	if best.Candidate.Class != "" {
		fmt.Printf(", class %s", best.Candidate.Class)
	}
	fmt.Println()
	fmt.Printf("Score:    %.4f (match >= %.2f, uncertain >= %.2f)\n",
		best.Score, matcher.MatchThreshold(), matcher.UncertainThreshold())
	return nil
}
