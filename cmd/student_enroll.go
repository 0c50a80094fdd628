package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/facegate/internal/constants"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/embedding"
	"github.com/kozaktomas/facegate/internal/imaging"
	"github.com/kozaktomas/facegate/internal/recognition"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var studentEnrollCmd = &cobra.Command{
	Use:   "enroll [images...]",
	Short: "Enroll a student from reference photos",
	Long: `Enroll a student by building a face template from reference photos.

Each photo is sent to the embedding server, captures where no face is
detected are skipped, and the remaining embeddings are aggregated into
a single template. Enrolling an existing student replaces their template.

Examples:
  # Enroll from individual photos
  facegate student enroll --id s123 --name "Jan Novak" --class 4A jan1.jpg jan2.jpg jan3.jpg

  # Enroll from a directory of photos
  facegate student enroll --id s123 --name "Jan Novak" --class 4A --dir ./photos/jan/

  # Use the median instead of the mean
  facegate student enroll --id s123 --name "Jan Novak" --method median jan*.jpg`,
	RunE: runStudentEnroll,
}

func init() {
	studentCmd.AddCommand(studentEnrollCmd)

	studentEnrollCmd.Flags().String("id", "", "Student ID (required)")
	studentEnrollCmd.Flags().String("name", "", "Student name (required for first enrollment)")
	studentEnrollCmd.Flags().String("class", "", "Class name")
	studentEnrollCmd.Flags().String("method", "", "Aggregation method: mean, median or trimmed_mean (default from config)")
	studentEnrollCmd.Flags().String("dir", "", "Directory with reference photos (jpg/png)")
	studentEnrollCmd.Flags().Int("concurrency", constants.WorkerPoolSize, "Number of parallel embedding requests")

	_ = studentEnrollCmd.MarkFlagRequired("id")
}

// collectEnrollImages merges explicit image arguments with the contents of
// the optional --dir directory.
func collectEnrollImages(args []string, dir string) ([]string, error) {
	paths := append([]string{}, args...)

	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(entry.Name())) {
			case ".jpg", ".jpeg", ".png":
				paths = append(paths, filepath.Join(dir, entry.Name()))
			}
		}
	}

	if len(paths) == 0 {
		return nil, errors.New("no images given: pass image files or --dir")
	}
	return paths, nil
}

// resolveEnrollMethod validates the aggregation method, falling back to the
// configured default when empty.
func resolveEnrollMethod(method, configured string) (string, error) {
	if method == "" {
		method = configured
	}
	switch method {
	case recognition.MethodMean, recognition.MethodMedian, recognition.MethodTrimmedMean:
		return method, nil
	default:
		return "", fmt.Errorf("unknown aggregation method %q", method)
	}
}

// embedEnrollImages embeds all images through a worker pool. Images without
// a detectable face are skipped and counted, read/embed failures are counted
// as errors.
func embedEnrollImages(ctx context.Context, embedder *embedding.Client, paths []string, concurrency, wantDim int) (embeddings [][]float32, noFace, errorCount int) {
	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Embedding faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var mu sync.Mutex
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, path := range paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			defer bar.Add(1)

			data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
			if err != nil {
				mu.Lock()
				errorCount++
				mu.Unlock()
				fmt.Fprintf(os.Stderr, "\n  Error reading %s: %v\n", path, err)
				return
			}
			if _, _, err := imaging.Decode(data); err != nil {
				mu.Lock()
				errorCount++
				mu.Unlock()
				fmt.Fprintf(os.Stderr, "\n  Error: %s is not a usable image: %v\n", path, err)
				return
			}

			emb, err := embedder.EmbedFace(ctx, data)
			if errors.Is(err, embedding.ErrNoFace) {
				mu.Lock()
				noFace++
				mu.Unlock()
				return
			}
			if err != nil {
				mu.Lock()
				errorCount++
				mu.Unlock()
				fmt.Fprintf(os.Stderr, "\n  Error embedding %s: %v\n", path, err)
				return
			}
			if wantDim > 0 && len(emb) != wantDim {
				mu.Lock()
				errorCount++
				mu.Unlock()
				fmt.Fprintf(os.Stderr, "\n  Error: %s produced dimension %d, expected %d\n", path, len(emb), wantDim)
				return
			}

			mu.Lock()
			embeddings = append(embeddings, emb)
			mu.Unlock()
		}(path)
	}

	wg.Wait()
	fmt.Println()
	return embeddings, noFace, errorCount
}

// warnAboutDuplicate flags an already-enrolled student whose template is
// suspiciously close to the new one. Lookup failures only skip the warning.
func warnAboutDuplicate(ctx context.Context, reader database.StudentReader, template []float32, selfID string) {
	students, distances, err := reader.FindSimilar(ctx, template, 2)
	if err != nil {
		return
	}
	for i, student := range students {
		if student.StudentID == selfID {
			continue
		}
		if similarity := 1 - distances[i]; similarity >= constants.DefaultDuplicateThreshold {
			fmt.Printf("Warning: template is very close to %s (%s), similarity %.3f — possible duplicate enrollment\n",
				student.Name, student.StudentID, similarity)
			return
		}
	}
}

func runStudentEnroll(cmd *cobra.Command, args []string) error {
	studentID := mustGetString(cmd, "id")
	name := mustGetString(cmd, "name")
	class := mustGetString(cmd, "class")
	method := mustGetString(cmd, "method")
	dir := mustGetString(cmd, "dir")
	concurrency := mustGetInt(cmd, "concurrency")

	paths, err := collectEnrollImages(args, dir)
	if err != nil {
		return err
	}

	cfg, err := initDatabaseBackend()
	if err != nil {
		return err
	}

	method, err = resolveEnrollMethod(method, cfg.Recognition.AggregationMethod)
	if err != nil {
		return err
	}

	ctx := context.Background()
	writer, err := database.GetStudentWriter(ctx)
	if err != nil {
		return err
	}

	existing, err := writer.Get(ctx, studentID)
	if err != nil {
		return fmt.Errorf("failed to look up student: %w", err)
	}
	if existing != nil {
		if name == "" {
			name = existing.Name
		}
		if class == "" {
			class = existing.Class
		}
		fmt.Printf("Student %s already enrolled, replacing face template\n", studentID)
	}
	if name == "" {
		return errors.New("--name is required for first enrollment")
	}

	embedder := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.Model, time.Duration(cfg.Embedding.TimeoutSeconds)*time.Second)

	fmt.Printf("Embedding %d images (%d workers)...\n", len(paths), concurrency)
	embeddings, noFace, errorCount := embedEnrollImages(ctx, embedder, paths, concurrency, cfg.Recognition.Dimension)

	if len(embeddings) == 0 {
		if errorCount > 0 {
			return fmt.Errorf("no usable embeddings: %d images failed", errorCount)
		}
		return errors.New("no face detected in any image")
	}
	if noFace > 0 {
		fmt.Printf("No face detected in %d of %d images\n", noFace, len(paths))
	}

	aggregator := recognition.NewAggregator(cfg.Recognition.OutlierThreshold)

	if max := cfg.Recognition.MaxEnrollImages; max > 0 && len(embeddings) > max {
		fmt.Printf("Thinning %d captures to the %d most consistent\n", len(embeddings), max)
		embeddings, err = aggregator.SelectBest(embeddings, max)
		if err != nil {
			return fmt.Errorf("selecting best captures: %w", err)
		}
	}

	if len(embeddings) >= constants.MinImagesForOutlierFiltering {
		before := len(embeddings)
		embeddings, err = aggregator.FilterOutliers(embeddings, 0)
		if err != nil {
			return fmt.Errorf("filtering outliers: %w", err)
		}
		if dropped := before - len(embeddings); dropped > 0 {
			fmt.Printf("Dropped %d outlier capture(s)\n", dropped)
		}
	}

	var template []float32
	if method == recognition.MethodMean {
		template, err = aggregator.Average(embeddings)
	} else {
		template, err = aggregator.Robust(embeddings, method)
	}
	if err != nil {
		return fmt.Errorf("aggregating embeddings: %w", err)
	}

	warnAboutDuplicate(ctx, writer, template, studentID)

	student := &database.Student{
		StudentID:  studentID,
		Name:       name,
		Class:      class,
		Embedding:  template,
		ImageCount: len(embeddings),
		Method:     method,
		Model:      embedder.Model(),
		Dim:        len(template),
	}
	if err := writer.Save(ctx, student); err != nil {
		return fmt.Errorf("failed to save student: %w", err)
	}

	fmt.Printf("\nEnrolled %s (%s)\n", name, studentID)
	if class != "" {
		fmt.Printf("  Class:    %s\n", class)
	}
	fmt.Printf("  Images:   %d received, %d used\n", len(paths), len(embeddings))
	fmt.Printf("  Method:   %s\n", method)
	fmt.Printf("  Template: %s, dim %d\n", embedder.Model(), len(template))
	return nil
}
