package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/kozaktomas/facegate/internal/constants"
	"github.com/kozaktomas/facegate/internal/embedding"
	"github.com/kozaktomas/facegate/internal/imaging"
	"github.com/kozaktomas/facegate/internal/recognition"
)

// enrollmentResult is the outcome of turning a set of enrollment images
// into one face template.
type enrollmentResult struct {
	Template        []float32
	Method          string
	ImagesReceived  int
	ImagesUsed      int
	ImagesDiscarded int
}

// enrollmentError carries an HTTP status alongside the message so the
// pipeline can distinguish caller mistakes from upstream failures.
type enrollmentError struct {
	status  int
	message string
}

func (e *enrollmentError) Error() string {
	return e.message
}

// resolveMethod validates the aggregation method, falling back to the
// configured default when empty.
func (h *StudentsHandler) resolveMethod(method string) (string, error) {
	if method == "" {
		method = h.config.Recognition.AggregationMethod
	}
	switch method {
	case recognition.MethodMean, recognition.MethodMedian, recognition.MethodTrimmedMean:
		return method, nil
	default:
		return "", &enrollmentError{
			status:  http.StatusBadRequest,
			message: fmt.Sprintf("unknown aggregation method %q", method),
		}
	}
}

// readImageFile loads one multipart image and verifies it decodes.
func readImageFile(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fileHeader.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, constants.MaxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileHeader.Filename, err)
	}

	if _, _, err := imaging.Decode(data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", fileHeader.Filename, err)
	}
	return data, nil
}

// embedImages computes one embedding per image. Images where the detector
// finds no face are skipped and counted, images that fail to decode or
// upload abort the whole enrollment.
func (h *StudentsHandler) embedImages(ctx context.Context, files []*multipart.FileHeader) ([][]float32, int, error) {
	embeddings := make([][]float32, 0, len(files))
	noFace := 0

	for _, fileHeader := range files {
		data, err := readImageFile(fileHeader)
		if err != nil {
			return nil, 0, &enrollmentError{
				status:  http.StatusBadRequest,
				message: fmt.Sprintf("invalid image %s", fileHeader.Filename),
			}
		}

		emb, err := h.embedder.EmbedFace(ctx, data)
		if errors.Is(err, embedding.ErrNoFace) {
			noFace++
			continue
		}
		if err != nil {
			return nil, 0, &enrollmentError{
				status:  http.StatusBadGateway,
				message: "embedding service unavailable",
			}
		}

		if want := h.config.Recognition.Dimension; want > 0 && len(emb) != want {
			return nil, 0, &enrollmentError{
				status:  http.StatusBadGateway,
				message: fmt.Sprintf("embedding service returned dimension %d, expected %d", len(emb), want),
			}
		}
		embeddings = append(embeddings, emb)
	}

	return embeddings, noFace, nil
}

// buildTemplate converts raw enrollment images into one aggregated face
// template: embed each image, thin oversized sets to the most consistent
// captures, drop outlier captures, then aggregate with the chosen method.
func (h *StudentsHandler) buildTemplate(ctx context.Context, files []*multipart.FileHeader, method string) (*enrollmentResult, error) {
	method, err := h.resolveMethod(method)
	if err != nil {
		return nil, err
	}

	embeddings, noFace, err := h.embedImages(ctx, files)
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, &enrollmentError{
			status:  http.StatusUnprocessableEntity,
			message: "no face detected in any image",
		}
	}
	if noFace > 0 {
		log.Printf("Enrollment: no face detected in %d of %d images", noFace, len(files))
	}

	if max := h.config.Recognition.MaxEnrollImages; max > 0 && len(embeddings) > max {
		embeddings, err = h.aggregator.SelectBest(embeddings, max)
		if err != nil {
			return nil, fmt.Errorf("selecting best captures: %w", err)
		}
	}

	if len(embeddings) >= constants.MinImagesForOutlierFiltering {
		embeddings, err = h.aggregator.FilterOutliers(embeddings, 0)
		if err != nil {
			return nil, fmt.Errorf("filtering outliers: %w", err)
		}
	}

	template, err := aggregate(h.aggregator, embeddings, method)
	if err != nil {
		return nil, fmt.Errorf("aggregating embeddings: %w", err)
	}

	return &enrollmentResult{
		Template:        template,
		Method:          method,
		ImagesReceived:  len(files),
		ImagesUsed:      len(embeddings),
		ImagesDiscarded: len(files) - len(embeddings),
	}, nil
}

// aggregate applies the chosen aggregation strategy.
func aggregate(a *recognition.Aggregator, embeddings [][]float32, method string) ([]float32, error) {
	if method == recognition.MethodMean {
		return a.Average(embeddings)
	}
	return a.Robust(embeddings, method)
}

// duplicateWarning describes an already-enrolled student whose template is
// suspiciously close to a new one.
type duplicateWarning struct {
	StudentID  string  `json:"student_id"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

// checkDuplicate looks for an enrolled student (other than selfID) whose
// template is close enough to the new one to suggest a double enrollment.
// Lookup failures only disable the warning, they never block enrollment.
func (h *StudentsHandler) checkDuplicate(ctx context.Context, template []float32, selfID string) *duplicateWarning {
	students, distances, err := h.students.FindSimilar(ctx, template, 2)
	if err != nil {
		log.Printf("Duplicate check skipped: %v", err)
		return nil
	}

	for i, student := range students {
		if student.StudentID == selfID {
			continue
		}
		similarity := 1 - distances[i]
		if similarity >= constants.DefaultDuplicateThreshold {
			return &duplicateWarning{
				StudentID:  student.StudentID,
				Name:       student.Name,
				Similarity: similarity,
			}
		}
	}
	return nil
}

// respondEnrollError maps pipeline failures to HTTP responses.
func respondEnrollError(w http.ResponseWriter, err error) {
	var enrollErr *enrollmentError
	if errors.As(err, &enrollErr) {
		respondError(w, enrollErr.status, enrollErr.message)
		return
	}
	if errors.Is(err, recognition.ErrZeroVector) || errors.Is(err, recognition.ErrEmptyInput) {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	log.Printf("Enrollment failed: %v", err)
	respondError(w, http.StatusInternalServerError, "enrollment failed")
}

// enrollForm holds the parsed multipart fields shared by enrollment and
// re-enrollment requests.
type enrollForm struct {
	files  []*multipart.FileHeader
	method string
}

// parseEnrollForm parses the multipart form and pulls out the image files.
func parseEnrollForm(r *http.Request) (*enrollForm, error) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		return nil, &enrollmentError{status: http.StatusBadRequest, message: "failed to parse multipart form"}
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		return nil, &enrollmentError{status: http.StatusBadRequest, message: "at least one image is required"}
	}

	return &enrollForm{
		files:  files,
		method: r.FormValue("method"),
	}, nil
}
