// Package recognition implements the face recognition core: aggregating
// per-image embeddings into one identity template at enrollment time, and
// matching a query embedding against a gallery of enrolled templates. All
// operations are pure computation without I/O and are safe to call from
// concurrent request handlers.
package recognition

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyInput is returned by aggregation operations called with no embeddings.
	ErrEmptyInput = errors.New("no embeddings provided")

	// ErrZeroVector is returned when an embedding has zero norm and therefore no direction.
	ErrZeroVector = errors.New("embedding has zero norm")

	// ErrEmptyGallery is returned when matching is requested against zero candidates.
	ErrEmptyGallery = errors.New("no candidates in gallery")
)

// DimensionError reports two embeddings of different lengths.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: want %d, got %d", e.Want, e.Got)
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-norm copy of v. A zero-norm input is reported
// as ErrZeroVector instead of producing a NaN-filled vector.
func Normalize(v []float32) ([]float32, error) {
	n := Norm(v)
	if n == 0 {
		return nil, ErrZeroVector
	}
	out := make([]float32, len(v))
	for i := range v {
		out[i] = float32(float64(v[i]) / n)
	}
	return out, nil
}

// Cosine computes the cosine similarity between a and b. Both inputs are
// re-normalized internally, so callers do not need to pass unit vectors.
// Zero-norm inputs and length mismatches are reported as errors, never as NaN.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionError{Want: len(a), Got: len(b)}
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, ErrZeroVector
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors.
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return sim, nil
}

// euclidean returns the L2 distance between two equal-length vectors.
func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// centroid returns the element-wise mean of the embeddings.
func centroid(embeddings [][]float32) []float32 {
	dim := len(embeddings[0])
	sums := make([]float64, dim)
	for _, e := range embeddings {
		for i, v := range e {
			sums[i] += float64(v)
		}
	}

	c := make([]float32, dim)
	for i := range sums {
		c[i] = float32(sums[i] / float64(len(embeddings)))
	}
	return c
}

// sameDimensions checks that every embedding matches the first one's length.
func sameDimensions(embeddings [][]float32) error {
	want := len(embeddings[0])
	for _, e := range embeddings[1:] {
		if len(e) != want {
			return &DimensionError{Want: want, Got: len(e)}
		}
	}
	return nil
}
