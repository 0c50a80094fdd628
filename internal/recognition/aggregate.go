package recognition

import (
	"fmt"
	"math"
	"sort"
)

// Aggregation strategies accepted by Robust.
const (
	MethodMean        = "mean"
	MethodMedian      = "median"
	MethodTrimmedMean = "trimmed_mean"
)

// trimFraction is the share of samples dropped from each end per dimension
// by the trimmed mean.
const trimFraction = 0.10

// Aggregator builds one identity template out of several per-image
// embeddings of the same person. It carries only the configured default
// outlier threshold and is safe for concurrent use.
type Aggregator struct {
	outlierThreshold float64
}

// NewAggregator creates an Aggregator with the given default threshold for
// outlier filtering.
func NewAggregator(outlierThreshold float64) *Aggregator {
	return &Aggregator{outlierThreshold: outlierThreshold}
}

// FilterOutliers drops embeddings whose direction diverges from the group
// centroid: only members with cosine similarity >= threshold to the
// normalized centroid of the raw inputs are kept. A threshold <= 0 selects
// the aggregator's configured default. Collections with two or fewer
// members are returned unchanged, and when filtering would drop every
// member the original collection is returned instead — the result is never
// empty for a non-empty input.
func (a *Aggregator) FilterOutliers(embeddings [][]float32, threshold float64) ([][]float32, error) {
	if len(embeddings) == 0 {
		return nil, ErrEmptyInput
	}
	if err := sameDimensions(embeddings); err != nil {
		return nil, err
	}
	if len(embeddings) <= 2 {
		return embeddings, nil
	}

	if threshold <= 0 {
		threshold = a.outlierThreshold
	}

	center, err := Normalize(centroid(embeddings))
	if err != nil {
		// The captures cancel out to a zero mean, leaving no direction
		// to measure against. Filtering is skipped.
		return embeddings, nil
	}

	filtered := make([][]float32, 0, len(embeddings))
	for _, e := range embeddings {
		sim, err := Cosine(e, center)
		if err != nil {
			// A zero-norm capture has no defined similarity and can
			// never pass the cutoff.
			continue
		}
		if sim >= threshold {
			filtered = append(filtered, e)
		}
	}

	if len(filtered) == 0 {
		return embeddings, nil
	}
	return filtered, nil
}

// Average returns the element-wise mean of the embeddings, normalized to
// unit length. A single-element input returns that element's normalized form.
func (a *Aggregator) Average(embeddings [][]float32) ([]float32, error) {
	if len(embeddings) == 0 {
		return nil, ErrEmptyInput
	}
	if err := sameDimensions(embeddings); err != nil {
		return nil, err
	}
	return Normalize(centroid(embeddings))
}

// Robust aggregates embeddings with an outlier-resistant strategy.
// MethodMedian takes the per-dimension median, which shrugs off a minority
// of severe outliers. MethodTrimmedMean sorts each dimension, drops the
// lowest and highest tenth of samples (rounded up, at least one from each
// end), and averages the rest. Any unrecognized method falls back to the
// plain mean. The result is always normalized.
func (a *Aggregator) Robust(embeddings [][]float32, method string) ([]float32, error) {
	if len(embeddings) == 0 {
		return nil, ErrEmptyInput
	}
	if err := sameDimensions(embeddings); err != nil {
		return nil, err
	}

	switch method {
	case MethodMedian:
		return Normalize(dimensionMedian(embeddings))
	case MethodTrimmedMean:
		trim := int(math.Ceil(float64(len(embeddings)) * trimFraction))
		if 2*trim >= len(embeddings) {
			// Trimming would discard every sample.
			return Normalize(centroid(embeddings))
		}
		return Normalize(trimmedMean(embeddings, trim))
	default:
		return Normalize(centroid(embeddings))
	}
}

// SelectBest returns the n embeddings closest to the centroid of the full
// collection, measured by Euclidean distance after normalization. It thins
// an oversized enrollment set down to its most consistent captures.
// Collections with n or fewer members (or n <= 0) are returned unchanged.
func (a *Aggregator) SelectBest(embeddings [][]float32, n int) ([][]float32, error) {
	if len(embeddings) == 0 {
		return nil, ErrEmptyInput
	}
	if err := sameDimensions(embeddings); err != nil {
		return nil, err
	}
	if n <= 0 || len(embeddings) <= n {
		return embeddings, nil
	}

	center, err := Normalize(centroid(embeddings))
	if err != nil {
		return nil, fmt.Errorf("collection centroid: %w", err)
	}

	type ranked struct {
		embedding []float32
		dist      float64
	}
	byDist := make([]ranked, 0, len(embeddings))
	for _, e := range embeddings {
		unit, err := Normalize(e)
		if err != nil {
			return nil, err
		}
		byDist = append(byDist, ranked{embedding: e, dist: euclidean(unit, center)})
	}

	// Stable sort keeps input order among equal distances.
	sort.SliceStable(byDist, func(i, j int) bool {
		return byDist[i].dist < byDist[j].dist
	})

	best := make([][]float32, n)
	for i := range n {
		best[i] = byDist[i].embedding
	}
	return best, nil
}

// dimensionMedian computes the per-dimension median across embeddings.
func dimensionMedian(embeddings [][]float32) []float32 {
	dim := len(embeddings[0])
	out := make([]float32, dim)
	column := make([]float64, len(embeddings))

	for i := range dim {
		for j, e := range embeddings {
			column[j] = float64(e[i])
		}
		sort.Float64s(column)
		n := len(column)
		if n%2 == 0 {
			out[i] = float32((column[n/2-1] + column[n/2]) / 2)
		} else {
			out[i] = float32(column[n/2])
		}
	}
	return out
}

// trimmedMean averages each dimension after dropping the trim lowest and
// trim highest samples.
func trimmedMean(embeddings [][]float32, trim int) []float32 {
	dim := len(embeddings[0])
	out := make([]float32, dim)
	column := make([]float64, len(embeddings))

	for i := range dim {
		for j, e := range embeddings {
			column[j] = float64(e[i])
		}
		sort.Float64s(column)

		kept := column[trim : len(column)-trim]
		var sum float64
		for _, v := range kept {
			sum += v
		}
		out[i] = float32(sum / float64(len(kept)))
	}
	return out
}
