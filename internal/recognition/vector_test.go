package recognition

import (
	"errors"
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    []float32
		expected []float32
	}{
		{"axis vector", []float32{3, 0, 0}, []float32{1, 0, 0}},
		{"diagonal", []float32{1, 1}, []float32{0.7071068, 0.7071068}},
		{"negative", []float32{0, -2}, []float32{0, -1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := Normalize(tc.input)
			if err != nil {
				t.Fatalf("Normalize(%v) failed: %v", tc.input, err)
			}
			assertVectorNear(t, result, tc.expected, 1e-6)
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	unit, err := Normalize([]float32{0.3, -1.2, 0.5, 2.0})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	again, err := Normalize(unit)
	if err != nil {
		t.Fatalf("second Normalize failed: %v", err)
	}

	assertVectorNear(t, again, unit, 1e-6)
}

func TestNormalizeZeroVector(t *testing.T) {
	_, err := Normalize([]float32{0, 0, 0})
	if !errors.Is(err, ErrZeroVector) {
		t.Errorf("Normalize(zero) error = %v; want ErrZeroVector", err)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
		delta    float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0, 1e-9},
		{"opposite", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1.0, 1e-9},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0.0, 1e-9},
		{"45 degrees", []float32{1, 1, 0}, []float32{1, 0, 0}, 0.7071, 1e-4},
		{"unnormalized inputs", []float32{5, 0}, []float32{0.2, 0}, 1.0, 1e-9},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := Cosine(tc.a, tc.b)
			if err != nil {
				t.Fatalf("Cosine(%v, %v) failed: %v", tc.a, tc.b, err)
			}
			if math.Abs(result-tc.expected) > tc.delta {
				t.Errorf("Cosine(%v, %v) = %f; want %f", tc.a, tc.b, result, tc.expected)
			}
		})
	}
}

func TestCosineSymmetry(t *testing.T) {
	a := []float32{0.3, -0.5, 1.2, 0.01}
	b := []float32{-0.7, 0.2, 0.9, 1.5}

	ab, err := Cosine(a, b)
	if err != nil {
		t.Fatalf("Cosine(a, b) failed: %v", err)
	}
	ba, err := Cosine(b, a)
	if err != nil {
		t.Fatalf("Cosine(b, a) failed: %v", err)
	}

	if ab != ba {
		t.Errorf("Cosine not symmetric: %v vs %v", ab, ba)
	}
}

func TestCosineSelfSimilarity(t *testing.T) {
	vectors := [][]float32{
		{1, 2, 3},
		{-0.4, 0.001, 17},
		{0.5},
	}

	for _, v := range vectors {
		sim, err := Cosine(v, v)
		if err != nil {
			t.Fatalf("Cosine(%v, %v) failed: %v", v, v, err)
		}
		if math.Abs(sim-1.0) > 1e-9 {
			t.Errorf("self-similarity of %v = %f; want 1.0", v, sim)
		}
	}
}

func TestCosineZeroVector(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
	}{
		{"zero first", []float32{0, 0}, []float32{1, 0}},
		{"zero second", []float32{1, 0}, []float32{0, 0}},
		{"both zero", []float32{0, 0}, []float32{0, 0}},
		{"both empty", []float32{}, []float32{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := Cosine(tc.a, tc.b)
			if !errors.Is(err, ErrZeroVector) {
				t.Errorf("Cosine(%v, %v) = %f, err %v; want ErrZeroVector", tc.a, tc.b, result, err)
			}
		})
	}
}

func TestCosineDimensionMismatch(t *testing.T) {
	_, err := Cosine([]float32{1, 0}, []float32{1, 0, 0})

	var dimErr *DimensionError
	if !errors.As(err, &dimErr) {
		t.Fatalf("Cosine error = %v; want DimensionError", err)
	}
	if dimErr.Want != 2 || dimErr.Got != 3 {
		t.Errorf("DimensionError = want %d got %d; expected want 2 got 3", dimErr.Want, dimErr.Got)
	}
}

// Helper functions

func assertVectorNear(t *testing.T, got, want []float32, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("vector length = %d; want %d", len(got), len(want))
	}
	for i := range got {
		if math.Abs(float64(got[i])-float64(want[i])) > tol {
			t.Errorf("vector[%d] = %f; want %f (tolerance %g)", i, got[i], want[i], tol)
			return
		}
	}
}
