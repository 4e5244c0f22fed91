package vector

import (
	"errors"
	"math"
	"testing"
)

func TestCosineSelfSimilarity(t *testing.T) {
	t.Parallel()
	vecs := [][]float32{
		{1, 0, 0},
		{0.3, -0.7, 2.1},
		{5, 5, 5, 5},
	}
	for _, v := range vecs {
		got, err := Cosine(v, v)
		if err != nil {
			t.Fatalf("Cosine(v, v) error = %v", err)
		}
		if math.Abs(got-1.0) > 1e-9 {
			t.Fatalf("Cosine(v, v) = %v, want 1.0", got)
		}
	}
}

func TestCosineIsSymmetric(t *testing.T) {
	t.Parallel()
	a := []float32{0.2, -1.3, 0.8}
	b := []float32{1.1, 0.4, -0.6}

	ab, err := Cosine(a, b)
	if err != nil {
		t.Fatalf("Cosine(a, b) error = %v", err)
	}
	ba, err := Cosine(b, a)
	if err != nil {
		t.Fatalf("Cosine(b, a) error = %v", err)
	}
	if ab != ba {
		t.Fatalf("Cosine not symmetric: %v vs %v", ab, ba)
	}
}

func TestCosineDimensionMismatch(t *testing.T) {
	t.Parallel()
	_, err := Cosine([]float32{1, 2}, []float32{1, 2, 3})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("error = %v, want ErrDimensionMismatch", err)
	}
}

func TestCosineZeroVector(t *testing.T) {
	t.Parallel()
	got, err := Cosine([]float32{0, 0, 0}, []float32{1, 2, 3})
	if err != nil {
		t.Fatalf("Cosine error = %v", err)
	}
	if got != 0 {
		t.Fatalf("Cosine with zero vector = %v, want 0", got)
	}
}

func TestEuclidean(t *testing.T) {
	t.Parallel()
	got, err := Euclidean([]float32{0, 0}, []float32{3, 4})
	if err != nil {
		t.Fatalf("Euclidean error = %v", err)
	}
	if math.Abs(got-5.0) > 1e-9 {
		t.Fatalf("Euclidean = %v, want 5", got)
	}

	if _, err := Euclidean([]float32{1}, []float32{1, 2}); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("error = %v, want ErrDimensionMismatch", err)
	}
}
