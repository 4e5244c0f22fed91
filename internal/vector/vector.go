package vector

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch reports vectors whose lengths disagree. It is fatal to
// the call that raised it; nothing is silently truncated.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Cosine computes cosine similarity between two vectors, clamped to [-1, 1].
// A zero-norm operand yields similarity 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("cosine: %w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}
	return score, nil
}

// Euclidean computes the Euclidean distance between two vectors.
func Euclidean(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("euclidean: %w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
