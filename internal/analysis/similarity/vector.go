// Package similarity implements the plagiarism-detection stage: report
// embeddings, the nearest-neighbour index with single-writer discipline,
// sliding-window span localisation, and the lexical fallback used when the
// embedding service is unavailable.
package similarity

import (
	"fmt"
	"math"

	"github.com/turtacn/EquityLens/pkg/errors"
)

// Vector is a dense embedding.  float32 matches the wire format of the
// embedding service and the Milvus backend.
type Vector []float32

// Dot returns the inner product of two vectors of equal length.
func Dot(a, b Vector) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm returns the L2 norm.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize scales v to unit length in place and returns it.  A zero vector
// is returned unchanged.
func (v Vector) Normalize() Vector {
	norm := v.Norm()
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// Cosine returns the cosine similarity of two vectors.  Identical non-zero
// vectors score exactly 1.0 up to floating-point rounding; a zero vector
// scores 0 against everything.
func Cosine(a, b Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.New(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("cosine: dimension mismatch %d vs %d", len(a), len(b)))
	}
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 0, nil
	}
	sim := Dot(a, b) / (na * nb)
	// Clamp rounding spill so callers can rely on [−1, 1].
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim, nil
}
