package facenet

import (
	"errors"
	"fmt"
	"math"
)

// DefaultThreshold is the euclidean distance under which two faces are the same person.
const DefaultThreshold = 0.8

var ErrDimensionMismatch = errors.New("embedding dimensions differ")

// Embedding is the identity vector produced by the model.
type Embedding []float64

// Distance returns the euclidean distance between a and b, which must have equal length.
func Distance(a, b Embedding) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Matcher decides whether embeddings belong to the same identity.
type Matcher struct {
	Threshold float64
}

func NewMatcher(threshold float64) Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Matcher{Threshold: threshold}
}

// Similarities compares every embedding of the batch with batch[0]. The first entry is
// always true, and the rest are true when their distance to the reference is strictly
// below the threshold.
func (m Matcher) Similarities(batch []Embedding) ([]bool, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	reference := batch[0]
	result := make([]bool, len(batch))
	result[0] = true
	for i := 1; i < len(batch); i++ {
		if len(batch[i]) != len(reference) {
			return nil, fmt.Errorf("%w: index %d has %d values, reference has %d", ErrDimensionMismatch, i, len(batch[i]), len(reference))
		}
		result[i] = Distance(reference, batch[i]) < m.Threshold
	}
	return result, nil
}
