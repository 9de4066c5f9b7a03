package facematch

import (
	"errors"
	"fmt"
	"math"

	"github.com/kozaktomas/face-attendance/internal/gallery"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrInvalidThreshold is returned by NewMatcher for non-positive or non-finite thresholds.
	ErrInvalidThreshold = errors.New("distance threshold must be a positive finite number")
	// ErrDimensionMismatch is returned when the query and gallery embeddings differ in length.
	ErrDimensionMismatch = errors.New("query embedding dimension does not match gallery")
)

// Matcher finds the gallery identity nearest to a query embedding.
// It holds no mutable state and is safe for concurrent use.
type Matcher struct {
	threshold float64
}

// NewMatcher creates a matcher accepting distances strictly below threshold.
func NewMatcher(threshold float64) (*Matcher, error) {
	if threshold <= 0 || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}
	return &Matcher{threshold: threshold}, nil
}

// Threshold returns the configured distance threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Match compares query against every gallery entry. The nearest entry wins and
// ties go to the entry that comes first in gallery order. The result is Found
// only when that distance is strictly below the threshold.
func (m *Matcher) Match(g *gallery.Gallery, query []float64) (Match, error) {
	if g.Len() == 0 {
		return Match{}, gallery.ErrEmptyGallery
	}
	if len(query) != g.Dim() {
		return Match{}, fmt.Errorf("%w: got %d, gallery has %d", ErrDimensionMismatch, len(query), g.Dim())
	}

	best := 0
	bestDist := math.Inf(1)
	for i := range g.Len() {
		d := EuclideanDistance(g.At(i).Embedding, query)
		if d < bestDist {
			best, bestDist = i, d
		}
	}

	return Match{
		Found:    bestDist < m.threshold,
		Identity: g.At(best).Identity,
		Distance: bestDist,
		Index:    best,
	}, nil
}

// EuclideanDistance returns the L2 distance between two equal-length vectors.
func EuclideanDistance(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}
