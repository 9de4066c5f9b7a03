// Package facematch identifies faces by comparing embeddings against a gallery.
package facematch

import (
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// DefaultThreshold is the largest Euclidean distance still accepted as the same
// person. Lower values are stricter.
const DefaultThreshold = 0.6

// Match is the result of comparing one query embedding against a gallery.
// Found is false for NoMatch; Identity, Distance and Index still describe the
// nearest entry so callers can log how close it came.
type Match struct {
	Found    bool             `json:"found"`
	Identity gallery.Identity `json:"identity"`
	Distance float64          `json:"distance"`
	Index    int              `json:"index"`
}
