package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// GalleryHandler exposes the loaded gallery.
type GalleryHandler struct {
	gallery *gallery.Gallery
	matcher *facematch.Matcher
}

// NewGalleryHandler creates a new gallery handler
func NewGalleryHandler(g *gallery.Gallery, m *facematch.Matcher) *GalleryHandler {
	return &GalleryHandler{gallery: g, matcher: m}
}

// GalleryResponse describes the gallery without its embeddings.
type GalleryResponse struct {
	Count      int                `json:"count"`
	Dimensions int                `json:"dimensions"`
	Threshold  float64            `json:"threshold"`
	Identities []gallery.Identity `json:"identities"`
}

// List returns the identities in gallery order.
func (h *GalleryHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, GalleryResponse{
		Count:      h.gallery.Len(),
		Dimensions: h.gallery.Dim(),
		Threshold:  h.matcher.Threshold(),
		Identities: h.gallery.Identities(),
	})
}

// Audit returns identity pairs whose reference embeddings are closer than the
// match threshold.
func (h *GalleryHandler) Audit(w http.ResponseWriter, r *http.Request) {
	pairs := gallery.Audit(h.gallery, h.matcher.Threshold())
	if pairs == nil {
		pairs = []gallery.NearDuplicate{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"threshold": h.matcher.Threshold(),
		"pairs":     pairs,
	})
}
