package gallery

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyGallery is returned when no identity could be loaded.
	ErrEmptyGallery = errors.New("gallery is empty")

	ErrMalformedFilename = errors.New("malformed gallery file name")
	ErrUnreadableImage   = errors.New("unreadable gallery image")
	ErrNoFace            = errors.New("no face detected in gallery image")
	ErrMultipleFaces     = errors.New("multiple faces detected in gallery image")
	ErrDuplicateIdentity = errors.New("duplicate identity id")
	ErrMissingEmbedding  = errors.New("identity has no embedding")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// LoadError reports the gallery file that stopped a load.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("gallery load failed for %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
