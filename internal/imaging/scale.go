// Package imaging downsamples gallery images and camera frames before they
// are sent to the face embedding service.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// ErrInvalidScale is returned for scale factors outside (0, 1].
var ErrInvalidScale = errors.New("scale factor must be in (0, 1]")

const jpegQuality = 90

// Scale resizes an encoded image by factor and returns it re-encoded as JPEG.
// A factor of 1 only re-encodes.
func Scale(data []byte, factor float64) ([]byte, error) {
	if factor <= 0 || factor > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScale, factor)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if factor < 1 {
		width := max(1, int(float64(bounds.Dx())*factor))
		height := max(1, int(float64(bounds.Dy())*factor))

		resized := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.ApproxBiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		img = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Dimensions returns the width and height of an encoded image without decoding pixels.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
