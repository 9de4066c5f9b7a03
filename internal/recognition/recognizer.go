// Package recognition turns camera frames into attendance marks: detect faces,
// match them against the gallery, mark recognised people and announce new marks.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/events"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/imaging"
)

// ErrNoDetector is returned by ProcessFrame when the recognizer has no face detector.
var ErrNoDetector = errors.New("no face detector configured")

// Detection is one face found in a frame.
type Detection struct {
	BBox      []float64 `json:"bbox"`               // [x1, y1, x2, y2] in frame pixels
	RelBBox   []float64 `json:"bbox_rel,omitempty"` // BBox as fractions of the frame size
	Embedding []float64 `json:"embedding"`
}

// Detector finds faces in an encoded image.
type Detector interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]embedding.Face, error)
}

// Marker records attendance. *attendance.Ledger implements it.
type Marker interface {
	Mark(ctx context.Context, identityID, displayName string, now time.Time) (attendance.MarkOutcome, error)
}

// Outcome is the result of handling one detection.
// Mark is zero when no mark was attempted (no match or an error before marking).
type Outcome struct {
	Detection Detection
	Match     facematch.Match
	Mark      attendance.MarkResult
	Record    attendance.Record
	Err       error
}

// Options holds the optional collaborators of a Recognizer.
type Options struct {
	Detector   Detector
	Notifier   events.Notifier
	FrameScale float64          // downsampling before detection, 0 means 1
	Clock      func() time.Time // defaults to time.Now
}

// Recognizer owns everything a frame needs: gallery, matcher, ledger and
// notifier. It is safe for concurrent use when the ledger is.
type Recognizer struct {
	gallery    *gallery.Gallery
	matcher    *facematch.Matcher
	ledger     Marker
	detector   Detector
	notifier   events.Notifier
	frameScale float64
	now        func() time.Time
}

// New creates a recognizer.
func New(g *gallery.Gallery, m *facematch.Matcher, ledger Marker, opts Options) *Recognizer {
	r := &Recognizer{
		gallery:    g,
		matcher:    m,
		ledger:     ledger,
		detector:   opts.Detector,
		notifier:   opts.Notifier,
		frameScale: opts.FrameScale,
		now:        opts.Clock,
	}
	if r.frameScale <= 0 || r.frameScale > 1 {
		r.frameScale = 1
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Gallery returns the gallery the recognizer matches against.
func (r *Recognizer) Gallery() *gallery.Gallery {
	return r.gallery
}

// ProcessDetections handles detections in order. A failure on one detection is
// logged and reported in its Outcome; the remaining detections still run.
// Detections of the same person within a frame are not merged.
func (r *Recognizer) ProcessDetections(ctx context.Context, dets []Detection) []Outcome {
	outcomes := make([]Outcome, len(dets))
	for i, det := range dets {
		outcomes[i] = r.processDetection(ctx, det)
	}
	return outcomes
}

func (r *Recognizer) processDetection(ctx context.Context, det Detection) Outcome {
	out := Outcome{Detection: det}

	match, err := r.matcher.Match(r.gallery, det.Embedding)
	if err != nil {
		out.Err = fmt.Errorf("matching detection: %w", err)
		log.Printf("Warning: %v", out.Err)
		return out
	}
	out.Match = match
	if !match.Found {
		return out
	}

	mark, err := r.ledger.Mark(ctx, match.Identity.ID, match.Identity.DisplayName, r.now())
	if err != nil {
		out.Err = fmt.Errorf("marking %s: %w", match.Identity.ID, err)
		log.Printf("Warning: %v", out.Err)
		return out
	}
	out.Mark = mark.Result
	out.Record = mark.Record

	if mark.Result != attendance.Created || r.notifier == nil {
		return out
	}

	event := events.NewMarkEvent(mark.Record.IdentityID, mark.Record.DisplayName,
		mark.Record.Date, mark.Record.Time, match.Distance, det.BBox, r.now())
	if err := r.notifier.Notify(ctx, event); err != nil {
		out.Err = fmt.Errorf("notifying mark of %s: %w", match.Identity.ID, err)
		log.Printf("Warning: %v", out.Err)
	}
	return out
}

// ProcessFrame downsamples an encoded frame, detects faces, maps their boxes
// back to full-frame pixels (and to fractions of the frame) and processes them.
func (r *Recognizer) ProcessFrame(ctx context.Context, frame []byte) ([]Outcome, error) {
	if r.detector == nil {
		return nil, ErrNoDetector
	}

	width, height, err := imaging.Dimensions(frame)
	if err != nil {
		return nil, fmt.Errorf("reading frame size: %w", err)
	}

	scaled, err := imaging.Scale(frame, r.frameScale)
	if err != nil {
		return nil, fmt.Errorf("downsampling frame: %w", err)
	}

	faces, err := r.detector.DetectFaces(ctx, scaled)
	if err != nil {
		return nil, fmt.Errorf("detecting faces: %w", err)
	}

	dets := make([]Detection, len(faces))
	for i, f := range faces {
		bbox := facematch.ScaleBBox(f.BBox, 1/r.frameScale)
		dets[i] = Detection{
			BBox:      bbox,
			RelBBox:   facematch.RelativeBBox(bbox, width, height),
			Embedding: f.Embedding,
		}
	}
	return r.ProcessDetections(ctx, dets), nil
}
