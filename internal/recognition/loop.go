package recognition

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
)

// FrameSource yields encoded frames. Next returns io.EOF when the source is exhausted.
type FrameSource interface {
	Next(ctx context.Context) ([]byte, error)
}

// frameErrorPause throttles back-to-back runs (interval 0) while frames keep failing.
var frameErrorPause = time.Second

// Stats summarises a Run.
type Stats struct {
	Frames      int // frames processed
	FrameErrors int // frames that could not be read or processed
	Faces       int // detections across all frames
	Recognized  int // detections matched to an identity
	Marked      int // new attendance records
}

// Run pulls frames from src one after another until ctx is cancelled or the
// source is exhausted. Frame-level failures are logged and skipped. interval
// is the minimum time between the start of two frames; 0 runs back to back,
// pausing briefly after a failed frame.
func (r *Recognizer) Run(ctx context.Context, src FrameSource, interval time.Duration) (Stats, error) {
	var stats Stats
	var ticker *time.Ticker
	if interval > 0 {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}

	for {
		if ctx.Err() != nil {
			return stats, nil
		}

		failed := false
		frame, err := src.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			return stats, nil
		case ctx.Err() != nil:
			return stats, nil
		case err != nil:
			stats.FrameErrors++
			failed = true
			log.Printf("Warning: reading frame: %v", err)
		default:
			failed = !r.runFrame(ctx, frame, &stats)
		}

		var wait <-chan time.Time
		switch {
		case ticker != nil:
			wait = ticker.C
		case failed:
			wait = time.After(frameErrorPause)
		default:
			continue
		}
		select {
		case <-ctx.Done():
			return stats, nil
		case <-wait:
		}
	}
}

// runFrame reports whether the frame was processed.
func (r *Recognizer) runFrame(ctx context.Context, frame []byte, stats *Stats) bool {
	outcomes, err := r.ProcessFrame(ctx, frame)
	if err != nil {
		stats.FrameErrors++
		log.Printf("Warning: processing frame: %v", err)
		return false
	}

	stats.Frames++
	stats.Faces += len(outcomes)
	for _, o := range outcomes {
		if o.Match.Found {
			stats.Recognized++
		}
		if o.Mark == attendance.Created {
			stats.Marked++
			log.Printf("Marked %s (%s) at %s, distance %.3f",
				o.Record.DisplayName, o.Record.IdentityID, o.Record.Time, o.Match.Distance)
		}
	}
	return true
}
