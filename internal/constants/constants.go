// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for mark event listener channels
	EventChannelBuffer = 100

	// SSEKeepAliveInterval is how often an idle event stream receives a comment line
	SSEKeepAliveInterval = 25 * time.Second
)

// Upload constants
const (
	// MaxUploadSize is the maximum frame upload size in bytes (20MB)
	MaxUploadSize = 20 << 20

	// MaxDetectionsPerRequest caps the detections accepted by a single push
	MaxDetectionsPerRequest = 256
)

// Camera constants
const (
	// SnapshotTimeout bounds a single camera snapshot download
	SnapshotTimeout = 10 * time.Second

	// MaxSnapshotSize is the largest snapshot accepted from a camera
	MaxSnapshotSize = 20 << 20
)

// Scheduling constants
const (
	// SummaryTimeout bounds the daily summary query
	SummaryTimeout = 30 * time.Second
)
