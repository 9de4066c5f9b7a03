package database

import (
	"time"
)

// AttendanceRecord represents one attendance row stored in the database
type AttendanceRecord struct {
	ID          int64
	IdentityID  string
	DisplayName string
	Date        string // YYYY-MM-DD
	Time        string // HH:MM:SS
	CreatedAt   time.Time
}

// CachedEmbedding is a gallery embedding stored for reuse across restarts
type CachedEmbedding struct {
	ContentHash string
	Model       string
	Embedding   []float64
	CreatedAt   time.Time
}
