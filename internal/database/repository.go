package database

import (
	"context"
)

// AttendanceReader provides read-only access to the attendance log
type AttendanceReader interface {
	// Exists checks if a record exists for the identity on the given date (YYYY-MM-DD)
	Exists(ctx context.Context, identityID, date string) (bool, error)
	// ListSince returns all records with date >= fromDate ordered by date, time and id
	ListSince(ctx context.Context, fromDate string) ([]AttendanceRecord, error)
}

// AttendanceStore provides append-only write access to the attendance log
type AttendanceStore interface {
	AttendanceReader

	// Insert stores rec unless a record for (IdentityID, Date) already exists.
	// The check and the write are a single atomic operation. Returns false
	// without error when the record already existed; on success rec.ID is set.
	Insert(ctx context.Context, rec *AttendanceRecord) (bool, error)
}

// GalleryCache stores gallery embeddings keyed by image content hash and model
type GalleryCache interface {
	// Get returns the cached embedding, or false if none is stored
	Get(ctx context.Context, contentHash, model string) ([]float64, bool, error)
	// Put stores or replaces the embedding for the key
	Put(ctx context.Context, contentHash, model string, embedding []float64) error
}
