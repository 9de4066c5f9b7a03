// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// MockAttendanceStore is an in-memory implementation of database.AttendanceStore.
// It enforces the same (identity_id, date) uniqueness as the real stores.
type MockAttendanceStore struct {
	mu      sync.Mutex
	records []database.AttendanceRecord
	nextID  int64

	// InsertCalls counts Insert invocations, including rejected duplicates.
	InsertCalls int

	// Error injection
	ExistsError    error
	InsertError    error
	ListSinceError error
}

// NewMockAttendanceStore creates a new empty mock attendance store
func NewMockAttendanceStore() *MockAttendanceStore {
	return &MockAttendanceStore{nextID: 1}
}

// AddRecord seeds a record without uniqueness checks
func (m *MockAttendanceStore) AddRecord(rec database.AttendanceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == 0 {
		rec.ID = m.nextID
	}
	m.nextID = max(m.nextID, rec.ID) + 1
	m.records = append(m.records, rec)
}

// Records returns a copy of all stored records in insertion order
func (m *MockAttendanceStore) Records() []database.AttendanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.records)
}

// Exists checks if a record exists for the identity on the date
func (m *MockAttendanceStore) Exists(ctx context.Context, identityID, date string) (bool, error) {
	if m.ExistsError != nil {
		return false, m.ExistsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.existsLocked(identityID, date), nil
}

func (m *MockAttendanceStore) existsLocked(identityID, date string) bool {
	for _, r := range m.records {
		if r.IdentityID == identityID && r.Date == date {
			return true
		}
	}
	return false
}

// Insert stores the record unless one exists for the same identity and date
func (m *MockAttendanceStore) Insert(ctx context.Context, rec *database.AttendanceRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++
	if m.InsertError != nil {
		return false, m.InsertError
	}
	if m.existsLocked(rec.IdentityID, rec.Date) {
		return false, nil
	}
	rec.ID = m.nextID
	m.nextID++
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.records = append(m.records, *rec)
	return true, nil
}

// ListSince returns records with date >= fromDate ordered by date, time and id
func (m *MockAttendanceStore) ListSince(ctx context.Context, fromDate string) ([]database.AttendanceRecord, error) {
	if m.ListSinceError != nil {
		return nil, m.ListSinceError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []database.AttendanceRecord
	for _, r := range m.records {
		if r.Date >= fromDate {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// MockGalleryCache is an in-memory implementation of database.GalleryCache
type MockGalleryCache struct {
	mu      sync.RWMutex
	entries map[[2]string][]float64

	// Hits and Puts count successful lookups and writes.
	Hits int
	Puts int

	// Error injection
	GetError error
	PutError error
}

// NewMockGalleryCache creates a new empty mock gallery cache
func NewMockGalleryCache() *MockGalleryCache {
	return &MockGalleryCache{entries: make(map[[2]string][]float64)}
}

// Get returns the cached embedding for the hash and model
func (m *MockGalleryCache) Get(ctx context.Context, contentHash, model string) ([]float64, bool, error) {
	if m.GetError != nil {
		return nil, false, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	emb, ok := m.entries[[2]string{contentHash, model}]
	if ok {
		m.Hits++
	}
	return slices.Clone(emb), ok, nil
}

// Put stores the embedding for the hash and model
func (m *MockGalleryCache) Put(ctx context.Context, contentHash, model string, embedding []float64) error {
	if m.PutError != nil {
		return m.PutError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[[2]string{contentHash, model}] = slices.Clone(embedding)
	m.Puts++
	return nil
}

// Len returns the number of cached embeddings
func (m *MockGalleryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Verify interface compliance
var _ database.AttendanceStore = (*MockAttendanceStore)(nil)
var _ database.GalleryCache = (*MockGalleryCache)(nil)
