// Package attendance records at most one attendance mark per identity per
// calendar day and reports marks over recent periods.
package attendance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// MarkResult tells whether Mark wrote a new record.
type MarkResult int

const (
	Created MarkResult = iota + 1
	AlreadyMarked
)

func (r MarkResult) String() string {
	switch r {
	case Created:
		return "created"
	case AlreadyMarked:
		return "already_marked"
	default:
		return fmt.Sprintf("MarkResult(%d)", int(r))
	}
}

// Record is one attendance mark.
type Record struct {
	ID          int64  `json:"id"`
	IdentityID  string `json:"identity_id"`
	DisplayName string `json:"display_name"`
	Date        string `json:"date"` // YYYY-MM-DD
	Time        string `json:"time"` // HH:MM:SS
}

// MarkOutcome is the result of Mark. For AlreadyMarked, Record carries the
// identity and date but no ID or time.
type MarkOutcome struct {
	Result MarkResult
	Record Record
}

// WriteError reports a failure of the underlying store while marking.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("attendance ledger %s failed: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Ledger is the attendance log. It is safe for concurrent use.
type Ledger struct {
	store database.AttendanceStore
	loc   *time.Location

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLocation sets the time zone used to derive dates and times (default time.Local).
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// NewLedger creates a ledger over store.
func NewLedger(store database.AttendanceStore, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		loc:   time.Local,
		locks: make(map[string]*keyLock),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Location returns the time zone dates are computed in.
func (l *Ledger) Location() *time.Location {
	return l.loc
}

// Date formats t as a ledger date.
func (l *Ledger) Date(t time.Time) string {
	return t.In(l.loc).Format(dateLayout)
}

// RecordExists reports whether identityID was marked on date (YYYY-MM-DD).
func (l *Ledger) RecordExists(ctx context.Context, identityID, date string) (bool, error) {
	exists, err := l.store.Exists(ctx, identityID, date)
	if err != nil {
		return false, fmt.Errorf("checking attendance for %s on %s: %w", identityID, date, err)
	}
	return exists, nil
}

// Mark records attendance for identityID on the calendar date of now.
// A second call on the same date returns AlreadyMarked and writes nothing.
func (l *Ledger) Mark(ctx context.Context, identityID, displayName string, now time.Time) (MarkOutcome, error) {
	local := now.In(l.loc)
	rec := database.AttendanceRecord{
		IdentityID:  identityID,
		DisplayName: displayName,
		Date:        local.Format(dateLayout),
		Time:        local.Format(timeLayout),
	}
	already := MarkOutcome{
		Result: AlreadyMarked,
		Record: Record{IdentityID: identityID, DisplayName: displayName, Date: rec.Date},
	}

	unlock := l.lock(identityID + "\x00" + rec.Date)
	defer unlock()

	// Repeat sightings of an already marked identity stop here without a write.
	exists, err := l.store.Exists(ctx, identityID, rec.Date)
	if err != nil {
		return MarkOutcome{}, &WriteError{Op: "check", Err: err}
	}
	if exists {
		return already, nil
	}

	inserted, err := l.store.Insert(ctx, &rec)
	if err != nil {
		return MarkOutcome{}, &WriteError{Op: "insert", Err: err}
	}
	if !inserted {
		// Another process won the race; the unique constraint kept one row.
		return already, nil
	}

	return MarkOutcome{Result: Created, Record: fromStored(rec)}, nil
}

// Query returns the records of the last 7 (week) or 30 (month) days, counting
// back from now: every record with date >= now minus the window.
func (l *Ledger) Query(ctx context.Context, period Period, now time.Time) ([]Record, error) {
	days := period.Days()
	if days == 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPeriod, period)
	}

	from := now.In(l.loc).AddDate(0, 0, -days).Format(dateLayout)
	stored, err := l.store.ListSince(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("listing attendance since %s: %w", from, err)
	}

	records := make([]Record, len(stored))
	for i, r := range stored {
		records[i] = fromStored(r)
	}
	return records, nil
}

// lock serialises callers per key and drops the entry once unused.
func (l *Ledger) lock(key string) func() {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func fromStored(r database.AttendanceRecord) Record {
	return Record{
		ID:          r.ID,
		IdentityID:  r.IdentityID,
		DisplayName: r.DisplayName,
		Date:        r.Date,
		Time:        r.Time,
	}
}
