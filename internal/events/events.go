// Package events delivers "newly marked" notifications to whoever listens:
// SSE clients, a Kafka topic or a greeting on the console.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// MarkEvent is emitted once when an identity receives its first mark of the day.
type MarkEvent struct {
	ID          string    `json:"id"`
	IdentityID  string    `json:"identity_id"`
	DisplayName string    `json:"display_name"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Distance    float64   `json:"distance"`
	BBox        []float64 `json:"bbox,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// NewMarkEvent fills in a fresh event id.
func NewMarkEvent(identityID, displayName, date, clock string, distance float64, bbox []float64, at time.Time) MarkEvent {
	return MarkEvent{
		ID:          uuid.NewString(),
		IdentityID:  identityID,
		DisplayName: displayName,
		Date:        date,
		Time:        clock,
		Distance:    distance,
		BBox:        bbox,
		RecordedAt:  at,
	}
}

// Notifier receives mark events.
type Notifier interface {
	Notify(ctx context.Context, event MarkEvent) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event MarkEvent) error

func (f NotifierFunc) Notify(ctx context.Context, event MarkEvent) error {
	return f(ctx, event)
}

// Multi fans an event out to several notifiers. Every notifier is called even
// if an earlier one fails; the failures are joined.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event MarkEvent) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
