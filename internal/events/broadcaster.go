package events

import (
	"context"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// Broadcaster fans mark events out to in-process listeners such as SSE streams.
// Slow listeners lose events instead of blocking the recognition loop.
type Broadcaster struct {
	listeners []chan MarkEvent
	closed    bool
	mu        sync.RWMutex
}

// NewBroadcaster creates a broadcaster without listeners.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// AddListener adds an event listener. After Close it returns a closed channel.
func (b *Broadcaster) AddListener() chan MarkEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan MarkEvent, constants.EventChannelBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener and closes its channel.
func (b *Broadcaster) RemoveListener(ch chan MarkEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Close closes every listener channel so streams end, e.g. on server shutdown.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.listeners {
		close(ch)
	}
	b.listeners = nil
	b.closed = true
}

// Listeners returns the number of registered listeners.
func (b *Broadcaster) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Notify sends the event to all listeners without blocking.
func (b *Broadcaster) Notify(_ context.Context, event MarkEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
	return nil
}
