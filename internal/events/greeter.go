package events

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Greeter welcomes newly marked people by writing a line to w.
type Greeter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewGreeter creates a greeter writing to w.
func NewGreeter(w io.Writer) *Greeter {
	return &Greeter{w: w}
}

// Notify writes "Welcome to class, <name>".
func (g *Greeter) Notify(_ context.Context, event MarkEvent) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := fmt.Fprintf(g.w, "Welcome to class, %s\n", event.DisplayName); err != nil {
		return fmt.Errorf("writing greeting: %w", err)
	}
	return nil
}
