// Package gallery holds the reference identities and their face embeddings.
//
// A Gallery is built once at startup and never modified afterwards, so it can
// be shared between goroutines without locking.
package gallery

import (
	"fmt"
	"slices"
)

// Entry pairs an identity with its reference embedding.
type Entry struct {
	Identity  Identity
	Embedding []float64
}

// Gallery is an ordered, immutable collection of entries.
type Gallery struct {
	entries []Entry
	index   map[string]int
	dim     int
}

// New validates entries and builds a gallery preserving their order.
func New(entries []Entry) (*Gallery, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyGallery
	}

	g := &Gallery{
		entries: make([]Entry, len(entries)),
		index:   make(map[string]int, len(entries)),
		dim:     len(entries[0].Embedding),
	}

	for i, e := range entries {
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingEmbedding, e.Identity.ID)
		}
		if len(e.Embedding) != g.dim {
			return nil, fmt.Errorf("%w: %s has %d dimensions, expected %d",
				ErrDimensionMismatch, e.Identity.ID, len(e.Embedding), g.dim)
		}
		if _, dup := g.index[e.Identity.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateIdentity, e.Identity.ID)
		}
		g.index[e.Identity.ID] = i
		g.entries[i] = Entry{Identity: e.Identity, Embedding: slices.Clone(e.Embedding)}
	}

	return g, nil
}

// Len returns the number of identities. A nil gallery has none.
func (g *Gallery) Len() int {
	if g == nil {
		return 0
	}
	return len(g.entries)
}

// Dim returns the embedding dimension shared by all entries.
func (g *Gallery) Dim() int {
	if g == nil {
		return 0
	}
	return g.dim
}

// At returns the entry at position i. The embedding must not be modified.
func (g *Gallery) At(i int) Entry {
	return g.entries[i]
}

// Entries returns a copy of the entry list in gallery order.
func (g *Gallery) Entries() []Entry {
	if g == nil {
		return nil
	}
	return slices.Clone(g.entries)
}

// Lookup finds an identity by id.
func (g *Gallery) Lookup(id string) (Identity, bool) {
	if g == nil {
		return Identity{}, false
	}
	i, ok := g.index[id]
	if !ok {
		return Identity{}, false
	}
	return g.entries[i].Identity, true
}

// Identities returns the identities in gallery order.
func (g *Gallery) Identities() []Identity {
	out := make([]Identity, g.Len())
	for i := range out {
		out[i] = g.entries[i].Identity
	}
	return out
}
