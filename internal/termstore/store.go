// Package termstore provides the reference term store: a read-only lookup of
// known tribal nations and place names used to override the entity
// recogniser's proposed types.
//
// The store answers one question — "is this normalized string a known proper
// term, and of what kind?" — and is consulted once per distinct candidate
// surface during clustering. Implementations:
//
//   - [MemStore] — in-memory, loaded from a YAML term file.
//   - [PostgresStore] — backed by the reference_terms table of the curated
//     names/places database.
//   - [Cached] — TTL cache decorator for either of the above, for use by
//     concurrent grading workers.
//
// All implementations are safe for concurrent readers; the core never writes.
package termstore

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the backing database cannot be reached.
// Callers treat it as an external-dependency failure fatal to the current
// iteration, not to the whole run.
var ErrUnavailable = errors.New("term store unavailable")

// Kind classifies a reference term.
type Kind string

const (
	// KindTribe is a tribal nation or ethnonym (e.g. "Ho-Chunk", "Yupik").
	KindTribe Kind = "tribe"

	// KindPlace is a geographic place name.
	KindPlace Kind = "place"
)

// IsValid reports whether k is a recognised term kind.
func (k Kind) IsValid() bool {
	return k == KindTribe || k == KindPlace
}

// Term is a single known reference term.
type Term struct {
	// Name is the authoritative spelling.
	Name string `yaml:"name" json:"name"`

	// Kind classifies the term.
	Kind Kind `yaml:"kind" json:"kind"`
}

// Store is the read-only lookup interface consumed by the clusterer.
//
// Lookup takes an already-normalized string (see cluster.Normalize) and
// reports whether it is a known term. A false second return with a nil error
// means "not known", which is a normal outcome, not a failure.
type Store interface {
	Lookup(ctx context.Context, normalized string) (Term, bool, error)
}
