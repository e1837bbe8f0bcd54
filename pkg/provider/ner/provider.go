// Package ner defines the Provider interface for entity-candidate sources.
//
// A provider scans transcript text and proposes candidate entity mentions.
// The contract is deliberately loose: candidates may be duplicated, may
// overlap, and may carry type Unknown — the downstream clustering stage
// owns deduplication and resolution, so providers should err on the side of
// proposing. Candidate order carries no meaning and callers must not depend
// on it.
//
// All implementations must be safe for concurrent use.
package ner

import (
	"context"
)

// EntityType classifies a candidate mention.
type EntityType string

const (
	Person       EntityType = "person"
	Organization EntityType = "organization"
	Location     EntityType = "location"
	Tribe        EntityType = "tribe"
	Unknown      EntityType = "unknown"
)

// IsValid reports whether t is a recognised entity type.
func (t EntityType) IsValid() bool {
	switch t {
	case Person, Organization, Location, Tribe, Unknown:
		return true
	}
	return false
}

// Candidate is one proposed entity mention. Start and End are byte offsets
// into the scanned text; End is exclusive. Offsets of -1 mean the provider
// could not locate the surface in the text (some model-backed providers
// return surfaces only).
type Candidate struct {
	Surface string
	Start   int
	End     int
	Type    EntityType
}

// Provider is the abstraction over any entity-candidate source.
type Provider interface {
	// Recognize scans text and returns candidate mentions. An empty result
	// with a nil error is a valid outcome, not a failure.
	Recognize(ctx context.Context, text string) ([]Candidate, error)

	// Name identifies the provider in logs and run summaries.
	Name() string
}
