// Package canon assigns stable canonical codes to equivalence classes and
// maintains the mapping table that records which original strings each code
// replaced.
//
// Code numbering is dense, 1-based, and independent of discovery order:
// classes are sorted by (type, canonical surface) before numbering, so
// re-running the pipeline on unchanged input always yields identical codes.
// The mapping table is the only artifact in which original identifying
// strings survive and must be handled as sensitive.
package canon

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/testimony-project/testimony/internal/cluster"
)

// codePrefixes maps entity types to their code label prefix. Unknown-typed
// classes carry no prefix: they are never assigned codes and never replaced.
var codePrefixes = map[cluster.EntityType]string{
	cluster.TypePerson:       "Person",
	cluster.TypeOrganization: "Organization",
	cluster.TypeLocation:     "Location",
	cluster.TypeTribe:        "Tribe",
}

// Prefix returns the code label prefix for t, or "" when classes of that
// type are not coded.
func Prefix(t cluster.EntityType) string {
	return codePrefixes[t]
}

// IsCodeLabel reports whether s has the shape of a canonical code label
// (e.g. "Person_3"). Used by the replacement engine to keep codes out of
// the member pattern set, which is what makes replacement idempotent.
func IsCodeLabel(s string) bool {
	i := strings.LastIndexByte(s, '_')
	if i <= 0 || i == len(s)-1 {
		return false
	}
	prefix, digits := s[:i], s[i+1:]
	found := false
	for _, p := range codePrefixes {
		if p == prefix {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Entry is one mapping-table row: the original strings behind a code.
type Entry struct {
	// Canonical is the representative original spelling.
	Canonical string `json:"canonical"`

	// Type is the entity type the code belongs to.
	Type cluster.EntityType `json:"type"`

	// Members lists every original spelling the code replaced, in
	// deterministic sorted order.
	Members []string `json:"members"`

	// Ambiguous marks entries produced by merging distinct classes whose
	// canonical surfaces collided after normalization (two different people
	// both transcribed as "Chris"). Such entries need manual review; they
	// are flagged, never silently resolved.
	Ambiguous bool `json:"ambiguous,omitempty"`
}

// Table is the persisted code → original-strings mapping for one transcript.
// It owns the identifying information exclusively: nothing else in the
// artifact set retains original surfaces.
type Table struct {
	// Codes maps code labels ("Person_1") to their entries.
	Codes map[string]Entry `json:"codes"`

	// order holds code labels in assignment order for deterministic
	// iteration.
	order []string
}

// Labels returns all code labels in assignment order: types grouped
// together, numbers ascending within a type.
func (t *Table) Labels() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// SurfaceMap returns original surface → code label for every member of
// every entry. This is the replacement engine's input.
func (t *Table) SurfaceMap() map[string]string {
	m := make(map[string]string)
	for _, label := range t.order {
		for _, member := range t.Codes[label].Members {
			m[member] = label
		}
	}
	return m
}

// SpeakerCode returns the person code label with numeric suffix n
// (e.g. SpeakerCode(2) == "Person_2").
func SpeakerCode(n int) string {
	return fmt.Sprintf("Person_%d", n)
}

// Assign numbers the given equivalence classes and builds the mapping table.
//
// Within each type, classes are sorted by canonical surface
// (case-insensitive, raw string as tiebreak) and numbered sequentially from
// 1. Two same-type classes whose canonical surfaces are equal after
// case-folding are merged into a single entry flagged [Entry.Ambiguous].
// Unknown-typed classes are skipped.
func Assign(classes []cluster.EquivalenceClass) *Table {
	byType := make(map[cluster.EntityType][]cluster.EquivalenceClass)
	for _, c := range classes {
		if _, coded := codePrefixes[c.Type]; !coded {
			continue
		}
		byType[c.Type] = append(byType[c.Type], c)
	}

	table := &Table{Codes: make(map[string]Entry)}

	// Fixed type order keeps the label sequence stable in the artifact.
	for _, typ := range []cluster.EntityType{
		cluster.TypePerson, cluster.TypeOrganization, cluster.TypeLocation, cluster.TypeTribe,
	} {
		group := byType[typ]
		if len(group) == 0 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			ci, cj := strings.ToLower(group[i].Canonical), strings.ToLower(group[j].Canonical)
			if ci != cj {
				return ci < cj
			}
			return group[i].Canonical < group[j].Canonical
		})

		n := 0
		var prev *Entry
		var prevKey string
		for _, c := range group {
			key := strings.ToLower(c.Canonical)
			if prev != nil && key == prevKey {
				// Canonical collision within a type: merge and flag.
				prev.Members = mergeSorted(prev.Members, c.MemberList())
				prev.Ambiguous = true
				label := fmt.Sprintf("%s_%d", codePrefixes[typ], n)
				table.Codes[label] = *prev
				slog.Warn("canonical surface collision; classes merged for manual review",
					"type", typ,
					"canonical", c.Canonical,
					"code", label,
				)
				continue
			}
			n++
			label := fmt.Sprintf("%s_%d", codePrefixes[typ], n)
			entry := Entry{
				Canonical: c.Canonical,
				Type:      typ,
				Members:   c.MemberList(),
			}
			table.Codes[label] = entry
			table.order = append(table.order, label)
			prev = &entry
			prevKey = key
		}
	}
	return table
}

// mergeSorted merges two sorted member lists, dropping duplicates and
// keeping the result sorted case-insensitively.
func mergeSorted(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i]), strings.ToLower(out[j])
		if li != lj {
			return li < lj
		}
		return out[i] < out[j]
	})
	return out
}
