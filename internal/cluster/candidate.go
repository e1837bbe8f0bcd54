// Package cluster groups noisy entity candidates into equivalence classes.
//
// A transcript's named-entity pass produces a stream of [Candidate] values:
// raw surface strings with a proposed type, frequently misspelled and often
// duplicated. The [Clusterer] folds candidates of the same type into
// [EquivalenceClass] values — sets of surface spellings judged to denote the
// same real-world entity — using Jaro-Winkler similarity, Double Metaphone
// phonetic overlap, and curated variant rules for recurring transcription
// errors.
//
// Clustering is transitive and order-independent: merging uses a union-find
// structure, so the same candidate set always yields the same classes
// regardless of the order candidates were discovered in.
package cluster

// EntityType classifies a candidate or an equivalence class.
type EntityType string

const (
	// TypePerson is an individual's name.
	TypePerson EntityType = "person"

	// TypeOrganization is a company, cooperative, agency, or similar body.
	TypeOrganization EntityType = "organization"

	// TypeLocation is a place name.
	TypeLocation EntityType = "location"

	// TypeTribe is a tribal nation or ethnonym. Candidates are reclassified
	// to this type when the reference term store recognises them; the
	// recogniser itself never proposes it.
	TypeTribe EntityType = "tribe"

	// TypeUnknown marks candidates the recogniser could not classify.
	// They are clustered separately and never merged into typed classes.
	TypeUnknown EntityType = "unknown"
)

// IsValid reports whether t is a recognised entity type.
func (t EntityType) IsValid() bool {
	switch t {
	case TypePerson, TypeOrganization, TypeLocation, TypeTribe, TypeUnknown:
		return true
	}
	return false
}

// Candidate is a single raw entity mention proposed by an external
// recogniser. Candidates are ephemeral: they are consumed by
// [Clusterer.Cluster] and never persisted.
type Candidate struct {
	// Surface is the exact text of the mention as it appears in the source.
	Surface string

	// Start and End are byte offsets of the mention in the source text.
	// They are informational; clustering operates on surface strings only.
	Start int
	End   int

	// Type is the recogniser's proposed classification. May be
	// [TypeUnknown]; the reference term store can override it.
	Type EntityType
}

// EquivalenceClass is a set of surface spellings judged to denote the same
// real-world entity. Every member maps to exactly one class, and classes of
// different types never merge.
type EquivalenceClass struct {
	// ID is a dense 1-based index assigned after sorting classes by
	// (type, canonical surface), so it is stable across reruns of the same
	// candidate set.
	ID int

	// Type is the class's entity type. All members share it.
	Type EntityType

	// Members maps each member surface spelling to its occurrence count in
	// the candidate set.
	Members map[string]int

	// Canonical is the representative spelling: the most frequent member,
	// ties broken by case-insensitive sort order.
	Canonical string
}

// MemberList returns the member surfaces in deterministic sorted order.
func (c *EquivalenceClass) MemberList() []string {
	return sortedKeysFold(c.Members)
}
