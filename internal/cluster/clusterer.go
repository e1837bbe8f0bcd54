package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/testimony-project/testimony/internal/termstore"
)

const (
	defaultThreshold    = 0.75
	defaultLowThreshold = 0.55
)

// VariantRule is a curated equivalence between one canonical spelling and the
// misspellings a transcription service keeps producing for it. Rules are
// versioned configuration, passed in at construction time, never module
// state; any two candidates covered by the same rule always share a class
// even when their string similarity is below threshold.
type VariantRule struct {
	Canonical string   `yaml:"canonical"`
	Variants  []string `yaml:"variants"`
}

// Option is a functional option for configuring a [Clusterer].
type Option func(*Clusterer)

// WithThreshold sets the minimum Jaro-Winkler similarity required to merge
// two candidates of the same type. Default: 0.75.
func WithThreshold(t float64) Option {
	return func(c *Clusterer) {
		c.threshold = t
	}
}

// WithLowThreshold sets the relaxed similarity floor used when two candidates
// additionally share a Double Metaphone phonetic code. Severe misspellings of
// names often keep their phonetic shape while losing string similarity;
// leaving them unmerged would leak identity. Default: 0.55.
func WithLowThreshold(t float64) Option {
	return func(c *Clusterer) {
		c.lowThreshold = t
	}
}

// WithVariantRules installs the curated misspelling rules.
func WithVariantRules(rules []VariantRule) Option {
	return func(c *Clusterer) {
		c.rules = rules
	}
}

// WithExcludedWords installs per-type phrase lists that are dropped before
// clustering. These are recurring recogniser false positives ("the future",
// "some", "this co-op") that would otherwise become entity classes.
// Entries are compared against normalized surfaces.
func WithExcludedWords(excluded map[EntityType][]string) Option {
	return func(c *Clusterer) {
		c.excluded = make(map[EntityType]map[string]struct{}, len(excluded))
		for t, words := range excluded {
			set := make(map[string]struct{}, len(words))
			for _, w := range words {
				set[Normalize(w)] = struct{}{}
			}
			c.excluded[t] = set
		}
	}
}

// WithTermStore attaches a reference term store. Candidates whose normalized
// surface is a known tribal or place term are reclassified to that term's
// type before clustering — the reference store is authoritative over the
// recogniser — and therefore never enter person/organization clustering.
func WithTermStore(store termstore.Store) Option {
	return func(c *Clusterer) {
		c.terms = store
	}
}

// Clusterer groups same-type candidates into equivalence classes.
// It is read-only after construction and safe for concurrent use.
type Clusterer struct {
	threshold    float64
	lowThreshold float64
	rules        []VariantRule
	excluded     map[EntityType]map[string]struct{}
	terms        termstore.Store
}

// New returns a [Clusterer] configured with the supplied options.
func New(opts ...Option) *Clusterer {
	c := &Clusterer{
		threshold:    defaultThreshold,
		lowThreshold: defaultLowThreshold,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// mention is one deduplicated (type, normalized) surface group.
type mention struct {
	typ      EntityType
	norm     string
	surfaces map[string]int
	codes    map[string]struct{}
}

// Cluster consumes the full candidate set for one transcript and returns its
// equivalence classes, sorted by (type, canonical surface) with dense
// 1-based IDs. Duplicate and overlapping candidates are tolerated; the same
// input set always produces the same output regardless of candidate order.
func (c *Clusterer) Cluster(ctx context.Context, candidates []Candidate) ([]EquivalenceClass, error) {
	mentions, err := c.collect(ctx, candidates)
	if err != nil {
		return nil, err
	}

	// Partition by type: classes of different types never merge.
	byType := make(map[EntityType][]*mention)
	for _, m := range mentions {
		byType[m.typ] = append(byType[m.typ], m)
	}

	var classes []EquivalenceClass
	for _, typ := range []EntityType{TypePerson, TypeOrganization, TypeLocation, TypeTribe, TypeUnknown} {
		group := byType[typ]
		if len(group) == 0 {
			continue
		}
		classes = append(classes, c.clusterType(typ, group)...)
	}

	// Re-sort globally and assign dense IDs. Sorting removes any dependence
	// on discovery order so reruns with reordered candidates are identical.
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].Type != classes[j].Type {
			return classes[i].Type < classes[j].Type
		}
		ci, cj := strings.ToLower(classes[i].Canonical), strings.ToLower(classes[j].Canonical)
		if ci != cj {
			return ci < cj
		}
		return classes[i].Canonical < classes[j].Canonical
	})
	for i := range classes {
		classes[i].ID = i + 1
	}
	return classes, nil
}

// collect normalizes, filters, and deduplicates candidates into mentions,
// applying the reference-store type override.
func (c *Clusterer) collect(ctx context.Context, candidates []Candidate) (map[string]*mention, error) {
	mentions := make(map[string]*mention)

	for _, cand := range candidates {
		surface := strings.TrimSpace(cand.Surface)
		norm := Normalize(surface)
		if len(norm) < 2 {
			continue
		}
		typ := cand.Type
		if !typ.IsValid() {
			typ = TypeUnknown
		}
		if set, ok := c.excluded[typ]; ok {
			if _, drop := set[norm]; drop {
				continue
			}
		}

		if c.terms != nil {
			term, known, err := c.terms.Lookup(ctx, norm)
			if err != nil {
				return nil, fmt.Errorf("cluster: term lookup %q: %w", norm, err)
			}
			if known {
				switch term.Kind {
				case termstore.KindTribe:
					typ = TypeTribe
				case termstore.KindPlace:
					typ = TypeLocation
				}
			}
		}

		key := string(typ) + "\x00" + norm
		m, ok := mentions[key]
		if !ok {
			m = &mention{
				typ:      typ,
				norm:     norm,
				surfaces: make(map[string]int),
				codes:    metaphoneCodes(norm),
			}
			mentions[key] = m
		}
		m.surfaces[surface]++
	}
	return mentions, nil
}

// clusterType runs union-find over one type's mentions.
func (c *Clusterer) clusterType(typ EntityType, group []*mention) []EquivalenceClass {
	// Deterministic processing order.
	sort.Slice(group, func(i, j int) bool { return group[i].norm < group[j].norm })

	uf := newUnionFind()
	for _, m := range group {
		uf.add(m.norm)
	}

	// Curated variant rules: all normalized strings covered by one rule form
	// a clique. Precompute membership so lookup is O(1) per mention.
	ruleOf := make(map[string]int)
	for i, rule := range c.rules {
		ruleOf[Normalize(rule.Canonical)] = i
		for _, v := range rule.Variants {
			ruleOf[Normalize(v)] = i
		}
	}
	ruleAnchor := make(map[int]string)
	for _, m := range group {
		if ri, ok := ruleOf[m.norm]; ok {
			if anchor, seen := ruleAnchor[ri]; seen {
				uf.union(anchor, m.norm)
			} else {
				ruleAnchor[ri] = m.norm
			}
		}
	}

	// Pairwise similarity. Union-find makes merging transitive, so one edge
	// anywhere in a chain is enough to join the whole chain.
	for i := 0; i < len(group); i++ {
		for j := i + 1; j < len(group); j++ {
			a, b := group[i], group[j]
			if c.similar(a, b) {
				uf.union(a.norm, b.norm)
			}
		}
	}

	// Materialise classes from the union-find roots.
	byRoot := make(map[string][]*mention)
	for _, m := range group {
		root := uf.find(m.norm)
		byRoot[root] = append(byRoot[root], m)
	}

	classes := make([]EquivalenceClass, 0, len(byRoot))
	for _, root := range sortedKeysFold(byRoot) {
		members := make(map[string]int)
		for _, m := range byRoot[root] {
			for s, n := range m.surfaces {
				members[s] += n
			}
		}
		cls := EquivalenceClass{
			Type:      typ,
			Members:   members,
			Canonical: canonicalSurface(members),
		}
		classes = append(classes, cls)
		slog.Debug("equivalence class formed",
			"type", typ,
			"canonical", cls.Canonical,
			"members", len(members),
		)
	}
	return classes
}

// similar reports whether two mentions should be merged on string evidence:
// Jaro-Winkler at or above the main threshold, or phonetic code overlap
// combined with the relaxed threshold.
func (c *Clusterer) similar(a, b *mention) bool {
	score := jwScore(a.norm, b.norm)
	if score >= c.threshold {
		return true
	}
	if score >= c.lowThreshold && codesOverlap(a.codes, b.codes) {
		return true
	}
	return false
}

// jwScore computes the best Jaro-Winkler similarity between two normalized
// strings, comparing both as-is and with spaces stripped so that token
// boundary drift ("ho chunk" vs "hochunk") does not depress the score.
func jwScore(a, b string) float64 {
	score := matchr.JaroWinkler(a, b, false)
	if strings.ContainsRune(a, ' ') || strings.ContainsRune(b, ' ') {
		ca := strings.ReplaceAll(a, " ", "")
		cb := strings.ReplaceAll(b, " ", "")
		if s := matchr.JaroWinkler(ca, cb, false); s > score {
			score = s
		}
	}
	return score
}

// metaphoneCodes returns the union of Double Metaphone codes across the
// tokens of a normalized string. Empty codes are excluded.
func metaphoneCodes(norm string) map[string]struct{} {
	codes := make(map[string]struct{}, 4)
	for _, tok := range strings.Fields(norm) {
		p, s := matchr.DoubleMetaphone(tok)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap reports whether two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// canonicalSurface picks the representative spelling for a member set: the
// most frequent spelling, ties broken by case-insensitive sort order rather
// than map iteration order.
func canonicalSurface(members map[string]int) string {
	best := ""
	bestCount := -1
	for _, s := range sortedKeysFold(members) {
		if members[s] > bestCount {
			best = s
			bestCount = members[s]
		}
	}
	return best
}
