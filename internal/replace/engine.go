// Package replace rewrites transcript text, substituting every member
// occurrence of an equivalence class with the class's canonical code in a
// single linear pass.
//
// The engine compiles one Aho-Corasick automaton per transcript from every
// member string across all classes (leftmost-longest, word-boundary
// anchored, case-insensitive) instead of scanning per term, which keeps
// replacement linear in the text length regardless of how many members the
// mapping table holds. Code labels are excluded from the pattern set, so
// running the engine over its own output is a no-op.
package replace

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"

	"github.com/testimony-project/testimony/internal/canon"
)

// minMemberLen is the shortest member surface ever substituted. One- and
// two-character fragments produce far more false replacements than they
// prevent leaks.
const minMemberLen = 3

// Policy selects how ambiguous capitalizable common words are handled.
type Policy string

const (
	// PolicyMarkAll wraps every capitalized occurrence of an ambiguous word
	// in a review marker, deferring the decision to a human reviewer.
	PolicyMarkAll Policy = "mark-all"

	// PolicyContext consults an external part-of-speech signal before
	// marking. Without a signal source configured it falls back to
	// [PolicyMarkAll]; it never silently skips marking.
	PolicyContext Policy = "context"
)

// IsValid reports whether p is a recognised policy.
func (p Policy) IsValid() bool {
	return p == PolicyMarkAll || p == PolicyContext
}

// ProperNounSignal reports whether the word at the given byte offset in text
// is used as a proper noun. Implementations wrap an external part-of-speech
// or entity tagger; the engine treats absence of a signal source as "always
// mark".
type ProperNounSignal interface {
	IsProperNoun(text string, offset int, word string) bool
}

// Stats summarises one replacement pass.
type Stats struct {
	Entities   int `json:"entities"`
	Financial  int `json:"financial_amounts"`
	Years      int `json:"years"`
	ReviewMark int `json:"review_markers"`
}

// Option is a functional option for configuring an [Engine].
type Option func(*Engine)

// WithAmbiguousWords sets the words that are never substituted outright
// (e.g. "Will", "May"): a capitalized standalone occurrence could equally be
// a name or a common word, so it is wrapped in a review marker instead.
func WithAmbiguousWords(words []string) Option {
	return func(e *Engine) {
		e.ambiguous = make(map[string]struct{}, len(words))
		for _, w := range words {
			e.ambiguous[strings.ToLower(w)] = struct{}{}
		}
	}
}

// WithPolicy selects the ambiguous-word policy. Default: [PolicyMarkAll].
func WithPolicy(p Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithProperNounSignal attaches the external signal source used by
// [PolicyContext].
func WithProperNounSignal(s ProperNounSignal) Option {
	return func(e *Engine) {
		e.signal = s
	}
}

// Engine performs entity and numeric-literal substitution over transcript
// text. Compile once per transcript with [New]; the engine is read-only
// afterwards and safe for concurrent use.
type Engine struct {
	automaton    ahocorasick.AhoCorasick
	replacements []string
	hasPatterns  bool

	ambiguous map[string]struct{}
	policy    Policy
	signal    ProperNounSignal
}

// New compiles an [Engine] from the mapping table. Member surfaces that are
// themselves code labels, shorter than three characters, or listed as
// ambiguous words are excluded from the pattern set; ambiguous words are
// handled by the marking pass instead.
func New(table *canon.Table, opts ...Option) (*Engine, error) {
	e := &Engine{policy: PolicyMarkAll}
	for _, o := range opts {
		o(e)
	}
	if !e.policy.IsValid() {
		return nil, fmt.Errorf("replace: invalid policy %q", e.policy)
	}

	surfaceToCode := table.SurfaceMap()
	patterns := make([]string, 0, len(surfaceToCode))
	for _, surface := range sortedKeys(surfaceToCode) {
		if len(surface) < minMemberLen {
			continue
		}
		// Excluding codes from the pattern set is what makes replacement
		// idempotent: a second pass finds nothing to rewrite.
		if canon.IsCodeLabel(surface) {
			continue
		}
		if _, amb := e.ambiguous[strings.ToLower(surface)]; amb {
			continue
		}
		patterns = append(patterns, surface)
	}

	if len(patterns) > 0 {
		builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
			AsciiCaseInsensitive: true,
			MatchOnlyWholeWords:  true,
			MatchKind:            ahocorasick.LeftMostLongestMatch,
			DFA:                  true,
		})
		e.automaton = builder.Build(patterns)
		e.replacements = make([]string, len(patterns))
		for i, p := range patterns {
			e.replacements[i] = surfaceToCode[p]
		}
		e.hasPatterns = true
	}
	return e, nil
}

// Rewrite substitutes entities, then numeric literals, then applies the
// ambiguous-word marking pass, in that order. Entity substitution runs
// first so that an entity surface containing digits is never mistaken for
// a numeric literal.
func (e *Engine) Rewrite(text string) (string, Stats) {
	var stats Stats

	out := text
	if e.hasPatterns {
		out, stats.Entities = e.substitute(out)
	}

	var fin, yrs int
	out, fin = replaceFinancial(out)
	out, yrs = replaceYears(out)
	stats.Financial = fin
	stats.Years = yrs

	out, stats.ReviewMark = e.markAmbiguous(out)

	slog.Debug("replacement pass complete",
		"entities", stats.Entities,
		"financial", stats.Financial,
		"years", stats.Years,
		"review_markers", stats.ReviewMark,
	)
	return out, stats
}

// substitute performs the single linear automaton pass, stitching the output
// from the gaps between matches.
func (e *Engine) substitute(text string) (string, int) {
	return stitchMatches(text, e.automaton.FindAll(text), e.replacements)
}

// stitchMatches rewrites text by splicing repl[pattern] over each match.
// The automaton's whole-word filter can re-admit a match contained inside a
// longer one already accepted (both "Sarah Brache" and its member "Brache"
// at the same position), out of leftmost-longest order, so matches are first
// sorted by position and any match starting inside previously consumed text
// is dropped. Only applied substitutions are counted.
func stitchMatches(text string, matches []ahocorasick.Match, repl []string) (string, int) {
	if len(matches) == 0 {
		return text, 0
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Start() != matches[j].Start() {
			return matches[i].Start() < matches[j].Start()
		}
		return matches[i].End() > matches[j].End()
	})

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	applied := 0
	for _, m := range matches {
		if m.Start() < last {
			continue
		}
		b.WriteString(text[last:m.Start()])
		b.WriteString(repl[m.Pattern()])
		last = m.End()
		applied++
	}
	b.WriteString(text[last:])
	return b.String(), applied
}

// markAmbiguous wraps capitalized standalone occurrences of configured
// ambiguous words in review markers. Lowercase occurrences are left alone:
// "will" as a modal verb is unambiguous. Under [PolicyContext] with a
// signal source, only proper-noun occurrences are marked.
func (e *Engine) markAmbiguous(text string) (string, int) {
	if len(e.ambiguous) == 0 {
		return text, 0
	}

	useSignal := e.policy == PolicyContext && e.signal != nil
	if e.policy == PolicyContext && e.signal == nil {
		slog.Warn("context policy selected but no proper-noun signal configured; falling back to mark-all")
	}

	marked := 0
	var b strings.Builder
	b.Grow(len(text) + 64)

	i := 0
	for i < len(text) {
		if !isWordByte(text[i]) {
			b.WriteByte(text[i])
			i++
			continue
		}
		j := i
		for j < len(text) && isWordByte(text[j]) {
			j++
		}
		word := text[i:j]

		if e.shouldMark(text, i, word, useSignal) {
			b.WriteString("[REVIEW: ")
			b.WriteString(word)
			b.WriteString("]")
			marked++
		} else {
			b.WriteString(word)
		}
		i = j
	}
	return b.String(), marked
}

// shouldMark reports whether word at offset should receive a review marker.
func (e *Engine) shouldMark(text string, offset int, word string, useSignal bool) bool {
	if _, amb := e.ambiguous[strings.ToLower(word)]; !amb {
		return false
	}
	// Only capitalized occurrences are ambiguous.
	if word[0] < 'A' || word[0] > 'Z' {
		return false
	}
	// Already inside a marker from a previous pass; wrapping again would
	// break idempotence.
	if strings.HasSuffix(text[:offset], "[REVIEW: ") {
		return false
	}
	if useSignal {
		return e.signal.IsProperNoun(text, offset, word)
	}
	return true
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
