package replace

import (
	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
)

// Corrector normalizes recurring transcription misspellings before any
// recognition runs, so that variant spellings of the same name land in one
// equivalence class instead of several. It reuses the same leftmost-longest
// automaton as the entity pass; with whole-word anchoring, longer
// corrections ("Ho-Chunk Nation") always win over their substrings.
type Corrector struct {
	automaton   ahocorasick.AhoCorasick
	corrections []string
	hasPatterns bool
}

// NewCorrector compiles a corrector from misspelling-to-correction pairs.
// Matching is case-insensitive; the replacement is emitted exactly as given.
func NewCorrector(pairs map[string]string) *Corrector {
	c := &Corrector{}
	if len(pairs) == 0 {
		return c
	}

	patterns := sortedKeys(pairs)
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  true,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
		DFA:                  true,
	})
	c.automaton = builder.Build(patterns)
	c.corrections = make([]string, len(patterns))
	for i, p := range patterns {
		c.corrections[i] = pairs[p]
	}
	c.hasPatterns = true
	return c
}

// Apply rewrites every misspelling occurrence and reports how many were
// corrected.
func (c *Corrector) Apply(text string) (string, int) {
	if !c.hasPatterns {
		return text, 0
	}
	return stitchMatches(text, c.automaton.FindAll(text), c.corrections)
}

// DefaultCorrections holds misspellings observed repeatedly in
// machine-transcribed interviews. Config may extend or override these.
func DefaultCorrections() map[string]string {
	return map[string]string{
		"burshia":        "Brache",
		"bershia":        "Brache",
		"ho-chump":       "Ho-Chunk",
		"ho chunk":       "Ho-Chunk",
		"tohono oodham":  "Tohono O'odham",
		"tohono o odham": "Tohono O'odham",
		"tohono autumn":  "Tohono O'odham",
		"thono o'odham":  "Tohono O'odham",
	}
}
