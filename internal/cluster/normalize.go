package cluster

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// honorifics are leading titles stripped during normalization so that
// "Dr. Sattler" and "sattler" compare equal.
var honorifics = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "miss": {}, "dr": {},
	"prof": {}, "rev": {}, "chief": {}, "chairman": {}, "chairwoman": {},
}

var foldCaser = cases.Fold()

// Normalize reduces a surface string to its comparison form: Unicode
// case-folded, punctuation stripped (except intra-word hyphens and
// apostrophes), honorific prefixes removed, and whitespace collapsed.
//
// Normalization is the key under which candidates are deduplicated and
// compared; two surfaces with the same normalized form always share a class.
func Normalize(surface string) string {
	folded := foldCaser.String(strings.TrimSpace(surface))

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		case r == '\'' || r == '-':
			// Keep so "O'odham" and "Ho-Chunk" survive intact.
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	for len(fields) > 0 {
		if _, ok := honorifics[strings.TrimRight(fields[0], ".")]; !ok {
			break
		}
		fields = fields[1:]
	}
	return strings.Join(fields, " ")
}

// sortedKeysFold returns map keys sorted case-insensitively, with the raw
// string as tiebreak. Used wherever map iteration order would otherwise leak
// into output.
func sortedKeysFold[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := strings.ToLower(keys[i]), strings.ToLower(keys[j])
		if li != lj {
			return li < lj
		}
		return keys[i] < keys[j]
	})
	return keys
}
