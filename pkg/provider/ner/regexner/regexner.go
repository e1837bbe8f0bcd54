// Package regexner provides an in-process, pattern-based entity candidate
// source.
//
// It needs no external model or network access, which makes it the default
// provider and the floor that model-backed providers are measured against.
// Recall is deliberately favoured over precision: clustering and the
// excluded-word lists downstream absorb false positives far more cheaply
// than a missed name leaks.
package regexner

import (
	"context"
	"regexp"
	"strings"

	"github.com/testimony-project/testimony/pkg/provider/ner"
)

// Compile-time assertion that Provider implements ner.Provider.
var _ ner.Provider = (*Provider)(nil)

var (
	// Mr. Smith, Dr. Jane Whitehorse
	honorificRe = regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr|Prof)\.?\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)

	// Sarah Brache — two to three capitalized words in sequence.
	fullNameRe = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,2})\b`)

	// Oneida Farms Cooperative, Intertribal Agriculture Council
	orgRe = regexp.MustCompile(`\b((?:[A-Z][A-Za-z'-]+\s+){1,4}(?:Cooperative|Co-op|Coop|Association|Council|Coalition|Corporation|Company|Enterprise|Enterprises|Foundation|Institute|University|College|Department|Agency|Bureau|LLC|Inc))\b`)

	// Ho-Chunk Nation, Navajo Tribe, Oglala Sioux Tribe
	tribeRe = regexp.MustCompile(`\b((?:[A-Z][A-Za-z'-]+\s+){1,3}(?:Nation|Tribe|Band|Pueblo|Rancheria|Community))\b`)

	// in Flagstaff / near Window Rock / from Kotzebue, Alaska
	locationRe = regexp.MustCompile(`\b(?:in|near|from|at|to)\s+([A-Z][A-Za-z'-]+(?:\s+[A-Z][A-Za-z'-]+)?(?:,\s+[A-Z][a-z]+)?)\b`)

	timestampRe = regexp.MustCompile(`^\d{2}:\d{2}`)
)

// sentenceStarters are capitalized words that open sentences constantly and
// are never names on their own.
var sentenceStarters = map[string]struct{}{
	"the": {}, "and": {}, "but": {}, "so": {}, "well": {}, "now": {},
	"then": {}, "when": {}, "where": {}, "what": {}, "who": {}, "how": {},
	"yes": {}, "no": {}, "okay": {}, "right": {}, "thank": {}, "thanks": {},
	"this": {}, "that": {}, "there": {}, "here": {}, "they": {}, "we": {},
	"you": {}, "it": {}, "she": {}, "he": {}, "i": {}, "my": {}, "our": {},
	"hello": {}, "hi": {}, "hey": {}, "dear": {}, "anyway": {}, "um": {},
}

// falsePositives are surfaces models and patterns repeatedly propose that
// are never entities in this corpus.
var falsePositives = map[string]struct{}{
	"covid": {}, "covid-19": {}, "covid19": {}, "coronavirus": {},
	"instagram": {}, "twitter": {}, "facebook": {}, "youtube": {},
	"zoom": {}, "webvtt": {}, "facebook messenger": {},
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithExtraFalsePositives extends the built-in false-positive list.
func WithExtraFalsePositives(surfaces []string) Option {
	return func(p *Provider) {
		for _, s := range surfaces {
			p.falsePositives[strings.ToLower(s)] = struct{}{}
		}
	}
}

// Provider implements ner.Provider using capitalization and suffix
// heuristics.
type Provider struct {
	falsePositives map[string]struct{}
}

// New returns a pattern-based Provider.
func New(opts ...Option) *Provider {
	p := &Provider{falsePositives: make(map[string]struct{}, len(falsePositives))}
	for k := range falsePositives {
		p.falsePositives[k] = struct{}{}
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Name implements ner.Provider.
func (p *Provider) Name() string { return "regex" }

// Recognize implements ner.Provider. Tribe and organization patterns run
// before the generic full-name pattern so that multi-word proper nouns with
// an institutional suffix are proposed with their specific type as well as
// the generic one; downstream resolution prefers the term-store and
// suffix-typed candidates.
func (p *Provider) Recognize(_ context.Context, text string) ([]ner.Candidate, error) {
	var out []ner.Candidate

	collect := func(re *regexp.Regexp, t ner.EntityType) {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[2], loc[3]
			surface := text[start:end]

			// The scan is non-overlapping, so "Hello Sarah Brache" would
			// otherwise swallow the name it contains. Shed leading opener
			// tokens and keep the remaining capitalized run.
			for {
				first, _, multi := strings.Cut(surface, " ")
				if !multi {
					break
				}
				if _, opener := sentenceStarters[strings.ToLower(first)]; !opener {
					break
				}
				rest := strings.TrimLeft(surface[len(first):], " \t")
				start += len(surface) - len(rest)
				surface = rest
			}

			if p.reject(surface) {
				continue
			}
			out = append(out, ner.Candidate{
				Surface: surface,
				Start:   start,
				End:     end,
				Type:    t,
			})
		}
	}

	collect(tribeRe, ner.Tribe)
	collect(orgRe, ner.Organization)
	collect(honorificRe, ner.Person)
	collect(fullNameRe, ner.Person)
	collect(locationRe, ner.Location)

	return out, nil
}

// reject filters surfaces that cannot be entities: timestamps, known false
// positives, and fragments that start with a sentence-opening word.
func (p *Provider) reject(surface string) bool {
	surface = strings.TrimSpace(surface)
	if len(surface) < 3 {
		return true
	}
	if timestampRe.MatchString(surface) {
		return true
	}
	lower := strings.ToLower(surface)
	if _, ok := p.falsePositives[lower]; ok {
		return true
	}
	first, _, _ := strings.Cut(lower, " ")
	if _, ok := sentenceStarters[first]; ok {
		return true
	}
	return false
}
