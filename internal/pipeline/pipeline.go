// Package pipeline wires one complete clean pass over a transcript:
// misspelling correction, entity recognition, fuzzy clustering, code
// assignment, replacement, citation numbering, and tag extraction, in that
// order.
//
// A transcript with zero recognized entities is not an error: the pass
// still numbers and tags the text, and the mapping table is simply empty.
// Only external-dependency failures (provider, term store) abort a pass.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/testimony-project/testimony/internal/canon"
	"github.com/testimony-project/testimony/internal/citation"
	"github.com/testimony-project/testimony/internal/cluster"
	"github.com/testimony-project/testimony/internal/observe"
	"github.com/testimony-project/testimony/internal/replace"
	"github.com/testimony-project/testimony/internal/tags"
	"github.com/testimony-project/testimony/pkg/provider/ner"
)

// Summary is the per-transcript run summary persisted as JSON.
type Summary struct {
	SourceFile     string         `json:"source_file"`
	RunID          string         `json:"run_id"`
	OriginalLength int            `json:"original_length"`
	CleanedLength  int            `json:"cleaned_length"`
	Corrections    int            `json:"corrections"`
	Candidates     int            `json:"candidates"`
	Classes        int            `json:"classes"`
	Entities       map[string]int `json:"entities_found"`
	Replacements   replace.Stats  `json:"replacements"`
	TagsFound      map[string]int `json:"tags_found"`
	TotalTags      int            `json:"total_tags"`
}

// Result is the in-memory outcome of one clean pass.
type Result struct {
	// Text is the final de-identified, numbered transcript.
	Text string

	// Table maps canonical codes back to original surfaces. Sensitive.
	Table *canon.Table

	// Tags is the extracted tag index.
	Tags []tags.Tag

	Summary Summary
}

// Option is a functional option for configuring a [Pipeline].
type Option func(*Pipeline)

// WithClusterer replaces the default clusterer.
func WithClusterer(c *cluster.Clusterer) Option {
	return func(p *Pipeline) { p.clusterer = c }
}

// WithExtractor replaces the default tag extractor.
func WithExtractor(e *tags.Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

// WithCorrections replaces the default misspelling corrections.
func WithCorrections(pairs map[string]string) Option {
	return func(p *Pipeline) { p.corrector = replace.NewCorrector(pairs) }
}

// WithAmbiguousWords sets the words given review markers instead of codes.
func WithAmbiguousWords(words []string) Option {
	return func(p *Pipeline) { p.ambiguous = words }
}

// WithReplacePolicy selects the ambiguous-word policy.
func WithReplacePolicy(policy replace.Policy) Option {
	return func(p *Pipeline) { p.policy = policy }
}

// WithLinesPerPage overrides citation pagination.
func WithLinesPerPage(n int) Option {
	return func(p *Pipeline) { p.numberer = citation.New(citation.WithLinesPerPage(n)) }
}

// WithMetrics replaces the default metric instruments. Tests use this with a
// private meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline executes clean passes. Construct once with [New]; safe for
// sequential reuse across transcripts and iterations.
type Pipeline struct {
	provider  ner.Provider
	clusterer *cluster.Clusterer
	extractor *tags.Extractor
	corrector *replace.Corrector
	numberer  *citation.Numberer
	ambiguous []string
	policy    replace.Policy
	metrics   *observe.Metrics
}

// New returns a Pipeline using the given entity candidate source.
func New(provider ner.Provider, opts ...Option) (*Pipeline, error) {
	if provider == nil {
		return nil, fmt.Errorf("pipeline: provider must not be nil")
	}
	extractor, err := tags.New()
	if err != nil {
		return nil, fmt.Errorf("pipeline: default extractor: %w", err)
	}
	p := &Pipeline{
		provider:  provider,
		clusterer: cluster.New(),
		extractor: extractor,
		corrector: replace.NewCorrector(replace.DefaultCorrections()),
		numberer:  citation.New(),
		policy:    replace.PolicyMarkAll,
		metrics:   observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Clean runs the full pass over raw transcript text. sourceName is used
// only for the summary and logs.
func (p *Pipeline) Clean(ctx context.Context, sourceName, runID, text string) (*Result, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.Clean")
	defer span.End()
	log := observe.Logger(ctx)

	cleanStart := time.Now()
	defer func() {
		p.metrics.CleanDuration.Record(ctx, time.Since(cleanStart).Seconds())
	}()

	body, segments := p.prepare(text)

	corrected, corrections := p.corrector.Apply(body)

	recognizeStart := time.Now()
	candidates, err := p.provider.Recognize(ctx, corrected)
	p.metrics.RecognizeDuration.Record(ctx, time.Since(recognizeStart).Seconds())
	if err != nil {
		return nil, fmt.Errorf("pipeline: recognize entities: %w", err)
	}
	p.metrics.Candidates.Add(ctx, int64(len(candidates)))
	if len(candidates) == 0 {
		log.Info("no entity candidates; numbering transcript unmodified",
			"source", sourceName, "provider", p.provider.Name())
	}

	classes, err := p.clusterer.Cluster(ctx, convertCandidates(candidates))
	if err != nil {
		return nil, fmt.Errorf("pipeline: cluster candidates: %w", err)
	}

	table := canon.Assign(classes)

	engine, err := replace.New(table,
		replace.WithAmbiguousWords(p.ambiguous),
		replace.WithPolicy(p.policy),
	)
	if err != nil {
		return nil, fmt.Errorf("pipeline: build replacement engine: %w", err)
	}
	rewritten, stats := engine.Rewrite(corrected)

	doc := p.numberer.Number(rewritten, segments)
	final := doc.Render()

	extracted := p.extractor.Extract(final)

	p.metrics.Classes.Add(ctx, int64(len(classes)))
	p.metrics.Replacements.Add(ctx, int64(stats.Entities))
	for _, tag := range extracted {
		p.metrics.RecordTag(ctx, tag.Category)
	}

	result := &Result{
		Text:  final,
		Table: table,
		Tags:  extracted,
		Summary: Summary{
			SourceFile:     sourceName,
			RunID:          runID,
			OriginalLength: len(text),
			CleanedLength:  len(final),
			Corrections:    corrections,
			Candidates:     len(candidates),
			Classes:        len(classes),
			Entities:       countByType(classes),
			Replacements:   stats,
			TagsFound:      tags.CountByCategory(extracted),
			TotalTags:      len(extracted),
		},
	}

	log.Info("clean pass complete",
		"source", sourceName,
		"run_id", runID,
		"candidates", len(candidates),
		"classes", len(classes),
		"replacements", stats.Entities,
		"tags", len(extracted),
	)
	return result, nil
}

// prepare recovers timestamps from caption formats and strips their
// plumbing from the body before any recognition runs.
func (p *Pipeline) prepare(text string) (string, []citation.Segment) {
	if citation.IsWebVTT(text) {
		return citation.StripTimeFragments(text), citation.ParseWebVTT(text)
	}
	body, segments := citation.ParseStandaloneTimestamps(text)
	if len(segments) > 0 {
		return body, segments
	}
	return citation.StripTimeFragments(text), nil
}

var typeMap = map[ner.EntityType]cluster.EntityType{
	ner.Person:       cluster.TypePerson,
	ner.Organization: cluster.TypeOrganization,
	ner.Location:     cluster.TypeLocation,
	ner.Tribe:        cluster.TypeTribe,
	ner.Unknown:      cluster.TypeUnknown,
}

func convertCandidates(in []ner.Candidate) []cluster.Candidate {
	out := make([]cluster.Candidate, 0, len(in))
	for _, c := range in {
		t, ok := typeMap[c.Type]
		if !ok {
			t = cluster.TypeUnknown
		}
		out = append(out, cluster.Candidate{
			Surface: c.Surface,
			Start:   c.Start,
			End:     c.End,
			Type:    t,
		})
	}
	return out
}

func countByType(classes []cluster.EquivalenceClass) map[string]int {
	counts := make(map[string]int)
	for _, c := range classes {
		counts[string(c.Type)]++
	}
	return counts
}
