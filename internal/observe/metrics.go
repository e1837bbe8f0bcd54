// Package observe provides observability primitives for the cleaning
// pipeline: OpenTelemetry metrics with a Prometheus scrape bridge, tracing
// helpers, and trace-aware logging.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for convenience;
// tests should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/testimony-project/testimony"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per stage ---

	// CleanDuration tracks one full clean pass (prepare through tagging).
	CleanDuration metric.Float64Histogram

	// GradeDuration tracks rubric grading latency.
	GradeDuration metric.Float64Histogram

	// RecognizeDuration tracks entity-recognition backend latency.
	RecognizeDuration metric.Float64Histogram

	// --- Counters ---

	// Iterations counts loop iterations. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	Iterations metric.Int64Counter

	// Candidates counts raw entity candidates proposed by recognizers.
	Candidates metric.Int64Counter

	// Classes counts equivalence classes formed by clustering.
	Classes metric.Int64Counter

	// Replacements counts code substitutions performed in transcripts.
	Replacements metric.Int64Counter

	// Tags counts extracted tag records. Use with attribute:
	//   attribute.String("category", ...)
	Tags metric.Int64Counter

	// --- Score distribution ---

	// Score tracks the grading score per iteration (0-100).
	Score metric.Float64Histogram

	// --- Gauges ---

	// ActiveLoops tracks the number of transcripts currently in the RUNNING
	// phase.
	ActiveLoops metric.Int64UpDownCounter
}

// stageBuckets defines histogram bucket boundaries (in seconds) sized for
// cleaning and grading passes, which can take from well under a second
// (regex recognizer) to minutes (hosted model on a long transcript).
var stageBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// scoreBuckets covers the 0-100 grading scale at the granularity the letter
// scale distinguishes.
var scoreBuckets = []float64{
	50, 60, 67, 70, 73, 77, 80, 83, 87, 90, 93, 100,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.CleanDuration, err = m.Float64Histogram("testimony.clean.duration",
		metric.WithDescription("Latency of one full clean pass."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GradeDuration, err = m.Float64Histogram("testimony.grade.duration",
		metric.WithDescription("Latency of rubric grading."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RecognizeDuration, err = m.Float64Histogram("testimony.recognize.duration",
		metric.WithDescription("Latency of entity recognition."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Score, err = m.Float64Histogram("testimony.grade.score",
		metric.WithDescription("Grading score per iteration (0-100)."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Iterations, err = m.Int64Counter("testimony.loop.iterations",
		metric.WithDescription("Total loop iterations by status."),
	); err != nil {
		return nil, err
	}
	if met.Candidates, err = m.Int64Counter("testimony.pipeline.candidates",
		metric.WithDescription("Total raw entity candidates proposed."),
	); err != nil {
		return nil, err
	}
	if met.Classes, err = m.Int64Counter("testimony.pipeline.classes",
		metric.WithDescription("Total equivalence classes formed."),
	); err != nil {
		return nil, err
	}
	if met.Replacements, err = m.Int64Counter("testimony.pipeline.replacements",
		metric.WithDescription("Total code substitutions performed."),
	); err != nil {
		return nil, err
	}
	if met.Tags, err = m.Int64Counter("testimony.pipeline.tags",
		metric.WithDescription("Total tag records extracted by category."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveLoops, err = m.Int64UpDownCounter("testimony.loop.active",
		metric.WithDescription("Number of transcripts currently in the running phase."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordIteration records one loop iteration with its outcome status
// ("ok" or "error").
func (m *Metrics) RecordIteration(ctx context.Context, status string) {
	m.Iterations.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordScore records one iteration's grading score.
func (m *Metrics) RecordScore(ctx context.Context, score float64) {
	m.Score.Record(ctx, score)
}

// RecordTag records one extracted tag with its category.
func (m *Metrics) RecordTag(ctx context.Context, category string) {
	m.Tags.Add(ctx, 1,
		metric.WithAttributes(attribute.String("category", category)),
	)
}
