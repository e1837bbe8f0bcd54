// Package loop drives the iterative clean→grade convergence cycle.
//
// Each transcript gets an independent state machine: RUNNING until the score
// trajectory stops improving (CONVERGED) or errors pile up (FAILED).
// Convergence means "no further improvement", never "score is maximal" — the
// loop stops as soon as the latest score has failed to beat the best-so-far
// for a configurable number of consecutive iterations.
//
// Every iteration produces a fresh artifact directory (iteration_<n>/) so a
// monitor never observes a half-written artifact set; the per-transcript
// status.json is rewritten in place after each pass and re-stamped by a
// heartbeat goroutine while external calls are in flight.
package loop

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/testimony-project/testimony/internal/grader"
	"github.com/testimony-project/testimony/internal/observe"
	"github.com/testimony-project/testimony/internal/resilience"
)

const (
	// DefaultWindow is the number of consecutive non-improving iterations
	// required to declare convergence.
	DefaultWindow = 2

	// DefaultMaxIterations is the safety limit on loop length.
	DefaultMaxIterations = 10

	// DefaultGradeConcurrency bounds parallel grading across transcripts.
	DefaultGradeConcurrency = 4

	defaultHeartbeat   = 30 * time.Second
	defaultMaxFailures = 3
)

// Cleaner produces one cleaned artifact set under outDir. The loop calls it
// once per iteration with a fresh directory.
type Cleaner interface {
	Clean(ctx context.Context, inputPath, outDir, runID string) (grader.Artifact, error)
}

// CleanerFunc adapts a plain function to the Cleaner interface.
type CleanerFunc func(ctx context.Context, inputPath, outDir, runID string) (grader.Artifact, error)

func (f CleanerFunc) Clean(ctx context.Context, inputPath, outDir, runID string) (grader.Artifact, error) {
	return f(ctx, inputPath, outDir, runID)
}

// IterationRecord is one entry in the score trajectory. Records are
// append-only and immutable once written.
type IterationRecord struct {
	Index     int       `json:"index"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// Outcome summarizes one transcript's finished loop.
type Outcome struct {
	Phase      Phase
	Reason     string
	BestScore  float64
	Iterations []IterationRecord
}

// Option configures a Runner.
type Option func(*Runner)

// WithWindow sets how many consecutive non-improving iterations end the loop.
func WithWindow(k int) Option {
	return func(r *Runner) { r.window = k }
}

// WithMaxIterations sets the safety limit on iterations per transcript.
func WithMaxIterations(n int) Option {
	return func(r *Runner) { r.maxIterations = n }
}

// WithHeartbeatInterval sets the cadence at which status.json is re-stamped
// during an in-flight iteration.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(r *Runner) { r.heartbeat = d }
}

// WithMaxConsecutiveFailures sets how many back-to-back iteration errors trip
// the failure breaker and stop the loop.
func WithMaxConsecutiveFailures(n int) Option {
	return func(r *Runner) { r.maxFailures = n }
}

// WithGradeConcurrency bounds how many transcripts may be graded in parallel
// during a batch run.
func WithGradeConcurrency(n int) Option {
	return func(r *Runner) { r.gradeConcurrency = n }
}

// WithMetrics replaces the default metric instruments. Tests use this with a
// private meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// Runner executes convergence loops. Safe for concurrent use; per-transcript
// state lives entirely inside Run.
//
// Cleaning is single-flight across the whole Runner because the recognition
// model behind it is memory-heavy; grading is lightweight and runs with
// bounded parallelism.
type Runner struct {
	cleaner Cleaner
	grader  grader.Grader

	window           int
	maxIterations    int
	heartbeat        time.Duration
	maxFailures      int
	gradeConcurrency int
	metrics          *observe.Metrics

	cleanMu  sync.Mutex
	gradeSem *semaphore.Weighted
}

// New builds a Runner around a cleaning stage and a grading backend.
//
// Usage:
//
//	r, err := loop.New(cleaner, rubric, loop.WithWindow(3))
//	outcome, err := r.Run(ctx, "interview.txt", "out/interview", runID)
func New(cleaner Cleaner, g grader.Grader, opts ...Option) (*Runner, error) {
	if cleaner == nil {
		return nil, fmt.Errorf("loop: cleaner is required")
	}
	if g == nil {
		return nil, fmt.Errorf("loop: grader is required")
	}

	r := &Runner{
		cleaner:          cleaner,
		grader:           g,
		window:           DefaultWindow,
		maxIterations:    DefaultMaxIterations,
		heartbeat:        defaultHeartbeat,
		maxFailures:      defaultMaxFailures,
		gradeConcurrency: DefaultGradeConcurrency,
		metrics:          observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.window < 1 {
		return nil, fmt.Errorf("loop: window must be at least 1, got %d", r.window)
	}
	if r.maxIterations < 1 {
		return nil, fmt.Errorf("loop: max iterations must be at least 1, got %d", r.maxIterations)
	}
	if r.gradeConcurrency < 1 {
		return nil, fmt.Errorf("loop: grade concurrency must be at least 1, got %d", r.gradeConcurrency)
	}
	r.gradeSem = semaphore.NewWeighted(int64(r.gradeConcurrency))
	return r, nil
}

// Run executes the convergence loop for a single transcript. Artifacts land
// under outDir/iteration_<n>/ and the status record at outDir/status.json.
//
// Terminal loop states (converged, failed) are reported through the Outcome,
// not the error: a non-nil error means the loop could not run at all.
func (r *Runner) Run(ctx context.Context, inputPath, outDir, runID string) (*Outcome, error) {
	ctx, span := observe.StartSpan(ctx, "loop.Run")
	defer span.End()
	log := observe.Logger(ctx)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("loop: create run dir: %w", err)
	}

	status := newStatusFile(filepath.Join(outDir, "status.json"), runID)
	if err := status.update(PhaseRunning, 0, 0, ""); err != nil {
		return nil, err
	}

	stopHeartbeat := r.startHeartbeat(status)
	defer stopHeartbeat()

	r.metrics.ActiveLoops.Add(ctx, 1)
	defer r.metrics.ActiveLoops.Add(context.WithoutCancel(ctx), -1)

	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Name:        filepath.Base(inputPath),
		MaxFailures: r.maxFailures,
	})

	outcome := &Outcome{Phase: PhaseRunning}
	best := 0.0
	streak := 0
	hasBest := false

	for n := 1; ; n++ {
		// Stop signal is honored between iterations only; a completed
		// iteration's artifacts always stay intact.
		select {
		case <-ctx.Done():
			outcome.Phase = PhaseFailed
			outcome.Reason = fmt.Sprintf("stopped: %v", context.Cause(ctx))
			break
		default:
		}
		if outcome.Phase.IsTerminal() {
			break
		}

		score, err := r.iterate(ctx, inputPath, outDir, runID, n)
		if err != nil {
			breaker.Record(false)
			r.metrics.RecordIteration(ctx, "error")
			log.Error("iteration failed",
				"input", inputPath,
				"iteration", n,
				"error", err)
			if werr := status.update(PhaseFailed, n, outcome.BestScore, err.Error()); werr != nil {
				return nil, werr
			}
			if breaker.Tripped() {
				outcome.Phase = PhaseFailed
				outcome.Reason = fmt.Sprintf("%d consecutive failures, last: %v", r.maxFailures, err)
				break
			}
			if n >= r.maxIterations {
				outcome.Phase = PhaseFailed
				outcome.Reason = fmt.Sprintf("max iterations (%d) reached, last error: %v", r.maxIterations, err)
				break
			}
			continue
		}
		breaker.Record(true)
		r.metrics.RecordIteration(ctx, "ok")
		r.metrics.RecordScore(ctx, score)

		outcome.Iterations = append(outcome.Iterations, IterationRecord{
			Index:     n,
			Score:     score,
			Timestamp: time.Now().UTC(),
		})

		if !hasBest || score > best {
			best = score
			hasBest = true
			streak = 0
		} else {
			streak++
		}
		outcome.BestScore = best

		log.Info("iteration graded",
			"input", inputPath,
			"iteration", n,
			"score", score,
			"best", best,
			"stale_iterations", streak)

		switch {
		case streak >= r.window:
			outcome.Phase = PhaseConverged
			outcome.Reason = fmt.Sprintf("no improvement over %d consecutive iterations", r.window)
		case n >= r.maxIterations:
			outcome.Phase = PhaseConverged
			outcome.Reason = fmt.Sprintf("max iterations (%d) reached", r.maxIterations)
		}

		phase := PhaseRunning
		if outcome.Phase.IsTerminal() {
			phase = outcome.Phase
		}
		if err := status.update(phase, n, score, outcome.Reason); err != nil {
			return nil, err
		}
		if outcome.Phase.IsTerminal() {
			break
		}
	}

	// Final record for phases decided outside the iteration body (breaker
	// trips and cancellation already wrote theirs; this is harmlessly
	// idempotent for those).
	if err := status.update(outcome.Phase, len(outcome.Iterations), outcome.BestScore, outcome.Reason); err != nil {
		return nil, err
	}
	return outcome, nil
}

// iterate runs one clean→grade pass into a fresh artifact directory. The
// directory is built under a dotted partial name and renamed into place only
// after cleaning succeeds, so iteration_<n>/ is either absent or complete.
func (r *Runner) iterate(ctx context.Context, inputPath, outDir, runID string, n int) (float64, error) {
	// The stop signal is a between-iterations boundary: an iteration that has
	// started runs to completion so its artifacts are committed whole.
	ctx = context.WithoutCancel(ctx)

	ctx, span := observe.StartSpan(ctx, "loop.iterate")
	defer span.End()

	finalDir := filepath.Join(outDir, fmt.Sprintf("iteration_%d", n))
	partialDir := filepath.Join(outDir, fmt.Sprintf(".iteration_%d.partial", n))
	if err := os.RemoveAll(partialDir); err != nil {
		return 0, fmt.Errorf("loop: clear partial dir: %w", err)
	}
	if err := os.RemoveAll(finalDir); err != nil {
		return 0, fmt.Errorf("loop: clear iteration dir: %w", err)
	}

	r.cleanMu.Lock()
	artifact, err := r.cleaner.Clean(ctx, inputPath, partialDir, runID)
	r.cleanMu.Unlock()
	if err != nil {
		os.RemoveAll(partialDir)
		return 0, fmt.Errorf("clean: %w", err)
	}
	if err := os.Rename(partialDir, finalDir); err != nil {
		os.RemoveAll(partialDir)
		return 0, fmt.Errorf("loop: commit iteration dir: %w", err)
	}
	artifact = rebase(artifact, partialDir, finalDir)

	if err := r.gradeSem.Acquire(ctx, 1); err != nil {
		return 0, fmt.Errorf("grade: %w", err)
	}
	gradeStart := time.Now()
	report, err := r.grader.Grade(ctx, artifact)
	r.gradeSem.Release(1)
	r.metrics.GradeDuration.Record(ctx, time.Since(gradeStart).Seconds())
	if err != nil {
		return 0, fmt.Errorf("grade: %w", err)
	}
	return report.Score, nil
}

// startHeartbeat re-stamps the status record at a fixed cadence until the
// returned stop function is called.
func (r *Runner) startHeartbeat(status *statusFile) func() {
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		ticker := time.NewTicker(r.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := status.touch(); err != nil {
					slog.Warn("heartbeat write failed", "error", err)
				}
			}
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}

// rebase rewrites artifact paths from the partial directory to the committed
// one. Paths outside the partial directory (the raw input) pass through.
func rebase(a grader.Artifact, from, to string) grader.Artifact {
	a.CleanedPath = rebasePath(a.CleanedPath, from, to)
	a.MappingPath = rebasePath(a.MappingPath, from, to)
	a.TagsPath = rebasePath(a.TagsPath, from, to)
	return a
}

func rebasePath(path, from, to string) string {
	if path == "" {
		return ""
	}
	rel, err := filepath.Rel(from, path)
	if err != nil || !filepath.IsLocal(rel) {
		return path
	}
	return filepath.Join(to, rel)
}
