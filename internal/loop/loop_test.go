package loop_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/testimony-project/testimony/internal/grader"
	"github.com/testimony-project/testimony/internal/loop"
)

// fileCleaner writes a one-file artifact set into each iteration directory.
// Set failures to make the first N calls error.
type fileCleaner struct {
	failures int
	calls    int
}

func (c *fileCleaner) Clean(_ context.Context, inputPath, outDir, _ string) (grader.Artifact, error) {
	c.calls++
	if c.calls <= c.failures {
		return grader.Artifact{}, errors.New("recognition model unavailable")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return grader.Artifact{}, err
	}
	cleaned := filepath.Join(outDir, "cleaned.txt")
	if err := os.WriteFile(cleaned, []byte("[A.1] Hello.\n"), 0o644); err != nil {
		return grader.Artifact{}, err
	}
	return grader.Artifact{RawPath: inputPath, CleanedPath: cleaned}, nil
}

func writeInput(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("Person_1: Hello."), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func newRunner(t *testing.T, c loop.Cleaner, g grader.Grader, opts ...loop.Option) *loop.Runner {
	t.Helper()
	r, err := loop.New(c, g, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestRunStopsWhenImprovementStalls(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := writeInput(t, dir, "interview.txt")
	mock := &grader.Mock{Scores: []float64{10, 15, 15, 15}}
	r := newRunner(t, &fileCleaner{}, mock, loop.WithWindow(2))

	outcome, err := r.Run(context.Background(), input, filepath.Join(dir, "out"), "run-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.Phase != loop.PhaseConverged {
		t.Fatalf("phase = %v, want converged", outcome.Phase)
	}
	if got := len(outcome.Iterations); got != 4 {
		t.Fatalf("iterations = %d, want 4", got)
	}
	if !strings.Contains(outcome.Reason, "no improvement") {
		t.Errorf("reason = %q, want no-improvement", outcome.Reason)
	}
	if outcome.BestScore != 15 {
		t.Errorf("best = %v, want 15", outcome.BestScore)
	}
}

func TestRunWindowIsConfigurable(t *testing.T) {
	t.Parallel()

	// Same trajectory, wider window: one extra stale iteration is needed.
	dir := t.TempDir()
	input := writeInput(t, dir, "interview.txt")
	mock := &grader.Mock{Scores: []float64{10, 15, 15, 15}}
	r := newRunner(t, &fileCleaner{}, mock, loop.WithWindow(3))

	outcome, err := r.Run(context.Background(), input, filepath.Join(dir, "out"), "run-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Phase != loop.PhaseConverged || len(outcome.Iterations) != 5 {
		t.Fatalf("phase = %v after %d iterations, want converged after 5",
			outcome.Phase, len(outcome.Iterations))
	}
}

func TestRunStopsAtMaxIterations(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := writeInput(t, dir, "interview.txt")
	// Strictly improving forever; only the safety limit can stop it.
	mock := &grader.Mock{Scores: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}}
	r := newRunner(t, &fileCleaner{}, mock, loop.WithMaxIterations(3))

	outcome, err := r.Run(context.Background(), input, filepath.Join(dir, "out"), "run-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Phase != loop.PhaseConverged {
		t.Fatalf("phase = %v, want converged", outcome.Phase)
	}
	if len(outcome.Iterations) != 3 {
		t.Errorf("iterations = %d, want 3", len(outcome.Iterations))
	}
	if !strings.Contains(outcome.Reason, "max iterations") {
		t.Errorf("reason = %q, want max-iterations", outcome.Reason)
	}
}

func TestRunFailsAfterConsecutiveErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := writeInput(t, dir, "interview.txt")
	r := newRunner(t, &fileCleaner{failures: 100}, &grader.Mock{Scores: []float64{50}},
		loop.WithMaxConsecutiveFailures(2))

	outcome, err := r.Run(context.Background(), input, filepath.Join(dir, "out"), "run-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Phase != loop.PhaseFailed {
		t.Fatalf("phase = %v, want failed", outcome.Phase)
	}
	if !strings.Contains(outcome.Reason, "consecutive failures") {
		t.Errorf("reason = %q", outcome.Reason)
	}
	if len(outcome.Iterations) != 0 {
		t.Errorf("recorded %d iterations for all-failed run", len(outcome.Iterations))
	}
}

func TestRunRecoversFromTransientFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := writeInput(t, dir, "interview.txt")
	// One failed pass, then a normal converging trajectory.
	r := newRunner(t, &fileCleaner{failures: 1}, &grader.Mock{Scores: []float64{20, 20, 20}},
		loop.WithMaxConsecutiveFailures(3))

	outcome, err := r.Run(context.Background(), input, filepath.Join(dir, "out"), "run-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Phase != loop.PhaseConverged {
		t.Fatalf("phase = %v, want converged", outcome.Phase)
	}
}

func TestRunWritesIterationDirsAndStatus(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := writeInput(t, dir, "interview.txt")
	outDir := filepath.Join(dir, "out")
	mock := &grader.Mock{Scores: []float64{10, 10, 10}}
	r := newRunner(t, &fileCleaner{}, mock, loop.WithWindow(2))

	outcome, err := r.Run(context.Background(), input, outDir, "run-42")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for n := 1; n <= len(outcome.Iterations); n++ {
		cleaned := filepath.Join(outDir, "iteration_"+strconv.Itoa(n), "cleaned.txt")
		if _, err := os.Stat(cleaned); err != nil {
			t.Errorf("iteration artifact missing: %v", err)
		}
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("read out dir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".partial") {
			t.Errorf("uncommitted partial dir left behind: %s", e.Name())
		}
	}

	data, err := os.ReadFile(filepath.Join(outDir, "status.json"))
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	var status loop.Status
	if err := json.Unmarshal(data, &status); err != nil {
		t.Fatalf("parse status: %v", err)
	}
	if status.Phase != loop.PhaseConverged {
		t.Errorf("status phase = %v, want converged", status.Phase)
	}
	if status.RunID != "run-42" {
		t.Errorf("status run_id = %q", status.RunID)
	}
	if status.LastScore != 10 {
		t.Errorf("status last_score = %v, want 10", status.LastScore)
	}
	if status.Timestamp.IsZero() {
		t.Error("status timestamp not set")
	}
}

func TestRunHonorsStopSignalBetweenIterations(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := writeInput(t, dir, "interview.txt")
	ctx, cancel := context.WithCancel(context.Background())

	graded := make(chan struct{}, 1)
	mock := &grader.Mock{Scores: []float64{1, 2, 3, 4, 5, 6, 7, 8}}
	cleaner := loop.CleanerFunc(func(ctx context.Context, inputPath, outDir, runID string) (grader.Artifact, error) {
		select {
		case graded <- struct{}{}:
			cancel()
		default:
		}
		return (&fileCleaner{}).Clean(ctx, inputPath, outDir, runID)
	})
	r := newRunner(t, cleaner, mock)

	outcome, err := r.Run(ctx, input, filepath.Join(dir, "out"), "run-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Cancellation landed during iteration 1; that iteration completes and
	// commits, and the loop stops before starting iteration 2.
	if outcome.Phase != loop.PhaseFailed {
		t.Fatalf("phase = %v, want failed", outcome.Phase)
	}
	if len(outcome.Iterations) != 1 {
		t.Errorf("iterations = %d, want 1", len(outcome.Iterations))
	}
	if !strings.Contains(outcome.Reason, "stopped") {
		t.Errorf("reason = %q", outcome.Reason)
	}
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := writeInput(t, dir, "good.txt")
	bad := filepath.Join(dir, "bad.txt")
	if err := os.WriteFile(bad, []byte("Person_1: Hi."), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	mock := &grader.Mock{Scores: []float64{30, 30, 30}}
	cleaner := loop.CleanerFunc(func(ctx context.Context, inputPath, outDir, runID string) (grader.Artifact, error) {
		if inputPath == bad {
			return grader.Artifact{}, errors.New("unreadable transcript")
		}
		return (&fileCleaner{}).Clean(ctx, inputPath, outDir, runID)
	})
	r := newRunner(t, cleaner, mock, loop.WithMaxConsecutiveFailures(1))

	results, err := r.RunBatch(context.Background(), []string{good, bad}, filepath.Join(dir, "out"), "run-1")
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}

	byInput := map[string]loop.BatchResult{}
	for _, res := range results {
		byInput[res.Input] = res
	}
	if got := byInput[good].Outcome.Phase; got != loop.PhaseConverged {
		t.Errorf("good transcript phase = %v, want converged", got)
	}
	if got := byInput[bad].Outcome.Phase; got != loop.PhaseFailed {
		t.Errorf("bad transcript phase = %v, want failed", got)
	}

	if _, err := os.Stat(filepath.Join(dir, "out", "good", "status.json")); err != nil {
		t.Errorf("per-transcript status missing: %v", err)
	}
}

func TestRunHeartbeatRestampsStatus(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := writeInput(t, dir, "interview.txt")
	outDir := filepath.Join(dir, "out")

	var stamps []time.Time
	cleaner := loop.CleanerFunc(func(ctx context.Context, inputPath, cleanDir, runID string) (grader.Artifact, error) {
		// Simulate a slow external call and watch the status file move.
		deadline := time.Now().Add(300 * time.Millisecond)
		for time.Now().Before(deadline) {
			if data, err := os.ReadFile(filepath.Join(outDir, "status.json")); err == nil {
				var s loop.Status
				if json.Unmarshal(data, &s) == nil {
					stamps = append(stamps, s.Timestamp)
				}
			}
			time.Sleep(20 * time.Millisecond)
		}
		return (&fileCleaner{}).Clean(ctx, inputPath, cleanDir, runID)
	})
	r := newRunner(t, cleaner, &grader.Mock{Scores: []float64{5, 5, 5}},
		loop.WithWindow(1), loop.WithHeartbeatInterval(25*time.Millisecond))

	if _, err := r.Run(context.Background(), input, outDir, "run-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(stamps) < 2 {
		t.Fatalf("observed %d status reads, want at least 2", len(stamps))
	}
	if !stamps[len(stamps)-1].After(stamps[0]) {
		t.Error("status timestamp never advanced during in-flight iteration")
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	c := &fileCleaner{}
	g := &grader.Mock{}

	if _, err := loop.New(nil, g); err == nil {
		t.Error("nil cleaner accepted")
	}
	if _, err := loop.New(c, nil); err == nil {
		t.Error("nil grader accepted")
	}
	if _, err := loop.New(c, g, loop.WithWindow(0)); err == nil {
		t.Error("zero window accepted")
	}
	if _, err := loop.New(c, g, loop.WithMaxIterations(0)); err == nil {
		t.Error("zero max iterations accepted")
	}
}

// Not parallel: swaps the global tracer provider.
func TestRunEmitsTraceSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	dir := t.TempDir()
	input := writeInput(t, dir, "interview.txt")
	mock := &grader.Mock{Scores: []float64{20, 20}}
	r := newRunner(t, &fileCleaner{}, mock, loop.WithWindow(1))

	if _, err := r.Run(context.Background(), input, filepath.Join(dir, "out"), "run-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	seen := make(map[string]int)
	for _, span := range recorder.Ended() {
		seen[span.Name()]++
	}
	if seen["loop.Run"] != 1 {
		t.Errorf("loop.Run spans = %d, want 1", seen["loop.Run"])
	}
	if seen["loop.iterate"] < 1 {
		t.Error("no loop.iterate span recorded")
	}
}
