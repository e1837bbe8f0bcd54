package loop

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// BatchResult holds one transcript's outcome within a batch. Err is non-nil
// only when the loop could not run at all for that transcript (for example
// its run directory could not be created); loop-level failures land in
// Outcome with PhaseFailed.
type BatchResult struct {
	Input   string
	Outcome *Outcome
	Err     error
}

// RunBatch runs an independent convergence loop for every input transcript.
// Each transcript's artifacts land under outDir/<base>/.
//
// Transcripts are isolated from each other: one failing loop never stops the
// rest. The Runner's single-flight cleaning lock and grading semaphore govern
// how much of the batch actually overlaps.
func (r *Runner) RunBatch(ctx context.Context, inputs []string, outDir, runID string) ([]BatchResult, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("loop: no input transcripts")
	}

	results := make([]BatchResult, len(inputs))

	var g errgroup.Group
	for i, input := range inputs {
		g.Go(func() error {
			transcriptDir := filepath.Join(outDir, transcriptBase(input))
			outcome, err := r.Run(ctx, input, transcriptDir, runID)
			if err != nil {
				slog.Error("transcript loop could not run",
					"input", input,
					"error", err)
			}
			results[i] = BatchResult{Input: input, Outcome: outcome, Err: err}
			return nil
		})
	}
	g.Wait()

	return results, nil
}

// transcriptBase derives the per-transcript directory name from the input
// file name.
func transcriptBase(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
