package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/testimony-project/testimony/internal/grader"
	"github.com/testimony-project/testimony/internal/health"
	"github.com/testimony-project/testimony/internal/loop"
	"github.com/testimony-project/testimony/internal/observe"
	"github.com/testimony-project/testimony/internal/pipeline"
)

func newLoopCmd(st *state) *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "loop <transcript>...",
		Short: "Iterate clean and grade passes until the score converges",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			comps, err := buildComponents(ctx, st.cfg)
			if err != nil {
				return err
			}
			defer comps.cleanup()

			runner, err := newRunner(st, comps.pipeline)
			if err != nil {
				return err
			}

			if addr := st.cfg.Metrics.ListenAddr; addr != "" {
				probes := health.New(comps.healthChecks()...)
				srv, errCh := observe.ServeMetrics(addr, probes.Register)
				defer srv.Close()
				go func() {
					if err := <-errCh; err != nil {
						slog.Error("metrics server stopped", "error", err)
					}
				}()
			}

			if runID == "" {
				runID = uuid.NewString()
			}

			results, err := runner.RunBatch(ctx, args, st.outDir(), runID)
			if err != nil {
				return err
			}

			failed := 0
			for _, res := range results {
				if res.Err != nil {
					failed++
					printErr(cmd, "%s: %v", res.Input, res.Err)
					continue
				}
				if res.Outcome.Phase != loop.PhaseConverged {
					failed++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s) best score %.1f after %d iterations\n",
					res.Input, res.Outcome.Phase, res.Outcome.Reason,
					res.Outcome.BestScore, len(res.Outcome.Iterations))
			}
			if failed > 0 {
				return fmt.Errorf("cli: %d of %d transcripts did not converge", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "run identifier stamped into artifacts (default: random UUID)")
	return cmd
}

// newRunner wires the pipeline and rubric into a convergence loop runner
// configured from the loop section of the config file.
func newRunner(st *state, p *pipeline.Pipeline) (*loop.Runner, error) {
	cleaner := loop.CleanerFunc(func(ctx context.Context, inputPath, outDir, runID string) (grader.Artifact, error) {
		_, arts, err := p.CleanFile(ctx, inputPath, outDir, runID)
		if err != nil {
			return grader.Artifact{}, err
		}
		return grader.Artifact{
			RawPath:     inputPath,
			CleanedPath: arts.DeidentifiedPath,
			MappingPath: arts.MappingPath,
			TagsPath:    arts.TagsPath,
		}, nil
	})

	opts := []loop.Option{}
	lc := st.cfg.Loop
	if lc.Window > 0 {
		opts = append(opts, loop.WithWindow(lc.Window))
	}
	if lc.MaxIterations > 0 {
		opts = append(opts, loop.WithMaxIterations(lc.MaxIterations))
	}
	if lc.MaxConsecutiveFailures > 0 {
		opts = append(opts, loop.WithMaxConsecutiveFailures(lc.MaxConsecutiveFailures))
	}
	if lc.GradeConcurrency > 0 {
		opts = append(opts, loop.WithGradeConcurrency(lc.GradeConcurrency))
	}
	if lc.HeartbeatInterval > 0 {
		opts = append(opts, loop.WithHeartbeatInterval(lc.HeartbeatInterval.Std()))
	}
	return loop.New(cleaner, grader.NewRubric(), opts...)
}
