package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newCleanCmd(st *state) *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "clean <transcript>...",
		Short: "De-identify transcripts and write the artifact set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			comps, err := buildComponents(ctx, st.cfg)
			if err != nil {
				return err
			}
			defer comps.cleanup()

			if runID == "" {
				runID = uuid.NewString()
			}

			for _, input := range args {
				result, arts, err := comps.pipeline.CleanFile(ctx, input, st.outDir(), runID)
				if err != nil {
					return fmt.Errorf("cli: clean %s: %w", filepath.Base(input), err)
				}
				slog.Info("transcript cleaned",
					"input", input,
					"run_id", runID,
					"entities", result.Summary.Entities,
					"replacements", result.Summary.Replacements,
					"tags", result.Summary.TotalTags)
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join([]string{
					arts.DeidentifiedPath,
					arts.MappingPath,
					arts.TagsPath,
					arts.SummaryPath,
				}, "\n"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "run identifier stamped into artifacts (default: random UUID)")
	return cmd
}
