package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/testimony-project/testimony/internal/grader"
)

func newGradeCmd(_ *state) *cobra.Command {
	var artifact grader.Artifact

	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Score a cleaned transcript against the de-identification rubric",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := grader.NewRubric().Grade(cmd.Context(), artifact)
			if err != nil {
				return fmt.Errorf("cli: grade: %w", err)
			}

			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("cli: encode report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&artifact.RawPath, "raw", "", "original transcript (for leak scanning)")
	cmd.Flags().StringVar(&artifact.CleanedPath, "cleaned", "", "de-identified transcript")
	cmd.Flags().StringVar(&artifact.MappingPath, "mapping", "", "code-to-original mapping JSON")
	cmd.Flags().StringVar(&artifact.TagsPath, "tags", "", "tag index CSV (optional)")
	_ = cmd.MarkFlagRequired("raw")
	_ = cmd.MarkFlagRequired("cleaned")
	_ = cmd.MarkFlagRequired("mapping")
	return cmd
}
