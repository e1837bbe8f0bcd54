// Package cli implements the testimony command tree: clean, grade, loop,
// and version.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/testimony-project/testimony/internal/config"
)

// state carries flag values and the loaded configuration between the root
// command and its subcommands.
type state struct {
	configPath string
	cfg        *config.Config
}

// NewRootCmd builds the root command. Execution context comes from
// cobra.Command.ExecuteContext.
func NewRootCmd() *cobra.Command {
	st := &state{}

	cmd := &cobra.Command{
		Use:           "testimony",
		Short:         "De-identify, number, and tag interview transcripts",
		Long:          "testimony replaces named entities in interview transcripts with stable canonical codes, assigns citation addresses to every speaker turn, extracts a research tag index, and iterates clean/grade passes until the score stops improving.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(st.configPath)
			if err != nil {
				// A missing file at the default path means "run with
				// defaults"; an explicit --config that does not exist is an
				// error.
				if errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
					cfg = &config.Config{}
				} else {
					return err
				}
			}
			st.cfg = cfg
			slog.SetDefault(newLogger(cfg.LogLevel))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&st.configPath, "config", "c", "config.yaml",
		"path to the YAML configuration file")

	cmd.AddCommand(
		newCleanCmd(st),
		newGradeCmd(st),
		newLoopCmd(st),
		newVersionCmd(),
	)
	return cmd
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// outDir returns the configured artifact root, defaulting to "out".
func (st *state) outDir() string {
	if st.cfg.Output.Dir != "" {
		return st.cfg.Output.Dir
	}
	return "out"
}

func printErr(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}
