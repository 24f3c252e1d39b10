package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/studiokit/render-agent/internal/config"
	"github.com/studiokit/render-agent/internal/logging"
	"github.com/studiokit/render-agent/internal/timeline"
)

type cliContext struct {
	logLevel string
	logger   *slog.Logger
}

func (c *cliContext) log() *slog.Logger {
	if c.logger == nil {
		return logging.Discard()
	}
	return c.logger
}

func newRootCommand() *cobra.Command {
	ctx := &cliContext{}

	rootCmd := &cobra.Command{
		Use:           "studioctl",
		Short:         "Render Studio timelines to EDL and FCPXML",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctx.logger = logging.WithComponent(logging.NewLoggerTo(cmd.ErrOrStderr(), ctx.logLevel), "studioctl")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newDocumentCommand(ctx, "edl"))
	rootCmd.AddCommand(newDocumentCommand(ctx, "fcpxml"))
	rootCmd.AddCommand(newInspectCommand(ctx))
	rootCmd.AddCommand(newConvertCommand(ctx))
	rootCmd.AddCommand(newTimecodeCommand())

	return rootCmd
}

// loadTimeline reads path, or stdin as YAML when path is "-". A positive
// fps replaces the file's frame rate.
func loadTimeline(cmd *cobra.Command, path string, fps float64) (timeline.Project, error) {
	var (
		p   timeline.Project
		err error
	)
	if path == "-" {
		p, err = timeline.Decode(cmd.InOrStdin(), timeline.FormatYAML)
	} else {
		p, err = timeline.Load(path)
	}
	if err != nil {
		return timeline.Project{}, err
	}
	if fps > 0 {
		p.FrameRate = fps
	}
	return p, nil
}

// writeOutput writes data to path, or to the command's stdout when path is
// empty or "-".
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
