package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studiokit/render-agent/internal/export"
)

func newDocumentCommand(ctx *cliContext, name string) *cobra.Command {
	format := export.Format(name)
	var outPath string
	var fps float64

	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s <timeline-file>", name),
		Short: "Render a timeline file as " + documentLabel(format),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadTimeline(cmd, args[0], fps)
			if err != nil {
				return err
			}

			data, err := export.Generate(p, format)
			if err != nil {
				return err
			}

			if err := writeOutput(cmd, outPath, data); err != nil {
				return fmt.Errorf("write %s: %w", format, err)
			}
			ctx.log().Info("rendered timeline", "format", format, "clips", len(p.Clips), "output", outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().Float64Var(&fps, "fps", 0, "Override the timeline frame rate")
	return cmd
}

func documentLabel(f export.Format) string {
	if f == export.FormatFCPXML {
		return "FCPXML 1.9"
	}
	return "a CMX 3600 EDL"
}
