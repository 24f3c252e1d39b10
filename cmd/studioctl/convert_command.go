package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studiokit/render-agent/internal/timeline"
)

func newConvertCommand(ctx *cliContext) *cobra.Command {
	var to string
	var outPath string

	cmd := &cobra.Command{
		Use:   "convert <timeline-file>",
		Short: "Convert a timeline file between YAML and JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format := timeline.Format(to)
			if format != timeline.FormatJSON && format != timeline.FormatYAML {
				return fmt.Errorf("--to must be json or yaml")
			}

			p, err := loadTimeline(cmd, args[0], 0)
			if err != nil {
				return err
			}
			if err := p.Validate(); err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := timeline.Encode(&buf, p, format); err != nil {
				return err
			}
			ctx.log().Debug("converted timeline", "to", format)
			return writeOutput(cmd, outPath, buf.Bytes())
		},
	}

	cmd.Flags().StringVar(&to, "to", "json", "Target format (json or yaml)")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output file (default stdout)")
	return cmd
}
