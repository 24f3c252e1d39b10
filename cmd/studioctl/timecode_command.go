package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/studiokit/render-agent/internal/timecode"
)

func newTimecodeCommand() *cobra.Command {
	var fps float64

	cmd := &cobra.Command{
		Use:   "timecode <seconds|HH:MM:SS:FF>",
		Short: "Convert between seconds and SMPTE timecode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := timecode.Timebase(fps)
			if err != nil {
				return fmt.Errorf("--fps %v: %w", fps, err)
			}

			arg := strings.TrimSpace(args[0])
			if strings.ContainsAny(arg, ":;") {
				tc, err := timecode.Parse(arg)
				if err != nil {
					return err
				}
				if tc.Frames >= int64(base) {
					return fmt.Errorf("frame field %d does not exist at timebase %d", tc.Frames, base)
				}
				frames := tc.TotalFrames(base)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d frames\n", formatSeconds(float64(frames)/float64(base)), frames)
				return nil
			}

			seconds, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return fmt.Errorf("invalid seconds %q", arg)
			}
			tc, err := timecode.FromSeconds(seconds, base)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tc.String())
			return nil
		},
	}

	cmd.Flags().Float64Var(&fps, "fps", 30, "Frame rate")
	return cmd
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64) + "s"
}
