package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/studiokit/render-agent/internal/timecode"
	"github.com/studiokit/render-agent/internal/timeline"
)

var inspectHeaders = []string{"#", "Track", "Clip", "Source", "Src In", "Src Out", "Rec In", "Rec Out"}

func newInspectCommand(ctx *cliContext) *cobra.Command {
	var fps float64

	cmd := &cobra.Command{
		Use:   "inspect <timeline-file>",
		Short: "Show the events a timeline file produces",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadTimeline(cmd, args[0], fps)
			if err != nil {
				return err
			}
			if err := p.Validate(); err != nil {
				return err
			}

			rows, err := eventRows(p)
			if err != nil {
				return err
			}

			ctx.log().Debug("inspected timeline", "clips", len(rows))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  (%v fps, timebase %d, %d clips, %.3fs)\n", p.Title, p.FrameRate, p.Timebase(), len(p.Clips), p.Duration())
			if isTerminal(out) {
				fmt.Fprintln(out, renderTable(inspectHeaders, rows, []columnAlignment{alignRight}))
				return nil
			}
			writeTabSeparated(out, inspectHeaders, rows)
			return nil
		},
	}

	cmd.Flags().Float64Var(&fps, "fps", 0, "Override the timeline frame rate")
	return cmd
}

func eventRows(p timeline.Project) ([][]string, error) {
	fps := p.Timebase()
	rows := make([][]string, 0, len(p.Clips))
	for i, c := range p.Clips {
		marks := []float64{c.SourceIn, c.SourceIn + c.Duration, c.StartTime, c.End()}
		row := []string{strconv.Itoa(i + 1), string(c.Track), c.Name, c.SourceFile}
		for _, m := range marks {
			tc, err := timecode.Format(m, fps)
			if err != nil {
				return nil, fmt.Errorf("clip %d: %w", i, err)
			}
			row = append(row, tc)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func writeTabSeparated(w io.Writer, headers []string, rows [][]string) {
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, r := range rows {
		fmt.Fprintln(w, strings.Join(r, "\t"))
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
