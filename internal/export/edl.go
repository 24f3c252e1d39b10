package export

import (
	"fmt"
	"strings"

	"github.com/studiokit/render-agent/internal/timecode"
	"github.com/studiokit/render-agent/internal/timeline"
)

// EDL event lines are fixed-column; legacy NLE parsers split on these widths.
const (
	edlClipNameWidth = 32
	edlTrackWidth    = 5
)

// GenerateEDL serializes the project as CMX 3600 text. Events are numbered in
// the order of p.Clips, never re-sorted by start time, and every event is a
// straight cut. The project is validated first and nothing is emitted on error.
func GenerateEDL(p timeline.Project) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	fps := p.Timebase()

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", p.Title)
	b.WriteString("FCM: NON-DROP FRAME\n")
	b.WriteString("\n")

	for i, clip := range p.Clips {
		ev, err := newEDLEvent(i+1, clip, fps)
		if err != nil {
			return "", fmt.Errorf("event %03d: %w", i+1, err)
		}
		if i > 0 {
			b.WriteString("\n")
		}
		ev.writeTo(&b)
	}

	return b.String(), nil
}

type edlEvent struct {
	number     int
	clipName   string
	sourceFile string
	track      timeline.Track
	srcIn      string
	srcOut     string
	recIn      string
	recOut     string
}

func newEDLEvent(number int, clip timeline.Clip, fps int) (edlEvent, error) {
	stamps := []float64{clip.SourceIn, clip.SourceIn + clip.Duration, clip.StartTime, clip.End()}
	codes := make([]string, len(stamps))
	for i, s := range stamps {
		tc, err := timecode.Format(s, fps)
		if err != nil {
			return edlEvent{}, err
		}
		codes[i] = tc
	}

	return edlEvent{
		number:     number,
		clipName:   clip.Name,
		sourceFile: clip.SourceFile,
		track:      clip.Track,
		srcIn:      codes[0],
		srcOut:     codes[1],
		recIn:      codes[2],
		recOut:     codes[3],
	}, nil
}

func (e edlEvent) writeTo(b *strings.Builder) {
	fmt.Fprintf(b, "%03d  %-*s %-*s C        %s %s %s %s\n",
		e.number,
		edlClipNameWidth, e.clipName,
		edlTrackWidth, e.track,
		e.srcIn, e.srcOut, e.recIn, e.recOut)
	fmt.Fprintf(b, "* FROM CLIP NAME: %s\n", e.clipName)
	fmt.Fprintf(b, "* SOURCE FILE: %s\n", e.sourceFile)
}
