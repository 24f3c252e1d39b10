// Package timeline holds the export unit handed to the emitters: a titled
// project with an ordered list of clips placed on a video track and up to two
// audio tracks.
package timeline

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/studiokit/render-agent/internal/timecode"
)

type Track string

const (
	TrackVideo  Track = "V"
	TrackAudio1 Track = "A1"
	TrackAudio2 Track = "A2"
)

func ParseTrack(s string) (Track, error) {
	t := Track(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown track %q", s)
	}
	return t, nil
}

// UnmarshalText lets timeline files and API bodies spell tracks in any case.
// Unknown designators are kept verbatim for Validate to report.
func (t *Track) UnmarshalText(text []byte) error {
	if parsed, err := ParseTrack(string(text)); err == nil {
		*t = parsed
		return nil
	}
	*t = Track(text)
	return nil
}

func (t Track) Valid() bool {
	switch t {
	case TrackVideo, TrackAudio1, TrackAudio2:
		return true
	default:
		return false
	}
}

func (t Track) IsAudio() bool {
	return t == TrackAudio1 || t == TrackAudio2
}

// Clip is one placed media event. The used source range is
// [SourceIn, SourceIn+Duration); SourceIn is zero unless the clip is trimmed.
type Clip struct {
	Name       string  `json:"clip_name" yaml:"clip_name"`
	SourceFile string  `json:"source_file" yaml:"source_file"`
	StartTime  float64 `json:"start_time" yaml:"start_time"`
	Duration   float64 `json:"duration" yaml:"duration"`
	Track      Track   `json:"track" yaml:"track"`
	SourceIn   float64 `json:"source_in,omitempty" yaml:"source_in,omitempty"`
}

// End is the record-out position on the master timeline.
func (c Clip) End() float64 {
	return c.StartTime + c.Duration
}

type Project struct {
	Title     string  `json:"title" yaml:"title"`
	FrameRate float64 `json:"frame_rate" yaml:"frame_rate"`
	Clips     []Clip  `json:"clips" yaml:"clips"`
}

// Timebase returns the integer frame rate every timecode in this project is
// quantized to. Call Validate first; an invalid rate yields zero.
func (p Project) Timebase() int {
	fps, err := timecode.Timebase(p.FrameRate)
	if err != nil {
		return 0
	}
	return fps
}

// Duration is the furthest clip end on any track.
func (p Project) Duration() float64 {
	var end float64
	for _, c := range p.Clips {
		end = math.Max(end, c.End())
	}
	return end
}

func (p Project) ClipsOnTrack(track Track) []Clip {
	var out []Clip
	for _, c := range p.Clips {
		if c.Track == track {
			out = append(out, c)
		}
	}
	return out
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return &InvalidProjectError{Field: "title", Reason: "must not be empty"}
	}
	if hasControl(p.Title) {
		return &InvalidProjectError{Field: "title", Reason: "must not contain control characters"}
	}
	fps, err := timecode.Timebase(p.FrameRate)
	if err != nil {
		return &InvalidProjectError{Field: "frame_rate", Reason: fmt.Sprintf("%v is not a usable frame rate", p.FrameRate)}
	}

	for i, c := range p.Clips {
		if err := c.validate(i, fps); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks a clip on its own. Frame-level checks need the project's
// timebase and only run from Project.Validate.
func (c Clip) Validate() error {
	return c.validate(-1, 0)
}

func (c Clip) validate(index, fps int) error {
	fail := func(field, reason string) error {
		return &InvalidClipError{Index: index, Name: c.Name, Field: field, Reason: reason}
	}

	if !finite(c.StartTime) || c.StartTime < 0 {
		return fail("start_time", "must be a finite value >= 0")
	}
	if !finite(c.Duration) || c.Duration <= 0 {
		return fail("duration", "must be a finite value > 0")
	}
	if !finite(c.SourceIn) || c.SourceIn < 0 {
		return fail("source_in", "must be a finite value >= 0")
	}
	if !c.Track.Valid() {
		return fail("track", fmt.Sprintf("%q is not one of V, A1, A2", c.Track))
	}
	if hasControl(c.Name) {
		return fail("clip_name", "must not contain control characters")
	}
	if hasControl(c.SourceFile) {
		return fail("source_file", "must not contain control characters")
	}
	if fps > 0 {
		if err := c.validateFrames(fps, fail); err != nil {
			return err
		}
	}
	return nil
}

// validateFrames checks that the record and source ranges quantize to at
// least one frame and that every in and out point has a timecode.
func (c Clip) validateFrames(fps int, fail func(field, reason string) error) error {
	ranges := []struct {
		field string
		in    float64
	}{
		{field: "start_time", in: c.StartTime},
		{field: "source_in", in: c.SourceIn},
	}
	for _, r := range ranges {
		in, err := timecode.FrameCount(r.in, fps)
		if err != nil {
			return fail(r.field, fmt.Sprintf("has no timecode at %d fps: %v", fps, err))
		}
		out, err := timecode.FrameCount(r.in+c.Duration, fps)
		if err != nil {
			return fail("duration", fmt.Sprintf("ends past the timecode range from %s: %v", r.field, err))
		}
		if out == in {
			return fail("duration", fmt.Sprintf("%v s is shorter than one frame at %d fps", c.Duration, fps))
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}
