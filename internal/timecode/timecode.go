// Package timecode converts real-valued second offsets into frame-quantized
// SMPTE timecode (HH:MM:SS:FF) at an integer timebase.
//
// Offsets are quantized with round-half-away-from-zero, which on the accepted
// domain (seconds >= 0) is round-half-up. Hours are not wrapped at 24.
package timecode

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalidRate    = errors.New("timecode: frame rate must be positive")
	ErrNegativeOffset = errors.New("timecode: offset must be non-negative")
	ErrNotFinite      = errors.New("timecode: value must be finite")
	ErrMalformed      = errors.New("timecode: malformed timecode")
	ErrOutOfRange     = errors.New("timecode: offset exceeds the representable frame count")
)

// maxFrames is 2^63, the first frame count that no longer fits in an int64.
const maxFrames = float64(math.MaxInt64)

// Timecode is a decomposed non-drop-frame timecode.
type Timecode struct {
	Hours   int64
	Minutes int64
	Seconds int64
	Frames  int64
}

// Timebase returns the integer frame count per second used to quantize a
// possibly rational rate such as 23.976 or 29.97.
func Timebase(frameRate float64) (int, error) {
	if math.IsNaN(frameRate) || math.IsInf(frameRate, 0) {
		return 0, ErrNotFinite
	}
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		return 0, ErrInvalidRate
	}
	return fps, nil
}

// FrameCount quantizes seconds to a whole number of frames. Offsets whose
// frame count does not fit in an int64 fail with ErrOutOfRange.
func FrameCount(seconds float64, fps int) (int64, error) {
	if fps <= 0 {
		return 0, ErrInvalidRate
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, ErrNotFinite
	}
	if seconds < 0 {
		return 0, ErrNegativeOffset
	}
	frames := math.Round(seconds * float64(fps))
	if frames >= maxFrames {
		return 0, ErrOutOfRange
	}
	return int64(frames), nil
}

// FromFrames decomposes a frame count. totalFrames must be non-negative.
func FromFrames(totalFrames int64, fps int) Timecode {
	rate := int64(fps)
	totalSeconds := totalFrames / rate
	totalMinutes := totalSeconds / 60
	return Timecode{
		Hours:   totalMinutes / 60,
		Minutes: totalMinutes % 60,
		Seconds: totalSeconds % 60,
		Frames:  totalFrames % rate,
	}
}

func FromSeconds(seconds float64, fps int) (Timecode, error) {
	frames, err := FrameCount(seconds, fps)
	if err != nil {
		return Timecode{}, err
	}
	return FromFrames(frames, fps), nil
}

// Format is FromSeconds followed by String.
func Format(seconds float64, fps int) (string, error) {
	tc, err := FromSeconds(seconds, fps)
	if err != nil {
		return "", err
	}
	return tc.String(), nil
}

func (t Timecode) String() string {
	return fmt.Sprintf("%02d:%02d:%02d:%02d", t.Hours, t.Minutes, t.Seconds, t.Frames)
}

// TotalFrames recomposes the frame count at the given timebase.
func (t Timecode) TotalFrames(fps int) int64 {
	return ((t.Hours*3600+t.Minutes*60+t.Seconds)*int64(fps) + t.Frames)
}

// Parse reads HH:MM:SS:FF. Hours may have more than two digits; a semicolon
// before the frame field is accepted and treated like a colon.
func Parse(s string) (Timecode, error) {
	parts := strings.Split(strings.Replace(strings.TrimSpace(s), ";", ":", 1), ":")
	if len(parts) != 4 {
		return Timecode{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	var fields [4]int64
	for i, p := range parts {
		if len(p) < 2 {
			return Timecode{}, fmt.Errorf("%w: %q", ErrMalformed, s)
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return Timecode{}, fmt.Errorf("%w: %q", ErrMalformed, s)
		}
		fields[i] = n
	}
	if fields[1] > 59 || fields[2] > 59 {
		return Timecode{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	return Timecode{Hours: fields[0], Minutes: fields[1], Seconds: fields[2], Frames: fields[3]}, nil
}
