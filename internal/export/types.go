package export

import (
	"fmt"
	"strings"

	"github.com/studiokit/render-agent/internal/timeline"
)

type Format string

const (
	FormatEDL    Format = "edl"
	FormatFCPXML Format = "fcpxml"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatEDL, FormatFCPXML:
		return f, nil
	default:
		return "", fmt.Errorf("format must be edl or fcpxml")
	}
}

func (f Format) Extension() string {
	return string(f)
}

func (f Format) ContentType() string {
	if f == FormatFCPXML {
		return "application/xml; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

// Generate dispatches to the emitter for f.
func Generate(p timeline.Project, f Format) ([]byte, error) {
	switch f {
	case FormatEDL:
		edl, err := GenerateEDL(p)
		if err != nil {
			return nil, err
		}
		return []byte(edl), nil
	case FormatFCPXML:
		return GenerateFCPXML(p)
	default:
		return nil, fmt.Errorf("unsupported export format %q", f)
	}
}

// ExportRequest is a timeline submitted for direct export. When OutputDir is
// set the document is written there instead of being returned.
type ExportRequest struct {
	Format    string          `json:"format"`
	OutputDir string          `json:"output_dir,omitempty"`
	Title     string          `json:"title"`
	FrameRate float64         `json:"frame_rate"`
	Clips     []timeline.Clip `json:"clips"`
}

func (r ExportRequest) Project() timeline.Project {
	return timeline.Project{Title: r.Title, FrameRate: r.FrameRate, Clips: r.Clips}
}

type ExportResponse struct {
	Status     string `json:"status"`
	Format     string `json:"format"`
	OutputPath string `json:"output_path"`
	ClipCount  int    `json:"clip_count"`
}
