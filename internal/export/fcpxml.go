package export

import (
	"encoding/xml"
	"fmt"

	"github.com/studiokit/render-agent/internal/timecode"
	"github.com/studiokit/render-agent/internal/timeline"
)

const fcpxmlVersion = "1.9"

type fcpxmlDoc struct {
	XMLName   xml.Name        `xml:"fcpxml"`
	Version   string          `xml:"version,attr"`
	Resources fcpxmlResources `xml:"resources"`
	Library   fcpxmlLibrary   `xml:"library"`
}

type fcpxmlResources struct {
	Format fcpxmlFormat  `xml:"format"`
	Assets []fcpxmlAsset `xml:"asset"`
}

type fcpxmlFormat struct {
	ID            string `xml:"id,attr"`
	Name          string `xml:"name,attr"`
	FrameDuration string `xml:"frameDuration,attr"`
}

type fcpxmlAsset struct {
	ID       string `xml:"id,attr"`
	Name     string `xml:"name,attr"`
	Src      string `xml:"src,attr"`
	Start    string `xml:"start,attr"`
	Duration string `xml:"duration,attr"`
	HasVideo string `xml:"hasVideo,attr,omitempty"`
	HasAudio string `xml:"hasAudio,attr,omitempty"`
	Format   string `xml:"format,attr,omitempty"`
}

type fcpxmlLibrary struct {
	Event fcpxmlEvent `xml:"event"`
}

type fcpxmlEvent struct {
	Name    string        `xml:"name,attr"`
	Project fcpxmlProject `xml:"project"`
}

type fcpxmlProject struct {
	Name     string         `xml:"name,attr"`
	Sequence fcpxmlSequence `xml:"sequence"`
}

type fcpxmlSequence struct {
	Format   string      `xml:"format,attr"`
	Duration string      `xml:"duration,attr"`
	TCStart  string      `xml:"tcStart,attr"`
	TCFormat string      `xml:"tcFormat,attr"`
	Spine    fcpxmlSpine `xml:"spine"`
}

type fcpxmlSpine struct {
	Gap fcpxmlGap `xml:"gap"`
}

type fcpxmlGap struct {
	Name     string            `xml:"name,attr"`
	Offset   string            `xml:"offset,attr"`
	Start    string            `xml:"start,attr"`
	Duration string            `xml:"duration,attr"`
	Clips    []fcpxmlAssetClip `xml:"asset-clip"`
}

type fcpxmlAssetClip struct {
	Ref      string `xml:"ref,attr"`
	Lane     int    `xml:"lane,attr"`
	Offset   string `xml:"offset,attr"`
	Start    string `xml:"start,attr"`
	Duration string `xml:"duration,attr"`
	Name     string `xml:"name,attr"`
}

var fcpxmlLanes = map[timeline.Track]int{
	timeline.TrackVideo:  1,
	timeline.TrackAudio1: -1,
	timeline.TrackAudio2: -2,
}

// GenerateFCPXML renders the project as an FCPXML document. Every clip hangs
// off a single spine gap as a connected clip, one lane per track; times are
// quantized to the same frames as the EDL.
func GenerateFCPXML(p timeline.Project) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	fps := p.Timebase()

	doc := fcpxmlDoc{
		Version: fcpxmlVersion,
		Resources: fcpxmlResources{
			Format: fcpxmlFormat{
				ID:            "r1",
				Name:          fmt.Sprintf("FFVideoFormat%dp", fps),
				FrameDuration: fmt.Sprintf("1/%ds", fps),
			},
		},
	}

	assetIDs := make(map[string]int)
	assetEnds := make(map[string]int64)
	var totalFrames int64
	clips := make([]fcpxmlAssetClip, 0, len(p.Clips))

	for i, clip := range p.Clips {
		frames, err := clipFrames(clip, fps)
		if err != nil {
			return nil, fmt.Errorf("clip %d: %w", i, err)
		}

		idx, ok := assetIDs[clip.SourceFile]
		if !ok {
			idx = len(doc.Resources.Assets)
			assetIDs[clip.SourceFile] = idx
			doc.Resources.Assets = append(doc.Resources.Assets, fcpxmlAsset{
				ID:    fmt.Sprintf("r%d", idx+2),
				Name:  clip.Name,
				Src:   clip.SourceFile,
				Start: "0s",
			})
		}
		asset := &doc.Resources.Assets[idx]
		if clip.Track.IsAudio() {
			asset.HasAudio = "1"
		} else {
			asset.HasVideo = "1"
			asset.Format = doc.Resources.Format.ID
		}
		assetEnds[clip.SourceFile] = max(assetEnds[clip.SourceFile], frames.srcIn+frames.duration)
		totalFrames = max(totalFrames, frames.recIn+frames.duration)

		clips = append(clips, fcpxmlAssetClip{
			Ref:      asset.ID,
			Lane:     fcpxmlLanes[clip.Track],
			Offset:   rationalTime(frames.recIn, fps),
			Start:    rationalTime(frames.srcIn, fps),
			Duration: rationalTime(frames.duration, fps),
			Name:     clip.Name,
		})
	}

	for i := range doc.Resources.Assets {
		a := &doc.Resources.Assets[i]
		a.Duration = rationalTime(assetEnds[a.Src], fps)
	}

	total := rationalTime(totalFrames, fps)
	doc.Library.Event = fcpxmlEvent{
		Name: p.Title,
		Project: fcpxmlProject{
			Name: p.Title,
			Sequence: fcpxmlSequence{
				Format:   doc.Resources.Format.ID,
				Duration: total,
				TCStart:  "0s",
				TCFormat: "NDF",
				Spine: fcpxmlSpine{Gap: fcpxmlGap{
					Name:     "Gap",
					Offset:   "0s",
					Start:    "0s",
					Duration: total,
					Clips:    clips,
				}},
			},
		},
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal fcpxml: %w", err)
	}

	out := make([]byte, 0, len(xml.Header)+len(body)+32)
	out = append(out, xml.Header...)
	out = append(out, "<!DOCTYPE fcpxml>\n"...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}

type frameSpan struct {
	srcIn    int64
	recIn    int64
	duration int64
}

// clipFrames quantizes the in points and the out point independently, then
// derives the duration, so FCPXML and EDL agree on record in and out.
func clipFrames(c timeline.Clip, fps int) (frameSpan, error) {
	recIn, err := timecode.FrameCount(c.StartTime, fps)
	if err != nil {
		return frameSpan{}, err
	}
	recOut, err := timecode.FrameCount(c.End(), fps)
	if err != nil {
		return frameSpan{}, err
	}
	srcIn, err := timecode.FrameCount(c.SourceIn, fps)
	if err != nil {
		return frameSpan{}, err
	}
	return frameSpan{srcIn: srcIn, recIn: recIn, duration: recOut - recIn}, nil
}

func rationalTime(frames int64, fps int) string {
	if frames == 0 {
		return "0s"
	}
	return fmt.Sprintf("%d/%ds", frames, fps)
}
