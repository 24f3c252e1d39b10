// Package render turns persisted studio state into exported timelines and
// drives render jobs to completion.
package render

import (
	"fmt"
	"math"

	"github.com/studiokit/render-agent/internal/studio"
	"github.com/studiokit/render-agent/internal/timeline"
)

// Assemble lays out a project's records on the V, A1 and A2 tracks.
//
// Scenes play back to back on V from zero in position order. Voiceover
// segments go on A1 at their scene's start plus offset, or at the offset
// itself when detached. The music bed runs on A2 from zero and is trimmed to
// the video length. Records with a non-positive duration are skipped and
// reported in the returned warnings.
func Assemble(state *studio.ProjectState) (timeline.Project, []string) {
	p := timeline.Project{
		Title:     state.Project.Title,
		FrameRate: state.Project.FrameRate,
	}
	var warnings []string

	sceneStart := make(map[string]float64, len(state.Scenes))
	cursor := 0.0
	for _, s := range state.Scenes {
		sceneStart[s.ID] = cursor
		if !playable(s.DurationS) {
			warnings = append(warnings, fmt.Sprintf("scene %q skipped: duration %v", s.Name, s.DurationS))
			continue
		}
		p.Clips = append(p.Clips, timeline.Clip{
			Name:       s.Name,
			SourceFile: s.VideoURL,
			StartTime:  cursor,
			Duration:   s.DurationS,
			Track:      timeline.TrackVideo,
		})
		cursor += s.DurationS
	}
	videoLength := cursor

	for _, v := range state.Voiceover {
		if !playable(v.DurationS) {
			warnings = append(warnings, fmt.Sprintf("voiceover %q skipped: duration %v", v.Name, v.DurationS))
			continue
		}
		start := v.OffsetS
		if base, ok := sceneStart[v.SceneID]; ok && v.SceneID != "" {
			start += base
		}
		p.Clips = append(p.Clips, timeline.Clip{
			Name:       v.Name,
			SourceFile: v.AudioURL,
			StartTime:  start,
			Duration:   v.DurationS,
			Track:      timeline.TrackAudio1,
		})
	}

	if m := state.Music; m != nil {
		length := math.Min(m.DurationS, videoLength)
		switch {
		case !playable(m.DurationS):
			warnings = append(warnings, fmt.Sprintf("music %q skipped: duration %v", m.Name, m.DurationS))
		case !playable(length):
			warnings = append(warnings, fmt.Sprintf("music %q skipped: no video to score", m.Name))
		default:
			p.Clips = append(p.Clips, timeline.Clip{
				Name:       m.Name,
				SourceFile: m.AudioURL,
				Duration:   length,
				Track:      timeline.TrackAudio2,
			})
		}
	}

	return p, warnings
}

func playable(d float64) bool {
	return d > 0 && !math.IsInf(d, 0) && !math.IsNaN(d)
}
