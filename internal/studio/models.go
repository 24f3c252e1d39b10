// Package studio persists the upstream render-pipeline state of a Studio
// project (scenes, voiceover segments, music bed) and its render jobs.
package studio

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrRenderInProgress = errors.New("a render is already pending or running for this project")
)

type Project struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	FrameRate float64   `json:"frame_rate"`
	CreatedAt time.Time `json:"created_at"`
}

// Scene is one generated video shot. Scenes play back-to-back in Position order.
type Scene struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Position  int       `json:"position"`
	Name      string    `json:"name"`
	VideoURL  string    `json:"video_url"`
	DurationS float64   `json:"duration_s"`
	CreatedAt time.Time `json:"created_at"`
}

// VoiceoverSegment is a narration clip. OffsetS is relative to the start of
// SceneID when set, otherwise to the start of the timeline.
type VoiceoverSegment struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	SceneID   string    `json:"scene_id,omitempty"`
	Position  int       `json:"position"`
	Name      string    `json:"name"`
	AudioURL  string    `json:"audio_url"`
	OffsetS   float64   `json:"offset_s"`
	DurationS float64   `json:"duration_s"`
	CreatedAt time.Time `json:"created_at"`
}

type MusicBed struct {
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	AudioURL  string    `json:"audio_url"`
	DurationS float64   `json:"duration_s"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

type RenderJob struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	EDLURL    string    `json:"edl_url,omitempty"`
	FCPXMLURL string    `json:"fcpxml_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the job still occupies its project's render slot.
func (j *RenderJob) Active() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusRunning
}

func NewID() string {
	return uuid.NewString()
}
