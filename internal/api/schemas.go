package api

import (
	"time"

	"github.com/studiokit/render-agent/internal/studio"
	"github.com/studiokit/render-agent/internal/timeline"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State         string       `json:"state"`
	LastError     string       `json:"last_error,omitempty"`
	ProjectsCount int          `json:"projects_count"`
	JobsRunning   int          `json:"jobs_running"`
	JobsPending   int          `json:"jobs_pending"`
	ActiveJob     *JobResponse `json:"active_job,omitempty"`
}

type CreateProjectRequest struct {
	Title     string  `json:"title"`
	FrameRate float64 `json:"frame_rate,omitempty"`
}

type ProjectResponse struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	FrameRate float64 `json:"frame_rate"`
	CreatedAt string  `json:"created_at"`
}

type ProjectsResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

// ProjectDetailResponse is a project with its render-pipeline records.
type ProjectDetailResponse struct {
	ProjectResponse
	Scenes    []*studio.Scene            `json:"scenes"`
	Voiceover []*studio.VoiceoverSegment `json:"voiceover"`
	Music     *studio.MusicBed           `json:"music,omitempty"`
}

type TimelineResponse struct {
	Title     string          `json:"title"`
	FrameRate float64         `json:"frame_rate"`
	DurationS float64         `json:"duration_s"`
	Clips     []timeline.Clip `json:"clips"`
	Warnings  []string        `json:"warnings,omitempty"`
}

type RenderResponse struct {
	JobID string `json:"job_id"`
}

type JobResponse struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Error     string `json:"error,omitempty"`
	EDLURL    string `json:"edl_url,omitempty"`
	FCPXMLURL string `json:"fcpxml_url,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func ProjectToResponse(p *studio.Project) ProjectResponse {
	return ProjectResponse{
		ID:        p.ID,
		Title:     p.Title,
		FrameRate: p.FrameRate,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

func JobToResponse(j *studio.RenderJob) JobResponse {
	return JobResponse{
		ID:        j.ID,
		ProjectID: j.ProjectID,
		Status:    j.Status,
		Progress:  j.Progress,
		Error:     j.Error,
		EDLURL:    j.EDLURL,
		FCPXMLURL: j.FCPXMLURL,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
