package studio

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/studiokit/render-agent/internal/timecode"
)

type SceneInput struct {
	Name      string  `json:"name"`
	VideoURL  string  `json:"video_url"`
	DurationS float64 `json:"duration_s"`
}

type VoiceoverInput struct {
	SceneID   string  `json:"scene_id,omitempty"`
	Name      string  `json:"name"`
	AudioURL  string  `json:"audio_url"`
	OffsetS   float64 `json:"offset_s"`
	DurationS float64 `json:"duration_s"`
}

type MusicInput struct {
	Name      string  `json:"name"`
	AudioURL  string  `json:"audio_url"`
	DurationS float64 `json:"duration_s"`
}

// ProjectState is everything the export driver needs to assemble a timeline.
type ProjectState struct {
	Project   *Project
	Scenes    []*Scene
	Voiceover []*VoiceoverSegment
	Music     *MusicBed
}

type StudioService interface {
	CreateProject(ctx context.Context, title string, frameRate float64) (*Project, error)
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	AddScene(ctx context.Context, projectID string, in SceneInput) (*Scene, error)
	AddVoiceover(ctx context.Context, projectID string, in VoiceoverInput) (*VoiceoverSegment, error)
	SetMusic(ctx context.Context, projectID string, in MusicInput) (*MusicBed, error)
	LoadState(ctx context.Context, projectID string) (*ProjectState, error)
	RequestRender(ctx context.Context, projectID string) (*RenderJob, error)
	GetRenderJob(ctx context.Context, id string) (*RenderJob, error)
	ListRenderJobs(ctx context.Context, limit int) ([]*RenderJob, error)
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) CreateProject(ctx context.Context, title string, frameRate float64) (*Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if _, err := timecode.Timebase(frameRate); err != nil {
		return nil, fmt.Errorf("%w: frame_rate %v: %v", ErrInvalidInput, frameRate, err)
	}

	p := &Project{
		ID:        NewID(),
		Title:     title,
		FrameRate: frameRate,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("project created", "project_id", p.ID, "frame_rate", frameRate)
	}
	return p, nil
}

func (s *Service) GetProject(ctx context.Context, id string) (*Project, error) {
	return s.repo.GetProject(ctx, id)
}

func (s *Service) ListProjects(ctx context.Context) ([]*Project, error) {
	return s.repo.ListProjects(ctx)
}

func (s *Service) AddScene(ctx context.Context, projectID string, in SceneInput) (*Scene, error) {
	if _, err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.VideoURL) == "" {
		return nil, fmt.Errorf("%w: video_url is required", ErrInvalidInput)
	}
	if err := positiveDuration(in.DurationS); err != nil {
		return nil, err
	}

	existing, err := s.repo.ListScenes(ctx, projectID)
	if err != nil {
		return nil, err
	}

	scene := &Scene{
		ID:        NewID(),
		ProjectID: projectID,
		Position:  len(existing),
		Name:      defaultName(in.Name, "Scene", len(existing)),
		VideoURL:  in.VideoURL,
		DurationS: in.DurationS,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateScene(ctx, scene); err != nil {
		return nil, err
	}
	return scene, nil
}

func (s *Service) AddVoiceover(ctx context.Context, projectID string, in VoiceoverInput) (*VoiceoverSegment, error) {
	if _, err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.AudioURL) == "" {
		return nil, fmt.Errorf("%w: audio_url is required", ErrInvalidInput)
	}
	if err := positiveDuration(in.DurationS); err != nil {
		return nil, err
	}
	if math.IsNaN(in.OffsetS) || math.IsInf(in.OffsetS, 0) || in.OffsetS < 0 {
		return nil, fmt.Errorf("%w: offset_s must be >= 0", ErrInvalidInput)
	}
	if in.SceneID != "" {
		scene, err := s.repo.GetScene(ctx, in.SceneID)
		if err != nil {
			return nil, err
		}
		if scene == nil || scene.ProjectID != projectID {
			return nil, fmt.Errorf("%w: scene %s does not belong to project", ErrInvalidInput, in.SceneID)
		}
	}

	existing, err := s.repo.ListVoiceover(ctx, projectID)
	if err != nil {
		return nil, err
	}

	seg := &VoiceoverSegment{
		ID:        NewID(),
		ProjectID: projectID,
		SceneID:   in.SceneID,
		Position:  len(existing),
		Name:      defaultName(in.Name, "Voiceover", len(existing)),
		AudioURL:  in.AudioURL,
		OffsetS:   in.OffsetS,
		DurationS: in.DurationS,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateVoiceover(ctx, seg); err != nil {
		return nil, err
	}
	return seg, nil
}

func (s *Service) SetMusic(ctx context.Context, projectID string, in MusicInput) (*MusicBed, error) {
	if _, err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.AudioURL) == "" {
		return nil, fmt.Errorf("%w: audio_url is required", ErrInvalidInput)
	}
	if err := positiveDuration(in.DurationS); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = "Music"
	}
	m := &MusicBed{
		ProjectID: projectID,
		Name:      name,
		AudioURL:  in.AudioURL,
		DurationS: in.DurationS,
		UpdatedAt: time.Now(),
	}
	if err := s.repo.SetMusic(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) LoadState(ctx context.Context, projectID string) (*ProjectState, error) {
	project, err := s.requireProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	scenes, err := s.repo.ListScenes(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	voiceover, err := s.repo.ListVoiceover(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list voiceover: %w", err)
	}
	music, err := s.repo.GetMusic(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("get music: %w", err)
	}

	return &ProjectState{Project: project, Scenes: scenes, Voiceover: voiceover, Music: music}, nil
}

// RequestRender queues a render job. Only one job per project may be pending
// or running at a time.
func (s *Service) RequestRender(ctx context.Context, projectID string) (*RenderJob, error) {
	if _, err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}

	now := time.Now()
	job := &RenderJob{
		ID:        NewID(),
		ProjectID: projectID,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateRenderJobIfIdle(ctx, job); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("render job created", "job_id", job.ID, "project_id", projectID)
	}
	return job, nil
}

func (s *Service) GetRenderJob(ctx context.Context, id string) (*RenderJob, error) {
	return s.repo.GetRenderJob(ctx, id)
}

func (s *Service) ListRenderJobs(ctx context.Context, limit int) ([]*RenderJob, error) {
	return s.repo.ListRenderJobs(ctx, limit)
}

func (s *Service) requireProject(ctx context.Context, id string) (*Project, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return p, nil
}

func positiveDuration(d float64) error {
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return fmt.Errorf("%w: duration_s must be > 0", ErrInvalidInput)
	}
	return nil
}

func defaultName(name, prefix string, index int) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return fmt.Sprintf("%s %d", prefix, index+1)
}
