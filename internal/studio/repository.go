package studio

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Fixed-width UTC timestamps keep lexical order equal to time order.
const timeLayout = "2006-01-02T15:04:05.000000Z"

type Repository interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)

	CreateScene(ctx context.Context, s *Scene) error
	ListScenes(ctx context.Context, projectID string) ([]*Scene, error)
	GetScene(ctx context.Context, id string) (*Scene, error)

	CreateVoiceover(ctx context.Context, v *VoiceoverSegment) error
	ListVoiceover(ctx context.Context, projectID string) ([]*VoiceoverSegment, error)

	SetMusic(ctx context.Context, m *MusicBed) error
	GetMusic(ctx context.Context, projectID string) (*MusicBed, error)

	CreateRenderJobIfIdle(ctx context.Context, j *RenderJob) error
	GetRenderJob(ctx context.Context, id string) (*RenderJob, error)
	ListRenderJobs(ctx context.Context, limit int) ([]*RenderJob, error)
	ListPendingRenderJobs(ctx context.Context) ([]*RenderJob, error)
	UpdateRenderJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateRenderJobProgress(ctx context.Context, id string, progress int) error
	CompleteRenderJob(ctx context.Context, id, edlURL, fcpxmlURL string) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateProject(ctx context.Context, p *Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (id, title, frame_rate, created_at)
		VALUES (?, ?, ?, ?)
	`, p.ID, p.Title, p.FrameRate, formatTime(p.CreatedAt))
	return err
}

func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (*Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, frame_rate, created_at FROM projects WHERE id = ?
	`, id)

	var p Project
	var createdAt string
	err := row.Scan(&p.ID, &p.Title, &p.FrameRate, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, frame_rate, created_at FROM projects ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		var p Project
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Title, &p.FrameRate, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt = parseTime(createdAt)
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

func (r *SQLiteRepository) CreateScene(ctx context.Context, s *Scene) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scenes (id, project_id, position, name, video_url, duration_s, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.ProjectID, s.Position, s.Name, s.VideoURL, s.DurationS, formatTime(s.CreatedAt))
	return err
}

func (r *SQLiteRepository) ListScenes(ctx context.Context, projectID string) ([]*Scene, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, position, name, video_url, duration_s, created_at
		FROM scenes WHERE project_id = ? ORDER BY position, created_at
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scenes []*Scene
	for rows.Next() {
		var s Scene
		var createdAt string
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Position, &s.Name, &s.VideoURL, &s.DurationS, &createdAt); err != nil {
			return nil, err
		}
		s.CreatedAt = parseTime(createdAt)
		scenes = append(scenes, &s)
	}
	return scenes, rows.Err()
}

func (r *SQLiteRepository) GetScene(ctx context.Context, id string) (*Scene, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, position, name, video_url, duration_s, created_at
		FROM scenes WHERE id = ?
	`, id)

	var s Scene
	var createdAt string
	err := row.Scan(&s.ID, &s.ProjectID, &s.Position, &s.Name, &s.VideoURL, &s.DurationS, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.CreatedAt = parseTime(createdAt)
	return &s, nil
}

func (r *SQLiteRepository) CreateVoiceover(ctx context.Context, v *VoiceoverSegment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO voiceover_segments (id, project_id, scene_id, position, name, audio_url, offset_s, duration_s, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, v.ID, v.ProjectID, nullString(v.SceneID), v.Position, v.Name, v.AudioURL, v.OffsetS, v.DurationS, formatTime(v.CreatedAt))
	return err
}

func (r *SQLiteRepository) ListVoiceover(ctx context.Context, projectID string) ([]*VoiceoverSegment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, scene_id, position, name, audio_url, offset_s, duration_s, created_at
		FROM voiceover_segments WHERE project_id = ? ORDER BY position, created_at
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []*VoiceoverSegment
	for rows.Next() {
		var v VoiceoverSegment
		var sceneID sql.NullString
		var createdAt string
		if err := rows.Scan(&v.ID, &v.ProjectID, &sceneID, &v.Position, &v.Name, &v.AudioURL, &v.OffsetS, &v.DurationS, &createdAt); err != nil {
			return nil, err
		}
		v.SceneID = sceneID.String
		v.CreatedAt = parseTime(createdAt)
		segments = append(segments, &v)
	}
	return segments, rows.Err()
}

func (r *SQLiteRepository) SetMusic(ctx context.Context, m *MusicBed) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO music_beds (project_id, name, audio_url, duration_s, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			name = excluded.name,
			audio_url = excluded.audio_url,
			duration_s = excluded.duration_s,
			updated_at = excluded.updated_at
	`, m.ProjectID, m.Name, m.AudioURL, m.DurationS, formatTime(m.UpdatedAt))
	return err
}

func (r *SQLiteRepository) GetMusic(ctx context.Context, projectID string) (*MusicBed, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT project_id, name, audio_url, duration_s, updated_at FROM music_beds WHERE project_id = ?
	`, projectID)

	var m MusicBed
	var updatedAt string
	err := row.Scan(&m.ProjectID, &m.Name, &m.AudioURL, &m.DurationS, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.UpdatedAt = parseTime(updatedAt)
	return &m, nil
}

const renderJobColumns = `id, project_id, status, progress, error, edl_url, fcpxml_url, created_at, updated_at`

// CreateRenderJobIfIdle inserts j unless the project already has a pending or
// running job, in which case it returns ErrRenderInProgress.
func (r *SQLiteRepository) CreateRenderJobIfIdle(ctx context.Context, j *RenderJob) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var active int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM render_jobs WHERE project_id = ? AND status IN ('pending', 'running')
	`, j.ProjectID).Scan(&active)
	if err != nil {
		return err
	}
	if active > 0 {
		return ErrRenderInProgress
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO render_jobs (`+renderJobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.ProjectID, j.Status, j.Progress, nullString(j.Error),
		nullString(j.EDLURL), nullString(j.FCPXMLURL),
		formatTime(j.CreatedAt), formatTime(j.UpdatedAt))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteRepository) GetRenderJob(ctx context.Context, id string) (*RenderJob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+renderJobColumns+` FROM render_jobs WHERE id = ?`, id)
	j, err := scanRenderJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return j, err
}

func (r *SQLiteRepository) ListRenderJobs(ctx context.Context, limit int) ([]*RenderJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+renderJobColumns+` FROM render_jobs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRenderJobs(rows)
}

func (r *SQLiteRepository) ListPendingRenderJobs(ctx context.Context) ([]*RenderJob, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+renderJobColumns+` FROM render_jobs WHERE status = 'pending' ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRenderJobs(rows)
}

func (r *SQLiteRepository) UpdateRenderJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE render_jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) UpdateRenderJobProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE render_jobs SET progress = ?, updated_at = ? WHERE id = ?
	`, progress, formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) CompleteRenderJob(ctx context.Context, id, edlURL, fcpxmlURL string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE render_jobs
		SET status = 'completed', progress = 100, error = NULL, edl_url = ?, fcpxml_url = ?, updated_at = ?
		WHERE id = ?
	`, nullString(edlURL), nullString(fcpxmlURL), formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRenderJob(row rowScanner) (*RenderJob, error) {
	var j RenderJob
	var errMsg, edlURL, fcpxmlURL sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&j.ID, &j.ProjectID, &j.Status, &j.Progress, &errMsg, &edlURL, &fcpxmlURL, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	j.Error = errMsg.String
	j.EDLURL = edlURL.String
	j.FCPXMLURL = fcpxmlURL.String
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	return &j, nil
}

func scanRenderJobs(rows *sql.Rows) ([]*RenderJob, error) {
	var jobs []*RenderJob
	for rows.Next() {
		j, err := scanRenderJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
