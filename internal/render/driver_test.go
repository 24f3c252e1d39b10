package render

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiokit/render-agent/internal/db"
	"github.com/studiokit/render-agent/internal/logging"
	"github.com/studiokit/render-agent/internal/storage"
	"github.com/studiokit/render-agent/internal/studio"
)

type memStore struct {
	mu   sync.Mutex
	objs map[string][]byte
	err  error
}

func newMemStore() *memStore {
	return &memStore{objs: make(map[string][]byte)}
}

func (m *memStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.objs[key] = data
	return "mem://" + key, nil
}

type fixture struct {
	svc   *studio.Service
	repo  studio.Repository
	store *memStore
	drv   *Driver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	repo := studio.NewRepository(database.Conn())
	svc := studio.NewService(repo, nil)
	store := newMemStore()
	return &fixture{svc: svc, repo: repo, store: store, drv: NewDriver(svc, repo, store, nil)}
}

func (f *fixture) seedProject(t *testing.T, title string) *studio.Project {
	t.Helper()
	ctx := context.Background()
	p, err := f.svc.CreateProject(ctx, title, 30)
	require.NoError(t, err)
	s1, err := f.svc.AddScene(ctx, p.ID, studio.SceneInput{Name: "Intro", VideoURL: "s1.mp4", DurationS: 2.5})
	require.NoError(t, err)
	_, err = f.svc.AddScene(ctx, p.ID, studio.SceneInput{Name: "Product", VideoURL: "s2.mp4", DurationS: 3})
	require.NoError(t, err)
	_, err = f.svc.AddVoiceover(ctx, p.ID, studio.VoiceoverInput{SceneID: s1.ID, Name: "VO", AudioURL: "vo.wav", OffsetS: 0.5, DurationS: 1.5})
	require.NoError(t, err)
	_, err = f.svc.SetMusic(ctx, p.ID, studio.MusicInput{AudioURL: "bed.mp3", DurationS: 60})
	require.NoError(t, err)
	return p
}

func TestDriver_Export(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(t, "Launch: Teaser")

	job, err := f.svc.RequestRender(ctx, p.ID)
	require.NoError(t, err)

	res, err := f.drv.Export(ctx, job.ID)
	require.NoError(t, err)

	prefix := p.ID + "/" + job.ID + "/"
	assert.Equal(t, "mem://"+prefix+"Launch_ Teaser.edl", res.EDLURL)
	assert.Equal(t, "mem://"+prefix+"Launch_ Teaser.fcpxml", res.FCPXMLURL)

	edl := string(f.store.objs[prefix+"Launch_ Teaser.edl"])
	assert.True(t, strings.HasPrefix(edl, "TITLE: Launch: Teaser\nFCM: NON-DROP FRAME\n\n001  Intro"), edl)
	assert.Contains(t, edl, "003  VO                               A1    C        00:00:00:00 00:00:01:15 00:00:00:15 00:00:02:00\n")
	assert.Contains(t, edl, "004  Music                            A2    C        00:00:00:00 00:00:05:15 00:00:00:00 00:00:05:15\n")
	assert.Contains(t, string(f.store.objs[prefix+"Launch_ Teaser.fcpxml"]), "<fcpxml version=\"1.9\">")

	got, err := f.svc.GetRenderJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, studio.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, res.EDLURL, got.EDLURL)
	assert.Equal(t, res.FCPXMLURL, got.FCPXMLURL)
}

func TestDriver_Export_StoreFailureMarksJobFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(t, "Teaser")
	f.store.err = errors.New("bucket unavailable")

	job, err := f.svc.RequestRender(ctx, p.ID)
	require.NoError(t, err)

	_, err = f.drv.Export(ctx, job.ID)
	require.Error(t, err)

	got, err := f.svc.GetRenderJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, studio.JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, "bucket unavailable")

	_, err = f.svc.RequestRender(ctx, p.ID)
	assert.NoError(t, err, "a failed job frees the project's render slot")
}

func TestDriver_Export_UploadErrorRetryability(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantSuffix bool
	}{
		{name: "server error", status: 503, wantSuffix: true},
		{name: "client error", status: 403, wantSuffix: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			var logs bytes.Buffer
			f.drv = NewDriver(f.svc, f.repo, f.store, logging.NewLoggerTo(&logs, "info"))
			f.store.err = &storage.UploadError{StatusCode: tc.status, Body: "nope"}

			p := f.seedProject(t, "Teaser")
			job, err := f.svc.RequestRender(ctx, p.ID)
			require.NoError(t, err)

			_, err = f.drv.Export(ctx, job.ID)
			var upErr *storage.UploadError
			require.ErrorAs(t, err, &upErr)

			got, err := f.svc.GetRenderJob(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, studio.JobStatusFailed, got.Status)
			assert.Equal(t, tc.wantSuffix, strings.HasSuffix(got.Error, " (retryable)"), got.Error)
			if tc.wantSuffix {
				assert.Contains(t, logs.String(), `"retryable":true`)
			} else {
				assert.Contains(t, logs.String(), `"retryable":false`)
			}
		})
	}
}

func TestDriver_Export_SubFrameSceneMarksJobFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.CreateProject(ctx, "Teaser", 30)
	require.NoError(t, err)
	_, err = f.svc.AddScene(ctx, p.ID, studio.SceneInput{Name: "Blip", VideoURL: "s.mp4", DurationS: 0.01})
	require.NoError(t, err)

	job, err := f.svc.RequestRender(ctx, p.ID)
	require.NoError(t, err)

	_, err = f.drv.Export(ctx, job.ID)
	require.Error(t, err)

	got, _ := f.svc.GetRenderJob(ctx, job.ID)
	assert.Equal(t, studio.JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, "shorter than one frame")
	assert.Empty(t, f.store.objs)
}

func TestDriver_Export_InvalidTimelineMarksJobFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.CreateProject(ctx, "Teaser", 30)
	require.NoError(t, err)
	_, err = f.svc.AddScene(ctx, p.ID, studio.SceneInput{Name: "Bad\nName", VideoURL: "s.mp4", DurationS: 1})
	require.NoError(t, err)

	job, err := f.svc.RequestRender(ctx, p.ID)
	require.NoError(t, err)

	_, err = f.drv.Export(ctx, job.ID)
	require.Error(t, err)

	got, _ := f.svc.GetRenderJob(ctx, job.ID)
	assert.Equal(t, studio.JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, "clip_name")
	assert.Empty(t, f.store.objs)
}

func TestDriver_Export_UnknownJob(t *testing.T) {
	f := newFixture(t)
	_, err := f.drv.Export(context.Background(), "missing")
	assert.ErrorIs(t, err, studio.ErrNotFound)
}

func TestRunner_ProcessNext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(t, "Teaser")
	job, err := f.svc.RequestRender(ctx, p.ID)
	require.NoError(t, err)

	r := NewRunner(f.drv, f.repo, time.Hour, nil)
	assert.True(t, r.ProcessNext(ctx))
	assert.False(t, r.ProcessNext(ctx), "queue should be drained")

	got, _ := f.svc.GetRenderJob(ctx, job.ID)
	assert.Equal(t, studio.JobStatusCompleted, got.Status)
	assert.Equal(t, 0, r.ActiveJobCount(ctx))
}

func TestRunner_StartStop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(t, "Teaser")
	job, err := f.svc.RequestRender(ctx, p.ID)
	require.NoError(t, err)

	r := NewRunner(f.drv, f.repo, 10*time.Millisecond, nil)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		r.Start(runCtx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		got, _ := f.svc.GetRenderJob(ctx, job.ID)
		return got != nil && got.Status == studio.JobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "runner did not stop")
	}
	assert.False(t, r.IsRunning())
}

func TestRunner_PauseResume(t *testing.T) {
	r := NewRunner(nil, nil, 0, nil)
	assert.False(t, r.IsPaused())
	r.Pause()
	assert.True(t, r.IsPaused())
	r.Resume()
	assert.False(t, r.IsPaused())
}
