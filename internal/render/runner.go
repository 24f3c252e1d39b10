package render

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/studiokit/render-agent/internal/logging"
	"github.com/studiokit/render-agent/internal/studio"
)

// Runner polls for pending render jobs and exports them one at a time.
type Runner struct {
	driver       *Driver
	repo         studio.Repository
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool
}

func NewRunner(driver *Driver, repo studio.Repository, pollInterval time.Duration, logger *slog.Logger) *Runner {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{
		driver:       driver,
		repo:         repo,
		logger:       logging.WithComponent(logger, "runner"),
		pollInterval: pollInterval,
	}
}

// Start blocks until ctx is canceled. Calling Start on a running Runner is a
// no-op.
func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}
	defer r.running.Store(false)

	r.logger.Info("render runner started", "poll_interval", r.pollInterval)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("render runner stopping")
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.ProcessNext(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("render runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("render runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// ProcessNext exports the oldest pending job, if any. It reports whether a
// job was picked up.
func (r *Runner) ProcessNext(ctx context.Context) bool {
	jobs, err := r.repo.ListPendingRenderJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending render jobs", "error", err)
		return false
	}
	if len(jobs) == 0 {
		return false
	}

	job := jobs[0]
	r.logger.Info("processing render job", "job_id", job.ID, "project_id", job.ProjectID)
	if _, err := r.driver.Export(ctx, job.ID); err != nil {
		r.logger.Warn("render job failed", "job_id", job.ID, "error", err)
	}
	return true
}

// ActiveJobCount returns the number of running render jobs among the most
// recent ones.
func (r *Runner) ActiveJobCount(ctx context.Context) int {
	jobs, err := r.repo.ListRenderJobs(ctx, 100)
	if err != nil {
		return 0
	}
	count := 0
	for _, j := range jobs {
		if j.Status == studio.JobStatusRunning {
			count++
		}
	}
	return count
}
