package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/studiokit/render-agent/internal/export"
	"github.com/studiokit/render-agent/internal/logging"
	"github.com/studiokit/render-agent/internal/storage"
	"github.com/studiokit/render-agent/internal/studio"
)

// Driver runs a single render job: assemble, emit, store, record.
type Driver struct {
	service studio.StudioService
	repo    studio.Repository
	store   storage.Store
	logger  *slog.Logger
}

func NewDriver(service studio.StudioService, repo studio.Repository, store storage.Store, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Driver{
		service: service,
		repo:    repo,
		store:   store,
		logger:  logging.WithComponent(logger, "render"),
	}
}

// Result holds the stored document URLs of a completed job.
type Result struct {
	EDLURL    string
	FCPXMLURL string
}

// Export renders jobID. Any failure after the job is found marks it failed
// with the error message; nothing is retried.
func (d *Driver) Export(ctx context.Context, jobID string) (*Result, error) {
	job, err := d.repo.GetRenderJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load render job: %w", err)
	}
	if job == nil {
		return nil, fmt.Errorf("render job %s: %w", jobID, studio.ErrNotFound)
	}

	log := logging.WithProjectID(logging.WithJobID(d.logger, job.ID), job.ProjectID)

	res, err := d.run(ctx, log, job)
	if err != nil {
		msg := err.Error()
		retryable := retryableUpload(err)
		if retryable {
			msg += " (retryable)"
		}
		// The job context may already be canceled; record the failure regardless.
		if uerr := d.repo.UpdateRenderJobStatus(context.WithoutCancel(ctx), job.ID, studio.JobStatusFailed, msg); uerr != nil {
			log.Error("failed to mark job failed", "error", uerr)
		}
		log.Error("render failed", "error", err, "retryable", retryable)
		return nil, err
	}

	if err := d.repo.CompleteRenderJob(ctx, job.ID, res.EDLURL, res.FCPXMLURL); err != nil {
		return nil, fmt.Errorf("complete render job: %w", err)
	}
	log.Info("render completed", "edl_url", res.EDLURL, "fcpxml_url", res.FCPXMLURL)
	return res, nil
}

func (d *Driver) run(ctx context.Context, log *slog.Logger, job *studio.RenderJob) (*Result, error) {
	if err := d.repo.UpdateRenderJobStatus(ctx, job.ID, studio.JobStatusRunning, ""); err != nil {
		return nil, fmt.Errorf("mark running: %w", err)
	}

	state, err := d.service.LoadState(ctx, job.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}

	project, warnings := Assemble(state)
	for _, w := range warnings {
		log.Warn("assemble", "warning", w)
	}
	if err := project.Validate(); err != nil {
		return nil, err
	}
	d.progress(ctx, log, job.ID, 25)

	formats := []export.Format{export.FormatEDL, export.FormatFCPXML}
	urls := make([]string, len(formats))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range formats {
		g.Go(func() error {
			data, err := export.Generate(project, f)
			if err != nil {
				return fmt.Errorf("generate %s: %w", f, err)
			}
			key := fmt.Sprintf("%s/%s/%s", job.ProjectID, job.ID, export.FileName(project.Title, f))
			url, err := d.store.Put(gctx, key, f.ContentType(), data)
			if err != nil {
				return fmt.Errorf("store %s: %w", f, err)
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Debug("documents stored", "clips", len(project.Clips))
	return &Result{EDLURL: urls[0], FCPXMLURL: urls[1]}, nil
}

// retryableUpload reports whether err came from an object store that may
// accept the same upload later. The job still fails; a client re-requests it.
func retryableUpload(err error) bool {
	var upErr *storage.UploadError
	return errors.As(err, &upErr) && upErr.IsRetryable()
}

func (d *Driver) progress(ctx context.Context, log *slog.Logger, jobID string, pct int) {
	if err := d.repo.UpdateRenderJobProgress(ctx, jobID, pct); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("failed to update progress", "error", err)
	}
}
