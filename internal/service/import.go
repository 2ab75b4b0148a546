package service

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jayClean/product-importer/internal/core"
	"github.com/jayClean/product-importer/internal/domain/model"
	"github.com/jayClean/product-importer/internal/errors"
	"github.com/jayClean/product-importer/internal/ingest"
	"github.com/jayClean/product-importer/internal/memoryx"
	"github.com/jayClean/product-importer/internal/storage"
)

// Failure classifications surfaced in the failed-job snapshot meta.
const (
	ErrorTypeValidation        = "validation"
	ErrorTypeResourceExhausted = "resource_exhausted"
	ErrorTypePersistence       = "persistence"
	ErrorTypeInternal          = "internal"
)

// ImportServiceOptions groups dependencies for ImportService.
type ImportServiceOptions struct {
	Jobs     *JobService            // Required: job lifecycle
	Products core.ProductRepository // Required: batch reconciliation
	Uploads  *storage.UploadStore   // Required: staged file resolution/cleanup
	Progress *ProgressService       // Optional: live snapshots
	Webhooks *WebhookService        // Optional: import.completed notifications
	Monitor  *memoryx.Monitor       // Optional: memory guardrails, defaults applied
	Logger   *slog.Logger           // Optional: structured logger
}

// ImportService runs the product import pipeline for one job at a time:
// resolve the staged file, count rows, stream adaptive batches into the
// product table, and keep the durable row and the live snapshot in step.
type ImportService struct {
	jobs     *JobService
	products core.ProductRepository
	uploads  *storage.UploadStore
	progress *ProgressService
	webhooks *WebhookService
	monitor  *memoryx.Monitor
	reader   *ingest.Reader
	logger   *slog.Logger
}

// NewImportService constructs a new ImportService.
func NewImportService(opts ImportServiceOptions) (*ImportService, error) {
	if opts.Jobs == nil {
		return nil, goerrors.New("JobService is required")
	}
	if opts.Products == nil {
		return nil, goerrors.New("ProductRepository is required")
	}
	if opts.Uploads == nil {
		return nil, goerrors.New("UploadStore is required")
	}

	monitor := opts.Monitor
	if monitor == nil {
		monitor = memoryx.New(memoryx.Options{})
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "import_service")

	return &ImportService{
		jobs:     opts.Jobs,
		products: opts.Products,
		uploads:  opts.Uploads,
		progress: opts.Progress,
		webhooks: opts.Webhooks,
		monitor:  monitor,
		reader:   ingest.NewReader(monitor, logger),
		logger:   logger,
	}, nil
}

// CreateFromUpload stages an uploaded CSV and enqueues an import job for it.
// The staged file is removed again if the job cannot be created.
func (s *ImportService) CreateFromUpload(ctx context.Context, r io.Reader, filename string) (*model.Job, error) {
	path, size, err := s.uploads.Stage(r)
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}

	payload, err := json.Marshal(model.ImportPayload{FilePath: path, Filename: filename})
	if err != nil {
		s.uploads.Cleanup(ctx, "", path)
		return nil, fmt.Errorf("marshal import payload: %w", err)
	}

	// Imports are not retried: a re-run over a partially applied file would
	// be safe (the upsert is idempotent) but hides real input problems.
	job, err := s.jobs.Create(ctx, &model.CreateJobRequest{
		Type:       model.JobTypeImport,
		Payload:    payload,
		MaxRetries: 0,
	})
	if err != nil {
		s.uploads.Cleanup(ctx, "", path)
		return nil, err
	}

	s.uploads.StageFallback(ctx, job.ID, path)
	s.publish(ctx, model.ProgressSnapshot{
		JobID:   job.ID,
		Message: "upload accepted, queued for import",
		Status:  model.JobStatusPending,
	})

	s.logger.InfoContext(ctx, "import job queued",
		"job_id", job.ID,
		"filename", filename,
		"bytes", size)
	return job, nil
}

// runState carries the last published progress so a mid-run failure keeps
// the snapshot at the point the import reached instead of resetting to zero.
type runState struct {
	progress float64
	meta     map[string]any
}

// Run executes one reserved import job. The returned error is the failure
// the caller should record on the job row; the failed snapshot and staged
// file cleanup have already happened by then.
func (s *ImportService) Run(ctx context.Context, job *model.Job) error {
	var st runState

	var payload model.ImportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		wrapped := errors.Wrap(err, errors.ErrCodeValidation, "decode import payload")
		s.finishFailed(ctx, job.ID, wrapped, &st)
		s.uploads.Cleanup(ctx, job.ID, "")
		return wrapped
	}

	path := payload.FilePath
	defer func() {
		s.uploads.Cleanup(ctx, job.ID, payload.FilePath)
		if path != payload.FilePath {
			s.uploads.Cleanup(ctx, job.ID, path)
		}
	}()

	err := s.runPipeline(ctx, job, payload, &path, &st)
	if err != nil {
		s.finishFailed(ctx, job.ID, err, &st)
		return err
	}
	return nil
}

// runPipeline does the happy-path work and returns the first failure.
func (s *ImportService) runPipeline(ctx context.Context, job *model.Job, payload model.ImportPayload, path *string, st *runState) error {
	resolved, err := s.uploads.Resolve(ctx, job.ID, payload.FilePath)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "resolve staged file")
	}
	*path = resolved

	total, err := s.reader.CountRows(resolved)
	if err != nil {
		return err
	}
	if _, err := s.jobs.SetTotalRows(ctx, job.ID, total); err != nil {
		return &importFailure{kind: ErrorTypePersistence, err: err}
	}

	s.publish(ctx, model.ProgressSnapshot{
		JobID:   job.ID,
		Message: fmt.Sprintf("importing %d rows from %s", total, payload.Filename),
		Status:  model.JobStatusRunning,
	})

	var processed, inserted, updated int64
	stats, err := s.reader.Batches(ctx, resolved, func(ctx context.Context, batch []model.ProductInput) error {
		res, rerr := s.products.Reconcile(ctx, batch)
		if rerr != nil {
			return &importFailure{kind: ErrorTypePersistence, err: rerr}
		}
		inserted += int64(res.Inserted)
		updated += int64(res.Updated)
		processed += int64(len(batch))

		if _, perr := s.jobs.UpdateProgress(ctx, job.ID, processed); perr != nil {
			s.logger.WarnContext(ctx, "update job progress", "job_id", job.ID, "error", perr)
		}
		if _, herr := s.jobs.Heartbeat(ctx, job.ID, 0); herr != nil {
			s.logger.WarnContext(ctx, "heartbeat import job", "job_id", job.ID, "error", herr)
		}

		st.progress = fraction(processed, total)
		st.meta = map[string]any{
			"processed": processed,
			"inserted":  inserted,
			"updated":   updated,
		}
		s.publish(ctx, model.ProgressSnapshot{
			JobID:    job.ID,
			Progress: st.progress,
			Message:  fmt.Sprintf("imported %d of %d rows", processed, total),
			Status:   model.JobStatusRunning,
			Meta:     st.meta,
		})
		return nil
	})
	if err != nil {
		return err
	}

	if _, err := s.jobs.Complete(ctx, job.ID); err != nil {
		return &importFailure{kind: ErrorTypePersistence, err: err}
	}

	summary := map[string]any{
		"total_rows": total,
		"processed":  processed,
		"inserted":   inserted,
		"updated":    updated,
		"skipped":    stats.Skipped,
	}
	s.publish(ctx, model.ProgressSnapshot{
		JobID:    job.ID,
		Progress: 1.0,
		Message:  "import completed",
		Status:   model.JobStatusCompleted,
		Meta:     summary,
	})

	if s.webhooks != nil {
		event := map[string]any{
			"job_id":   job.ID,
			"filename": payload.Filename,
		}
		for k, v := range summary {
			event[k] = v
		}
		s.webhooks.Trigger(ctx, model.WebhookEventImportCompleted, event)
	}

	s.logger.InfoContext(ctx, "import completed",
		"job_id", job.ID,
		"total_rows", total,
		"inserted", inserted,
		"updated", updated,
		"skipped", stats.Skipped)
	return nil
}

// finishFailed publishes the terminal failed snapshot and, after a memory
// abort, makes a last attempt to hand memory back before the worker moves on.
// The snapshot keeps the last published progress and batch counters so a
// failure partway through never rolls the displayed fraction back to zero.
func (s *ImportService) finishFailed(ctx context.Context, jobID string, err error, st *runState) {
	errorType := ClassifyImportError(err)
	meta := map[string]any{"error_type": errorType}
	var progress float64
	if st != nil {
		progress = st.progress
		for k, v := range st.meta {
			meta[k] = v
		}
	}
	s.publish(ctx, model.ProgressSnapshot{
		JobID:    jobID,
		Progress: progress,
		Message:  err.Error(),
		Status:   model.JobStatusFailed,
		Meta:     meta,
	})
	if errorType == ErrorTypeResourceExhausted {
		s.monitor.ForceReclaim()
	}
	s.logger.ErrorContext(ctx, "import failed",
		"job_id", jobID,
		"error_type", errorType,
		"error", err)
}

func (s *ImportService) publish(ctx context.Context, snap model.ProgressSnapshot) {
	if s.progress != nil {
		s.progress.Publish(ctx, snap)
	}
}

// importFailure tags an error with its pipeline classification.
type importFailure struct {
	kind string
	err  error
}

func (e *importFailure) Error() string { return e.err.Error() }
func (e *importFailure) Unwrap() error { return e.err }

// ClassifyImportError buckets a pipeline failure for the error_type meta.
func ClassifyImportError(err error) string {
	var tagged *importFailure
	if goerrors.As(err, &tagged) {
		return tagged.kind
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeValidation:
		return ErrorTypeValidation
	case errors.ErrCodeResourceExhausted:
		return ErrorTypeResourceExhausted
	case errors.ErrCodeConflict, errors.ErrCodeForeignKey:
		return ErrorTypePersistence
	default:
		return ErrorTypeInternal
	}
}

func fraction(processed, total int64) float64 {
	if total <= 0 {
		return 1.0
	}
	f := float64(processed) / float64(total)
	if f > 1.0 {
		f = 1.0
	}
	return f
}
