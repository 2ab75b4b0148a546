// Package webhookrunner provides the worker that executes queued webhook
// delivery jobs.
package webhookrunner

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jayClean/product-importer/config"
	"github.com/jayClean/product-importer/internal/core"
	"github.com/jayClean/product-importer/internal/data"
	"github.com/jayClean/product-importer/internal/domain/model"
	"github.com/jayClean/product-importer/internal/observability/metrics"
	"github.com/jayClean/product-importer/internal/observability/statsd"
	"github.com/jayClean/product-importer/internal/service"
)

// HandlerFunc processes a job. A returned error marks the job failed.
type HandlerFunc func(ctx context.Context, job *model.Job) error

// RunnerOptions configures the webhook job runner.
type RunnerOptions struct {
	DB         *sql.DB
	Logger     *slog.Logger
	HTTPClient *http.Client
	Config     config.WebhookRunnerConfig

	// Optional dependency injections (useful for tests/decoupling)
	JobsRepo     core.JobRepository
	WebhooksRepo core.WebhookRepository
	Metrics      statsd.Sink
}

// Runner pulls webhook jobs and executes them using registered handlers.
// It processes both event dispatch jobs and test-fire jobs so a single
// worker drains the whole outbound delivery queue.
type Runner struct {
	jobs     *service.JobService
	webhooks *service.WebhookService
	logger   *slog.Logger
	lease    time.Duration
	workers  int
	handlers map[model.JobType]HandlerFunc
	metrics  statsd.Sink
}

// NewRunner wires repositories/services and constructs a webhook job runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && (opts.JobsRepo == nil || opts.WebhooksRepo == nil) {
		return nil, errors.New("either DB or injected repositories must be provided")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := opts.Config
	cfg.Sanitize()

	jobsRepo := opts.JobsRepo
	if jobsRepo == nil {
		jobsRepo = data.NewJobRepo(opts.DB, data.RepoConfig{})
	}
	jobSvc := service.MustNewJobService(service.JobServiceOptions{
		Repo:         jobsRepo,
		DefaultLease: cfg.JobLease,
		Logger:       logger,
	})

	webhooksRepo := opts.WebhooksRepo
	if webhooksRepo == nil {
		webhooksRepo = data.NewWebhookRepo(opts.DB)
	}
	webhookSvc, err := service.NewWebhookService(service.WebhookServiceOptions{
		Repo:       webhooksRepo,
		HTTPClient: opts.HTTPClient,
		Timeout:    cfg.DeliveryTimeout,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook service: %w", err)
	}

	r := &Runner{
		jobs:     jobSvc,
		webhooks: webhookSvc,
		logger:   logger,
		lease:    cfg.JobLease,
		workers:  cfg.Concurrency,
		handlers: make(map[model.JobType]HandlerFunc),
		metrics:  opts.Metrics,
	}
	r.handlers[model.JobTypeWebhookDispatch] = r.handleDispatchJob
	r.handlers[model.JobTypeWebhookTest] = r.handleTestJob
	return r, nil
}

// Run starts worker goroutines and processes jobs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting webhook runner", "workers", r.workers, "lease", r.lease)

	group, gctx := errgroup.WithContext(ctx)
	for range r.workers {
		group.Go(func() error { return r.workerLoop(gctx) })
	}
	return group.Wait()
}

func (r *Runner) workerLoop(ctx context.Context) error {
	unsubDispatch, dispatchCh := r.jobs.Subscribe(model.JobTypeWebhookDispatch)
	defer unsubDispatch()
	unsubTest, testCh := r.jobs.Subscribe(model.JobTypeWebhookTest)
	defer unsubTest()

	for ctx.Err() == nil {
		reserved, err := r.reserveAny(ctx)
		switch {
		case err == nil:
			r.processJob(ctx, reserved)
		case errors.Is(err, model.ErrNoJobsAvailable):
			if !r.waitForNotify(ctx, dispatchCh, testCh) {
				return nil
			}
		default:
			return fmt.Errorf("reserve next: %w", err)
		}
	}
	return ctx.Err()
}

// reserveAny tries each handled job type in turn, preferring event dispatch
// over test fires.
func (r *Runner) reserveAny(ctx context.Context) (*model.Job, error) {
	for _, jt := range []model.JobType{model.JobTypeWebhookDispatch, model.JobTypeWebhookTest} {
		job, err := r.jobs.ReserveNext(ctx, jt, r.lease)
		if err == nil && job != nil {
			return job, nil
		}
		if err != nil && !errors.Is(err, model.ErrNoJobsAvailable) {
			return nil, err
		}
	}
	return nil, model.ErrNoJobsAvailable
}

func (r *Runner) waitForNotify(ctx context.Context, dispatchCh, testCh <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case <-dispatchCh:
		return true
	case <-testCh:
		return true
	}
}

func (r *Runner) processJob(ctx context.Context, job *model.Job) {
	start := time.Now()
	emit := func(transition, result string, err error) {
		metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
			JobType:    string(job.Type),
			Transition: transition,
			Result:     result,
			Duration:   time.Since(start),
			Err:        err,
		})
	}

	h, ok := r.handlers[job.Type]
	if !ok {
		err := fmt.Errorf("no handler for job type %s", job.Type)
		if _, ferr := r.jobs.Fail(ctx, job.ID, err.Error()); ferr != nil {
			r.logger.ErrorContext(ctx, "fail job error", "job_id", job.ID, "error", ferr)
		}
		emit("failed", metrics.ResultError, err)
		return
	}
	if err := h(ctx, job); err != nil {
		if _, ferr := r.jobs.Fail(ctx, job.ID, err.Error()); ferr != nil {
			r.logger.ErrorContext(ctx, "fail job error", "job_id", job.ID, "error", ferr, "original_error", err)
		}
		emit("failed", metrics.ResultError, err)
		return
	}
	if completed, err := r.jobs.Complete(ctx, job.ID); err != nil {
		r.logger.ErrorContext(ctx, "complete job error", "job_id", job.ID, "error", err)
		emit("completed", metrics.ResultError, err)
	} else {
		result := metrics.ResultNoop
		if completed {
			result = metrics.ResultSuccess
		}
		emit("completed", result, nil)
	}
}

// handleDispatchJob delivers one queued event to one registration. The
// attempt outcome lands on the registration row inside the service, so a
// failed endpoint still completes the job. Deliveries get exactly one
// attempt and are never requeued.
func (r *Runner) handleDispatchJob(ctx context.Context, job *model.Job) error {
	var payload model.WebhookDispatchPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode dispatch payload: %w", err)
	}
	if err := r.webhooks.HandleDispatchJob(ctx, payload); err != nil {
		r.logger.WarnContext(ctx, "webhook delivery failed",
			"job_id", job.ID,
			"webhook_id", payload.WebhookID,
			"error", err)
	}
	return nil
}

// handleTestJob fires a synthetic delivery at one registration. The outcome
// lands on the registration row either way, so the job itself never retries
// a failed endpoint.
func (r *Runner) handleTestJob(ctx context.Context, job *model.Job) error {
	var payload model.WebhookTestPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode test payload: %w", err)
	}
	result, err := r.webhooks.TestFire(ctx, payload.WebhookID)
	if err != nil {
		return err
	}
	if !result.OK() {
		r.logger.WarnContext(ctx, "webhook test delivery failed",
			"job_id", job.ID,
			"webhook_id", payload.WebhookID,
			"status", result.Status)
	}
	return nil
}
