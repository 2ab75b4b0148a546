// Package importrunner provides the worker that executes CSV import jobs.
package importrunner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jayClean/product-importer/config"
	"github.com/jayClean/product-importer/internal/core"
	"github.com/jayClean/product-importer/internal/data"
	"github.com/jayClean/product-importer/internal/domain/model"
	"github.com/jayClean/product-importer/internal/memoryx"
	"github.com/jayClean/product-importer/internal/observability/metrics"
	"github.com/jayClean/product-importer/internal/observability/statsd"
	"github.com/jayClean/product-importer/internal/service"
	"github.com/jayClean/product-importer/internal/storage"
)

// RunnerOptions configures the import job runner.
type RunnerOptions struct {
	DB     *sql.DB
	Cache  core.CacheRepository
	Logger *slog.Logger

	// Job processing settings
	Lease       time.Duration // per-job lease duration; defaults to 5m
	Concurrency int           // number of worker goroutines; defaults to 1

	// UploadDir is where staged CSV files live on this instance.
	UploadDir string
	// Memory carries the batch-size guardrails; zero values use the
	// monitor defaults.
	Memory config.MemoryConfig
	// WebhookMaxRetries is the job retry budget for dispatch jobs enqueued
	// on import completion. It covers failures before the delivery attempt
	// only; deliveries themselves get exactly one attempt.
	WebhookMaxRetries int

	// Optional dependency injections (useful for tests/decoupling)
	JobsRepo     core.JobRepository
	ProductsRepo core.ProductRepository
	WebhooksRepo core.WebhookRepository
	Metrics      statsd.Sink
}

// Runner reserves import jobs and runs them through the import pipeline.
type Runner struct {
	jobs    *service.JobService
	imports *service.ImportService
	logger  *slog.Logger
	lease   time.Duration
	workers int
	metrics statsd.Sink
}

type runnerDeps struct {
	jobsRepo     core.JobRepository
	productsRepo core.ProductRepository
	webhooksRepo core.WebhookRepository
	jobSvc       *service.JobService
	importSvc    *service.ImportService
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

func buildRunnerDeps(opts RunnerOptions, lease time.Duration, logger *slog.Logger) (runnerDeps, error) {
	deps := runnerDeps{}

	if opts.JobsRepo != nil {
		deps.jobsRepo = opts.JobsRepo
	} else {
		deps.jobsRepo = data.NewJobRepo(opts.DB, data.RepoConfig{})
	}
	deps.jobSvc = service.MustNewJobService(service.JobServiceOptions{
		Repo:         deps.jobsRepo,
		DefaultLease: lease,
		Logger:       logger,
	})

	if opts.ProductsRepo != nil {
		deps.productsRepo = opts.ProductsRepo
	} else {
		deps.productsRepo = data.NewProductRepo(opts.DB, logger)
	}
	if opts.WebhooksRepo != nil {
		deps.webhooksRepo = opts.WebhooksRepo
	} else if opts.DB != nil {
		deps.webhooksRepo = data.NewWebhookRepo(opts.DB)
	}

	uploads, err := storage.NewUploadStore(storage.UploadStoreOptions{
		Dir:    opts.UploadDir,
		Cache:  opts.Cache,
		Logger: logger,
	})
	if err != nil {
		return deps, fmt.Errorf("upload store: %w", err)
	}

	var progressSvc *service.ProgressService
	if opts.Cache != nil {
		progressSvc, err = service.NewProgressService(service.ProgressServiceOptions{
			Cache:  opts.Cache,
			Logger: logger,
		})
		if err != nil {
			return deps, fmt.Errorf("progress service: %w", err)
		}
	}

	var webhookSvc *service.WebhookService
	if deps.webhooksRepo != nil {
		webhookSvc, err = service.NewWebhookService(service.WebhookServiceOptions{
			Repo:       deps.webhooksRepo,
			Jobs:       deps.jobSvc,
			MaxRetries: opts.WebhookMaxRetries,
			Logger:     logger,
		})
		if err != nil {
			return deps, fmt.Errorf("webhook service: %w", err)
		}
	}

	monitor := memoryx.New(memoryx.Options{
		BaselineBytes:  opts.Memory.BaselineBytes,
		HardLimitBytes: opts.Memory.HardLimitBytes,
	})

	deps.importSvc, err = service.NewImportService(service.ImportServiceOptions{
		Jobs:     deps.jobSvc,
		Products: deps.productsRepo,
		Uploads:  uploads,
		Progress: progressSvc,
		Webhooks: webhookSvc,
		Monitor:  monitor,
		Logger:   logger,
	})
	if err != nil {
		return deps, fmt.Errorf("import service: %w", err)
	}

	return deps, nil
}

// NewRunner wires repositories/services and constructs an import job runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && (opts.JobsRepo == nil || opts.ProductsRepo == nil) {
		return nil, errors.New("either DB or injected repositories must be provided")
	}

	logger := resolveLogger(opts.Logger)

	lease := opts.Lease
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}

	deps, err := buildRunnerDeps(opts, lease, logger)
	if err != nil {
		return nil, err
	}

	return &Runner{
		jobs:    deps.jobSvc,
		imports: deps.importSvc,
		logger:  logger,
		lease:   lease,
		workers: workers,
		metrics: opts.Metrics,
	}, nil
}

// Run starts worker goroutines and processes import jobs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting import runner", "workers", r.workers, "lease", r.lease)

	// Derive a cancellable context that we can signal on first fatal error
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsub, ch := r.jobs.Subscribe(model.JobTypeImport)
	defer unsub()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	for range r.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.workerLoop(ctx, ch); err != nil {
				// first error wins, cancels all workers
				select {
				case errCh <- err:
					cancel()
				default:
				}
			}
		}()
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

func (r *Runner) workerLoop(ctx context.Context, notify <-chan struct{}) error {
	for ctx.Err() == nil {
		job, err := r.jobs.ReserveNext(ctx, model.JobTypeImport, r.lease)
		switch {
		case err == nil:
			if job != nil {
				r.processJob(ctx, job)
			}
		case errors.Is(err, model.ErrNoJobsAvailable):
			if !r.waitForNotify(ctx, notify) {
				return nil
			}
		default:
			return fmt.Errorf("reserve next: %w", err)
		}
	}
	return ctx.Err()
}

func (r *Runner) waitForNotify(ctx context.Context, notify <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case <-notify:
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

	// The pipeline completes the job row itself so the completed snapshot
	// and webhook fire after the durable state change.
	if err := r.imports.Run(ctx, job); err != nil {
		if _, ferr := r.jobs.Fail(ctx, job.ID, err.Error()); ferr != nil {
			r.logger.ErrorContext(ctx, "fail job error", "job_id", job.ID, "error", ferr, "original_error", err)
		}
		emit("failed", metrics.ResultError, err)
		return
	}
	emit("completed", metrics.ResultSuccess, nil)
}
