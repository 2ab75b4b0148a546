package core

import (
	"context"
	"database/sql"
	"time"

	"github.com/jayClean/product-importer/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// JobRepository defines the interface for job data operations.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	ReserveNext(ctx context.Context, jobType model.JobType, leaseSeconds int) (*model.Job, error)
	WaitForNotification(ctx context.Context, jobType model.JobType) error
	Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error)
	Complete(ctx context.Context, id string) (bool, error)
	Fail(ctx context.Context, id, errMsg string) (bool, error)
	// UpdateProgress advances processed_rows for a running job. The stored value
	// never decreases, so late or duplicate writes cannot roll progress back.
	UpdateProgress(ctx context.Context, id string, processedRows int64) (bool, error)
	SetTotalRows(ctx context.Context, id string, totalRows int64) (bool, error)
	Stats(ctx context.Context, jobType model.JobType) (*model.JobStats, error)
	List(ctx context.Context, opts *model.JobListOptions) ([]*model.Job, error)
	Delete(ctx context.Context, id string) error
}

// JobRepositoryTx defines optional transactional job creation support.
type JobRepositoryTx interface {
	CreateInTx(ctx context.Context, tx *sql.Tx, req *model.CreateJobRequest) (*model.Job, error)
}

// ReconcileResult reports what a batch upsert actually applied.
type ReconcileResult struct {
	Inserted int
	Updated  int
}

// ProductRepository defines the interface for product data operations.
type ProductRepository interface {
	// Reconcile upserts a batch of product inputs in a single transaction.
	// SKU matching is case-insensitive and soft-deleted rows are resurrected.
	Reconcile(ctx context.Context, batch []model.ProductInput) (ReconcileResult, error)
	Create(ctx context.Context, input model.ProductInput) (*model.Product, error)
	GetByID(ctx context.Context, id int64) (*model.Product, error)
	GetBySKU(ctx context.Context, sku string) (*model.Product, error)
	List(ctx context.Context, opts model.ProductListOptions) ([]*model.Product, error)
	Update(ctx context.Context, id int64, req *model.UpdateProductRequest) (*model.Product, error)
	SoftDelete(ctx context.Context, id int64) (*model.Product, error)
}

// RecordWebhookResultParams groups parameters for WebhookRepository.RecordResult.
type RecordWebhookResultParams struct {
	WebhookID  int64
	Status     string
	ResponseMS int64
}

// WebhookRepository defines the interface for webhook registration data operations.
type WebhookRepository interface {
	Create(ctx context.Context, req *model.CreateWebhookRequest) (*model.Webhook, error)
	GetByID(ctx context.Context, id int64) (*model.Webhook, error)
	List(ctx context.Context, limit, offset int) ([]*model.Webhook, error)
	ListEnabledByEvent(ctx context.Context, event string) ([]*model.Webhook, error)
	Update(ctx context.Context, id int64, req *model.UpdateWebhookRequest) (*model.Webhook, error)
	Delete(ctx context.Context, id int64) (bool, error)
	// RecordResult persists the outcome of the latest delivery attempt.
	RecordResult(ctx context.Context, params RecordWebhookResultParams) error
}

// DeleteOldJobsParams groups parameters for DeleteOldJobs to keep param count ≤3.
type DeleteOldJobsParams struct {
	Status    model.JobStatus
	MaxAge    time.Duration
	BatchSize int
}

// ReaperRepository defines the interface for job cleanup operations.
type ReaperRepository interface {
	// FailStalePendingJobs marks pending jobs older than maxAge as failed.
	// Processes up to batchSize jobs per call to prevent long locks.
	// Returns the number of jobs marked as failed.
	FailStalePendingJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)

	// DeleteOldJobs deletes jobs with the given status older than maxAge.
	// Processes up to batchSize jobs per call to prevent long locks.
	// Returns the number of jobs deleted.
	DeleteOldJobs(ctx context.Context, params DeleteOldJobsParams) (int64, error)
}
