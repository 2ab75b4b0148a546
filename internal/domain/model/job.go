// Package model defines the core data types and structures used throughout the product import system.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobType represents the type of job to be executed.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobTypeImport represents a bulk CSV product import job.
	JobTypeImport JobType = "import"
	// JobTypeWebhookDispatch represents an outbound webhook delivery job.
	JobTypeWebhookDispatch JobType = "webhook_dispatch"
	// JobTypeWebhookTest represents a webhook test-fire job.
	JobTypeWebhookTest JobType = "webhook_test"

	// JobStatusPending indicates a job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates a job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates a job has finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job has failed to complete.
	JobStatusFailed JobStatus = "failed"
)

// UnmarshalText implements encoding.TextUnmarshaler for JobType to allow env parsing.
func (t *JobType) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	jt := JobType(v)
	if jt.Valid() {
		*t = jt
		return nil
	}
	return fmt.Errorf("invalid JobType: %q", v)
}

// ErrNoJobsAvailable is returned when no jobs are available for reservation.
var ErrNoJobsAvailable = errors.New("no jobs available")

// Valid returns true if the JobType is valid.
func (t JobType) Valid() bool {
	return t == JobTypeImport || t == JobTypeWebhookDispatch || t == JobTypeWebhookTest
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusRunning || s == JobStatusCompleted ||
		s == JobStatusFailed
}

// Terminal returns true if the JobStatus is a final state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job represents a job in the system with all its metadata and status information.
type Job struct {
	ID             string          `json:"id"                         db:"id"`
	Type           JobType         `json:"type"                       db:"type"`
	Status         JobStatus       `json:"status"                     db:"status"`
	Priority       int             `json:"priority"                   db:"priority"`
	Payload        json.RawMessage `json:"payload"                    db:"payload"`
	Meta           json.RawMessage `json:"meta"                       db:"meta"`
	TotalRows      *int64          `json:"total_rows,omitempty"       db:"total_rows"`
	ProcessedRows  int64           `json:"processed_rows"             db:"processed_rows"`
	ErrorMessage   *string         `json:"error_message,omitempty"    db:"error_message"`
	ScheduledAt    time.Time       `json:"scheduled_at"               db:"scheduled_at"`
	StartedAt      *time.Time      `json:"started_at,omitempty"       db:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"     db:"completed_at"`
	RetryCount     int             `json:"retry_count"                db:"retry_count"`
	MaxRetries     int             `json:"max_retries"                db:"max_retries"`
	LeaseExpiresAt *time.Time      `json:"lease_expires_at,omitempty" db:"lease_expires_at"`
	CreatedAt      time.Time       `json:"created_at"                 db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"                 db:"updated_at"`
}

// CreateJobRequest represents a request to create a new job.
type CreateJobRequest struct {
	Type        JobType         `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Meta        json.RawMessage `json:"meta,omitempty"`
	Priority    int             `json:"priority,omitempty"`
	ScheduledAt *time.Time      `json:"scheduled_at,omitempty"`
	MaxRetries  int             `json:"max_retries"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if !r.Type.Valid() {
		return errors.New("invalid job type")
	}
	if len(r.Payload) == 0 {
		return errors.New("payload is required")
	}
	if r.Priority < 0 || r.Priority > 100 {
		return errors.New("priority must be between 0 and 100")
	}
	if r.MaxRetries < 0 {
		return errors.New("max retries must be >= 0")
	}
	return nil
}

// ImportPayload is the payload carried by an import job. The staged file lives
// on local disk on the instance that accepted the upload; workers on other
// instances fall back to the Redis copy keyed by the job id.
type ImportPayload struct {
	FilePath string `json:"file_path"`
	Filename string `json:"filename"`
}

// WebhookDispatchPayload is the payload carried by a webhook_dispatch job.
type WebhookDispatchPayload struct {
	WebhookID int64           `json:"webhook_id"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
}

// WebhookTestPayload is the payload carried by a webhook_test job.
type WebhookTestPayload struct {
	WebhookID int64 `json:"webhook_id"`
}

// JobListOptions filters and pages job listings.
type JobListOptions struct {
	Status *JobStatus
	Type   *JobType
	Limit  int
	Offset int
}

// JobStats represents statistics about jobs in different states.
type JobStats struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// JobStatusResponse is the public representation of a job's state. Progress is
// the merged view: the live snapshot when one exists, otherwise the durable
// processed/total ratio.
type JobStatusResponse struct {
	ID            string          `json:"id"`
	Type          JobType         `json:"type"`
	Status        JobStatus       `json:"status"`
	Progress      float64         `json:"progress"`
	Message       string          `json:"message,omitempty"`
	TotalRows     *int64          `json:"total_rows,omitempty"`
	ProcessedRows int64           `json:"processed_rows"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	Meta          json.RawMessage `json:"meta,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}
