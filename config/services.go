package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP API server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeImporter runs the CSV import job worker.
	ServiceModeImporter ServiceMode = "importer"
	// ServiceModeWebhookRunner runs the webhook delivery job worker.
	ServiceModeWebhookRunner ServiceMode = "webhook-runner"
	// ServiceModeReaper runs the job reaper for cleanup.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeImporter,
		ServiceModeWebhookRunner,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP,
			ServiceModeImporter,
			ServiceModeWebhookRunner,
			ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, importer, webhook-runner, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// ImporterConfig contains CSV import worker configuration.
type ImporterConfig struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int `env:"IMPORTER_CONCURRENCY" envDefault:"1"`

	// JobLease is the duration to lease an import job. Imports can run for
	// a long time, so the lease must comfortably exceed one batch cycle.
	JobLease time.Duration `env:"IMPORTER_JOB_LEASE" envDefault:"5m"`
}

// Sanitize applies guardrails to import worker configuration values.
func (c *ImporterConfig) Sanitize() {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.JobLease < 30*time.Second {
		c.JobLease = 30 * time.Second
	}
}

// WebhookRunnerConfig contains webhook delivery worker configuration.
type WebhookRunnerConfig struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int `env:"WEBHOOK_RUNNER_CONCURRENCY" envDefault:"2"`

	// JobLease is the duration to lease a webhook delivery job.
	JobLease time.Duration `env:"WEBHOOK_RUNNER_JOB_LEASE" envDefault:"30s"`

	// DeliveryTimeout bounds a single outbound webhook HTTP request.
	DeliveryTimeout time.Duration `env:"WEBHOOK_DELIVERY_TIMEOUT" envDefault:"10s"`

	// MaxRetries is the retry budget for dispatch jobs that never reached
	// the delivery attempt (decode failures, unknown job types). Deliveries
	// themselves get exactly one attempt, so this defaults to zero.
	MaxRetries int `env:"WEBHOOK_MAX_RETRIES" envDefault:"0"`
}

// Sanitize applies guardrails to webhook worker configuration values.
func (c *WebhookRunnerConfig) Sanitize() {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.JobLease < 5*time.Second {
		c.JobLease = 5 * time.Second
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 10 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
}

// ReaperConfig contains job reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// PendingMaxAge is the maximum age for pending jobs before they are marked as failed.
	// Jobs stuck in pending status longer than this will be failed.
	PendingMaxAge time.Duration `env:"REAPER_PENDING_MAX_AGE" envDefault:"1h"`

	// CompletedMaxAge is the maximum age for completed jobs before deletion.
	CompletedMaxAge time.Duration `env:"REAPER_COMPLETED_MAX_AGE" envDefault:"168h"` // 7 days

	// FailedMaxAge is the maximum age for failed jobs before deletion.
	FailedMaxAge time.Duration `env:"REAPER_FAILED_MAX_AGE" envDefault:"168h"` // 7 days

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.PendingMaxAge < 5*time.Minute {
		r.PendingMaxAge = 5 * time.Minute
	}
	if r.CompletedMaxAge < 1*time.Hour {
		r.CompletedMaxAge = 1 * time.Hour
	}
	if r.FailedMaxAge < 1*time.Hour {
		r.FailedMaxAge = 1 * time.Hour
	}

	// Enforce batch size bounds to prevent excessive locks or inefficiency
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
