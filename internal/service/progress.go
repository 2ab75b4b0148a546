package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jayClean/product-importer/internal/core"
	"github.com/jayClean/product-importer/internal/domain/model"
)

const progressKeyPrefix = "jobs:progress:"

// DefaultProgressTTL bounds how long a snapshot outlives its last write.
const DefaultProgressTTL = 24 * time.Hour

// ProgressServiceOptions groups dependencies for ProgressService.
type ProgressServiceOptions struct {
	Cache  core.CacheRepository // Required: snapshot store
	TTL    time.Duration        // Optional: snapshot TTL, defaults to 24h
	Logger *slog.Logger         // Optional: structured logger
}

// ProgressService publishes and serves near-real-time job progress snapshots.
// Snapshots are advisory: the durable job row stays the source of truth, so
// cache failures degrade the live view without touching the import itself.
type ProgressService struct {
	cache  core.CacheRepository
	ttl    time.Duration
	logger *slog.Logger
}

// NewProgressService constructs a new ProgressService.
func NewProgressService(opts ProgressServiceOptions) (*ProgressService, error) {
	if opts.Cache == nil {
		return nil, errors.New("CacheRepository is required")
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultProgressTTL
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "progress_service")
	}

	return &ProgressService{
		cache:  opts.Cache,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// ProgressKey returns the cache key holding the snapshot for a job.
func ProgressKey(jobID string) string {
	return progressKeyPrefix + jobID
}

// Publish stores a snapshot for the job. Progress is clamped to [0, 1].
// Failures are logged and swallowed so a cache outage never fails an import.
// A nil receiver publishes nothing, which is how deployments without a cache
// run.
func (s *ProgressService) Publish(ctx context.Context, snap model.ProgressSnapshot) {
	if s == nil {
		return
	}

	snap.Clamp()

	payload, err := json.Marshal(snap)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "marshal progress snapshot", "job_id", snap.JobID, "error", err)
		}
		return
	}

	if err := s.cache.Set(ctx, ProgressKey(snap.JobID), payload, s.ttl); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "publish progress snapshot",
				"job_id", snap.JobID,
				"progress", snap.Progress,
				"error", err)
		}
	}
}

// Fetch returns the latest snapshot for the job. A miss, an expired key, any
// cache error, or a nil receiver yields a zero snapshot; callers fall back to
// the job row.
func (s *ProgressService) Fetch(ctx context.Context, jobID string) model.ProgressSnapshot {
	if s == nil {
		return model.ProgressSnapshot{}
	}

	payload, err := s.cache.Get(ctx, ProgressKey(jobID))
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "fetch progress snapshot", "job_id", jobID, "error", err)
		}
		return model.ProgressSnapshot{}
	}
	if len(payload) == 0 {
		return model.ProgressSnapshot{}
	}

	var snap model.ProgressSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "decode progress snapshot", "job_id", jobID, "error", err)
		}
		return model.ProgressSnapshot{}
	}

	snap.Clamp()
	return snap
}
