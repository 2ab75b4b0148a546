// Package storage stages uploaded CSV files for asynchronous import.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jayClean/product-importer/internal/core"
)

const uploadKeyPrefix = "files:upload:"

// DefaultUploadTTL bounds how long a staged copy survives in the cache.
const DefaultUploadTTL = 24 * time.Hour

// UploadKey returns the cache key holding the staged copy for a job.
func UploadKey(jobID string) string {
	return uploadKeyPrefix + jobID
}

// UploadStoreOptions groups dependencies for UploadStore.
type UploadStoreOptions struct {
	Dir    string               // Required: local staging directory
	Cache  core.CacheRepository // Optional: cross-node fallback copy
	TTL    time.Duration        // Optional: fallback copy TTL, defaults to 24h
	Logger *slog.Logger         // Optional: structured logger
}

// UploadStore stages uploads on local disk with an optional cache copy, so a
// worker on another node can still resolve the file for its job.
type UploadStore struct {
	dir    string
	cache  core.CacheRepository
	ttl    time.Duration
	logger *slog.Logger
}

// NewUploadStore constructs an UploadStore and ensures the staging directory
// exists.
func NewUploadStore(opts UploadStoreOptions) (*UploadStore, error) {
	if opts.Dir == "" {
		return nil, errors.New("staging directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create staging directory %s: %w", opts.Dir, err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultUploadTTL
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "upload_store")
	}

	return &UploadStore{
		dir:    opts.Dir,
		cache:  opts.Cache,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Stage writes the upload to a fresh file in the staging directory and
// returns its path and size.
func (s *UploadStore) Stage(r io.Reader) (string, int64, error) {
	path := filepath.Join(s.dir, uuid.NewString()+".csv")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", 0, fmt.Errorf("create staged file: %w", err)
	}

	size, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("write staged file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("close staged file: %w", err)
	}

	return path, size, nil
}

// StageFallback copies the staged file into the cache under the job's key.
// The copy is best effort: without it only a worker on the uploading node
// can run the job.
func (s *UploadStore) StageFallback(ctx context.Context, jobID, path string) {
	if s.cache == nil {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.warn(ctx, "read staged file for fallback", jobID, err)
		return
	}
	if err := s.cache.Set(ctx, UploadKey(jobID), data, s.ttl); err != nil {
		s.warn(ctx, "cache staged file fallback", jobID, err)
	}
}

// Resolve returns a local path for the job's staged file. When the recorded
// path is missing (job landed on a different node), the cache copy is
// restaged locally.
func (s *UploadStore) Resolve(ctx context.Context, jobID, path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if s.cache == nil {
		return "", fmt.Errorf("staged file %s is gone and no fallback cache is configured", path)
	}

	data, err := s.cache.Get(ctx, UploadKey(jobID))
	if err != nil {
		return "", fmt.Errorf("fetch staged file fallback for job %s: %w", jobID, err)
	}
	if data == nil {
		return "", fmt.Errorf("staged file for job %s not found locally or in cache", jobID)
	}

	restaged := filepath.Join(s.dir, uuid.NewString()+".csv")
	if err := os.WriteFile(restaged, data, 0o600); err != nil {
		return "", fmt.Errorf("restage file for job %s: %w", jobID, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "restaged upload from cache fallback",
			"job_id", jobID,
			"path", restaged,
			"bytes", len(data))
	}
	return restaged, nil
}

// Cleanup removes the staged file and its cache copy. Failures are logged;
// the cache copy expires on its own either way.
func (s *UploadStore) Cleanup(ctx context.Context, jobID, path string) {
	if path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.warn(ctx, "remove staged file", jobID, err)
		}
	}
	if s.cache != nil {
		if _, err := s.cache.Delete(ctx, UploadKey(jobID)); err != nil {
			s.warn(ctx, "delete staged file fallback", jobID, err)
		}
	}
}

func (s *UploadStore) warn(ctx context.Context, msg, jobID string, err error) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, "job_id", jobID, "error", err)
	}
}
