package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jayClean/product-importer/internal/domain/model"
	"github.com/jayClean/product-importer/internal/mocks"
)

func TestNewProgressService_MissingCache(t *testing.T) {
	svc, err := NewProgressService(ProgressServiceOptions{})
	require.Error(t, err)
	assert.Nil(t, svc)
	assert.Contains(t, err.Error(), "CacheRepository is required")
}

func TestProgressService_PublishStoresClampedSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cache := mocks.NewMockCacheRepository(ctrl)
	var stored []byte
	cache.EXPECT().Set(gomock.Any(), ProgressKey("job-1"), gomock.Any(), 5*time.Minute).
		DoAndReturn(func(_ context.Context, _ string, value []byte, _ time.Duration) error {
			stored = value
			return nil
		})

	svc, err := NewProgressService(ProgressServiceOptions{Cache: cache, TTL: 5 * time.Minute})
	require.NoError(t, err)

	svc.Publish(context.Background(), model.ProgressSnapshot{
		JobID:    "job-1",
		Progress: 1.7,
		Message:  "importing",
		Status:   model.JobStatusRunning,
	})

	var snap model.ProgressSnapshot
	require.NoError(t, json.Unmarshal(stored, &snap))
	assert.Equal(t, "job-1", snap.JobID)
	assert.Equal(t, 1.0, snap.Progress)
	assert.Equal(t, "importing", snap.Message)
	assert.Equal(t, model.JobStatusRunning, snap.Status)
}

func TestProgressService_PublishSwallowsCacheErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cache := mocks.NewMockCacheRepository(ctrl)
	cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(assert.AnError)

	svc, err := NewProgressService(ProgressServiceOptions{Cache: cache})
	require.NoError(t, err)

	// A cache outage must never reach the import pipeline.
	svc.Publish(context.Background(), model.ProgressSnapshot{JobID: "job-1", Progress: 0.5})
}

func TestProgressService_FetchRoundTrip(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	payload, err := json.Marshal(model.ProgressSnapshot{
		JobID:    "job-1",
		Progress: 0.25,
		Message:  "imported 25 of 100 rows",
		Status:   model.JobStatusRunning,
	})
	require.NoError(t, err)

	cache := mocks.NewMockCacheRepository(ctrl)
	cache.EXPECT().Get(gomock.Any(), ProgressKey("job-1")).Return(payload, nil)

	svc, err := NewProgressService(ProgressServiceOptions{Cache: cache})
	require.NoError(t, err)

	snap := svc.Fetch(context.Background(), "job-1")
	assert.Equal(t, "job-1", snap.JobID)
	assert.Equal(t, 0.25, snap.Progress)
	assert.Equal(t, model.JobStatusRunning, snap.Status)
}

func TestProgressService_FetchFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		err     error
	}{
		{name: "cache miss", payload: nil, err: nil},
		{name: "cache error", payload: nil, err: assert.AnError},
		{name: "corrupt payload", payload: []byte("{not json"), err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			cache := mocks.NewMockCacheRepository(ctrl)
			cache.EXPECT().Get(gomock.Any(), ProgressKey("job-1")).Return(tt.payload, tt.err)

			svc, err := NewProgressService(ProgressServiceOptions{Cache: cache})
			require.NoError(t, err)

			snap := svc.Fetch(context.Background(), "job-1")
			assert.True(t, snap.IsZero())
		})
	}
}
