package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayClean/product-importer/internal/testutil"
)

func TestRedisCacheRepoIntegration_RoundTrip(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	repo := NewRedisCacheRepo(client)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "jobs:progress:it-1", []byte(`{"progress":0.5}`), time.Minute))

	got, err := repo.Get(ctx, "jobs:progress:it-1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"progress":0.5}`), got)

	exists, err := repo.Exists(ctx, "jobs:progress:it-1")
	require.NoError(t, err)
	assert.True(t, exists)

	deleted, err := repo.Delete(ctx, "jobs:progress:it-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	// A miss is a nil payload, not an error.
	got, err = repo.Get(ctx, "jobs:progress:it-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisCacheRepoIntegration_SetIfNotExists(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	repo := NewRedisCacheRepo(client)
	ctx := context.Background()

	ok, err := repo.SetIfNotExists(ctx, "uploads:fallback:it-1", []byte("csv bytes"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// The second writer loses and the original value survives.
	ok, err = repo.SetIfNotExists(ctx, "uploads:fallback:it-1", []byte("other bytes"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.Get(ctx, "uploads:fallback:it-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("csv bytes"), got)
}

func TestRedisCacheRepoIntegration_Health(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	repo := NewRedisCacheRepo(client)
	require.NoError(t, repo.Health(context.Background()))
}
