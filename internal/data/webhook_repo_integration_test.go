package data

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayClean/product-importer/internal/core"
	"github.com/jayClean/product-importer/internal/domain/model"
	"github.com/jayClean/product-importer/internal/testutil"
)

func TestWebhookRepoIntegration_Lifecycle(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewWebhookRepo(db)

		created, err := repo.Create(ctx, &model.CreateWebhookRequest{
			URL:    "https://example.com/hook",
			Event:  model.WebhookEventImportCompleted,
			Secret: testutil.StringPtr("s3cret"),
		})
		require.NoError(t, err)
		assert.True(t, created.Enabled)
		assert.True(t, created.HasSecret())

		enabled, err := repo.ListEnabledByEvent(ctx, model.WebhookEventImportCompleted)
		require.NoError(t, err)
		require.Len(t, enabled, 1)
		assert.Equal(t, created.ID, enabled[0].ID)

		updated, err := repo.Update(ctx, created.ID, &model.UpdateWebhookRequest{
			Enabled: testutil.BoolPtr(false),
		})
		require.NoError(t, err)
		assert.False(t, updated.Enabled)

		// Disabled registrations drop out of event fan-out.
		enabled, err = repo.ListEnabledByEvent(ctx, model.WebhookEventImportCompleted)
		require.NoError(t, err)
		assert.Empty(t, enabled)

		deleted, err := repo.Delete(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, deleted)
	})
}

func TestWebhookRepoIntegration_RecordResult(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewWebhookRepo(db)

		created, err := repo.Create(ctx, &model.CreateWebhookRequest{
			URL:   "https://example.com/hook",
			Event: model.WebhookEventImportCompleted,
		})
		require.NoError(t, err)

		require.NoError(t, repo.RecordResult(ctx, core.RecordWebhookResultParams{
			WebhookID:  created.ID,
			Status:     "error: status 503",
			ResponseMS: 42,
		}))

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastTestStatus)
		assert.Equal(t, "error: status 503", *got.LastTestStatus)
		require.NotNil(t, got.LastTestResponseMS)
		assert.Equal(t, int64(42), *got.LastTestResponseMS)
	})
}
