package data

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayClean/product-importer/internal/domain/model"
	"github.com/jayClean/product-importer/internal/testutil"
)

// These tests run against a real PostgreSQL instance and skip when none is
// configured. See testutil for the TEST_DB_* and TEST_REQUIRE_DB knobs.

func TestProductRepoIntegration_ReconcileIsIdempotent(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewProductRepo(db, nil)

		batch := []model.ProductInput{
			{SKU: "INT-1", Name: "Widget", Description: testutil.StringPtr("first"), Active: true},
			{SKU: "INT-2", Name: "Gadget", Active: true},
			{SKU: "INT-3", Name: "Gizmo", Active: false},
		}

		res, err := repo.Reconcile(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, 3, res.Inserted)
		assert.Zero(t, res.Updated)

		// Re-importing the same file updates in place instead of duplicating.
		res, err = repo.Reconcile(ctx, batch)
		require.NoError(t, err)
		assert.Zero(t, res.Inserted)
		assert.Equal(t, 3, res.Updated)

		var count int
		require.NoError(t, db.QueryRowContext(ctx, `SELECT count(*) FROM products`).Scan(&count))
		assert.Equal(t, 3, count)
	})
}

func TestProductRepoIntegration_ReconcileResurrectsSoftDeleted(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewProductRepo(db, nil)

		created, err := repo.Create(ctx, model.ProductInput{SKU: "INT-9", Name: "Old name", Active: true})
		require.NoError(t, err)

		deleted, err := repo.SoftDelete(ctx, created.ID)
		require.NoError(t, err)
		require.True(t, deleted.IsDeleted)

		res, err := repo.Reconcile(ctx, []model.ProductInput{
			{SKU: "int-9", Name: "New name", Active: true},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Updated)
		assert.Zero(t, res.Inserted)

		got, err := repo.GetBySKU(ctx, "INT-9")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.False(t, got.IsDeleted)
		assert.Nil(t, got.DeletedAt)
		assert.Equal(t, "New name", got.Name)
	})
}

func TestProductRepoIntegration_ReconcileDedupesCaseInsensitively(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewProductRepo(db, nil)

		res, err := repo.Reconcile(ctx, []model.ProductInput{
			{SKU: "Dup-1", Name: "first occurrence", Active: true},
			{SKU: "DUP-1", Name: "last occurrence", Active: true},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Inserted)

		got, err := repo.GetBySKU(ctx, "dup-1")
		require.NoError(t, err)
		// The last occurrence in the batch wins, including its SKU casing.
		assert.Equal(t, "DUP-1", got.SKU)
		assert.Equal(t, "last occurrence", got.Name)

		var count int
		require.NoError(t, db.QueryRowContext(ctx, `SELECT count(*) FROM products`).Scan(&count))
		assert.Equal(t, 1, count)
	})
}

func TestProductRepoIntegration_TimestampsUseTimeProvider(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		tp := testutil.NewTestTimeProvider(testutil.TestTime())
		repo := NewProductRepoWithTimeProvider(db, nil, tp)

		created, err := repo.Create(ctx, model.ProductInput{SKU: "TIME-1", Name: "Clock", Active: true})
		require.NoError(t, err)
		assert.True(t, created.CreatedAt.Equal(testutil.TestTime()))
		assert.True(t, created.UpdatedAt.Equal(testutil.TestTime()))
	})
}
