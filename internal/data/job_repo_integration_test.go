package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayClean/product-importer/internal/domain/model"
	"github.com/jayClean/product-importer/internal/testutil"
)

func createImportJob(t *testing.T, repo *JobRepo, maxRetries int) *model.Job {
	t.Helper()
	job, err := repo.Create(context.Background(), &model.CreateJobRequest{
		Type:       model.JobTypeImport,
		Payload:    json.RawMessage(`{"file_path":"/tmp/upload.csv","filename":"products.csv"}`),
		MaxRetries: maxRetries,
	})
	require.NoError(t, err)
	return job
}

func TestJobRepoIntegration_ReserveLeaseLifecycle(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewJobRepo(db, RepoConfig{})

		created := createImportJob(t, repo, 0)
		assert.Equal(t, model.JobStatusPending, created.Status)

		reserved, err := repo.ReserveNext(ctx, model.JobTypeImport, 60)
		require.NoError(t, err)
		assert.Equal(t, created.ID, reserved.ID)
		assert.Equal(t, model.JobStatusRunning, reserved.Status)
		require.NotNil(t, reserved.LeaseExpiresAt)

		// The running job is invisible to other reservers.
		_, err = repo.ReserveNext(ctx, model.JobTypeImport, 60)
		require.ErrorIs(t, err, model.ErrNoJobsAvailable)

		ok, err := repo.Heartbeat(ctx, reserved.ID, 60)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.Complete(ctx, reserved.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := repo.GetByID(ctx, reserved.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, got.Status)
		assert.Nil(t, got.LeaseExpiresAt)
	})
}

func TestJobRepoIntegration_ExpiredLeaseIsRequeued(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		helper := testutil.NewTimeBasedTestHelper(t, db, testutil.TestTime())
		repo := NewJobRepo(db, RepoConfig{TimeProvider: helper.GetTimeProvider()})

		created := createImportJob(t, repo, 0)

		first, err := repo.ReserveNext(ctx, model.JobTypeImport, 60)
		require.NoError(t, err)
		require.Equal(t, created.ID, first.ID)

		// The worker dies silently. Once the lease runs out the job goes
		// back to pending and the next reserve picks it up again.
		helper.AdvanceTime(2 * time.Minute)

		second, err := repo.ReserveNext(ctx, model.JobTypeImport, 60)
		require.NoError(t, err)
		assert.Equal(t, created.ID, second.ID)
		assert.Equal(t, model.JobStatusRunning, second.Status)
	})
}

func TestJobRepoIntegration_FailRetriesThenTerminal(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		helper := testutil.NewTimeBasedTestHelper(t, db, testutil.TestTime())
		repo := NewJobRepo(db, RepoConfig{
			RetryDelaySeconds: 5,
			TimeProvider:      helper.GetTimeProvider(),
		})

		created := createImportJob(t, repo, 2)

		reserved, err := repo.ReserveNext(ctx, model.JobTypeImport, 60)
		require.NoError(t, err)
		require.Equal(t, created.ID, reserved.ID)

		ok, err := repo.Fail(ctx, reserved.ID, "first failure")
		require.NoError(t, err)
		require.True(t, ok)

		testutil.LogJobStates(t, db, "after first failure")
		states := testutil.InspectJobStates(t, db)
		require.Len(t, states, 1)
		assert.Equal(t, "pending", states[0].Status)
		assert.Equal(t, 1, states[0].RetryCount)

		// The retry is delayed, so it is not reservable yet.
		_, err = repo.ReserveNext(ctx, model.JobTypeImport, 60)
		require.ErrorIs(t, err, model.ErrNoJobsAvailable)

		helper.AdvanceTime(10 * time.Second)

		reserved, err = repo.ReserveNext(ctx, model.JobTypeImport, 60)
		require.NoError(t, err)
		require.Equal(t, created.ID, reserved.ID)

		ok, err = repo.Fail(ctx, reserved.ID, "second failure")
		require.NoError(t, err)
		require.True(t, ok)

		states = testutil.InspectJobStates(t, db)
		require.Len(t, states, 1)
		assert.Equal(t, "failed", states[0].Status)
		assert.Equal(t, 2, states[0].RetryCount)
		require.NotNil(t, states[0].LastError)
		assert.Equal(t, "second failure", *states[0].LastError)
		assert.NotNil(t, states[0].CompletedAt)
	})
}

func TestJobRepoIntegration_UpdateProgressNeverMovesBackwards(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewJobRepo(db, RepoConfig{})

		created := createImportJob(t, repo, 0)
		reserved, err := repo.ReserveNext(ctx, model.JobTypeImport, 60)
		require.NoError(t, err)
		require.Equal(t, created.ID, reserved.ID)

		ok, err := repo.SetTotalRows(ctx, reserved.ID, 100)
		require.NoError(t, err)
		require.True(t, ok)

		_, err = repo.UpdateProgress(ctx, reserved.ID, 50)
		require.NoError(t, err)

		// A stale write with a lower count is absorbed by the row.
		_, err = repo.UpdateProgress(ctx, reserved.ID, 30)
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, reserved.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(50), got.ProcessedRows)
		require.NotNil(t, got.TotalRows)
		assert.Equal(t, int64(100), *got.TotalRows)
	})
}

func TestJobRepoIntegration_ConcurrentReserveHasOneWinner(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewJobRepo(db, RepoConfig{})

		created := createImportJob(t, repo, 0)

		var wins atomic.Int32
		reserve := func() error {
			job, err := repo.ReserveNext(ctx, model.JobTypeImport, 60)
			if err != nil {
				if errors.Is(err, model.ErrNoJobsAvailable) {
					return nil
				}
				return err
			}
			if job.ID == created.ID {
				wins.Add(1)
			}
			return nil
		}

		runner := testutil.NewConcurrentTestRunner(t, db)
		errs := runner.RunConcurrent(reserve, reserve, reserve, reserve)
		runner.AssertNoErrors(errs)

		assert.Equal(t, int32(1), wins.Load())
	})
}
