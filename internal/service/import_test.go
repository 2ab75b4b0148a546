package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jayClean/product-importer/internal/core"
	"github.com/jayClean/product-importer/internal/domain/model"
	"github.com/jayClean/product-importer/internal/errors"
	"github.com/jayClean/product-importer/internal/mocks"
	"github.com/jayClean/product-importer/internal/storage"
)

func newTestUploadStore(t *testing.T) *storage.UploadStore {
	t.Helper()
	store, err := storage.NewUploadStore(storage.UploadStoreOptions{Dir: t.TempDir()})
	require.NoError(t, err)
	return store
}

func newTestImportService(t *testing.T, jobRepo *mocks.MockJobRepository, products core.ProductRepository, uploads *storage.UploadStore) *ImportService {
	t.Helper()
	jobs, err := NewJobService(JobServiceOptions{Repo: jobRepo, DefaultLease: 30 * time.Second})
	require.NoError(t, err)

	svc, err := NewImportService(ImportServiceOptions{
		Jobs:     jobs,
		Products: products,
		Uploads:  uploads,
	})
	require.NoError(t, err)
	return svc
}

func stageCSV(t *testing.T, store *storage.UploadStore, content string) string {
	t.Helper()
	path, _, err := store.Stage(strings.NewReader(content))
	require.NoError(t, err)
	return path
}

func importJob(t *testing.T, path, filename string) *model.Job {
	t.Helper()
	payload, err := json.Marshal(model.ImportPayload{FilePath: path, Filename: filename})
	require.NoError(t, err)
	return &model.Job{ID: "job-1", Type: model.JobTypeImport, Status: model.JobStatusRunning, Payload: payload}
}

func TestImportService_Run(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	csv := "sku,name,description\n" +
		"ABC-1,Widget,First widget\n" +
		"ABC-2,Gadget,\n" +
		",No SKU,skipped row\n" +
		"ABC-3,Gizmo,Third\n"

	uploads := newTestUploadStore(t)
	path := stageCSV(t, uploads, csv)

	jobRepo := mocks.NewMockJobRepository(ctrl)
	jobRepo.EXPECT().SetTotalRows(gomock.Any(), "job-1", int64(4)).Return(true, nil)
	jobRepo.EXPECT().UpdateProgress(gomock.Any(), "job-1", int64(3)).Return(true, nil)
	jobRepo.EXPECT().Heartbeat(gomock.Any(), "job-1", gomock.Any()).Return(true, nil).AnyTimes()
	jobRepo.EXPECT().Complete(gomock.Any(), "job-1").Return(true, nil)

	products := mocks.NewMockProductRepository(ctrl)
	products.EXPECT().Reconcile(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, batch []model.ProductInput) (core.ReconcileResult, error) {
			require.Len(t, batch, 3)
			assert.Equal(t, "ABC-1", batch[0].SKU)
			assert.Equal(t, "Widget", batch[0].Name)
			require.NotNil(t, batch[0].Description)
			assert.Equal(t, "First widget", *batch[0].Description)
			// Blank description becomes NULL.
			assert.Nil(t, batch[1].Description)
			assert.True(t, batch[0].Active)
			return core.ReconcileResult{Inserted: 2, Updated: 1}, nil
		})

	svc := newTestImportService(t, jobRepo, products, uploads)
	job := importJob(t, path, "products.csv")

	require.NoError(t, svc.Run(context.Background(), job))

	// The staged file is cleaned up after the run.
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestImportService_Run_MissingHeaderColumn(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	uploads := newTestUploadStore(t)
	path := stageCSV(t, uploads, "sku,name\nABC-1,Widget\n")

	jobRepo := mocks.NewMockJobRepository(ctrl)
	products := mocks.NewMockProductRepository(ctrl)

	svc := newTestImportService(t, jobRepo, products, uploads)
	job := importJob(t, path, "products.csv")

	err := svc.Run(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required column")
	assert.Equal(t, ErrorTypeValidation, ClassifyImportError(err))
}

func TestImportService_Run_ReconcileFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	uploads := newTestUploadStore(t)
	path := stageCSV(t, uploads, "sku,name,description\nABC-1,Widget,\n")

	jobRepo := mocks.NewMockJobRepository(ctrl)
	jobRepo.EXPECT().SetTotalRows(gomock.Any(), "job-1", int64(1)).Return(true, nil)

	products := mocks.NewMockProductRepository(ctrl)
	products.EXPECT().Reconcile(gomock.Any(), gomock.Any()).Return(core.ReconcileResult{}, assert.AnError)

	svc := newTestImportService(t, jobRepo, products, uploads)
	job := importJob(t, path, "products.csv")

	err := svc.Run(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, ErrorTypePersistence, ClassifyImportError(err))
}

func TestImportService_Run_FailedSnapshotKeepsLastProgress(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Two batches: 1000 rows reconcile cleanly, the second batch fails.
	var b strings.Builder
	b.WriteString("sku,name,description\n")
	for i := 0; i < 1500; i++ {
		fmt.Fprintf(&b, "SKU-%04d,Widget %d,\n", i, i)
	}

	uploads := newTestUploadStore(t)
	path := stageCSV(t, uploads, b.String())

	jobRepo := mocks.NewMockJobRepository(ctrl)
	jobRepo.EXPECT().SetTotalRows(gomock.Any(), "job-1", int64(1500)).Return(true, nil)
	jobRepo.EXPECT().UpdateProgress(gomock.Any(), "job-1", int64(1000)).Return(true, nil)
	jobRepo.EXPECT().Heartbeat(gomock.Any(), "job-1", gomock.Any()).Return(true, nil).AnyTimes()

	products := mocks.NewMockProductRepository(ctrl)
	products.EXPECT().Reconcile(gomock.Any(), gomock.Any()).Return(core.ReconcileResult{Inserted: 600, Updated: 400}, nil)
	products.EXPECT().Reconcile(gomock.Any(), gomock.Any()).Return(core.ReconcileResult{}, assert.AnError)

	var snapshots []model.ProgressSnapshot
	cache := mocks.NewMockCacheRepository(ctrl)
	cache.EXPECT().Set(gomock.Any(), ProgressKey("job-1"), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, value []byte, _ time.Duration) error {
			var snap model.ProgressSnapshot
			require.NoError(t, json.Unmarshal(value, &snap))
			snapshots = append(snapshots, snap)
			return nil
		}).AnyTimes()

	progress, err := NewProgressService(ProgressServiceOptions{Cache: cache})
	require.NoError(t, err)

	jobs, err := NewJobService(JobServiceOptions{Repo: jobRepo, DefaultLease: 30 * time.Second})
	require.NoError(t, err)
	svc, err := NewImportService(ImportServiceOptions{
		Jobs:     jobs,
		Products: products,
		Uploads:  uploads,
		Progress: progress,
	})
	require.NoError(t, err)

	job := importJob(t, path, "products.csv")
	require.Error(t, svc.Run(context.Background(), job))

	require.NotEmpty(t, snapshots)
	last := snapshots[len(snapshots)-1]
	assert.Equal(t, model.JobStatusFailed, last.Status)
	// The failed snapshot stays at the point the import reached.
	assert.InDelta(t, float64(1000)/float64(1500), last.Progress, 0.0001)
	assert.Equal(t, ErrorTypePersistence, last.Meta["error_type"])
	assert.EqualValues(t, 1000, last.Meta["processed"])
	assert.EqualValues(t, 600, last.Meta["inserted"])
	assert.EqualValues(t, 400, last.Meta["updated"])

	// Progress never moves backwards across the published sequence.
	prev := 0.0
	for _, snap := range snapshots {
		assert.GreaterOrEqual(t, snap.Progress, prev)
		prev = snap.Progress
	}
}

func TestImportService_Run_BadPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	uploads := newTestUploadStore(t)
	svc := newTestImportService(t, mocks.NewMockJobRepository(ctrl), mocks.NewMockProductRepository(ctrl), uploads)

	job := &model.Job{ID: "job-1", Type: model.JobTypeImport, Payload: json.RawMessage("{broken")}
	err := svc.Run(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, ErrorTypeValidation, ClassifyImportError(err))
}

func TestImportService_CreateFromUpload(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	uploads := newTestUploadStore(t)

	var stagedPath string
	jobRepo := mocks.NewMockJobRepository(ctrl)
	jobRepo.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
			assert.Equal(t, model.JobTypeImport, req.Type)
			// Imports never retry.
			assert.Equal(t, 0, req.MaxRetries)

			var payload model.ImportPayload
			require.NoError(t, json.Unmarshal(req.Payload, &payload))
			assert.Equal(t, "products.csv", payload.Filename)
			stagedPath = payload.FilePath
			return &model.Job{ID: "job-1", Type: req.Type, Status: model.JobStatusPending, Payload: req.Payload}, nil
		})

	svc := newTestImportService(t, jobRepo, mocks.NewMockProductRepository(ctrl), uploads)

	job, err := svc.CreateFromUpload(context.Background(), strings.NewReader("sku,name,description\n"), "products.csv")
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)

	data, err := os.ReadFile(stagedPath)
	require.NoError(t, err)
	assert.Equal(t, "sku,name,description\n", string(data))
	assert.Equal(t, ".csv", filepath.Ext(stagedPath))
}

func TestImportService_CreateFromUpload_CleansUpOnCreateFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dir := t.TempDir()
	uploads, err := storage.NewUploadStore(storage.UploadStoreOptions{Dir: dir})
	require.NoError(t, err)

	jobRepo := mocks.NewMockJobRepository(ctrl)
	jobRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, assert.AnError)

	svc := newTestImportService(t, jobRepo, mocks.NewMockProductRepository(ctrl), uploads)

	_, err = svc.CreateFromUpload(context.Background(), strings.NewReader("sku,name,description\n"), "products.csv")
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClassifyImportError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "tagged persistence failure",
			err:  &importFailure{kind: ErrorTypePersistence, err: assert.AnError},
			want: ErrorTypePersistence,
		},
		{
			name: "validation app error",
			err:  errors.Validation("bad row"),
			want: ErrorTypeValidation,
		},
		{
			name: "memory guardrail",
			err:  errors.ResourceExhausted("memory hard limit reached"),
			want: ErrorTypeResourceExhausted,
		},
		{
			name: "conflict maps to persistence",
			err:  errors.Conflict("duplicate sku"),
			want: ErrorTypePersistence,
		},
		{
			name: "unknown error is internal",
			err:  assert.AnError,
			want: ErrorTypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyImportError(tt.err))
		})
	}
}
