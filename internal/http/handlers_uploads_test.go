package httpx

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jayClean/product-importer/internal/domain/model"
	"github.com/jayClean/product-importer/internal/mocks"
	"github.com/jayClean/product-importer/internal/service"
	"github.com/jayClean/product-importer/internal/storage"
)

func newUploadHandlers(t *testing.T, jobRepo *mocks.MockJobRepository) *UploadHandlers {
	t.Helper()

	uploads, err := storage.NewUploadStore(storage.UploadStoreOptions{Dir: t.TempDir()})
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	jobs := service.MustNewJobService(service.JobServiceOptions{Repo: jobRepo, DefaultLease: 30 * time.Second})
	imports, err := service.NewImportService(service.ImportServiceOptions{
		Jobs:     jobs,
		Products: mocks.NewMockProductRepository(ctrl),
		Uploads:  uploads,
	})
	require.NoError(t, err)

	return &UploadHandlers{Imports: imports}
}

func multipartUpload(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestUploadCreate_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	jobRepo := mocks.NewMockJobRepository(ctrl)
	jobRepo.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, req *model.CreateJobRequest) (*model.Job, error) {
			assert.Equal(t, model.JobTypeImport, req.Type)
			return &model.Job{ID: "job-1", Type: req.Type, Status: model.JobStatusPending, Payload: req.Payload}, nil
		})

	h := newUploadHandlers(t, jobRepo)

	body, contentType := multipartUpload(t, "file", "products.csv", "sku,name,description\nABC-1,Widget,\n")
	r := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.Create(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var got model.JobStatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "job-1", got.ID)
	assert.Equal(t, model.JobStatusPending, got.Status)
}

func TestUploadCreate_MissingFileField(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newUploadHandlers(t, mocks.NewMockJobRepository(ctrl))

	body, contentType := multipartUpload(t, "attachment", "products.csv", "sku,name,description\n")
	r := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.Create(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errBody map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errBody))
	assert.Equal(t, "invalid_upload", errBody["error"])
}

func TestUploadCreate_RejectsNonCSV(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newUploadHandlers(t, mocks.NewMockJobRepository(ctrl))

	body, contentType := multipartUpload(t, "file", "products.xlsx", "not a csv")
	r := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.Create(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errBody map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errBody))
	assert.Contains(t, errBody["message"], ".csv")
}

func TestUploadCreate_BodyTooLarge(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newUploadHandlers(t, mocks.NewMockJobRepository(ctrl))
	h.MaxBytes = 64

	body, contentType := multipartUpload(t, "file", "products.csv", string(make([]byte, 4096)))
	r := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.Create(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	// The multipart parse fails once the cap is hit, before staging starts.
	assert.True(t, resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusRequestEntityTooLarge)
}
