package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jayClean/product-importer/internal/core"
	"github.com/jayClean/product-importer/internal/domain/model"
	"github.com/jayClean/product-importer/internal/mocks"
)

func newTestWebhookService(t *testing.T, repo core.WebhookRepository, opts WebhookServiceOptions) *WebhookService {
	t.Helper()
	opts.Repo = repo
	svc, err := NewWebhookService(opts)
	require.NoError(t, err)
	return svc
}

func TestNewWebhookService_MissingRepo(t *testing.T) {
	svc, err := NewWebhookService(WebhookServiceOptions{})
	require.Error(t, err)
	assert.Nil(t, svc)
	assert.Contains(t, err.Error(), "WebhookRepository is required")
}

func TestWebhookService_Dispatch_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var gotBody []byte
	var gotHeader http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := newTestWebhookService(t, mocks.NewMockWebhookRepository(ctrl), WebhookServiceOptions{})

	hook := &model.Webhook{ID: 1, URL: server.URL, Event: model.WebhookEventProductCreated, Enabled: true}
	result := svc.Dispatch(context.Background(), hook, model.WebhookEventProductCreated, json.RawMessage(`{"id":42}`))

	assert.True(t, result.OK())
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.NotEmpty(t, gotHeader.Get("User-Agent"))
	// No secret configured, so no signature header either.
	assert.Empty(t, gotHeader.Get(SignatureHeader))

	var body struct {
		Event     string          `json:"event"`
		Timestamp string          `json:"timestamp"`
		Data      json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &body))
	assert.Equal(t, model.WebhookEventProductCreated, body.Event)
	assert.JSONEq(t, `{"id":42}`, string(body.Data))
	_, err := time.Parse(time.RFC3339, body.Timestamp)
	assert.NoError(t, err)
}

func TestWebhookService_Dispatch_SignsBodyWithSecret(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	secret := "s3cret"
	var gotBody []byte
	var gotSig string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := newTestWebhookService(t, mocks.NewMockWebhookRepository(ctrl), WebhookServiceOptions{})

	hook := &model.Webhook{ID: 1, URL: server.URL, Event: model.WebhookEventProductUpdated, Enabled: true, Secret: &secret}
	result := svc.Dispatch(context.Background(), hook, model.WebhookEventProductUpdated, json.RawMessage(`{"id":1}`))

	require.True(t, result.OK())
	require.NotEmpty(t, gotSig)
	assert.Contains(t, gotSig, "sha256=")
	// The signature covers the exact body bytes that were sent.
	assert.True(t, VerifySignature(secret, gotBody, gotSig))
	assert.False(t, VerifySignature("wrong", gotBody, gotSig))
}

func TestWebhookService_Dispatch_Non2xx(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := newTestWebhookService(t, mocks.NewMockWebhookRepository(ctrl), WebhookServiceOptions{})

	hook := &model.Webhook{ID: 1, URL: server.URL, Event: model.WebhookEventProductCreated, Enabled: true}
	result := svc.Dispatch(context.Background(), hook, model.WebhookEventProductCreated, nil)

	assert.False(t, result.OK())
	assert.Equal(t, http.StatusInternalServerError, result.StatusCode)
	assert.Equal(t, "error: status 500", result.Status)
}

func TestWebhookService_Dispatch_Timeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	svc := newTestWebhookService(t, mocks.NewMockWebhookRepository(ctrl), WebhookServiceOptions{
		Timeout: 50 * time.Millisecond,
	})

	hook := &model.Webhook{ID: 1, URL: server.URL, Event: model.WebhookEventProductCreated, Enabled: true}
	result := svc.Dispatch(context.Background(), hook, model.WebhookEventProductCreated, nil)

	assert.False(t, result.OK())
	assert.Equal(t, "timeout", result.Status)
}

func TestWebhookService_SignBody_RoundTrip(t *testing.T) {
	body := []byte(`{"event":"product.created","data":{"id":1}}`)

	sig := SignBody("secret", body)
	assert.Contains(t, sig, "sha256=")
	assert.True(t, VerifySignature("secret", body, sig))
	assert.False(t, VerifySignature("other", body, sig))
	assert.False(t, VerifySignature("secret", []byte(`tampered`), sig))
	assert.False(t, VerifySignature("secret", body, "sha256=deadbeef"))
}

func TestWebhookService_Trigger_InlineFailureIsolation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var delivered atomic.Int64
	okServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer okServer.Close()
	badServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer badServer.Close()

	repo := mocks.NewMockWebhookRepository(ctrl)
	repo.EXPECT().ListEnabledByEvent(gomock.Any(), model.WebhookEventImportCompleted).Return([]*model.Webhook{
		{ID: 1, URL: okServer.URL, Event: model.WebhookEventImportCompleted, Enabled: true},
		{ID: 2, URL: badServer.URL, Event: model.WebhookEventImportCompleted, Enabled: true},
		{ID: 3, URL: okServer.URL, Event: model.WebhookEventImportCompleted, Enabled: true},
	}, nil)

	statuses := map[int64]string{}
	repo.EXPECT().RecordResult(gomock.Any(), gomock.Any()).Times(3).
		DoAndReturn(func(_ context.Context, params core.RecordWebhookResultParams) error {
			statuses[params.WebhookID] = params.Status
			return nil
		})

	// No job queue wired: deliveries happen inline.
	svc := newTestWebhookService(t, repo, WebhookServiceOptions{})
	svc.Trigger(context.Background(), model.WebhookEventImportCompleted, map[string]any{"job_id": "j1"})

	// The failing registration does not stop the others.
	assert.Equal(t, int64(2), delivered.Load())
	assert.Equal(t, "success", statuses[1])
	assert.Equal(t, "error: status 502", statuses[2])
	assert.Equal(t, "success", statuses[3])
}

func TestWebhookService_Trigger_EnqueuesDispatchJobs(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockWebhookRepository(ctrl)
	repo.EXPECT().ListEnabledByEvent(gomock.Any(), model.WebhookEventProductDeleted).Return([]*model.Webhook{
		{ID: 7, URL: "https://example.com/hook", Event: model.WebhookEventProductDeleted, Enabled: true},
	}, nil)

	jobRepo := mocks.NewMockJobRepository(ctrl)
	jobRepo.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
			assert.Equal(t, model.JobTypeWebhookDispatch, req.Type)
			// Deliveries get exactly one attempt.
			assert.Equal(t, 0, req.MaxRetries)
			var payload model.WebhookDispatchPayload
			require.NoError(t, json.Unmarshal(req.Payload, &payload))
			assert.Equal(t, int64(7), payload.WebhookID)
			assert.Equal(t, model.WebhookEventProductDeleted, payload.Event)
			return &model.Job{ID: "job-1", Type: req.Type}, nil
		})
	jobs := MustNewJobService(JobServiceOptions{Repo: jobRepo, DefaultLease: 30 * time.Second})

	svc := newTestWebhookService(t, repo, WebhookServiceOptions{Jobs: jobs})
	svc.Trigger(context.Background(), model.WebhookEventProductDeleted, map[string]any{"id": 9})
}

func TestWebhookService_HandleDispatchJob_MissingHookIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockWebhookRepository(ctrl)
	repo.EXPECT().GetByID(gomock.Any(), int64(99)).Return(nil, assert.AnError)

	svc := newTestWebhookService(t, repo, WebhookServiceOptions{})
	err := svc.HandleDispatchJob(context.Background(), model.WebhookDispatchPayload{WebhookID: 99, Event: "product.created"})
	assert.NoError(t, err)
}

func TestWebhookService_HandleDispatchJob_DisabledHookIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockWebhookRepository(ctrl)
	repo.EXPECT().GetByID(gomock.Any(), int64(5)).Return(&model.Webhook{ID: 5, URL: "https://example.com", Enabled: false}, nil)

	svc := newTestWebhookService(t, repo, WebhookServiceOptions{})
	err := svc.HandleDispatchJob(context.Background(), model.WebhookDispatchPayload{WebhookID: 5, Event: "product.created"})
	assert.NoError(t, err)
}

func TestWebhookService_HandleDispatchJob_FailedDeliveryReturnsError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	repo := mocks.NewMockWebhookRepository(ctrl)
	repo.EXPECT().GetByID(gomock.Any(), int64(5)).Return(&model.Webhook{ID: 5, URL: server.URL, Enabled: true}, nil)
	repo.EXPECT().RecordResult(gomock.Any(), gomock.Any()).Return(nil)

	svc := newTestWebhookService(t, repo, WebhookServiceOptions{})
	err := svc.HandleDispatchJob(context.Background(), model.WebhookDispatchPayload{WebhookID: 5, Event: "product.created"})
	// The error surfaces for logging; the attempt is already recorded.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestWebhookService_TestFire_DeliversEvenWhenDisabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := mocks.NewMockWebhookRepository(ctrl)
	repo.EXPECT().GetByID(gomock.Any(), int64(3)).Return(&model.Webhook{
		ID: 3, URL: server.URL, Event: model.WebhookEventProductCreated, Enabled: false,
	}, nil)
	repo.EXPECT().RecordResult(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.RecordWebhookResultParams) error {
			assert.Equal(t, int64(3), params.WebhookID)
			assert.Equal(t, "success", params.Status)
			return nil
		})

	svc := newTestWebhookService(t, repo, WebhookServiceOptions{})
	result, err := svc.TestFire(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, result.OK())

	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &body))
	assert.Equal(t, true, body.Data["test"])
}

func TestWebhookService_List_NormalizesPagination(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockWebhookRepository(ctrl)
	repo.EXPECT().List(gomock.Any(), 50, 0).Return([]*model.Webhook{}, nil)

	svc := newTestWebhookService(t, repo, WebhookServiceOptions{})
	_, err := svc.List(context.Background(), 0, -5)
	require.NoError(t, err)
}
