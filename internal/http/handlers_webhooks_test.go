package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jayClean/product-importer/internal/core"
	"github.com/jayClean/product-importer/internal/data"
	"github.com/jayClean/product-importer/internal/domain/model"
	"github.com/jayClean/product-importer/internal/mocks"
	"github.com/jayClean/product-importer/internal/service"
)

func newWebhookHandlers(t *testing.T, repo *mocks.MockWebhookRepository) *WebhookHandlers {
	t.Helper()
	svc, err := service.NewWebhookService(service.WebhookServiceOptions{Repo: repo})
	require.NoError(t, err)
	return &WebhookHandlers{Svc: svc}
}

func TestWebhookCreate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockWebhookRepository(ctrl)
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).
		Return(&model.Webhook{ID: 7, URL: "https://example.com/hook", Event: model.WebhookEventProductCreated, Enabled: true}, nil)

	h := newWebhookHandlers(t, repo)

	body, _ := json.Marshal(model.CreateWebhookRequest{URL: "https://example.com/hook", Event: "product.created"})
	r := httptest.NewRequest(http.MethodPost, "/api/webhooks", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Create(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got model.Webhook
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, int64(7), got.ID)
}

func TestWebhookCreate_InvalidEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockWebhookRepository(ctrl)
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, errors.New("invalid webhook event"))

	h := newWebhookHandlers(t, repo)

	body, _ := json.Marshal(model.CreateWebhookRequest{URL: "https://example.com/hook", Event: "product.exploded"})
	r := httptest.NewRequest(http.MethodPost, "/api/webhooks", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Create(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var got map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "validation_failed", got["error"])
}

func TestWebhookList_Pagination(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockWebhookRepository(ctrl)
	repo.EXPECT().List(gomock.Any(), 10, 20).Return([]*model.Webhook{}, nil)

	h := newWebhookHandlers(t, repo)

	r := httptest.NewRequest(http.MethodGet, "/api/webhooks?limit=10&offset=20", nil)
	w := httptest.NewRecorder()

	h.List(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebhookUpdate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockWebhookRepository(ctrl)
	repo.EXPECT().Update(gomock.Any(), int64(3), gomock.Any()).
		DoAndReturn(func(_ context.Context, id int64, req *model.UpdateWebhookRequest) (*model.Webhook, error) {
			require.NotNil(t, req.Enabled)
			assert.False(t, *req.Enabled)
			return &model.Webhook{ID: id, URL: "https://example.com/hook", Event: model.WebhookEventProductCreated}, nil
		})

	h := newWebhookHandlers(t, repo)

	r := httptest.NewRequest(http.MethodPut, "/api/webhooks/3", bytes.NewBufferString(`{"enabled":false}`))
	r.SetPathValue("id", "3")
	w := httptest.NewRecorder()

	h.Update(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebhookDelete_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockWebhookRepository(ctrl)
	repo.EXPECT().Delete(gomock.Any(), int64(9)).Return(false, data.ErrWebhookNotFound)

	h := newWebhookHandlers(t, repo)

	r := httptest.NewRequest(http.MethodDelete, "/api/webhooks/9", nil)
	r.SetPathValue("id", "9")
	w := httptest.NewRecorder()

	h.Delete(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebhookTest_DeliversAndReportsResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := mocks.NewMockWebhookRepository(ctrl)
	repo.EXPECT().GetByID(gomock.Any(), int64(5)).
		Return(&model.Webhook{ID: 5, URL: server.URL, Event: model.WebhookEventProductCreated, Enabled: true}, nil)
	repo.EXPECT().RecordResult(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.RecordWebhookResultParams) error {
			assert.Equal(t, int64(5), params.WebhookID)
			assert.Equal(t, "success", params.Status)
			return nil
		})

	h := newWebhookHandlers(t, repo)

	r := httptest.NewRequest(http.MethodPost, "/api/webhooks/5/test", nil)
	r.SetPathValue("id", "5")
	w := httptest.NewRecorder()

	h.Test(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.EqualValues(t, 5, got["webhook_id"])
	assert.Equal(t, "success", got["status"])
	assert.EqualValues(t, http.StatusOK, got["http_status_code"])
	assert.Contains(t, got, "response_ms")
}

func TestWebhookTest_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockWebhookRepository(ctrl)
	repo.EXPECT().GetByID(gomock.Any(), int64(404)).Return(nil, data.ErrWebhookNotFound)

	h := newWebhookHandlers(t, repo)

	r := httptest.NewRequest(http.MethodPost, "/api/webhooks/404/test", nil)
	r.SetPathValue("id", "404")
	w := httptest.NewRecorder()

	h.Test(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
