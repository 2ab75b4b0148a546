package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jayClean/product-importer/internal/data"
	"github.com/jayClean/product-importer/internal/domain/model"
	"github.com/jayClean/product-importer/internal/mocks"
	"github.com/jayClean/product-importer/internal/service"
)

func newProductHandlers(t *testing.T, repo *mocks.MockProductRepository) *ProductHandlers {
	t.Helper()
	svc, err := service.NewProductService(service.ProductServiceOptions{Repo: repo})
	require.NoError(t, err)
	return &ProductHandlers{Svc: svc}
}

func TestProductCreate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockProductRepository(ctrl)
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).
		Return(&model.Product{ID: 1, SKU: "ABC-1", Name: "Widget", Active: true}, nil)

	h := newProductHandlers(t, repo)

	body, _ := json.Marshal(model.CreateProductRequest{SKU: "ABC-1", Name: "Widget"})
	r := httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Create(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got model.Product
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, int64(1), got.ID)
}

func TestProductCreate_DuplicateSKU(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockProductRepository(ctrl)
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, data.ErrProductSKUExists)

	h := newProductHandlers(t, repo)

	body, _ := json.Marshal(model.CreateProductRequest{SKU: "ABC-1", Name: "Widget"})
	r := httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Create(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestProductCreate_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newProductHandlers(t, mocks.NewMockProductRepository(ctrl))

	r := httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewBufferString(`{"name":"Widget"}`))
	w := httptest.NewRecorder()

	h.Create(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProductGetByID_InvalidID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newProductHandlers(t, mocks.NewMockProductRepository(ctrl))

	r := httptest.NewRequest(http.MethodGet, "/api/products/abc", nil)
	r.SetPathValue("id", "abc")
	w := httptest.NewRecorder()

	h.GetByID(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProductGetBySKU(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockProductRepository(ctrl)
	repo.EXPECT().GetBySKU(gomock.Any(), "abc-1").
		Return(&model.Product{ID: 1, SKU: "ABC-1", Name: "Widget"}, nil)

	h := newProductHandlers(t, repo)

	r := httptest.NewRequest(http.MethodGet, "/api/products/sku/abc-1", nil)
	r.SetPathValue("sku", "abc-1")
	w := httptest.NewRecorder()

	h.GetBySKU(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got model.Product
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "ABC-1", got.SKU)
}

func TestProductList_IncludeDeleted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockProductRepository(ctrl)
	repo.EXPECT().List(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, opts model.ProductListOptions) ([]*model.Product, error) {
			assert.True(t, opts.IncludeDeleted)
			assert.Equal(t, 25, opts.Limit)
			return []*model.Product{}, nil
		})

	h := newProductHandlers(t, repo)

	r := httptest.NewRequest(http.MethodGet, "/api/products?include_deleted=true&limit=25", nil)
	w := httptest.NewRecorder()

	h.List(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProductDelete(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockProductRepository(ctrl)
	repo.EXPECT().SoftDelete(gomock.Any(), int64(4)).
		Return(&model.Product{ID: 4, SKU: "ABC-4", IsDeleted: true}, nil)

	h := newProductHandlers(t, repo)

	r := httptest.NewRequest(http.MethodDelete, "/api/products/4", nil)
	r.SetPathValue("id", "4")
	w := httptest.NewRecorder()

	h.Delete(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}
