package httpx

import (
	"errors"
	"net/http"

	"github.com/jayClean/product-importer/internal/domain/model"
	"github.com/jayClean/product-importer/internal/service"
)

// ProductHandlers provides HTTP handlers for the product CRUD API.
type ProductHandlers struct {
	Svc *service.ProductService
}

// Create handles POST /api/products.
func (h *ProductHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateProductRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	product, err := h.Svc.Create(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, product)
}

// List handles GET /api/products. Soft-deleted products are hidden unless
// include_deleted=true.
func (h *ProductHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, 50, 1000)
	products, err := h.Svc.List(r.Context(), model.ProductListOptions{
		Limit:          limit,
		Offset:         offset,
		IncludeDeleted: parseBoolQuery(r, "include_deleted"),
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, products)
}

// GetByID handles GET /api/products/{id}.
func (h *ProductHandlers) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDPath(w, r)
	if !ok {
		return
	}

	product, err := h.Svc.GetByID(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, product)
}

// GetBySKU handles GET /api/products/sku/{sku}, matched case-insensitively.
func (h *ProductHandlers) GetBySKU(w http.ResponseWriter, r *http.Request) {
	sku := r.PathValue("sku")
	if sku == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("sku is required")},
		)
		return
	}

	product, err := h.Svc.GetBySKU(r.Context(), sku)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, product)
}

// Update handles PUT /api/products/{id}.
func (h *ProductHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDPath(w, r)
	if !ok {
		return
	}

	var req model.UpdateProductRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	product, err := h.Svc.Update(r.Context(), id, &req)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, product)
}

// Delete handles DELETE /api/products/{id}: a soft delete, so a later import
// of the same SKU brings the product back.
func (h *ProductHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDPath(w, r)
	if !ok {
		return
	}

	if _, err := h.Svc.Delete(r.Context(), id); err != nil {
		WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
