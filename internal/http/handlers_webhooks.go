package httpx

import (
	"net/http"

	"github.com/jayClean/product-importer/internal/domain/model"
	"github.com/jayClean/product-importer/internal/service"
)

// WebhookHandlers provides HTTP handlers for webhook registration management.
type WebhookHandlers struct {
	Svc *service.WebhookService
}

// Create handles POST /api/webhooks.
func (h *WebhookHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateWebhookRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	hook, err := h.Svc.Create(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, hook)
}

// List handles GET /api/webhooks.
func (h *WebhookHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, 50, 1000)
	hooks, err := h.Svc.List(r.Context(), limit, offset)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, hooks)
}

// GetByID handles GET /api/webhooks/{id}.
func (h *WebhookHandlers) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDPath(w, r)
	if !ok {
		return
	}

	hook, err := h.Svc.GetByID(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, hook)
}

// Update handles PUT /api/webhooks/{id}.
func (h *WebhookHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDPath(w, r)
	if !ok {
		return
	}

	var req model.UpdateWebhookRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	hook, err := h.Svc.Update(r.Context(), id, &req)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, hook)
}

// Delete handles DELETE /api/webhooks/{id}.
func (h *WebhookHandlers) Delete(w http.ResponseWriter, r *http.Request) {
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

// Test handles POST /api/webhooks/{id}/test. The delivery happens inline so
// the caller sees the endpoint's real response before enabling it for events.
func (h *WebhookHandlers) Test(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDPath(w, r)
	if !ok {
		return
	}

	result, err := h.Svc.TestFire(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"webhook_id":       id,
		"status":           result.Status,
		"http_status_code": result.StatusCode,
		"response_ms":      result.ResponseMS,
	})
}
