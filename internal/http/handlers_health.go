package httpx

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/jayClean/product-importer/internal/core"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandlers reports process liveness plus the state of the backing
// stores. Either dependency may be nil when the process does not use it.
type HealthHandlers struct {
	DB    *sql.DB
	Cache core.CacheRepository
}

// Check handles GET/HEAD /healthz.
func (h *HealthHandlers) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{}

	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}
	if h.Cache != nil {
		if err := h.Cache.Health(ctx); err != nil {
			checks["cache"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["cache"] = "ok"
		}
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(status)
		return
	}

	body := map[string]any{"status": "ok", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	WriteJSON(w, status, body)
}
