package httpx

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/jayClean/product-importer/internal/core"
	"github.com/jayClean/product-importer/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs     *service.JobService
	Imports  *service.ImportService
	Products *service.ProductService
	Webhooks *service.WebhookService
	Progress *service.ProgressService

	// DB and Cache back the health endpoint; either may be nil.
	DB    *sql.DB
	Cache core.CacheRepository

	// MaxUploadBytes bounds CSV upload size; 0 uses the handler default.
	MaxUploadBytes int64
	// StreamPollInterval and StreamStallPolls tune SSE progress streaming;
	// zero values use the handler defaults.
	StreamPollInterval time.Duration
	StreamStallPolls   int

	Logger *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	uploadHandlers := &UploadHandlers{
		Imports:  services.Imports,
		Progress: services.Progress,
		MaxBytes: services.MaxUploadBytes,
	}
	jobHandlers := &JobHandlers{Svc: services.Jobs, Progress: services.Progress}
	streamHandlers := &StreamHandlers{
		Jobs:         services.Jobs,
		Progress:     services.Progress,
		Logger:       services.Logger,
		PollInterval: services.StreamPollInterval,
		StallPolls:   services.StreamStallPolls,
	}
	productHandlers := &ProductHandlers{Svc: services.Products}
	webhookHandlers := &WebhookHandlers{Svc: services.Webhooks}
	healthHandlers := &HealthHandlers{DB: services.DB, Cache: services.Cache}

	mux.HandleFunc("POST /api/uploads", uploadHandlers.Create)
	registerJobRoutes(mux, jobHandlers, streamHandlers)
	registerProductRoutes(mux, productHandlers)
	registerWebhookRoutes(mux, webhookHandlers)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandlers.Check))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandlers.Check))

	return mux
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers, sh *StreamHandlers) {
	mux.HandleFunc("GET /api/jobs", h.List)
	mux.HandleFunc("GET /api/jobs/{id}", h.GetStatus)
	mux.HandleFunc("GET /api/jobs/{id}/stream", sh.Stream)
	mux.HandleFunc("DELETE /api/jobs/{id}", h.Delete)
	mux.HandleFunc("GET /api/jobs/stats/{type}", h.Stats)
}

func registerProductRoutes(mux *http.ServeMux, h *ProductHandlers) {
	registerCRUD(mux, crudRoutes{
		Base:    "/api/products",
		Create:  h.Create,
		List:    h.List,
		GetByID: h.GetByID,
		Update:  h.Update,
		Delete:  h.Delete,
	})
	mux.HandleFunc("GET /api/products/sku/{sku}", h.GetBySKU)
}

func registerWebhookRoutes(mux *http.ServeMux, h *WebhookHandlers) {
	registerCRUD(mux, crudRoutes{
		Base:    "/api/webhooks",
		Create:  h.Create,
		List:    h.List,
		GetByID: h.GetByID,
		Update:  h.Update,
		Delete:  h.Delete,
	})
	mux.HandleFunc("POST /api/webhooks/{id}/test", h.Test)
}

// registerCRUD registers standard CRUD routes for a resource base path, applying mw if non-nil.
type crudRoutes struct {
	Base       string
	Create     http.HandlerFunc
	List       http.HandlerFunc
	GetByID    http.HandlerFunc
	Update     http.HandlerFunc
	Delete     http.HandlerFunc
	Middleware func(http.Handler) http.Handler
}

func registerCRUD(mux *http.ServeMux, cfg crudRoutes) {
	if cfg.Base == "" {
		panic("registerCRUD: Base must not be empty") //nolint:forbidigo // Fail fast during server setup.
	}
	if cfg.Create == nil ||
		cfg.List == nil ||
		cfg.GetByID == nil ||
		cfg.Update == nil ||
		cfg.Delete == nil {
		panic("registerCRUD: nil handler for base " + cfg.Base) //nolint:forbidigo // Fail fast during server setup.
	}

	wrap := func(h http.HandlerFunc) http.Handler {
		if cfg.Middleware != nil {
			return cfg.Middleware(h)
		}
		return h
	}
	mux.Handle("POST "+cfg.Base, wrap(cfg.Create))
	mux.Handle("GET "+cfg.Base, wrap(cfg.List))
	mux.Handle("GET "+cfg.Base+"/{id}", wrap(cfg.GetByID))
	mux.Handle("PUT "+cfg.Base+"/{id}", wrap(cfg.Update))
	mux.Handle("DELETE "+cfg.Base+"/{id}", wrap(cfg.Delete))
}
