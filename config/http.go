package config

import "time"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the base URL of the application (e.g., "https://app.example.com").
	// Used for generating absolute URLs in responses and webhook payloads.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// UploadDir is the directory where uploaded CSV files are staged
	// before a worker picks them up.
	UploadDir string `env:"HTTP_UPLOAD_DIR" envDefault:"/tmp/product-imports"`

	// MaxUploadBytes caps the size of an uploaded CSV file.
	MaxUploadBytes int64 `env:"HTTP_MAX_UPLOAD_BYTES" envDefault:"104857600"` // 100 MiB

	// StreamPollInterval is how often the SSE progress stream re-reads job state.
	StreamPollInterval time.Duration `env:"HTTP_STREAM_POLL_INTERVAL" envDefault:"5s"`

	// StreamStallPolls is the number of consecutive polls without meaningful
	// progress movement before the stream gives up with a timeout event.
	StreamStallPolls int `env:"HTTP_STREAM_STALL_POLLS" envDefault:"60"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.MaxUploadBytes < 1 {
		h.MaxUploadBytes = 104857600
	}
	if h.StreamPollInterval < time.Second {
		h.StreamPollInterval = time.Second
	}
	if h.StreamStallPolls < 1 {
		h.StreamStallPolls = 1
	}
	if h.UploadDir == "" {
		h.UploadDir = "/tmp/product-imports"
	}
}
