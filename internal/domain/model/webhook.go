package model

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Webhook event names. Webhooks subscribe to exactly one event.
const (
	WebhookEventProductCreated  = "product.created"
	WebhookEventProductUpdated  = "product.updated"
	WebhookEventProductDeleted  = "product.deleted"
	WebhookEventImportCompleted = "import.completed"
)

// MaxTestStatusLen bounds the persisted last_test_status column.
const MaxTestStatusLen = 32

// ValidWebhookEvent returns true if the event name is a known webhook event.
func ValidWebhookEvent(event string) bool {
	switch event {
	case WebhookEventProductCreated,
		WebhookEventProductUpdated,
		WebhookEventProductDeleted,
		WebhookEventImportCompleted:
		return true
	}
	return false
}

// Webhook represents a registered outbound webhook.
type Webhook struct {
	ID                 int64     `json:"id"                              db:"id"`
	URL                string    `json:"url"                             db:"url"`
	Event              string    `json:"event"                           db:"event"`
	Enabled            bool      `json:"enabled"                         db:"enabled"`
	Secret             *string   `json:"-"                               db:"secret"`
	LastTestStatus     *string   `json:"last_test_status,omitempty"      db:"last_test_status"`
	LastTestResponseMS *int64    `json:"last_test_response_ms,omitempty" db:"last_test_response_ms"`
	CreatedAt          time.Time `json:"created_at"                      db:"created_at"`
}

// HasSecret returns true when a non-empty signing secret is configured.
func (w *Webhook) HasSecret() bool {
	return w.Secret != nil && *w.Secret != ""
}

// CreateWebhookRequest represents a request to register a webhook.
type CreateWebhookRequest struct {
	URL     string  `json:"url"`
	Event   string  `json:"event"`
	Enabled *bool   `json:"enabled,omitempty"`
	Secret  *string `json:"secret,omitempty"`
}

// Normalize trims fields and applies defaults.
func (r *CreateWebhookRequest) Normalize() {
	r.URL = strings.TrimSpace(r.URL)
	r.Event = strings.TrimSpace(strings.ToLower(r.Event))
	if r.Secret != nil && strings.TrimSpace(*r.Secret) == "" {
		r.Secret = nil
	}
}

// Validate validates the CreateWebhookRequest fields.
func (r *CreateWebhookRequest) Validate() error {
	if err := validateWebhookURL(r.URL); err != nil {
		return err
	}
	if !ValidWebhookEvent(r.Event) {
		return errors.New("invalid webhook event")
	}
	return nil
}

// UpdateWebhookRequest represents a partial webhook update. Nil fields are
// left unchanged.
type UpdateWebhookRequest struct {
	URL     *string `json:"url,omitempty"`
	Event   *string `json:"event,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
	Secret  *string `json:"secret,omitempty"`
}

// Normalize trims fields.
func (r *UpdateWebhookRequest) Normalize() {
	if r.URL != nil {
		u := strings.TrimSpace(*r.URL)
		r.URL = &u
	}
	if r.Event != nil {
		e := strings.TrimSpace(strings.ToLower(*r.Event))
		r.Event = &e
	}
}

// Validate validates the UpdateWebhookRequest fields.
func (r *UpdateWebhookRequest) Validate() error {
	if r.URL == nil && r.Event == nil && r.Enabled == nil && r.Secret == nil {
		return errors.New("at least one field must be provided")
	}
	if r.URL != nil {
		if err := validateWebhookURL(*r.URL); err != nil {
			return err
		}
	}
	if r.Event != nil && !ValidWebhookEvent(*r.Event) {
		return errors.New("invalid webhook event")
	}
	return nil
}

func validateWebhookURL(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return errors.New("url must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("url must use http or https")
	}
	if u.Host == "" {
		return errors.New("url must include a host")
	}
	return nil
}
