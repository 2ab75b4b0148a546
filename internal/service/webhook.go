package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jayClean/product-importer/internal/core"
	"github.com/jayClean/product-importer/internal/domain/model"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Webhook-Signature"

const (
	deliveryUserAgent       = "Acme-Product-Importer/1.0"
	defaultDeliveryTimeout  = 10 * time.Second
	maxDeliveryErrorDetail  = 512
	deliveryStatusSuccess   = "success"
	deliveryStatusTimeout   = "timeout"
	deliveryStatusErrPrefix = "error"
)

// WebhookServiceOptions groups dependencies for WebhookService.
type WebhookServiceOptions struct {
	Repo       core.WebhookRepository // Required: webhook registrations
	Jobs       *JobService            // Optional: async dispatch queue; nil dispatches inline
	HTTPClient *http.Client           // Optional: delivery client
	Timeout    time.Duration          // Optional: per-delivery timeout, defaults to 10s
	MaxRetries int                    // Optional: job retry budget before the delivery attempt, 0 by default
	Logger     *slog.Logger           // Optional: structured logger
}

// WebhookService manages webhook registrations and outbound event delivery.
//
// Event delivery is fire-and-forget from the caller's perspective: one
// registration's failure is recorded on that registration and never
// propagates to the triggering operation or to sibling registrations.
type WebhookService struct {
	repo       core.WebhookRepository
	jobs       *JobService
	http       *http.Client
	timeout    time.Duration
	maxRetries int
	logger     *slog.Logger
}

// DeliveryResult summarizes one delivery attempt.
type DeliveryResult struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code,omitempty"`
	ResponseMS int64  `json:"response_ms"`
}

// OK reports whether the attempt got a 2xx response.
func (r DeliveryResult) OK() bool {
	return r.Status == deliveryStatusSuccess
}

// NewWebhookService constructs a new WebhookService.
func NewWebhookService(opts WebhookServiceOptions) (*WebhookService, error) {
	if opts.Repo == nil {
		return nil, errors.New("WebhookRepository is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "webhook_service")
	}

	return &WebhookService{
		repo:       opts.Repo,
		jobs:       opts.Jobs,
		http:       client,
		timeout:    timeout,
		maxRetries: opts.MaxRetries,
		logger:     logger,
	}, nil
}

// Create registers a new webhook.
func (s *WebhookService) Create(ctx context.Context, req *model.CreateWebhookRequest) (*model.Webhook, error) {
	hook, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "webhook registered", "id", hook.ID, "event", hook.Event, "url", hook.URL)
	}
	return hook, nil
}

// GetByID returns a webhook registration by ID.
func (s *WebhookService) GetByID(ctx context.Context, id int64) (*model.Webhook, error) {
	hook, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get webhook %d: %w", id, err)
	}
	return hook, nil
}

// List returns webhook registrations with normalized pagination.
func (s *WebhookService) List(ctx context.Context, limit, offset int) ([]*model.Webhook, error) {
	p := normalizePagination(limit, offset)
	hooks, err := s.repo.List(ctx, p.Limit, p.Offset)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	return hooks, nil
}

// Update modifies a webhook registration.
func (s *WebhookService) Update(ctx context.Context, id int64, req *model.UpdateWebhookRequest) (*model.Webhook, error) {
	hook, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("update webhook %d: %w", id, err)
	}
	return hook, nil
}

// Delete removes a webhook registration.
func (s *WebhookService) Delete(ctx context.Context, id int64) (bool, error) {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete webhook %d: %w", id, err)
	}
	return deleted, nil
}

// Trigger fans an event out to every enabled registration for it. With a job
// queue wired, each registration gets its own dispatch job so a slow endpoint
// never blocks the others; otherwise deliveries happen inline. Either way a
// delivery gets exactly one attempt. Trigger never returns an error: failures
// are logged and recorded per registration.
func (s *WebhookService) Trigger(ctx context.Context, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "marshal webhook event data", "event", event, "error", err)
		}
		return
	}

	hooks, err := s.repo.ListEnabledByEvent(ctx, event)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "list webhooks for event", "event", event, "error", err)
		}
		return
	}

	for _, hook := range hooks {
		s.triggerOne(ctx, hook, event, raw)
	}
}

func (s *WebhookService) triggerOne(ctx context.Context, hook *model.Webhook, event string, data json.RawMessage) {
	if s.jobs == nil {
		result := s.Dispatch(ctx, hook, event, data)
		s.recordResult(ctx, hook.ID, result)
		return
	}

	payload, err := json.Marshal(model.WebhookDispatchPayload{
		WebhookID: hook.ID,
		Event:     event,
		Data:      data,
	})
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "marshal dispatch payload", "webhook_id", hook.ID, "error", err)
		}
		return
	}

	if _, err := s.jobs.Create(ctx, &model.CreateJobRequest{
		Type:       model.JobTypeWebhookDispatch,
		Payload:    payload,
		MaxRetries: s.maxRetries,
	}); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "enqueue webhook dispatch",
			"webhook_id", hook.ID,
			"event", event,
			"error", err)
	}
}

// Dispatch posts one event to one registration and classifies the outcome.
// The body is {event, timestamp, data} in stable key order; when the
// registration has a secret the exact body bytes are signed with HMAC-SHA256.
func (s *WebhookService) Dispatch(ctx context.Context, hook *model.Webhook, event string, data json.RawMessage) DeliveryResult {
	body, err := canonicalBody(event, data)
	if err != nil {
		return DeliveryResult{Status: deliveryStatus(err)}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return DeliveryResult{Status: deliveryStatus(err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", deliveryUserAgent)
	if hook.HasSecret() {
		req.Header.Set(SignatureHeader, SignBody(*hook.Secret, body))
	}

	start := time.Now()
	resp, err := s.http.Do(req)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		status := deliveryStatus(err)
		if s.logger != nil {
			s.logger.WarnContext(ctx, "webhook delivery failed",
				"webhook_id", hook.ID,
				"event", event,
				"status", status,
				"error", err)
		}
		return DeliveryResult{Status: status, ResponseMS: elapsed}
	}
	// Body content is irrelevant; drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4*1024))
	_ = resp.Body.Close()

	result := DeliveryResult{StatusCode: resp.StatusCode, ResponseMS: elapsed}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result.Status = deliveryStatusSuccess
	} else {
		result.Status = fmt.Sprintf("%s: status %d", deliveryStatusErrPrefix, resp.StatusCode)
		if s.logger != nil {
			s.logger.WarnContext(ctx, "webhook delivery rejected",
				"webhook_id", hook.ID,
				"event", event,
				"status_code", resp.StatusCode)
		}
	}
	return result
}

// DispatchAndRecord delivers one event and persists the attempt outcome on
// the registration row. Returns an error when delivery itself failed; the
// attempt is already recorded by then, so callers report rather than retry.
func (s *WebhookService) DispatchAndRecord(ctx context.Context, hook *model.Webhook, event string, data json.RawMessage) error {
	result := s.Dispatch(ctx, hook, event, data)
	s.recordResult(ctx, hook.ID, result)
	if !result.OK() {
		return fmt.Errorf("deliver %s to webhook %d: %s", event, hook.ID, result.Status)
	}
	return nil
}

// HandleDispatchJob processes one queued webhook_dispatch job payload.
// A registration that vanished or was disabled since enqueue is a no-op.
func (s *WebhookService) HandleDispatchJob(ctx context.Context, payload model.WebhookDispatchPayload) error {
	hook, err := s.repo.GetByID(ctx, payload.WebhookID)
	if err != nil {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "skipping dispatch for missing webhook",
				"webhook_id", payload.WebhookID, "error", err)
		}
		return nil
	}
	if !hook.Enabled {
		return nil
	}
	return s.DispatchAndRecord(ctx, hook, payload.Event, payload.Data)
}

// TestFire delivers a synthetic payload to one registration and records the
// outcome, regardless of whether the registration is enabled.
func (s *WebhookService) TestFire(ctx context.Context, id int64) (DeliveryResult, error) {
	hook, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return DeliveryResult{}, fmt.Errorf("get webhook %d: %w", id, err)
	}

	data, err := json.Marshal(map[string]any{
		"test":       true,
		"webhook_id": hook.ID,
		"message":    "test delivery",
	})
	if err != nil {
		return DeliveryResult{}, fmt.Errorf("marshal test payload: %w", err)
	}

	result := s.Dispatch(ctx, hook, hook.Event, data)
	s.recordResult(ctx, hook.ID, result)
	return result, nil
}

func (s *WebhookService) recordResult(ctx context.Context, id int64, result DeliveryResult) {
	if err := s.repo.RecordResult(ctx, core.RecordWebhookResultParams{
		WebhookID:  id,
		Status:     result.Status,
		ResponseMS: result.ResponseMS,
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "record webhook result", "webhook_id", id, "error", err)
	}
}

// canonicalBody builds the delivery body with a stable key order. Marshalling
// a map sorts keys, which is what signature verification on the receiving
// side depends on.
func canonicalBody(event string, data json.RawMessage) ([]byte, error) {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	body, err := json.Marshal(map[string]any{
		"event":     event,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      data,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal webhook body: %w", err)
	}
	return body, nil
}

// SignBody computes the signature header value for a request body.
func SignBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature header against the body.
func VerifySignature(secret string, body []byte, header string) bool {
	return hmac.Equal([]byte(SignBody(secret, body)), []byte(header))
}

func deliveryStatus(err error) string {
	if isDeliveryTimeout(err) {
		return deliveryStatusTimeout
	}
	msg := err.Error()
	if len(msg) > maxDeliveryErrorDetail {
		msg = msg[:maxDeliveryErrorDetail]
	}
	return deliveryStatusErrPrefix + ": " + msg
}

func isDeliveryTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
