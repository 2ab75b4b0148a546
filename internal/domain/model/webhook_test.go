package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidWebhookEvent(t *testing.T) {
	assert.True(t, ValidWebhookEvent(WebhookEventProductCreated))
	assert.True(t, ValidWebhookEvent(WebhookEventProductUpdated))
	assert.True(t, ValidWebhookEvent(WebhookEventProductDeleted))
	assert.True(t, ValidWebhookEvent(WebhookEventImportCompleted))
	assert.False(t, ValidWebhookEvent("product.exploded"))
	assert.False(t, ValidWebhookEvent(""))
}

func TestCreateWebhookRequest_Normalize(t *testing.T) {
	blank := "  "
	req := CreateWebhookRequest{URL: " https://example.com/hook ", Event: " Product.Created ", Secret: &blank}
	req.Normalize()

	assert.Equal(t, "https://example.com/hook", req.URL)
	assert.Equal(t, "product.created", req.Event)
	assert.Nil(t, req.Secret, "blank secret should be treated as absent")
}

func TestCreateWebhookRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateWebhookRequest
		wantErr string
	}{
		{name: "valid", req: CreateWebhookRequest{URL: "https://example.com/hook", Event: "product.created"}},
		{name: "missing url", req: CreateWebhookRequest{Event: "product.created"}, wantErr: "url is required"},
		{
			name:    "bad scheme",
			req:     CreateWebhookRequest{URL: "ftp://example.com/hook", Event: "product.created"},
			wantErr: "url must use http or https",
		},
		{
			name:    "no host",
			req:     CreateWebhookRequest{URL: "https://", Event: "product.created"},
			wantErr: "url must include a host",
		},
		{
			name:    "unknown event",
			req:     CreateWebhookRequest{URL: "https://example.com/hook", Event: "product.exploded"},
			wantErr: "invalid webhook event",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestUpdateWebhookRequest_Validate(t *testing.T) {
	url := "https://example.com/hook"
	badEvent := "product.exploded"
	enabled := false

	tests := []struct {
		name    string
		req     UpdateWebhookRequest
		wantErr string
	}{
		{name: "url only", req: UpdateWebhookRequest{URL: &url}},
		{name: "enabled only", req: UpdateWebhookRequest{Enabled: &enabled}},
		{name: "no fields", req: UpdateWebhookRequest{}, wantErr: "at least one field must be provided"},
		{name: "unknown event", req: UpdateWebhookRequest{Event: &badEvent}, wantErr: "invalid webhook event"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestWebhookHasSecret(t *testing.T) {
	secret := "s3cret"
	empty := ""

	assert.True(t, (&Webhook{Secret: &secret}).HasSecret())
	assert.False(t, (&Webhook{Secret: &empty}).HasSecret())
	assert.False(t, (&Webhook{}).HasSecret())
}
