package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayClean/product-importer/internal/data"
	apperrors "github.com/jayClean/product-importer/internal/errors"
)

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{
			name:     "job not found",
			err:      fmt.Errorf("get job abc: %w", data.ErrJobNotFound),
			wantCode: http.StatusNotFound,
			wantErr:  "not_found",
		},
		{
			name:     "product not found",
			err:      data.ErrProductNotFound,
			wantCode: http.StatusNotFound,
			wantErr:  "not_found",
		},
		{
			name:     "webhook not found",
			err:      data.ErrWebhookNotFound,
			wantCode: http.StatusNotFound,
			wantErr:  "not_found",
		},
		{
			name:     "app not found",
			err:      apperrors.NotFound("nope"),
			wantCode: http.StatusNotFound,
			wantErr:  "not_found",
		},
		{
			name:     "duplicate sku",
			err:      fmt.Errorf("create product: %w", data.ErrProductSKUExists),
			wantCode: http.StatusConflict,
			wantErr:  "conflict",
		},
		{
			name:     "job not deletable",
			err:      fmt.Errorf("delete job abc: %w", data.ErrJobNotDeletable),
			wantCode: http.StatusConflict,
			wantErr:  "conflict",
		},
		{
			name:     "job reserved",
			err:      fmt.Errorf("delete job abc: %w", data.ErrJobReserved),
			wantCode: http.StatusConflict,
			wantErr:  "conflict",
		},
		{
			name:     "validation app error",
			err:      apperrors.Validation("sku is required"),
			wantCode: http.StatusBadRequest,
			wantErr:  "validation_failed",
		},
		{
			name:     "validation by message pattern",
			err:      errors.New("at least one field must be provided"),
			wantCode: http.StatusBadRequest,
			wantErr:  "validation_failed",
		},
		{
			name:     "unknown error",
			err:      errors.New("boom"),
			wantCode: http.StatusInternalServerError,
			wantErr:  "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteServiceError(w, tt.err)

			resp := w.Result()
			defer resp.Body.Close()
			require.Equal(t, tt.wantCode, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.wantErr, body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("decodes valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"x"}`))
		w := httptest.NewRecorder()

		var dst payload
		require.True(t, DecodeJSON(w, r, &dst))
		assert.Equal(t, "x", dst.Name)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"x","bogus":1}`))
		w := httptest.NewRecorder()

		var dst payload
		require.False(t, DecodeJSON(w, r, &dst))

		resp := w.Result()
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{bad`))
		w := httptest.NewRecorder()

		var dst payload
		require.False(t, DecodeJSON(w, r, &dst))

		resp := w.Result()
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
