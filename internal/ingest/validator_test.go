package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayClean/product-importer/internal/errors"
)

func TestValidateHeaders(t *testing.T) {
	tests := []struct {
		name    string
		record  []string
		want    Header
		wantErr string
	}{
		{
			name:   "canonical order",
			record: []string{"sku", "name", "description"},
			want:   Header{SKU: 0, Name: 1, Description: 2},
		},
		{
			name:   "case insensitive with padding",
			record: []string{" SKU ", "Name", "DESCRIPTION"},
			want:   Header{SKU: 0, Name: 1, Description: 2},
		},
		{
			name:   "reordered with extra columns",
			record: []string{"price", "description", "sku", "name"},
			want:   Header{SKU: 2, Name: 3, Description: 1},
		},
		{
			name:    "missing sku",
			record:  []string{"name", "description"},
			wantErr: "missing required column(s): sku",
		},
		{
			name:    "missing several",
			record:  []string{"sku"},
			wantErr: "missing required column(s): name, description",
		},
		{
			name:    "empty record",
			record:  nil,
			wantErr: "no header row",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateHeaders(tt.record)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Equal(t, errors.ErrCodeValidation, errors.GetCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeRow(t *testing.T) {
	header := Header{SKU: 0, Name: 1, Description: 2}

	t.Run("trims and keeps description", func(t *testing.T) {
		input, err := NormalizeRow(header, []string{" A-1 ", "  Widget ", " A fine widget "})
		require.NoError(t, err)
		assert.Equal(t, "A-1", input.SKU)
		assert.Equal(t, "Widget", input.Name)
		require.NotNil(t, input.Description)
		assert.Equal(t, "A fine widget", *input.Description)
		assert.True(t, input.Active)
	})

	t.Run("blank description becomes nil", func(t *testing.T) {
		input, err := NormalizeRow(header, []string{"A-1", "Widget", "   "})
		require.NoError(t, err)
		assert.Nil(t, input.Description)
	})

	t.Run("short record tolerated", func(t *testing.T) {
		input, err := NormalizeRow(header, []string{"A-1", "Widget"})
		require.NoError(t, err)
		assert.Nil(t, input.Description)
	})

	t.Run("empty sku rejected", func(t *testing.T) {
		_, err := NormalizeRow(header, []string{"  ", "Widget", ""})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty sku")
	})

	t.Run("empty name rejected", func(t *testing.T) {
		_, err := NormalizeRow(header, []string{"A-1", "", ""})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty name")
	})
}
