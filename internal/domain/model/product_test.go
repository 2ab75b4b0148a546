package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProductRequest_Normalize(t *testing.T) {
	desc := "  a widget  "
	req := CreateProductRequest{SKU: "  abc-1  ", Name: "  Widget ", Description: &desc}
	req.Normalize()

	assert.Equal(t, "abc-1", req.SKU)
	assert.Equal(t, "Widget", req.Name)
	require.NotNil(t, req.Description)
	assert.Equal(t, "a widget", *req.Description)
}

func TestCreateProductRequest_NormalizeDropsBlankDescription(t *testing.T) {
	desc := "   "
	req := CreateProductRequest{SKU: "abc-1", Name: "Widget", Description: &desc}
	req.Normalize()

	assert.Nil(t, req.Description)
}

func TestCreateProductRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateProductRequest
		wantErr string
	}{
		{name: "valid", req: CreateProductRequest{SKU: "abc-1", Name: "Widget"}},
		{name: "missing sku", req: CreateProductRequest{Name: "Widget"}, wantErr: "sku is required"},
		{name: "missing name", req: CreateProductRequest{SKU: "abc-1"}, wantErr: "name is required"},
		{
			name:    "sku too long",
			req:     CreateProductRequest{SKU: strings.Repeat("x", 129), Name: "Widget"},
			wantErr: "sku must be at most 128 characters",
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

func TestCreateProductRequest_InputDefaultsActive(t *testing.T) {
	req := CreateProductRequest{SKU: "abc-1", Name: "Widget"}
	assert.True(t, req.Input().Active)

	inactive := false
	req.Active = &inactive
	assert.False(t, req.Input().Active)
}

func TestUpdateProductRequest_Validate(t *testing.T) {
	name := "Widget"
	empty := ""
	active := true

	tests := []struct {
		name    string
		req     UpdateProductRequest
		wantErr string
	}{
		{name: "name only", req: UpdateProductRequest{Name: &name}},
		{name: "active only", req: UpdateProductRequest{Active: &active}},
		{name: "no fields", req: UpdateProductRequest{}, wantErr: "at least one field must be provided"},
		{name: "empty name", req: UpdateProductRequest{Name: &empty}, wantErr: "name must not be empty"},
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
