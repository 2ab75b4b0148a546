package model

import (
	"errors"
	"strings"
	"time"
)

// Product represents a catalog product row.
type Product struct {
	ID          int64      `json:"id"                    db:"id"`
	SKU         string     `json:"sku"                   db:"sku"`
	Name        string     `json:"name"                  db:"name"`
	Description *string    `json:"description,omitempty" db:"description"`
	Active      bool       `json:"active"                db:"active"`
	IsDeleted   bool       `json:"is_deleted"            db:"is_deleted"`
	CreatedAt   time.Time  `json:"created_at"            db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"            db:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"  db:"deleted_at"`
}

// ProductInput is the normalized form of a product write, produced by the CSV
// ingest path and the product API. SKU identity is case-insensitive; callers
// must have trimmed the fields already.
type ProductInput struct {
	SKU         string  `json:"sku"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Active      bool    `json:"active"`
}

// ProductListOptions filters and pages product listings.
type ProductListOptions struct {
	Limit          int
	Offset         int
	IncludeDeleted bool
}

// CreateProductRequest represents a request to create a product via the API.
type CreateProductRequest struct {
	SKU         string  `json:"sku"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

// Normalize trims fields and applies defaults.
func (r *CreateProductRequest) Normalize() {
	r.SKU = strings.TrimSpace(r.SKU)
	r.Name = strings.TrimSpace(r.Name)
	if r.Description != nil {
		d := strings.TrimSpace(*r.Description)
		if d == "" {
			r.Description = nil
		} else {
			r.Description = &d
		}
	}
}

// Validate validates the CreateProductRequest fields.
func (r *CreateProductRequest) Validate() error {
	if r.SKU == "" {
		return errors.New("sku is required")
	}
	if len(r.SKU) > 128 {
		return errors.New("sku must be at most 128 characters")
	}
	if r.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// Input converts the request into a ProductInput with defaults applied.
func (r *CreateProductRequest) Input() ProductInput {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return ProductInput{
		SKU:         r.SKU,
		Name:        r.Name,
		Description: r.Description,
		Active:      active,
	}
}

// UpdateProductRequest represents a partial product update via the API.
// Nil fields are left unchanged.
type UpdateProductRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

// Normalize trims fields.
func (r *UpdateProductRequest) Normalize() {
	if r.Name != nil {
		n := strings.TrimSpace(*r.Name)
		r.Name = &n
	}
	if r.Description != nil {
		d := strings.TrimSpace(*r.Description)
		r.Description = &d
	}
}

// Validate validates the UpdateProductRequest fields.
func (r *UpdateProductRequest) Validate() error {
	if r.Name == nil && r.Description == nil && r.Active == nil {
		return errors.New("at least one field must be provided")
	}
	if r.Name != nil && *r.Name == "" {
		return errors.New("name must not be empty")
	}
	return nil
}
