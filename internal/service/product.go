package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jayClean/product-importer/internal/core"
	"github.com/jayClean/product-importer/internal/domain/model"
)

// ProductServiceOptions groups dependencies for ProductService.
type ProductServiceOptions struct {
	Repo     core.ProductRepository // Required: product repository
	Webhooks *WebhookService        // Optional: product.* event notifications
	Logger   *slog.Logger           // Optional: structured logger
}

// ProductService provides business logic for single-product operations.
// Bulk ingestion goes through ImportService; this service backs the CRUD API
// and fans product.* events out to registered webhooks.
type ProductService struct {
	repo     core.ProductRepository
	webhooks *WebhookService
	logger   *slog.Logger
}

// NewProductService constructs a new ProductService.
func NewProductService(opts ProductServiceOptions) (*ProductService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ProductRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "product_service")
	}

	return &ProductService{
		repo:     opts.Repo,
		webhooks: opts.Webhooks,
		logger:   logger,
	}, nil
}

// Create validates and stores a new product, then announces it.
func (s *ProductService) Create(ctx context.Context, req *model.CreateProductRequest) (*model.Product, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	product, err := s.repo.Create(ctx, req.Input())
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "product created", "id", product.ID, "sku", product.SKU)
	}
	s.trigger(ctx, model.WebhookEventProductCreated, product)
	return product, nil
}

// GetByID returns a product by its numeric ID.
func (s *ProductService) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return product, nil
}

// GetBySKU returns a product by SKU, matched case-insensitively.
func (s *ProductService) GetBySKU(ctx context.Context, sku string) (*model.Product, error) {
	product, err := s.repo.GetBySKU(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("get product by sku %q: %w", sku, err)
	}
	return product, nil
}

// List returns products with normalized pagination. Soft-deleted rows are
// excluded unless explicitly requested.
func (s *ProductService) List(ctx context.Context, opts model.ProductListOptions) ([]*model.Product, error) {
	p := normalizePagination(opts.Limit, opts.Offset)
	opts.Limit = p.Limit
	opts.Offset = p.Offset

	products, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// Update applies a partial update and announces the new state.
func (s *ProductService) Update(ctx context.Context, id int64, req *model.UpdateProductRequest) (*model.Product, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	product, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("update product %d: %w", id, err)
	}

	s.trigger(ctx, model.WebhookEventProductUpdated, product)
	return product, nil
}

// Delete soft-deletes a product and announces the removal. The row survives
// so a later import of the same SKU resurrects it.
func (s *ProductService) Delete(ctx context.Context, id int64) (*model.Product, error) {
	product, err := s.repo.SoftDelete(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("delete product %d: %w", id, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "product soft-deleted", "id", product.ID, "sku", product.SKU)
	}
	s.trigger(ctx, model.WebhookEventProductDeleted, product)
	return product, nil
}

func (s *ProductService) trigger(ctx context.Context, event string, product *model.Product) {
	if s.webhooks != nil {
		s.webhooks.Trigger(ctx, event, product)
	}
}
