package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jayClean/product-importer/internal/core"
	"github.com/jayClean/product-importer/internal/data/pgxutil"
	"github.com/jayClean/product-importer/internal/domain/model"
)

var (
	// ErrProductNotFound is returned when a product is not found.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductSKUExists is returned when attempting to create a product with a duplicate SKU.
	ErrProductSKUExists = errors.New("product sku already exists")
)

// ProductRepo provides database operations for products.
type ProductRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewProductRepo creates a new ProductRepo with real time provider.
func NewProductRepo(db *sql.DB, logger *slog.Logger) *ProductRepo {
	return &ProductRepo{DB: db, timeProvider: &RealTimeProvider{}, logger: logger}
}

// NewProductRepoWithTimeProvider creates a new ProductRepo with a custom time provider (useful for tests).
func NewProductRepoWithTimeProvider(db *sql.DB, logger *slog.Logger, tp TimeProvider) *ProductRepo {
	return &ProductRepo{DB: db, timeProvider: tp, logger: logger}
}

const productColumns = `id, sku, name, description, active, is_deleted, created_at, updated_at, deleted_at`

// DedupeBySKU collapses a batch to at most one input per lowercased SKU,
// keeping the last occurrence. Order of survivors follows their last position.
func DedupeBySKU(batch []model.ProductInput) []model.ProductInput {
	if len(batch) < 2 {
		return batch
	}

	last := make(map[string]int, len(batch))
	for i := range batch {
		last[strings.ToLower(batch[i].SKU)] = i
	}

	out := make([]model.ProductInput, 0, len(last))
	for i := range batch {
		if last[strings.ToLower(batch[i].SKU)] == i {
			out = append(out, batch[i])
		}
	}
	return out
}

// Reconcile upserts a batch of product inputs inside a single transaction.
// Existing rows (matched case-insensitively on SKU, deleted or not) are
// overwritten and resurrected; the rest are inserted. A row that fails is
// rolled back to its savepoint, logged, and skipped, so one bad row does not
// poison the batch. Counts reflect applied rows only.
func (r *ProductRepo) Reconcile(ctx context.Context, batch []model.ProductInput) (core.ReconcileResult, error) {
	var result core.ReconcileResult
	if len(batch) == 0 {
		return result, nil
	}

	batch = DedupeBySKU(batch)

	keys := make([]string, len(batch))
	for i := range batch {
		keys[i] = strings.ToLower(batch[i].SKU)
	}

	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			existing, err := r.fetchExistingIDs(ctx, tx, keys)
			if err != nil {
				return err
			}

			now := r.timeProvider.Now().UTC()
			for i := range batch {
				input := &batch[i]
				id, found := existing[keys[i]]

				var applyErr error
				if found {
					applyErr = r.applyRow(ctx, tx, `
						UPDATE products
						SET sku = $2,
						    name = $3,
						    description = $4,
						    active = $5,
						    is_deleted = FALSE,
						    deleted_at = NULL,
						    updated_at = $6
						WHERE id = $1
					`, id, input.SKU, input.Name, input.Description, input.Active, now)
				} else {
					applyErr = r.applyRow(ctx, tx, `
						INSERT INTO products (sku, name, description, active, is_deleted, created_at, updated_at)
						VALUES ($1, $2, $3, $4, FALSE, $5, $5)
					`, input.SKU, input.Name, input.Description, input.Active, now)
				}

				if applyErr != nil {
					if r.logger != nil {
						r.logger.WarnContext(ctx, "skipping product row",
							"sku", input.SKU,
							"error", applyErr,
						)
					}
					continue
				}

				if found {
					result.Updated++
				} else {
					result.Inserted++
				}
			}
			return nil
		},
	})
	if err != nil {
		return core.ReconcileResult{}, fmt.Errorf("reconcile products: %w", err)
	}
	return result, nil
}

// fetchExistingIDs returns product ids keyed by lowercased SKU for the given keys.
func (r *ProductRepo) fetchExistingIDs(ctx context.Context, tx pgx.Tx, keys []string) (map[string]int64, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, lower(sku) FROM products WHERE lower(sku) = ANY($1)
	`, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch existing products: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]int64, len(keys))
	for rows.Next() {
		var id int64
		var key string
		if scanErr := rows.Scan(&id, &key); scanErr != nil {
			return nil, fmt.Errorf("scan existing product: %w", scanErr)
		}
		existing[key] = id
	}
	return existing, rows.Err()
}

// applyRow executes a single row write under a savepoint so a failure can be
// rolled back without aborting the batch transaction.
func (r *ProductRepo) applyRow(ctx context.Context, tx pgx.Tx, query string, args ...any) error {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin savepoint: %w", err)
	}
	if _, err = sp.Exec(ctx, query, args...); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			if r.logger != nil {
				r.logger.WarnContext(ctx, "rollback savepoint", "error", rbErr)
			}
		}
		return err
	}
	return sp.Commit(ctx)
}

// Create inserts a new product.
func (r *ProductRepo) Create(ctx context.Context, input model.ProductInput) (*model.Product, error) {
	createdAt := r.timeProvider.Now().UTC()
	var out model.Product
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO products (sku, name, description, active, is_deleted, created_at, updated_at)
			VALUES ($1, $2, $3, $4, FALSE, $5, $5)
			RETURNING `+productColumns,
			input.SKU,
			input.Name,
			input.Description,
			input.Active,
			createdAt,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Product])
		return err
	}); err != nil {
		return nil, r.mapWriteErr(err, false)
	}
	return &out, nil
}

// GetByID retrieves a product by ID.
func (r *ProductRepo) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	return r.getByQuery(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1`, "failed to get product by ID", id)
}

// GetBySKU retrieves a product by SKU, matched case-insensitively.
func (r *ProductRepo) GetBySKU(ctx context.Context, sku string) (*model.Product, error) {
	return r.getByQuery(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE lower(sku) = lower($1)`, "failed to get product by SKU", sku)
}

// List retrieves products with pagination. Soft-deleted rows are excluded
// unless IncludeDeleted is set.
func (r *ProductRepo) List(ctx context.Context, opts model.ProductListOptions) ([]*model.Product, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	offset := max(opts.Offset, 0)

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE ($3 OR NOT is_deleted)
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	var rowsOut []model.Product
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, limit, offset, opts.IncludeDeleted)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Product])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	res := make([]*model.Product, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// Update updates fields of a product.
func (r *ProductRepo) Update(
	ctx context.Context,
	id int64,
	req *model.UpdateProductRequest,
) (*model.Product, error) {
	if req == nil {
		return nil, errors.New("update product request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	setClause, args := r.buildUpdateClause(req)
	args = append(args, id)
	query := "UPDATE products SET " + setClause + " WHERE id = $" + strconv.Itoa(len(args)) +
		" AND NOT is_deleted RETURNING " + productColumns

	var out model.Product
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		var e error
		out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Product])
		return e
	})
	if err != nil {
		return nil, r.mapWriteErr(err, true)
	}
	return &out, nil
}

// buildUpdateClause builds the SQL SET clause and args for updating a product.
func (r *ProductRepo) buildUpdateClause(req *model.UpdateProductRequest) (string, []any) {
	setParts := make([]string, 0, 4)
	args := make([]any, 0, 5)
	nextIdx := func() int { return len(args) + 1 }

	if req.Name != nil {
		setParts = append(setParts, fmt.Sprintf("name = $%d", nextIdx()))
		args = append(args, *req.Name)
	}
	if req.Description != nil {
		if *req.Description == "" {
			setParts = append(setParts, "description = NULL")
		} else {
			setParts = append(setParts, fmt.Sprintf("description = $%d", nextIdx()))
			args = append(args, *req.Description)
		}
	}
	if req.Active != nil {
		setParts = append(setParts, fmt.Sprintf("active = $%d", nextIdx()))
		args = append(args, *req.Active)
	}

	setParts = append(setParts, fmt.Sprintf("updated_at = $%d", nextIdx()))
	args = append(args, r.timeProvider.Now().UTC())

	return strings.Join(setParts, ", "), args
}

// SoftDelete marks a product as deleted and returns the deleted row.
// The row stays in place so a later import can resurrect it.
func (r *ProductRepo) SoftDelete(ctx context.Context, id int64) (*model.Product, error) {
	now := r.timeProvider.Now().UTC()
	var out model.Product
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE products
			SET is_deleted = TRUE,
			    active = FALSE,
			    deleted_at = $2,
			    updated_at = $2
			WHERE id = $1 AND NOT is_deleted
			RETURNING `+productColumns, id, now)
		if err != nil {
			return err
		}
		defer rows.Close()
		var e error
		out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Product])
		return e
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to soft delete product: %w", err)
	}
	return &out, nil
}

// getByQuery executes a query and returns a single product.
func (r *ProductRepo) getByQuery(
	ctx context.Context,
	q string,
	errMsg string,
	args ...any,
) (*model.Product, error) {
	var product model.Product
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		product, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Product])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	return &product, nil
}

func (r *ProductRepo) mapWriteErr(err error, includeNotFound bool) error {
	if err == nil {
		return nil
	}
	if includeNotFound && errors.Is(err, pgx.ErrNoRows) {
		return ErrProductNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrProductSKUExists
	}
	return err
}
