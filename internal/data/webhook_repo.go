package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jayClean/product-importer/internal/core"
	"github.com/jayClean/product-importer/internal/data/pgxutil"
	"github.com/jayClean/product-importer/internal/domain/model"
)

// ErrWebhookNotFound is returned when a webhook is not found.
var ErrWebhookNotFound = errors.New("webhook not found")

// WebhookRepo provides database operations for webhook registrations.
type WebhookRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewWebhookRepo creates a new WebhookRepo with real time provider.
func NewWebhookRepo(db *sql.DB) *WebhookRepo {
	return &WebhookRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewWebhookRepoWithTimeProvider creates a new WebhookRepo with a custom time provider (useful for tests).
func NewWebhookRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *WebhookRepo {
	return &WebhookRepo{DB: db, timeProvider: tp}
}

const webhookColumns = `id, url, event, enabled, secret, last_test_status, last_test_response_ms, created_at`

// Create inserts a new webhook registration.
func (r *WebhookRepo) Create(ctx context.Context, req *model.CreateWebhookRequest) (*model.Webhook, error) {
	if req == nil {
		return nil, errors.New("create webhook request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	var out model.Webhook
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO webhooks (url, event, enabled, secret, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+webhookColumns,
			req.URL,
			req.Event,
			enabled,
			req.Secret,
			r.timeProvider.Now().UTC(),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Webhook])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to create webhook: %w", err)
	}
	return &out, nil
}

// GetByID retrieves a webhook by ID.
func (r *WebhookRepo) GetByID(ctx context.Context, id int64) (*model.Webhook, error) {
	var out model.Webhook
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+webhookColumns+`
			FROM webhooks
			WHERE id = $1`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Webhook])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWebhookNotFound
		}
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}
	return &out, nil
}

// List retrieves webhooks with pagination.
func (r *WebhookRepo) List(ctx context.Context, limit, offset int) ([]*model.Webhook, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var rowsOut []model.Webhook
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+webhookColumns+`
			FROM webhooks
			ORDER BY created_at DESC, id DESC
			LIMIT $1 OFFSET $2`, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Webhook])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}

	res := make([]*model.Webhook, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// ListEnabledByEvent retrieves enabled webhooks subscribed to the given event.
func (r *WebhookRepo) ListEnabledByEvent(ctx context.Context, event string) ([]*model.Webhook, error) {
	var rowsOut []model.Webhook
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+webhookColumns+`
			FROM webhooks
			WHERE event = $1 AND enabled
			ORDER BY id`, event)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Webhook])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list webhooks by event: %w", err)
	}

	res := make([]*model.Webhook, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// Update updates fields of a webhook.
func (r *WebhookRepo) Update(
	ctx context.Context,
	id int64,
	req *model.UpdateWebhookRequest,
) (*model.Webhook, error) {
	if req == nil {
		return nil, errors.New("update webhook request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	setClause, args := r.buildUpdateClause(req)
	args = append(args, id)
	query := "UPDATE webhooks SET " + setClause + " WHERE id = $" + strconv.Itoa(len(args)) +
		" RETURNING " + webhookColumns

	var out model.Webhook
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		var e error
		out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Webhook])
		return e
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWebhookNotFound
		}
		return nil, fmt.Errorf("failed to update webhook: %w", err)
	}
	return &out, nil
}

func (r *WebhookRepo) buildUpdateClause(req *model.UpdateWebhookRequest) (string, []any) {
	setParts := make([]string, 0, 4)
	args := make([]any, 0, 5)
	nextIdx := func() int { return len(args) + 1 }

	if req.URL != nil {
		setParts = append(setParts, fmt.Sprintf("url = $%d", nextIdx()))
		args = append(args, *req.URL)
	}
	if req.Event != nil {
		setParts = append(setParts, fmt.Sprintf("event = $%d", nextIdx()))
		args = append(args, *req.Event)
	}
	if req.Enabled != nil {
		setParts = append(setParts, fmt.Sprintf("enabled = $%d", nextIdx()))
		args = append(args, *req.Enabled)
	}
	if req.Secret != nil {
		if strings.TrimSpace(*req.Secret) == "" {
			setParts = append(setParts, "secret = NULL")
		} else {
			setParts = append(setParts, fmt.Sprintf("secret = $%d", nextIdx()))
			args = append(args, *req.Secret)
		}
	}

	return strings.Join(setParts, ", "), args
}

// Delete deletes a webhook by ID.
func (r *WebhookRepo) Delete(ctx context.Context, id int64) (bool, error) {
	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete webhook: %w", err)
	}
	return rows > 0, nil
}

// RecordResult persists the outcome of the latest delivery attempt. The
// status text is truncated to fit the column.
func (r *WebhookRepo) RecordResult(ctx context.Context, params core.RecordWebhookResultParams) error {
	status := params.Status
	if len(status) > model.MaxTestStatusLen {
		status = status[:model.MaxTestStatusLen]
	}

	_, err := r.DB.ExecContext(ctx, `
		UPDATE webhooks
		SET last_test_status = $2,
		    last_test_response_ms = $3
		WHERE id = $1
	`, params.WebhookID, status, params.ResponseMS)
	if err != nil {
		return fmt.Errorf("record webhook result: %w", err)
	}
	return nil
}
