package data

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jayClean/product-importer/internal/data/pgxutil"
	"github.com/jayClean/product-importer/internal/domain/model"
)

// jobFilterQueryBuilder accumulates filter conditions with positional args.
type jobFilterQueryBuilder struct {
	query  string
	args   []any
	argIdx int
}

func (b *jobFilterQueryBuilder) addFilter(condition string, value any) {
	if value != nil {
		b.query += fmt.Sprintf(" AND %s = $%d", condition, b.argIdx)
		b.args = append(b.args, value)
		b.argIdx++
	}
}

// buildJobListQuery constructs the SQL query and args for the job list with filtering.
func buildJobListQuery(opts *model.JobListOptions) (string, []any) {
	if opts == nil {
		opts = &model.JobListOptions{}
	}

	builder := &jobFilterQueryBuilder{
		query: `
		SELECT ` + jobColumns + `
		FROM import_jobs
		WHERE 1=1`,
		args:   []any{},
		argIdx: 1,
	}

	if opts.Status != nil && *opts.Status != "" {
		builder.addFilter("status", string(*opts.Status))
	}
	if opts.Type != nil && *opts.Type != "" {
		builder.addFilter("type", string(*opts.Type))
	}

	builder.query += `
		ORDER BY created_at DESC, id DESC`

	return builder.query, builder.args
}

// List returns jobs with optional filtering, newest first.
func (r *JobRepo) List(ctx context.Context, opts *model.JobListOptions) ([]*model.Job, error) {
	if opts == nil {
		opts = &model.JobListOptions{}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50 // Default limit
	}
	if limit > 1000 {
		limit = 1000 // Max limit
	}
	offset := max(opts.Offset, 0)

	query, args := buildJobListQuery(opts)
	argIdx := len(args) + 1
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, offset)

	var result []*model.Job
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query jobs with filters: %w", err)
		}
		defer rows.Close()

		result = result[:0]
		for rows.Next() {
			job, scanErr := scanJobFromRow(rows)
			if scanErr != nil {
				return fmt.Errorf("scan job: %w", scanErr)
			}
			result = append(result, job)
		}
		return rows.Err()
	}); err != nil {
		return nil, err
	}

	return result, nil
}
