package data

import (
	"context"
	"errors"
	"fmt"
)

// UpdateProgress advances processed_rows for a running job. GREATEST keeps the
// stored value monotonic, so a late write from a requeued attempt can never
// move progress backwards.
func (r *JobRepo) UpdateProgress(ctx context.Context, id string, processedRows int64) (bool, error) {
	if processedRows < 0 {
		return false, errors.New("processedRows must be >= 0")
	}

	currentTime := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE import_jobs
		SET processed_rows = GREATEST(processed_rows, $2),
		    updated_at = $3
		WHERE id = $1 AND status = 'running'
	`, id, processedRows, currentTime)
	if err != nil {
		return false, fmt.Errorf("update progress: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update progress rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// SetTotalRows records the counted number of data rows for a running job.
func (r *JobRepo) SetTotalRows(ctx context.Context, id string, totalRows int64) (bool, error) {
	if totalRows < 0 {
		return false, errors.New("totalRows must be >= 0")
	}

	currentTime := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE import_jobs
		SET total_rows = $2,
		    updated_at = $3
		WHERE id = $1 AND status = 'running'
	`, id, totalRows, currentTime)
	if err != nil {
		return false, fmt.Errorf("set total rows: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set total rows rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}
