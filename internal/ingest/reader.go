package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"unicode/utf8"

	"github.com/jayClean/product-importer/internal/domain/model"
	"github.com/jayClean/product-importer/internal/errors"
	"github.com/jayClean/product-importer/internal/memoryx"
)

// Batch size tiers. The batcher starts at the base tier and only shrinks
// within a single file, even if memory pressure later clears.
const (
	BatchSizeBase    = 1000
	BatchSizeReduced = 500
	BatchSizeMin     = 250

	// Memory is re-evaluated every this many scanned rows.
	checkpointRows = 100
	// Every Nth emitted batch asks the monitor to return memory to the OS.
	reclaimEveryBatches = 10
	// Usage at or above this fraction of the hard limit drops straight to
	// the minimum tier.
	minTierRatio = 0.9
)

// BatchFunc consumes one normalized batch. The slice is reused between
// calls and must not be retained. Returning an error stops the scan.
type BatchFunc func(ctx context.Context, batch []model.ProductInput) error

// BatchStats summarizes a completed Batches pass.
type BatchStats struct {
	Rows    int64
	Skipped int64
	Batches int
}

// Reader streams a staged CSV file in two passes: a row count for progress
// denominators, then batched normalized rows sized by memory pressure.
type Reader struct {
	monitor *memoryx.Monitor
	logger  *slog.Logger
}

func NewReader(monitor *memoryx.Monitor, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{monitor: monitor, logger: logger}
}

// CountRows validates the header and returns the number of data rows.
func (r *Reader) CountRows(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrCodeInternal, "opening staged file %s", path)
	}
	defer f.Close()

	cr := newCSVReader(f)
	if _, err := readHeader(cr); err != nil {
		return 0, err
	}

	var count int64
	for {
		record, err := cr.Read()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return 0, errors.Wrap(err, errors.ErrCodeValidation, "malformed CSV")
		}
		count++
		if err := validateEncoding(record, count); err != nil {
			return 0, err
		}
	}
}

// Batches re-reads the file and feeds normalized batches to fn in order.
// Row-level validation failures are warn-logged and counted as skipped;
// CSV syntax errors and memory exhaustion abort the scan.
func (r *Reader) Batches(ctx context.Context, path string, fn BatchFunc) (BatchStats, error) {
	var stats BatchStats

	f, err := os.Open(path)
	if err != nil {
		return stats, errors.Wrapf(err, errors.ErrCodeInternal, "opening staged file %s", path)
	}
	defer f.Close()

	cr := newCSVReader(f)
	header, err := readHeader(cr)
	if err != nil {
		return stats, err
	}

	batchSize := BatchSizeBase
	batch := make([]model.ProductInput, 0, batchSize)
	var scanned int64

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := fn(ctx, batch); err != nil {
			return err
		}
		stats.Batches++
		if stats.Batches%reclaimEveryBatches == 0 {
			r.monitor.ForceReclaim()
		}
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, errors.Wrap(err, errors.ErrCodeValidation, "malformed CSV")
		}

		scanned++
		if err := validateEncoding(record, scanned); err != nil {
			return stats, err
		}
		if scanned%checkpointRows == 0 {
			if next, err := r.checkpoint(batchSize); err != nil {
				return stats, err
			} else if next < batchSize {
				batchSize = next
			}
		}

		input, err := NormalizeRow(header, record)
		if err != nil {
			stats.Skipped++
			r.logger.WarnContext(ctx, "skipping invalid row",
				slog.Int64("row", scanned),
				slog.String("error", err.Error()))
			continue
		}

		stats.Rows++
		batch = append(batch, input)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}
	return stats, nil
}

// checkpoint samples memory and returns the tier the batcher should run at.
// The caller keeps the smaller of the current and returned tiers.
func (r *Reader) checkpoint(current int) (int, error) {
	exceeded, usage, limit := r.monitor.IsExceeded()
	if exceeded {
		return current, errors.ResourceExhaustedf("memory usage %s reached the hard limit %s",
			memoryx.FormatBytes(usage), memoryx.FormatBytes(limit))
	}
	if float64(usage) >= minTierRatio*float64(limit) {
		return BatchSizeMin, nil
	}
	if pressured, _, _ := r.monitor.IsPressure(); pressured {
		return BatchSizeReduced, nil
	}
	return current, nil
}

func newCSVReader(f io.Reader) *csv.Reader {
	cr := csv.NewReader(f)
	// Rows may carry extra or missing trailing columns; the normalizer
	// resolves fields by header index.
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return cr
}

func readHeader(cr *csv.Reader) (Header, error) {
	record, err := cr.Read()
	if err == io.EOF {
		return Header{}, errors.Validation("CSV file is empty")
	}
	if err != nil {
		return Header{}, errors.Wrap(err, errors.ErrCodeValidation, "malformed CSV header")
	}
	if err := validateEncoding(record, 0); err != nil {
		return Header{}, err
	}
	return ValidateHeaders(record)
}

// validateEncoding rejects records carrying bytes that are not valid UTF-8.
// encoding/csv passes such bytes through untouched, so without this check a
// mis-encoded file would surface as per-row skips instead of aborting the
// import. Row 0 is the header.
func validateEncoding(record []string, row int64) error {
	for _, field := range record {
		if !utf8.ValidString(field) {
			if row == 0 {
				return errors.Validation("file is not valid UTF-8: header contains invalid bytes")
			}
			return errors.Validationf("file is not valid UTF-8: invalid bytes at row %d", row)
		}
	}
	return nil
}
