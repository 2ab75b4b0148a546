// Package ingest streams product CSV files into normalized row batches.
package ingest

import (
	"strings"

	"github.com/jayClean/product-importer/internal/domain/model"
	"github.com/jayClean/product-importer/internal/errors"
)

// Required CSV columns, matched case-insensitively.
const (
	ColumnSKU         = "sku"
	ColumnName        = "name"
	ColumnDescription = "description"
)

// Header maps required column names to their record index.
type Header struct {
	SKU         int
	Name        int
	Description int
}

// ValidateHeaders resolves the required columns from the first CSV record.
// Extra columns are ignored. A missing column is a validation error that
// fails the whole import before any rows are touched.
func ValidateHeaders(record []string) (Header, error) {
	header := Header{SKU: -1, Name: -1, Description: -1}
	if len(record) == 0 {
		return header, errors.Validation("CSV file has no header row")
	}
	for i, raw := range record {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case ColumnSKU:
			header.SKU = i
		case ColumnName:
			header.Name = i
		case ColumnDescription:
			header.Description = i
		}
	}
	var missing []string
	if header.SKU < 0 {
		missing = append(missing, ColumnSKU)
	}
	if header.Name < 0 {
		missing = append(missing, ColumnName)
	}
	if header.Description < 0 {
		missing = append(missing, ColumnDescription)
	}
	if len(missing) > 0 {
		return header, errors.Validationf("CSV header is missing required column(s): %s", strings.Join(missing, ", "))
	}
	return header, nil
}

// NormalizeRow converts a raw CSV record into a product input. Fields are
// trimmed, a blank sku or name rejects the row, and a blank description
// becomes NULL. Imported products are always active.
func NormalizeRow(header Header, record []string) (model.ProductInput, error) {
	field := func(idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	sku := field(header.SKU)
	if sku == "" {
		return model.ProductInput{}, errors.Validation("row has an empty sku")
	}
	name := field(header.Name)
	if name == "" {
		return model.ProductInput{}, errors.Validationf("row %q has an empty name", sku)
	}

	input := model.ProductInput{
		SKU:    sku,
		Name:   name,
		Active: true,
	}
	if desc := field(header.Description); desc != "" {
		input.Description = &desc
	}
	return input, nil
}
