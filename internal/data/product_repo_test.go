package data

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jayClean/product-importer/internal/domain/model"
)

func TestDedupeBySKU(t *testing.T) {
	batch := []model.ProductInput{
		{SKU: "ABC-1", Name: "first"},
		{SKU: "abc-2", Name: "second"},
		{SKU: "abc-1", Name: "third"},
	}

	got := DedupeBySKU(batch)

	// SKU identity is case-insensitive and the last occurrence wins.
	assert.Equal(t, []model.ProductInput{
		{SKU: "abc-2", Name: "second"},
		{SKU: "abc-1", Name: "third"},
	}, got)
}

func TestDedupeBySKU_NoDuplicates(t *testing.T) {
	batch := []model.ProductInput{
		{SKU: "abc-1"},
		{SKU: "abc-2"},
	}
	assert.Equal(t, batch, DedupeBySKU(batch))
}

func TestDedupeBySKU_SmallBatches(t *testing.T) {
	assert.Nil(t, DedupeBySKU(nil))
	assert.Empty(t, DedupeBySKU([]model.ProductInput{}))

	one := []model.ProductInput{{SKU: "abc-1"}}
	assert.Equal(t, one, DedupeBySKU(one))
}
