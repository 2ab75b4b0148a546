package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryConfigSanitize(t *testing.T) {
	c := MemoryConfig{Baseline: "500MB", HardLimit: "800MB"}
	require.NoError(t, c.Sanitize())
	assert.Equal(t, uint64(500_000_000), c.BaselineBytes)
	assert.Equal(t, uint64(800_000_000), c.HardLimitBytes)
}

func TestMemoryConfigSanitize_BinaryUnits(t *testing.T) {
	c := MemoryConfig{Baseline: "512MiB", HardLimit: "1GiB"}
	require.NoError(t, c.Sanitize())
	assert.Equal(t, uint64(512<<20), c.BaselineBytes)
	assert.Equal(t, uint64(1<<30), c.HardLimitBytes)
}

func TestMemoryConfigSanitize_Errors(t *testing.T) {
	tests := []struct {
		name      string
		baseline  string
		hardLimit string
	}{
		{name: "unparseable baseline", baseline: "lots", hardLimit: "800MB"},
		{name: "unparseable hard limit", baseline: "500MB", hardLimit: "many"},
		{name: "hard limit below baseline", baseline: "800MB", hardLimit: "500MB"},
		{name: "equal limits", baseline: "500MB", hardLimit: "500MB"},
		{name: "zero baseline", baseline: "0B", hardLimit: "800MB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := MemoryConfig{Baseline: tt.baseline, HardLimit: tt.hardLimit}
			assert.Error(t, c.Sanitize())
		})
	}
}
