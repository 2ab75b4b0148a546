package config

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// MemoryConfig contains memory guardrails for the import worker.
// Sizes are human-readable strings ("500MB", "1.2GB") parsed during Sanitize.
type MemoryConfig struct {
	// Baseline is the soft ceiling. Crossing it shrinks import batch sizes.
	Baseline string `env:"MEMORY_BASELINE" envDefault:"500MB"`

	// HardLimit is the abort ceiling. Crossing it fails the running import.
	HardLimit string `env:"MEMORY_HARD_LIMIT" envDefault:"800MB"`

	// BaselineBytes and HardLimitBytes are derived by Sanitize.
	BaselineBytes  uint64 `env:"-"`
	HardLimitBytes uint64 `env:"-"`
}

// Sanitize parses the size strings and enforces baseline < hard limit.
func (c *MemoryConfig) Sanitize() error {
	baseline, err := humanize.ParseBytes(strings.TrimSpace(c.Baseline))
	if err != nil {
		return fmt.Errorf("invalid MEMORY_BASELINE %q: %w", c.Baseline, err)
	}
	hardLimit, err := humanize.ParseBytes(strings.TrimSpace(c.HardLimit))
	if err != nil {
		return fmt.Errorf("invalid MEMORY_HARD_LIMIT %q: %w", c.HardLimit, err)
	}
	if baseline == 0 || hardLimit == 0 {
		return fmt.Errorf("memory limits must be positive (baseline=%s hard=%s)", c.Baseline, c.HardLimit)
	}
	if hardLimit <= baseline {
		return fmt.Errorf("MEMORY_HARD_LIMIT (%s) must exceed MEMORY_BASELINE (%s)", c.HardLimit, c.Baseline)
	}
	c.BaselineBytes = baseline
	c.HardLimitBytes = hardLimit
	return nil
}
