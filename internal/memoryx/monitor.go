// Package memoryx provides the process memory guardrails used by the import worker.
package memoryx

import (
	"runtime"
	"runtime/debug"

	"github.com/dustin/go-humanize"
)

// Default guardrails, overridable via Options.
const (
	DefaultBaselineBytes  uint64 = 500 * 1024 * 1024
	DefaultHardLimitBytes uint64 = 800 * 1024 * 1024
)

// Monitor samples process memory usage against a soft baseline and a hard
// limit. Crossing the baseline signals pressure (shrink batch sizes);
// crossing the hard limit means the current work must abort.
type Monitor struct {
	baseline  uint64
	hardLimit uint64
	usageFn   func() uint64
}

// Options configure a Monitor. Zero values fall back to defaults.
type Options struct {
	BaselineBytes  uint64
	HardLimitBytes uint64
	// UsageFn overrides the usage sampler, for tests.
	UsageFn func() uint64
}

// New constructs a Monitor.
func New(opts Options) *Monitor {
	baseline := opts.BaselineBytes
	if baseline == 0 {
		baseline = DefaultBaselineBytes
	}
	hardLimit := opts.HardLimitBytes
	if hardLimit == 0 {
		hardLimit = DefaultHardLimitBytes
	}
	usageFn := opts.UsageFn
	if usageFn == nil {
		usageFn = runtimeUsage
	}
	return &Monitor{
		baseline:  baseline,
		hardLimit: hardLimit,
		usageFn:   usageFn,
	}
}

// Usage returns the current sampled memory usage in bytes.
func (m *Monitor) Usage() uint64 {
	return m.usageFn()
}

// Baseline returns the configured soft ceiling in bytes.
func (m *Monitor) Baseline() uint64 {
	return m.baseline
}

// HardLimit returns the configured abort ceiling in bytes.
func (m *Monitor) HardLimit() uint64 {
	return m.hardLimit
}

// IsPressure reports whether usage has crossed the baseline, along with the
// sampled usage and the baseline.
func (m *Monitor) IsPressure() (bool, uint64, uint64) {
	usage := m.usageFn()
	return usage > m.baseline, usage, m.baseline
}

// IsExceeded reports whether usage has reached the hard limit, along with the
// sampled usage and the limit.
func (m *Monitor) IsExceeded() (bool, uint64, uint64) {
	usage := m.usageFn()
	return usage >= m.hardLimit, usage, m.hardLimit
}

// ForceReclaim runs a GC cycle and returns freed pages to the OS.
// debug.FreeOSMemory already implies a full collection.
func (m *Monitor) ForceReclaim() {
	debug.FreeOSMemory()
}

// FormatBytes renders a byte count for log output ("523 MB").
func FormatBytes(n uint64) string {
	return humanize.Bytes(n)
}

// runtimeUsage samples heap and stack in-use bytes from the Go runtime.
func runtimeUsage() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapInuse + ms.StackInuse
}
