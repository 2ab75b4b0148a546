package memoryx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	m := New(Options{})
	assert.Equal(t, DefaultBaselineBytes, m.Baseline())
	assert.Equal(t, DefaultHardLimitBytes, m.HardLimit())
	assert.Positive(t, m.Usage(), "runtime sampler should report nonzero usage")
}

func TestIsPressure(t *testing.T) {
	usage := uint64(0)
	m := New(Options{
		BaselineBytes:  100,
		HardLimitBytes: 200,
		UsageFn:        func() uint64 { return usage },
	})

	usage = 100
	pressured, got, baseline := m.IsPressure()
	assert.False(t, pressured, "usage at baseline is not pressure")
	assert.Equal(t, uint64(100), got)
	assert.Equal(t, uint64(100), baseline)

	usage = 101
	pressured, _, _ = m.IsPressure()
	assert.True(t, pressured)
}

func TestIsExceeded(t *testing.T) {
	usage := uint64(0)
	m := New(Options{
		BaselineBytes:  100,
		HardLimitBytes: 200,
		UsageFn:        func() uint64 { return usage },
	})

	usage = 199
	exceeded, _, _ := m.IsExceeded()
	assert.False(t, exceeded)

	usage = 200
	exceeded, got, limit := m.IsExceeded()
	require.True(t, exceeded, "usage at the hard limit counts as exceeded")
	assert.Equal(t, uint64(200), got)
	assert.Equal(t, uint64(200), limit)
}
