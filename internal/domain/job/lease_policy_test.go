package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLeasePolicy(t *testing.T) {
	p, err := NewLeasePolicy(30 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, p.Default())

	_, err = NewLeasePolicy(0)
	assert.ErrorIs(t, err, ErrInvalidDefaultLease)

	_, err = NewLeasePolicy(-time.Second)
	assert.ErrorIs(t, err, ErrInvalidDefaultLease)
}

func TestLeasePolicy_Resolve(t *testing.T) {
	p, err := NewLeasePolicy(30 * time.Second)
	require.NoError(t, err)

	tests := []struct {
		name        string
		request     time.Duration
		wantSeconds int
		wantSource  LeaseSource
	}{
		{name: "zero uses default", request: 0, wantSeconds: 30, wantSource: LeaseSourceDefault},
		{name: "explicit whole seconds", request: 5 * time.Minute, wantSeconds: 300, wantSource: LeaseSourceExplicit},
		{name: "sub-second clamps up", request: 500 * time.Millisecond, wantSeconds: 1, wantSource: LeaseSourceClamped},
		{name: "negative clamps up", request: -time.Minute, wantSeconds: 1, wantSource: LeaseSourceClamped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := p.Resolve(tt.request)
			assert.Equal(t, tt.wantSeconds, decision.Seconds)
			assert.Equal(t, tt.wantSource, decision.Source)
			assert.Equal(t, tt.request, decision.Requested)
		})
	}
}

func TestLeasePolicy_ResolveNilReceiver(t *testing.T) {
	var p *LeasePolicy
	decision := p.Resolve(time.Minute)
	assert.Zero(t, decision.Seconds)
	assert.True(t, decision.UsedDefault())
	assert.Zero(t, p.Default())
}

func TestLeaseDecisionPredicates(t *testing.T) {
	assert.True(t, LeaseDecision{Source: LeaseSourceDefault}.UsedDefault())
	assert.True(t, LeaseDecision{Source: LeaseSourceClamped}.Clamped())
	assert.False(t, LeaseDecision{Source: LeaseSourceExplicit}.UsedDefault())
	assert.False(t, LeaseDecision{Source: LeaseSourceExplicit}.Clamped())
}
