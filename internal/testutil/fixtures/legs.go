package fixtures

import (
	"testing"
	"time"

	"github.com/davidleathers/call-reconciliation/internal/domain/routing"
	"github.com/davidleathers/call-reconciliation/internal/domain/values"
)

// LegBuilder builds routing-platform call legs for tests
type LegBuilder struct {
	t   *testing.T
	leg routing.CallLeg
}

// NewLegBuilder creates a LegBuilder with defaults
func NewLegBuilder(t *testing.T, legID string) *LegBuilder {
	t.Helper()
	return &LegBuilder{
		t: t,
		leg: routing.CallLeg{
			LegID:     legID,
			Timestamp: time.Date(2025, 11, 20, 13, 36, 0, 0, time.UTC),
			CallerID:  values.MustNormalizePhone("5551234567"),
			Payout:    values.ZeroMoney(),
			Revenue:   values.ZeroMoney(),
		},
	}
}

// At sets the leg timestamp
func (b *LegBuilder) At(ts time.Time) *LegBuilder {
	b.leg.Timestamp = ts
	return b
}

// WithCaller sets the caller id from a raw phone string
func (b *LegBuilder) WithCaller(raw string) *LegBuilder {
	b.leg.CallerID = values.MustNormalizePhone(raw)
	return b
}

// WithPayout sets the payout amount
func (b *LegBuilder) WithPayout(amount string) *LegBuilder {
	b.leg.Payout = values.MustNewMoneyFromString(amount)
	return b
}

// WithRevenue sets the revenue amount
func (b *LegBuilder) WithRevenue(amount string) *LegBuilder {
	b.leg.Revenue = values.MustNewMoneyFromString(amount)
	return b
}

// Connected marks the leg as connected with the given duration
func (b *LegBuilder) Connected(durationSeconds int) *LegBuilder {
	b.leg.Connected = true
	b.leg.DurationSeconds = durationSeconds
	return b
}

// ReroutedFrom sets the originating leg id
func (b *LegBuilder) ReroutedFrom(legID string) *LegBuilder {
	b.leg.ReroutedFromLegID = &legID
	return b
}

// WithRoot sets the root leg id
func (b *LegBuilder) WithRoot(legID string) *LegBuilder {
	b.leg.RootLegID = &legID
	return b
}

// WithTarget sets the routing target id
func (b *LegBuilder) WithTarget(targetID string) *LegBuilder {
	b.leg.TargetID = targetID
	return b
}

// Build returns the constructed leg
func (b *LegBuilder) Build() *routing.CallLeg {
	leg := b.leg
	return &leg
}
