package fixtures

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/call-reconciliation/internal/domain/lead"
	"github.com/davidleathers/call-reconciliation/internal/domain/values"
)

// LeadCallBuilder builds lead-source call records for tests
type LeadCallBuilder struct {
	t      *testing.T
	record lead.CallRecord
}

// NewLeadCallBuilder creates a LeadCallBuilder with defaults
func NewLeadCallBuilder(t *testing.T) *LeadCallBuilder {
	t.Helper()
	now := time.Date(2025, 11, 20, 18, 0, 0, 0, time.UTC)
	return &LeadCallBuilder{
		t: t,
		record: lead.CallRecord{
			ID:         uuid.New(),
			CallerID:   values.MustNormalizePhone("5551234567"),
			DateOfCall: time.Date(2025, 11, 20, 13, 31, 0, 0, time.UTC),
			Category:   "API",
			Payout:     values.MustNewMoneyFromString("9.00"),
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}
}

// WithCaller sets the caller id from a raw phone string
func (b *LeadCallBuilder) WithCaller(raw string) *LeadCallBuilder {
	b.record.CallerID = values.MustNormalizePhone(raw)
	return b
}

// At sets the call timestamp
func (b *LeadCallBuilder) At(ts time.Time) *LeadCallBuilder {
	b.record.DateOfCall = ts
	return b
}

// WithCategory sets the category
func (b *LeadCallBuilder) WithCategory(category string) *LeadCallBuilder {
	b.record.Category = lead.NormalizeCategory(category)
	return b
}

// WithPayout sets the payout amount
func (b *LeadCallBuilder) WithPayout(amount string) *LeadCallBuilder {
	b.record.Payout = values.MustNewMoneyFromString(amount)
	return b
}

// LinkedTo marks the record as reconciled against a routing leg
func (b *LeadCallBuilder) LinkedTo(legID string) *LeadCallBuilder {
	b.record.LinkedRoutingCallID = &legID
	return b
}

// WithOriginals captures the pre-correction amounts
func (b *LeadCallBuilder) WithOriginals(payout, revenue string) *LeadCallBuilder {
	p := values.MustNewMoneyFromString(payout)
	r := values.MustNewMoneyFromString(revenue)
	b.record.OriginalPayout = &p
	b.record.OriginalRevenue = &r
	return b
}

// Build returns the constructed record
func (b *LeadCallBuilder) Build() *lead.CallRecord {
	record := b.record
	return &record
}
