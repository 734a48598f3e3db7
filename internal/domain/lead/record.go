package lead

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/call-reconciliation/internal/domain/values"
)

// CallRecord is a lead-source call row. The lead source records calls with
// its own timestamps and payout; reconciliation links each row to a routing
// platform leg and captures the pre-correction amounts exactly once.
//
// Uniqueness invariant: exactly one row per (CallerID, DateOfCall, Category).
type CallRecord struct {
	ID       uuid.UUID          `json:"id"`
	CallerID values.PhoneNumber `json:"caller_id"`
	// DateOfCall is the lead source's timestamp for the call. A later
	// adjustment pass may revise it, in which case OriginalDateOfCall
	// carries the value the row was first ingested under.
	DateOfCall         time.Time    `json:"date_of_call"`
	OriginalDateOfCall *time.Time   `json:"original_date_of_call,omitempty"`
	Category           string       `json:"category"`
	Payout             values.Money `json:"payout"`

	// Write-once audit baseline, set at first confident match.
	OriginalPayout      *values.Money `json:"original_payout,omitempty"`
	OriginalRevenue     *values.Money `json:"original_revenue,omitempty"`
	LinkedRoutingCallID *string       `json:"linked_routing_call_id,omitempty"`

	Unmatched bool `json:"unmatched"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCallRecord builds a record from raw lead-source values, normalizing
// the caller identity and category on the way in.
func NewCallRecord(rawCaller, category string, dateOfCall time.Time, payout values.Money) (*CallRecord, error) {
	caller, ok := values.NormalizePhone(rawCaller)
	if !ok {
		return nil, fmt.Errorf("invalid caller id: %q", rawCaller)
	}

	category = NormalizeCategory(category)
	if category == "" {
		return nil, fmt.Errorf("category cannot be empty")
	}

	if dateOfCall.IsZero() {
		return nil, fmt.Errorf("date of call cannot be zero")
	}

	now := time.Now().UTC()
	return &CallRecord{
		ID:         uuid.New(),
		CallerID:   caller,
		DateOfCall: dateOfCall,
		Category:   category,
		Payout:     payout,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// NormalizeCategory canonicalizes a lead-source category label. The two
// traffic types arrive with inconsistent casing across export formats.
func NormalizeCategory(category string) string {
	return strings.ToUpper(strings.TrimSpace(category))
}

// IsLinked reports whether the row has already been tied to a routing call.
func (r *CallRecord) IsLinked() bool {
	return r.LinkedRoutingCallID != nil && *r.LinkedRoutingCallID != ""
}

// HasCapturedOriginals reports whether the audit baseline has been taken.
// A nil or zero amount counts as not captured.
func (r *CallRecord) HasCapturedOriginals() bool {
	payoutSet := r.OriginalPayout != nil && !r.OriginalPayout.IsZero()
	revenueSet := r.OriginalRevenue != nil && !r.OriginalRevenue.IsZero()
	return payoutSet || revenueSet
}

// HasTimestampCorrection reports whether this row carries a revised
// timestamp from a later adjustment pass.
func (r *CallRecord) HasTimestampCorrection() bool {
	return r.OriginalDateOfCall != nil && !r.OriginalDateOfCall.Equal(r.DateOfCall)
}

// MarkUnmatched records the expected terminal outcome for a row no routing
// leg could be paired with.
func (r *CallRecord) MarkUnmatched() {
	r.Unmatched = true
	r.UpdatedAt = time.Now().UTC()
}
