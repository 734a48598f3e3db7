package routing

import (
	"time"

	"github.com/davidleathers/call-reconciliation/internal/domain/values"
)

// CallLeg is one billing-relevant record of a call within the routing
// platform. One physical call may span several legs via reroute or
// transfer; the platform keys each leg by its own id.
//
// Uniqueness invariant: one row per LegID.
type CallLeg struct {
	LegID             string             `json:"leg_id"`
	Timestamp         time.Time          `json:"timestamp"`
	CallerID          values.PhoneNumber `json:"caller_id"`
	Payout            values.Money       `json:"payout"`
	Revenue           values.Money       `json:"revenue"`
	Connected         bool               `json:"connected"`
	DurationSeconds   int                `json:"duration_seconds"`
	ReroutedFromLegID *string            `json:"rerouted_from_leg_id,omitempty"`
	RootLegID         *string            `json:"root_leg_id,omitempty"`
	TargetID          string             `json:"target_id"`
}

// IsRerouted reports whether this leg was created by rerouting another leg.
func (l *CallLeg) IsRerouted() bool {
	return l.ReroutedFromLegID != nil && *l.ReroutedFromLegID != ""
}

// HasDistinctRoot reports whether the leg exposes a root leg other than itself.
func (l *CallLeg) HasDistinctRoot() bool {
	return l.RootLegID != nil && *l.RootLegID != "" && *l.RootLegID != l.LegID
}

// HasAmounts reports whether the leg carries any non-zero payout or revenue.
func (l *CallLeg) HasAmounts() bool {
	return !l.Payout.IsZero() || !l.Revenue.IsZero()
}

// Resolution is the outcome of multi-leg discovery for one seed leg:
// which discovered leg holds the payout and which holds the revenue.
type Resolution struct {
	PayoutLegID  string
	RevenueLegID string
	Legs         []*CallLeg
	IsMultiLeg   bool
}

// PaymentCorrection is a single override request against the routing
// platform's payment-correction endpoint. Transient; owned by the driver
// for the duration of one batch item.
type PaymentCorrection struct {
	LegID      string
	NewPayout  *values.Money
	NewRevenue *values.Money
	Reason     string
}

// HasAmount reports whether at least one amount is being corrected.
func (c *PaymentCorrection) HasAmount() bool {
	return c.NewPayout != nil || c.NewRevenue != nil
}
