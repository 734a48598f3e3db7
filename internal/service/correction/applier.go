// Package correction issues payment overrides against the routing platform.
// The applier never decides whether a correction is needed and never caches;
// it performs exactly one network call per invocation. Pacing between
// successive calls is the driver's responsibility.
package correction

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/davidleathers/call-reconciliation/internal/domain/errors"
	"github.com/davidleathers/call-reconciliation/internal/domain/routing"
)

// OverrideRequest is the wire-level payment override. Amounts are fixed
// 2-decimal strings; the platform rejects anything else.
type OverrideRequest struct {
	LegID            string `json:"legId"`
	AdjustPayout     bool   `json:"adjustPayout"`
	NewPayoutAmount  string `json:"newPayoutAmount,omitempty"`
	AdjustRevenue    bool   `json:"adjustRevenue"`
	NewRevenueAmount string `json:"newRevenueAmount,omitempty"`
	Reason           string `json:"reason"`
}

// PlatformClient performs the override call against the routing platform.
type PlatformClient interface {
	// OverridePayment issues one payment override and returns the raw acknowledgement
	OverridePayment(ctx context.Context, req OverrideRequest) (json.RawMessage, error)
}

// Applier applies idempotent payment corrections.
type Applier struct {
	client PlatformClient
	logger *zap.Logger
}

// NewApplier creates a correction applier.
func NewApplier(client PlatformClient, logger *zap.Logger) *Applier {
	return &Applier{client: client, logger: logger}
}

// Apply issues a single override for the correction. On failure it returns
// a typed error carrying the raw remote error and mutates nothing locally;
// on success it returns the platform's raw acknowledgement.
func (a *Applier) Apply(ctx context.Context, c routing.PaymentCorrection) (json.RawMessage, error) {
	if c.LegID == "" {
		return nil, errors.NewValidationError("MISSING_LEG_ID", "correction requires a leg id")
	}
	if !c.HasAmount() {
		return nil, errors.NewValidationError("MISSING_AMOUNT", "correction requires at least one amount")
	}

	req := OverrideRequest{
		LegID:  c.LegID,
		Reason: c.Reason,
	}
	if c.NewPayout != nil {
		req.AdjustPayout = true
		req.NewPayoutAmount = c.NewPayout.String()
	}
	if c.NewRevenue != nil {
		req.AdjustRevenue = true
		req.NewRevenueAmount = c.NewRevenue.String()
	}

	ack, err := a.client.OverridePayment(ctx, req)
	if err != nil {
		return nil, errors.NewCorrectionError(c.LegID, err)
	}

	a.logger.Info("payment correction applied",
		zap.String("leg_id", c.LegID),
		zap.Bool("adjust_payout", req.AdjustPayout),
		zap.String("new_payout", req.NewPayoutAmount),
		zap.Bool("adjust_revenue", req.AdjustRevenue),
		zap.String("new_revenue", req.NewRevenueAmount),
	)

	return ack, nil
}

// Void zeroes a leg entirely, with the same failure contract as Apply.
func (a *Applier) Void(ctx context.Context, legID, reason string) (json.RawMessage, error) {
	if legID == "" {
		return nil, errors.NewValidationError("MISSING_LEG_ID", "void requires a leg id")
	}

	req := OverrideRequest{
		LegID:            legID,
		AdjustPayout:     true,
		NewPayoutAmount:  "0.00",
		AdjustRevenue:    true,
		NewRevenueAmount: "0.00",
		Reason:           reason,
	}

	ack, err := a.client.OverridePayment(ctx, req)
	if err != nil {
		return nil, errors.NewCorrectionError(legID, err)
	}

	a.logger.Info("leg voided", zap.String("leg_id", legID), zap.String("reason", reason))
	return ack, nil
}
