// Package legs discovers the related legs of a routing-platform call and
// classifies which leg carries the payout and which carries the revenue.
// One physical call may span several legs via reroute or transfer, and the
// platform bills payout and revenue on different legs of the pair.
package legs

import (
	"context"

	"go.uber.org/zap"

	"github.com/davidleathers/call-reconciliation/internal/domain/errors"
	"github.com/davidleathers/call-reconciliation/internal/domain/routing"
)

// LegFetcher retrieves per-leg detail from the routing platform.
type LegFetcher interface {
	// GetLegDetail retrieves a single leg by id
	GetLegDetail(ctx context.Context, legID string) (*routing.CallLeg, error)
}

// Policy controls the best-effort disambiguation heuristics over the
// platform's ambiguous leg model. The defaults reproduce production
// behavior; each step can be disabled independently.
type Policy struct {
	// TiePayoutToOriginal breaks classification ties by assigning payout
	// to the original (pre-reroute) leg and revenue to the seed.
	TiePayoutToOriginal bool
	// UseRootFallback fetches the root leg when the seed shows no
	// amounts at all.
	UseRootFallback bool
	// PreferConnectedForRevenue reassigns revenue to a connected leg
	// when the current choice is unconnected.
	PreferConnectedForRevenue bool
}

// DefaultPolicy returns the production heuristic order.
func DefaultPolicy() Policy {
	return Policy{
		TiePayoutToOriginal:       true,
		UseRootFallback:           true,
		PreferConnectedForRevenue: true,
	}
}

// Resolver resolves one seed leg id into a payout/revenue classification.
type Resolver struct {
	fetcher LegFetcher
	policy  Policy
	logger  *zap.Logger
}

// NewResolver creates a leg resolver.
func NewResolver(fetcher LegFetcher, policy Policy, logger *zap.Logger) *Resolver {
	return &Resolver{
		fetcher: fetcher,
		policy:  policy,
		logger:  logger,
	}
}

// Resolve discovers the legs related to seedID and classifies them. Any
// fetch failure aborts resolution with a lookup error: silently correcting
// the wrong leg is worse than not correcting at all, so no partial or
// guessed resolution is ever returned.
//
// The up-to-three fetches (seed, original, root) are inherently serial;
// each decision depends on the prior result.
func (r *Resolver) Resolve(ctx context.Context, seedID string) (*routing.Resolution, error) {
	seed, err := r.fetcher.GetLegDetail(ctx, seedID)
	if err != nil {
		return nil, errors.NewLookupError("leg", seedID, err)
	}

	legs := []*routing.CallLeg{seed}
	payoutLeg := seed
	revenueLeg := seed

	if seed.IsRerouted() {
		original, err := r.fetcher.GetLegDetail(ctx, *seed.ReroutedFromLegID)
		if err != nil {
			return nil, errors.NewLookupError("leg", *seed.ReroutedFromLegID, err)
		}
		legs = append(legs, original)
		payoutLeg, revenueLeg = r.classifyPair(original, seed)
	}

	if r.policy.UseRootFallback && seed.Payout.IsZero() && seed.Revenue.IsZero() && seed.HasDistinctRoot() {
		root, err := r.fetcher.GetLegDetail(ctx, *seed.RootLegID)
		if err != nil {
			return nil, errors.NewLookupError("leg", *seed.RootLegID, err)
		}
		legs = append(legs, root)

		// Prefer the root only for amounts the current candidates lack.
		if payoutLeg.Payout.IsZero() && !root.Payout.IsZero() {
			payoutLeg = root
		}
		if revenueLeg.Revenue.IsZero() && !root.Revenue.IsZero() {
			revenueLeg = root
		}
	}

	if r.policy.PreferConnectedForRevenue && !revenueLeg.Connected {
		for _, leg := range legs {
			if leg.Connected {
				revenueLeg = leg
				break
			}
		}
	}

	resolution := &routing.Resolution{
		PayoutLegID:  payoutLeg.LegID,
		RevenueLegID: revenueLeg.LegID,
		Legs:         legs,
		IsMultiLeg:   len(legs) > 1,
	}

	if resolution.IsMultiLeg {
		r.logger.Debug("resolved multi-leg call",
			zap.String("seed_leg_id", seedID),
			zap.String("payout_leg_id", resolution.PayoutLegID),
			zap.String("revenue_leg_id", resolution.RevenueLegID),
			zap.Int("leg_count", len(legs)),
		)
	}

	return resolution, nil
}

// classifyPair decides which of a reroute pair holds payout and which holds
// revenue. The unconnected leg is the payout leg; when connectivity does not
// discriminate, the leg carrying payout while the other carries none does.
// The connected leg with non-zero revenue is the revenue leg. Unresolvable
// ties fall back to the policy defaults.
func (r *Resolver) classifyPair(original, seed *routing.CallLeg) (payoutLeg, revenueLeg *routing.CallLeg) {
	// Tie defaults: payout on the original leg, revenue on the seed.
	payoutLeg, revenueLeg = original, seed
	if !r.policy.TiePayoutToOriginal {
		payoutLeg, revenueLeg = seed, seed
	}

	switch {
	case !original.Connected && seed.Connected:
		payoutLeg = original
	case !seed.Connected && original.Connected:
		payoutLeg = seed
	case !original.Payout.IsZero() && seed.Payout.IsZero():
		payoutLeg = original
	case !seed.Payout.IsZero() && original.Payout.IsZero():
		payoutLeg = seed
	}

	originalEarnsRevenue := original.Connected && !original.Revenue.IsZero()
	seedEarnsRevenue := seed.Connected && !seed.Revenue.IsZero()
	switch {
	case seedEarnsRevenue:
		revenueLeg = seed
	case originalEarnsRevenue:
		revenueLeg = original
	}

	return payoutLeg, revenueLeg
}
