package legs

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davidleathers/call-reconciliation/internal/domain/errors"
	"github.com/davidleathers/call-reconciliation/internal/domain/routing"
	"github.com/davidleathers/call-reconciliation/internal/domain/values"
)

// fakeFetcher serves legs from a map and records fetch order.
type fakeFetcher struct {
	legs    map[string]*routing.CallLeg
	fetched []string
	failFor map[string]bool
}

func (f *fakeFetcher) GetLegDetail(_ context.Context, legID string) (*routing.CallLeg, error) {
	f.fetched = append(f.fetched, legID)
	if f.failFor[legID] {
		return nil, fmt.Errorf("remote returned 503")
	}
	leg, ok := f.legs[legID]
	if !ok {
		return nil, fmt.Errorf("leg %s not found", legID)
	}
	return leg, nil
}

func strptr(s string) *string { return &s }

func money(s string) values.Money { return values.MustNewMoneyFromString(s) }

func newTestResolver(f *fakeFetcher) *Resolver {
	return NewResolver(f, DefaultPolicy(), zap.NewNop())
}

func TestResolve_SingleLeg(t *testing.T) {
	fetcher := &fakeFetcher{
		legs: map[string]*routing.CallLeg{
			"SEED": {LegID: "SEED", Connected: true, Payout: money("8.00"), Revenue: money("12.00")},
		},
	}

	res, err := newTestResolver(fetcher).Resolve(context.Background(), "SEED")
	require.NoError(t, err)
	assert.Equal(t, "SEED", res.PayoutLegID)
	assert.Equal(t, "SEED", res.RevenueLegID)
	assert.False(t, res.IsMultiLeg)
	assert.Len(t, res.Legs, 1)
}

func TestResolve_ReroutePair(t *testing.T) {
	// Seed is the rerouted, connected leg carrying revenue; the
	// unconnected original carries the payout.
	fetcher := &fakeFetcher{
		legs: map[string]*routing.CallLeg{
			"SEED": {
				LegID:             "SEED",
				Connected:         true,
				Revenue:           money("12.00"),
				Payout:            money("0.00"),
				ReroutedFromLegID: strptr("ORIG1"),
			},
			"ORIG1": {
				LegID:     "ORIG1",
				Connected: false,
				Payout:    money("8.00"),
			},
		},
	}

	res, err := newTestResolver(fetcher).Resolve(context.Background(), "SEED")
	require.NoError(t, err)
	assert.Equal(t, "ORIG1", res.PayoutLegID)
	assert.Equal(t, "SEED", res.RevenueLegID)
	assert.True(t, res.IsMultiLeg)
	assert.Len(t, res.Legs, 2)
}

func TestResolve_ReroutePairTieDefaults(t *testing.T) {
	// Both legs connected with revenue on each: payout defaults to the
	// original, revenue to the seed.
	fetcher := &fakeFetcher{
		legs: map[string]*routing.CallLeg{
			"SEED": {
				LegID:             "SEED",
				Connected:         true,
				Payout:            money("8.00"),
				Revenue:           money("12.00"),
				ReroutedFromLegID: strptr("ORIG1"),
			},
			"ORIG1": {
				LegID:     "ORIG1",
				Connected: true,
				Payout:    money("8.00"),
				Revenue:   money("12.00"),
			},
		},
	}

	res, err := newTestResolver(fetcher).Resolve(context.Background(), "SEED")
	require.NoError(t, err)
	assert.Equal(t, "ORIG1", res.PayoutLegID)
	assert.Equal(t, "SEED", res.RevenueLegID)
}

func TestResolve_RootFallback(t *testing.T) {
	// Seed carries no amounts; the distinct root does.
	fetcher := &fakeFetcher{
		legs: map[string]*routing.CallLeg{
			"SEED": {
				LegID:     "SEED",
				Connected: false,
				RootLegID: strptr("ROOT"),
			},
			"ROOT": {
				LegID:     "ROOT",
				Connected: true,
				Payout:    money("8.00"),
				Revenue:   money("12.00"),
			},
		},
	}

	res, err := newTestResolver(fetcher).Resolve(context.Background(), "SEED")
	require.NoError(t, err)
	assert.Equal(t, "ROOT", res.PayoutLegID)
	assert.Equal(t, "ROOT", res.RevenueLegID)
	assert.True(t, res.IsMultiLeg)
	assert.Equal(t, []string{"SEED", "ROOT"}, fetcher.fetched)
}

func TestResolve_ConnectedLegPreferredForRevenue(t *testing.T) {
	// Neither classification step picks a connected leg, but one exists
	// among the candidates.
	fetcher := &fakeFetcher{
		legs: map[string]*routing.CallLeg{
			"SEED": {
				LegID:             "SEED",
				Connected:         false,
				Payout:            money("8.00"),
				ReroutedFromLegID: strptr("ORIG1"),
			},
			"ORIG1": {
				LegID:     "ORIG1",
				Connected: true,
				Payout:    money("0.00"),
			},
		},
	}

	res, err := newTestResolver(fetcher).Resolve(context.Background(), "SEED")
	require.NoError(t, err)
	assert.Equal(t, "SEED", res.PayoutLegID)
	assert.Equal(t, "ORIG1", res.RevenueLegID)
}

func TestResolve_SeedFetchFailureAborts(t *testing.T) {
	fetcher := &fakeFetcher{
		legs:    map[string]*routing.CallLeg{},
		failFor: map[string]bool{"SEED": true},
	}

	res, err := newTestResolver(fetcher).Resolve(context.Background(), "SEED")
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeLookup))
}

func TestResolve_OriginalFetchFailureAborts(t *testing.T) {
	fetcher := &fakeFetcher{
		legs: map[string]*routing.CallLeg{
			"SEED": {
				LegID:             "SEED",
				Connected:         true,
				Revenue:           money("12.00"),
				ReroutedFromLegID: strptr("ORIG1"),
			},
		},
		failFor: map[string]bool{"ORIG1": true},
	}

	res, err := newTestResolver(fetcher).Resolve(context.Background(), "SEED")
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeLookup))
}

func TestResolve_RootFallbackDisabledByPolicy(t *testing.T) {
	fetcher := &fakeFetcher{
		legs: map[string]*routing.CallLeg{
			"SEED": {LegID: "SEED", RootLegID: strptr("ROOT")},
		},
	}

	policy := DefaultPolicy()
	policy.UseRootFallback = false

	res, err := NewResolver(fetcher, policy, zap.NewNop()).Resolve(context.Background(), "SEED")
	require.NoError(t, err)
	assert.Equal(t, "SEED", res.PayoutLegID)
	assert.False(t, res.IsMultiLeg)
	assert.Equal(t, []string{"SEED"}, fetcher.fetched)
}
