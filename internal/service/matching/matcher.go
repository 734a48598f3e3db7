// Package matching pairs lead-source rows against routing-platform call
// legs. It is pure: no I/O, no side effects, and no idempotency guards.
// Skipping already-linked rows is the driver's job.
package matching

import (
	"sort"
	"time"

	"github.com/davidleathers/call-reconciliation/internal/domain/routing"
	"github.com/davidleathers/call-reconciliation/internal/domain/values"
)

const (
	// DefaultWindowMinutes is the allowed clock skew between the two
	// systems when both recorded the call on the same calendar day.
	DefaultWindowMinutes = 120

	// widenedWindowMinutes tolerates midnight and timezone-boundary
	// recordings when the calendar dates differ by exactly one day.
	widenedWindowMinutes = 1440

	// DefaultPayoutTolerance is the maximum payout difference still
	// considered an exact-payout match.
	DefaultPayoutTolerance = "0.01"

	// Scoring constants are empirically chosen; tunable, not fundamental.
	exactMatchTimeWeight = 0.1
	payoutDiffPenalty    = 10.0
)

// Params are the tunable matching thresholds.
type Params struct {
	WindowMinutes   int
	PayoutTolerance values.Money
}

// DefaultParams returns the production matching thresholds.
func DefaultParams() Params {
	return Params{
		WindowMinutes:   DefaultWindowMinutes,
		PayoutTolerance: values.MustNewMoneyFromString(DefaultPayoutTolerance),
	}
}

// Result describes a successful pairing. Lower Score means higher confidence.
type Result struct {
	Score           float64
	TimeDiffMinutes int
	PayoutDiff      values.Money
	PayoutMatch     bool
}

// Candidate is one scored routing leg for a lead row. Ephemeral; never
// persisted.
type Candidate struct {
	Leg    *routing.CallLeg
	Result Result
}

// Match pairs raw timestamp strings. Either side failing to parse means no
// match is possible. Caller identity and category are preconditions
// enforced upstream.
func Match(rawRowTime, rawLegTime string, rowPayout, legPayout values.Money, p Params) *Result {
	rowAt, ok := values.ParseInstant(rawRowTime)
	if !ok {
		return nil
	}
	legAt, ok := values.ParseInstant(rawLegTime)
	if !ok {
		return nil
	}
	return MatchInstants(rowAt, legAt, rowPayout, legPayout, p)
}

// MatchInstants pairs already-parsed timestamps.
func MatchInstants(rowAt, legAt time.Time, rowPayout, legPayout values.Money, p Params) *Result {
	dayDiff := values.CalendarDayDiff(rowAt, legAt)
	// Calls more than a day apart can never be the same event.
	if dayDiff > 1 {
		return nil
	}

	timeDiff := minutesApart(rowAt, legAt)

	window := p.WindowMinutes
	if window <= 0 {
		window = DefaultWindowMinutes
	}
	if dayDiff != 0 {
		window = widenedWindowMinutes
	}
	if timeDiff > window {
		return nil
	}

	payoutDiff := rowPayout.AbsDiff(legPayout)

	bothPositive := rowPayout.IsPositive() && legPayout.IsPositive()
	switch {
	case bothPositive && payoutDiff.LessThanOrEqual(p.PayoutTolerance):
		return &Result{
			Score:           float64(timeDiff) * exactMatchTimeWeight,
			TimeDiffMinutes: timeDiff,
			PayoutDiff:      payoutDiff,
			PayoutMatch:     true,
		}
	case bothPositive:
		return &Result{
			Score:           float64(timeDiff) + payoutDiff.ToFloat64()*payoutDiffPenalty,
			TimeDiffMinutes: timeDiff,
			PayoutDiff:      payoutDiff,
		}
	default:
		// Either payout is zero; only time proximity is meaningful.
		return &Result{
			Score:           float64(timeDiff),
			TimeDiffMinutes: timeDiff,
			PayoutDiff:      payoutDiff,
		}
	}
}

// SelectBest ranks the candidate legs for one lead row and returns the
// winner, or nil when none match. Exact-payout matches always outrank
// non-exact ones regardless of time proximity; within a partition,
// candidates sort by payout difference then time difference.
func SelectBest(rowAt time.Time, rowPayout values.Money, legs []*routing.CallLeg, p Params) *Candidate {
	var candidates []Candidate
	for _, leg := range legs {
		result := MatchInstants(rowAt, leg.Timestamp, rowPayout, leg.Payout, p)
		if result == nil {
			continue
		}
		candidates = append(candidates, Candidate{Leg: leg, Result: *result})
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].Result, candidates[j].Result
		if a.PayoutMatch != b.PayoutMatch {
			return a.PayoutMatch
		}
		if !a.PayoutDiff.Equal(b.PayoutDiff) {
			return a.PayoutDiff.LessThanOrEqual(b.PayoutDiff)
		}
		return a.TimeDiffMinutes < b.TimeDiffMinutes
	})

	return &candidates[0]
}

// minutesApart zeroes seconds on both instants before differencing. The two
// systems' clocks disagree at the second level on nearly every call.
func minutesApart(a, b time.Time) int {
	d := values.TruncateToMinute(a).Sub(values.TruncateToMinute(b))
	if d < 0 {
		d = -d
	}
	return int(d / time.Minute)
}
