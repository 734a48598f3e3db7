// Package reconciliation is the batch driver: it pulls lead rows and
// routing legs, pairs them through the matcher, resolves legs for matches
// needing correction, applies corrections, and persists results. Items are
// processed strictly sequentially on a single logical worker; exactly one
// outbound routing-platform call is in flight at any moment.
package reconciliation

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/davidleathers/call-reconciliation/internal/domain/errors"
	"github.com/davidleathers/call-reconciliation/internal/domain/lead"
	"github.com/davidleathers/call-reconciliation/internal/domain/routing"
	"github.com/davidleathers/call-reconciliation/internal/domain/values"
	"github.com/davidleathers/call-reconciliation/internal/service/matching"
)

// Options tune one reconciliation run.
type Options struct {
	Matching matching.Params
	// CorrectionDelay is the fixed pacing between successive override
	// calls, for remote rate-limit compliance.
	CorrectionDelay time.Duration
	// CategoryByTarget maps routing-platform target ids to lead-source
	// categories. An empty map means the account runs a single category
	// and every leg is a candidate for every row.
	CategoryByTarget map[string]string
	// DryRun computes matches and corrections but skips override calls.
	DryRun bool
}

// DefaultOptions returns production run settings.
func DefaultOptions() Options {
	return Options{
		Matching:        matching.DefaultParams(),
		CorrectionDelay: 500 * time.Millisecond,
	}
}

// ItemFailure records one item that could not be fully reconciled.
type ItemFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// RunResult is the end-of-run summary.
type RunResult struct {
	Processed          int
	Matched            int
	Corrected          int
	Unmatched          int
	AlreadyLinked      int
	SkippedCorrections int
	ParseFailures      int
	DryRun             bool
	Failures           []ItemFailure
}

// Service drives one reconciliation batch.
type Service struct {
	store    TxStore
	leads    LeadFeed
	callLogs CallLogSource
	resolver LegResolver
	applier  CorrectionApplier
	opts     Options
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewService wires the batch driver.
func NewService(store TxStore, leads LeadFeed, callLogs CallLogSource, resolver LegResolver, applier CorrectionApplier, opts Options, logger *zap.Logger) *Service {
	delay := opts.CorrectionDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &Service{
		store:    store,
		leads:    leads,
		callLogs: callLogs,
		resolver: resolver,
		applier:  applier,
		opts:     opts,
		limiter:  rate.NewLimiter(rate.Every(delay), 1),
		logger:   logger,
	}
}

// Run reconciles the date range. Collaborator fetch failures abort the run
// before any item is processed; per-item failures are recorded and the run
// continues. All persistence for the batch happens in one transaction.
func (s *Service) Run(ctx context.Context, from, to time.Time) (*RunResult, error) {
	rows, err := s.leads.FetchRows(ctx, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "fetching lead rows")
	}

	routingLegs, err := s.callLogs.QueryCallLogs(ctx, from, to, "")
	if err != nil {
		return nil, errors.Wrap(err, "fetching routing call logs")
	}

	legsByCaller := indexLegsByCaller(routingLegs)

	result := &RunResult{DryRun: s.opts.DryRun}

	err = s.store.RunInTx(ctx, func(tx Store) error {
		for _, leg := range routingLegs {
			if err := tx.UpsertLeg(ctx, leg); err != nil {
				return err
			}
		}

		for i := range rows {
			result.Processed++
			if err := s.processRow(ctx, tx, &rows[i], legsByCaller, result); err != nil {
				// Only store failures propagate; they invalidate
				// the whole batch.
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "reconciliation batch rolled back")
	}

	recordRunMetrics(result)

	s.logger.Info("reconciliation run complete",
		zap.Int("processed", result.Processed),
		zap.Int("matched", result.Matched),
		zap.Int("corrected", result.Corrected),
		zap.Int("unmatched", result.Unmatched),
		zap.Int("already_linked", result.AlreadyLinked),
		zap.Int("skipped_corrections", result.SkippedCorrections),
		zap.Int("parse_failures", result.ParseFailures),
		zap.Int("failures", len(result.Failures)),
		zap.Bool("dry_run", result.DryRun),
	)

	return result, nil
}

// processRow reconciles one lead row. Returned errors are store failures
// only; everything else is absorbed into the run result.
func (s *Service) processRow(ctx context.Context, tx Store, row *LeadRow, legsByCaller map[string][]*routing.CallLeg, result *RunResult) error {
	caller, ok := values.NormalizePhone(row.CallerID)
	if !ok {
		result.ParseFailures++
		s.logger.Warn("skipping row with unparseable caller id", zap.String("raw", row.CallerID))
		return nil
	}

	dateOfCall, ok := values.ParseInstant(row.DateOfCall)
	if !ok {
		result.ParseFailures++
		s.logger.Warn("skipping row with unparseable timestamp",
			zap.String("caller_id", caller.E164()),
			zap.String("raw", row.DateOfCall),
		)
		return nil
	}

	upsert := lead.RowUpsert{
		CallerID:   caller,
		DateOfCall: dateOfCall,
		Category:   lead.NormalizeCategory(row.Category),
		Payout:     row.Payout,
	}
	if row.OriginalDateOfCall != "" {
		if original, ok := values.ParseInstant(row.OriginalDateOfCall); ok {
			upsert.OriginalDateOfCall = &original
		} else {
			s.logger.Warn("ignoring unparseable original timestamp",
				zap.String("caller_id", caller.E164()),
				zap.String("raw", row.OriginalDateOfCall),
			)
		}
	}

	record, outcome, err := tx.UpsertLeadRow(ctx, upsert)
	if err != nil {
		return err
	}
	if outcome == lead.OutcomeSkippedCorrection {
		result.SkippedCorrections++
	}

	// Idempotency and preservation guards: rows already linked or with a
	// captured audit baseline were reconciled by an earlier run.
	if record.IsLinked() || record.HasCapturedOriginals() {
		result.AlreadyLinked++
		return nil
	}

	candidates := candidatesFor(legsByCaller[caller.E164()], upsert.Category, s.opts.CategoryByTarget)
	best := matching.SelectBest(record.DateOfCall, record.Payout, candidates, s.opts.Matching)
	if best == nil {
		if err := tx.MarkUnmatched(ctx, record.ID); err != nil {
			return err
		}
		result.Unmatched++
		return nil
	}
	result.Matched++

	resolution, err := s.resolver.Resolve(ctx, best.Leg.LegID)
	if err != nil {
		// Lookup failures are fatal to the item, not the batch.
		result.Failures = append(result.Failures, ItemFailure{ID: best.Leg.LegID, Error: err.Error()})
		s.logger.Error("leg resolution failed", zap.String("leg_id", best.Leg.LegID), zap.Error(err))
		return nil
	}

	payoutLeg := findLeg(resolution.Legs, resolution.PayoutLegID)
	revenueLeg := findLeg(resolution.Legs, resolution.RevenueLegID)

	captured, err := tx.CaptureOriginal(ctx, record.ID, payoutLeg.Payout, revenueLeg.Revenue, best.Leg.LegID)
	if err != nil {
		return err
	}
	if !captured {
		// A concurrent or earlier capture won; leave the baseline alone.
		result.AlreadyLinked++
		return nil
	}

	if best.Result.PayoutMatch {
		return nil
	}

	if s.opts.DryRun {
		s.logger.Info("dry run: correction suppressed",
			zap.String("leg_id", resolution.PayoutLegID),
			zap.String("current_payout", payoutLeg.Payout.String()),
			zap.String("new_payout", record.Payout.String()),
		)
		return nil
	}

	// Fixed inter-call delay keeps the override endpoint within its rate
	// limit. Corrections for one run are strictly sequential, so no two
	// overrides for the same leg are ever concurrent.
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	newPayout := record.Payout
	_, err = s.applier.Apply(ctx, routing.PaymentCorrection{
		LegID:     resolution.PayoutLegID,
		NewPayout: &newPayout,
		Reason:    "lead source payout reconciliation",
	})
	if err != nil {
		result.Failures = append(result.Failures, ItemFailure{ID: resolution.PayoutLegID, Error: err.Error()})
		s.logger.Error("correction failed", zap.String("leg_id", resolution.PayoutLegID), zap.Error(err))
		return nil
	}
	result.Corrected++

	return nil
}

func indexLegsByCaller(legs []*routing.CallLeg) map[string][]*routing.CallLeg {
	index := make(map[string][]*routing.CallLeg, len(legs))
	for _, leg := range legs {
		if leg.CallerID.IsEmpty() {
			continue
		}
		key := leg.CallerID.E164()
		index[key] = append(index[key], leg)
	}
	return index
}

// candidatesFor filters a caller's legs down to the row's category. With no
// target-to-category mapping configured the account is single-category and
// every leg qualifies.
func candidatesFor(legs []*routing.CallLeg, category string, categoryByTarget map[string]string) []*routing.CallLeg {
	if len(categoryByTarget) == 0 {
		return legs
	}
	var filtered []*routing.CallLeg
	for _, leg := range legs {
		if lead.NormalizeCategory(categoryByTarget[leg.TargetID]) == category {
			filtered = append(filtered, leg)
		}
	}
	return filtered
}

func findLeg(legs []*routing.CallLeg, legID string) *routing.CallLeg {
	for _, leg := range legs {
		if leg.LegID == legID {
			return leg
		}
	}
	// Resolution ids always come from the discovered set, which is never
	// empty; the seed leg is the only possible fallback.
	return legs[0]
}
