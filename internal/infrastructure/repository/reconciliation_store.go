// Package repository is the duplicate-safe persistence layer for lead rows
// and routing legs. Write-once and uniqueness preconditions are enforced
// here in SQL, not assumed of callers.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/davidleathers/call-reconciliation/internal/domain/lead"
	"github.com/davidleathers/call-reconciliation/internal/domain/routing"
	"github.com/davidleathers/call-reconciliation/internal/domain/values"
)

// DB is the subset of pgxpool.Pool the store needs. pgx.Tx satisfies it
// too, which is how batch transactions are threaded through.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store persists lead rows and routing legs.
type Store struct {
	db     DB
	logger *zap.Logger
}

// NewStore creates a store over a pool or transaction.
func NewStore(db DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// RunInTx executes fn against a transactional store. A mid-batch failure
// rolls back every write of the batch.
func (s *Store) RunInTx(ctx context.Context, fn func(*Store) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	txStore := &Store{db: tx, logger: s.logger}
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			s.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const leadRowColumns = `
	id::text, caller_id, date_of_call, original_date_of_call, category,
	payout::text, original_payout::text, original_revenue::text,
	linked_routing_call_id, unmatched, created_at, updated_at`

// UpsertLeadRow applies the duplicate-safe upsert contract:
//
//  1. A row carrying a revised timestamp is located under its original
//     (caller, original date, category) key.
//  2. If another row already occupies the corrected key, the correction is
//     abandoned and reported as skipped; the original timestamp stays.
//  3. Otherwise the corrected timestamp is written into the located row.
//  4. Rows without a timestamp revision upsert directly by their key.
//
// The store never produces two rows sharing (caller, date, category).
func (s *Store) UpsertLeadRow(ctx context.Context, in lead.RowUpsert) (*lead.CallRecord, lead.UpsertOutcome, error) {
	if in.OriginalDateOfCall != nil && !in.OriginalDateOfCall.Equal(in.DateOfCall) {
		existing, err := s.getByKey(ctx, in.CallerID, *in.OriginalDateOfCall, in.Category)
		if err != nil {
			return nil, 0, err
		}
		if existing != nil {
			collision, err := s.getByKey(ctx, in.CallerID, in.DateOfCall, in.Category)
			if err != nil {
				return nil, 0, err
			}
			if collision != nil && collision.ID != existing.ID {
				// Keep the original timestamp; update the mutable
				// fields only.
				row, err := s.updateRow(ctx, existing.ID, existing.DateOfCall, nil, in.Payout)
				if err != nil {
					return nil, 0, err
				}
				s.logger.Warn("timestamp correction skipped: corrected key already occupied",
					zap.String("caller_id", in.CallerID.E164()),
					zap.Time("original_date", *in.OriginalDateOfCall),
					zap.Time("corrected_date", in.DateOfCall),
					zap.String("category", in.Category),
				)
				return row, lead.OutcomeSkippedCorrection, nil
			}

			row, err := s.updateRow(ctx, existing.ID, in.DateOfCall, in.OriginalDateOfCall, in.Payout)
			if err != nil {
				return nil, 0, err
			}
			return row, lead.OutcomeTimestampCorrected, nil
		}
		// Nothing recorded under the original key; fall through to a
		// direct upsert at the corrected key.
	}

	existing, err := s.getByKey(ctx, in.CallerID, in.DateOfCall, in.Category)
	if err != nil {
		return nil, 0, err
	}
	if existing != nil {
		row, err := s.updateRow(ctx, existing.ID, existing.DateOfCall, nil, in.Payout)
		if err != nil {
			return nil, 0, err
		}
		return row, lead.OutcomeUpdated, nil
	}

	row, err := s.insertRow(ctx, in)
	if err != nil {
		return nil, 0, err
	}
	return row, lead.OutcomeInserted, nil
}

// CaptureOriginal records the pre-correction amounts and the linked routing
// call id, at most once per row. The conditional write only fires while both
// originals are still zero or null, so a repeat call with different values
// cannot overwrite the audit baseline.
func (s *Store) CaptureOriginal(ctx context.Context, rowID uuid.UUID, originalPayout, originalRevenue values.Money, linkedRoutingCallID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE lead_calls
		SET original_payout = $2,
		    original_revenue = $3,
		    linked_routing_call_id = $4,
		    unmatched = FALSE,
		    updated_at = NOW()
		WHERE id = $1
		  AND (original_payout IS NULL OR original_payout = 0)
		  AND (original_revenue IS NULL OR original_revenue = 0)`,
		rowID.String(), originalPayout, originalRevenue, linkedRoutingCallID,
	)
	if err != nil {
		return false, fmt.Errorf("capturing original amounts: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkUnmatched flags a row whose matching exhausted all candidates.
func (s *Store) MarkUnmatched(ctx context.Context, rowID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE lead_calls SET unmatched = TRUE, updated_at = NOW() WHERE id = $1`,
		rowID.String(),
	)
	if err != nil {
		return fmt.Errorf("marking row unmatched: %w", err)
	}
	return nil
}

// UpsertLeg stores a routing leg keyed purely by leg id. Always safe to
// repeat: last write wins.
func (s *Store) UpsertLeg(ctx context.Context, leg *routing.CallLeg) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO routing_legs (
			leg_id, call_timestamp, caller_id, payout, revenue,
			connected, duration_seconds, rerouted_from_leg_id, root_leg_id,
			target_id, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (leg_id) DO UPDATE SET
			call_timestamp = EXCLUDED.call_timestamp,
			caller_id = EXCLUDED.caller_id,
			payout = EXCLUDED.payout,
			revenue = EXCLUDED.revenue,
			connected = EXCLUDED.connected,
			duration_seconds = EXCLUDED.duration_seconds,
			rerouted_from_leg_id = EXCLUDED.rerouted_from_leg_id,
			root_leg_id = EXCLUDED.root_leg_id,
			target_id = EXCLUDED.target_id,
			updated_at = NOW()`,
		leg.LegID, leg.Timestamp, leg.CallerID, leg.Payout, leg.Revenue,
		leg.Connected, leg.DurationSeconds, leg.ReroutedFromLegID, leg.RootLegID,
		leg.TargetID,
	)
	if err != nil {
		return fmt.Errorf("upserting routing leg %s: %w", leg.LegID, err)
	}
	return nil
}

func (s *Store) getByKey(ctx context.Context, caller values.PhoneNumber, dateOfCall time.Time, category string) (*lead.CallRecord, error) {
	row := s.db.QueryRow(ctx, `
		SELECT`+leadRowColumns+`
		FROM lead_calls
		WHERE caller_id = $1 AND date_of_call = $2 AND category = $3`,
		caller, dateOfCall, category,
	)

	record, err := scanLeadRow(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up lead row: %w", err)
	}
	return record, nil
}

func (s *Store) insertRow(ctx context.Context, in lead.RowUpsert) (*lead.CallRecord, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO lead_calls (
			id, caller_id, date_of_call, original_date_of_call, category,
			payout, unmatched, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, FALSE, NOW(), NOW())
		ON CONFLICT (caller_id, date_of_call, category) DO UPDATE SET
			payout = EXCLUDED.payout,
			updated_at = NOW()
		RETURNING`+leadRowColumns,
		uuid.New().String(), in.CallerID, in.DateOfCall, in.OriginalDateOfCall,
		in.Category, in.Payout,
	)

	record, err := scanLeadRow(row)
	if err != nil {
		return nil, fmt.Errorf("inserting lead row: %w", err)
	}
	return record, nil
}

func (s *Store) updateRow(ctx context.Context, id uuid.UUID, dateOfCall time.Time, originalDateOfCall *time.Time, payout values.Money) (*lead.CallRecord, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE lead_calls
		SET date_of_call = $2,
		    original_date_of_call = COALESCE($3, original_date_of_call),
		    payout = $4,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING`+leadRowColumns,
		id.String(), dateOfCall, originalDateOfCall, payout,
	)

	record, err := scanLeadRow(row)
	if err != nil {
		return nil, fmt.Errorf("updating lead row: %w", err)
	}
	return record, nil
}

func scanLeadRow(row pgx.Row) (*lead.CallRecord, error) {
	var (
		record          lead.CallRecord
		idStr           string
		originalPayout  *values.Money
		originalRevenue *values.Money
	)

	err := row.Scan(
		&idStr, &record.CallerID, &record.DateOfCall, &record.OriginalDateOfCall,
		&record.Category, &record.Payout, &originalPayout, &originalRevenue,
		&record.LinkedRoutingCallID, &record.Unmatched, &record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parsing lead row id: %w", err)
	}
	record.ID = id
	record.OriginalPayout = originalPayout
	record.OriginalRevenue = originalRevenue

	return &record, nil
}
