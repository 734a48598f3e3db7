package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davidleathers/call-reconciliation/internal/domain/lead"
	"github.com/davidleathers/call-reconciliation/internal/domain/routing"
	"github.com/davidleathers/call-reconciliation/internal/domain/values"
)

var leadRowCols = []string{
	"id", "caller_id", "date_of_call", "original_date_of_call", "category",
	"payout", "original_payout", "original_revenue",
	"linked_routing_call_id", "unmatched", "created_at", "updated_at",
}

const (
	rowIDA = "7f64be7e-9e0f-4b6f-9c67-0f8f3a1f2a01"
	rowIDB = "9a2c4d3e-1b5a-4f8c-8d21-6e7f9a0b1c02"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewStore(mock, zap.NewNop())
}

func leadRow(id string, caller values.PhoneNumber, at time.Time, category, payout string) *pgxmock.Rows {
	now := time.Date(2025, 11, 20, 18, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(leadRowCols).AddRow(
		id, caller.E164(), at, (*time.Time)(nil), category,
		payout, (*values.Money)(nil), (*values.Money)(nil),
		(*string)(nil), false, now, now,
	)
}

func TestUpsertLeadRow_InsertsNewRow(t *testing.T) {
	mock, store := newMockStore(t)

	caller := values.MustNormalizePhone("5551234567")
	at := time.Date(2025, 11, 20, 13, 31, 0, 0, time.UTC)

	mock.ExpectQuery("FROM lead_calls").
		WithArgs(caller, at, "API").
		WillReturnRows(pgxmock.NewRows(leadRowCols))
	mock.ExpectQuery("INSERT INTO lead_calls").
		WithArgs(pgxmock.AnyArg(), caller, at, (*time.Time)(nil), "API", values.MustNewMoneyFromString("9.00")).
		WillReturnRows(leadRow(rowIDA, caller, at, "API", "9.00"))

	record, outcome, err := store.UpsertLeadRow(context.Background(), lead.RowUpsert{
		CallerID:   caller,
		DateOfCall: at,
		Category:   "API",
		Payout:     values.MustNewMoneyFromString("9.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, lead.OutcomeInserted, outcome)
	assert.Equal(t, rowIDA, record.ID.String())
	assert.Equal(t, "9.00", record.Payout.String())
	assert.True(t, caller.Equal(record.CallerID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertLeadRow_UpdatesExistingRow(t *testing.T) {
	mock, store := newMockStore(t)

	caller := values.MustNormalizePhone("5551234567")
	at := time.Date(2025, 11, 20, 13, 31, 0, 0, time.UTC)

	mock.ExpectQuery("FROM lead_calls").
		WithArgs(caller, at, "API").
		WillReturnRows(leadRow(rowIDA, caller, at, "API", "7.00"))
	mock.ExpectQuery("SET date_of_call").
		WithArgs(rowIDA, at, (*time.Time)(nil), values.MustNewMoneyFromString("9.00")).
		WillReturnRows(leadRow(rowIDA, caller, at, "API", "9.00"))

	record, outcome, err := store.UpsertLeadRow(context.Background(), lead.RowUpsert{
		CallerID:   caller,
		DateOfCall: at,
		Category:   "API",
		Payout:     values.MustNewMoneyFromString("9.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, lead.OutcomeUpdated, outcome)
	assert.Equal(t, "9.00", record.Payout.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertLeadRow_TimestampCorrectionMovesRow(t *testing.T) {
	mock, store := newMockStore(t)

	caller := values.MustNormalizePhone("5551234567")
	original := time.Date(2025, 11, 20, 13, 31, 0, 0, time.UTC)
	corrected := time.Date(2025, 11, 20, 14, 2, 0, 0, time.UTC)

	// The row lives under its original key; nothing occupies the corrected
	// key, so the timestamp moves.
	mock.ExpectQuery("FROM lead_calls").
		WithArgs(caller, original, "API").
		WillReturnRows(leadRow(rowIDA, caller, original, "API", "9.00"))
	mock.ExpectQuery("FROM lead_calls").
		WithArgs(caller, corrected, "API").
		WillReturnRows(pgxmock.NewRows(leadRowCols))
	mock.ExpectQuery("SET date_of_call").
		WithArgs(rowIDA, corrected, &original, values.MustNewMoneyFromString("9.00")).
		WillReturnRows(leadRow(rowIDA, caller, corrected, "API", "9.00"))

	record, outcome, err := store.UpsertLeadRow(context.Background(), lead.RowUpsert{
		CallerID:           caller,
		DateOfCall:         corrected,
		OriginalDateOfCall: &original,
		Category:           "API",
		Payout:             values.MustNewMoneyFromString("9.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, lead.OutcomeTimestampCorrected, outcome)
	assert.True(t, record.DateOfCall.Equal(corrected))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertLeadRow_CorrectionCollisionKeepsOriginalTimestamp(t *testing.T) {
	mock, store := newMockStore(t)

	caller := values.MustNormalizePhone("5551234567")
	original := time.Date(2025, 11, 20, 13, 31, 0, 0, time.UTC)
	corrected := time.Date(2025, 11, 20, 14, 2, 0, 0, time.UTC)

	// A different row already occupies the corrected key. Moving would
	// collide, so only the mutable fields update.
	mock.ExpectQuery("FROM lead_calls").
		WithArgs(caller, original, "API").
		WillReturnRows(leadRow(rowIDA, caller, original, "API", "7.00"))
	mock.ExpectQuery("FROM lead_calls").
		WithArgs(caller, corrected, "API").
		WillReturnRows(leadRow(rowIDB, caller, corrected, "API", "5.00"))
	mock.ExpectQuery("SET date_of_call").
		WithArgs(rowIDA, original, (*time.Time)(nil), values.MustNewMoneyFromString("9.00")).
		WillReturnRows(leadRow(rowIDA, caller, original, "API", "9.00"))

	record, outcome, err := store.UpsertLeadRow(context.Background(), lead.RowUpsert{
		CallerID:           caller,
		DateOfCall:         corrected,
		OriginalDateOfCall: &original,
		Category:           "API",
		Payout:             values.MustNewMoneyFromString("9.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, lead.OutcomeSkippedCorrection, outcome)
	assert.True(t, record.DateOfCall.Equal(original), "original timestamp survives")
	assert.Equal(t, "9.00", record.Payout.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCaptureOriginal_WritesOnce(t *testing.T) {
	mock, store := newMockStore(t)

	rowID := mustUUID(t, rowIDA)
	payout := values.MustNewMoneyFromString("0.00")
	revenue := values.MustNewMoneyFromString("12.00")

	mock.ExpectExec("SET original_payout").
		WithArgs(rowIDA, payout, revenue, "LEG1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("SET original_payout").
		WithArgs(rowIDA, payout, revenue, "LEG1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	captured, err := store.CaptureOriginal(context.Background(), rowID, payout, revenue, "LEG1")
	require.NoError(t, err)
	assert.True(t, captured)

	captured, err = store.CaptureOriginal(context.Background(), rowID, payout, revenue, "LEG1")
	require.NoError(t, err)
	assert.False(t, captured, "baseline already captured")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkUnmatched(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("SET unmatched = TRUE").
		WithArgs(rowIDA).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.MarkUnmatched(context.Background(), mustUUID(t, rowIDA)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertLeg(t *testing.T) {
	mock, store := newMockStore(t)

	caller := values.MustNormalizePhone("5551234567")
	leg := &routing.CallLeg{
		LegID:           "LEG1",
		Timestamp:       time.Date(2025, 11, 20, 13, 36, 0, 0, time.UTC),
		CallerID:        caller,
		Payout:          values.MustNewMoneyFromString("9.00"),
		Revenue:         values.MustNewMoneyFromString("12.00"),
		Connected:       true,
		DurationSeconds: 245,
		TargetID:        "T-API",
	}

	mock.ExpectExec("INSERT INTO routing_legs").
		WithArgs(leg.LegID, leg.Timestamp, caller, leg.Payout, leg.Revenue,
			true, 245, (*string)(nil), (*string)(nil), "T-API").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.UpsertLeg(context.Background(), leg))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_CommitsOnSuccess(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("SET unmatched = TRUE").
		WithArgs(rowIDA).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := store.RunInTx(context.Background(), func(tx *Store) error {
		return tx.MarkUnmatched(context.Background(), mustUUID(t, rowIDA))
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_RollsBackOnFailure(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	batchErr := fmt.Errorf("item exploded")
	err := store.RunInTx(context.Background(), func(*Store) error {
		return batchErr
	})
	assert.ErrorIs(t, err, batchErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}
