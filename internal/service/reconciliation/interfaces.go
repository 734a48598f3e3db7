package reconciliation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/call-reconciliation/internal/domain/lead"
	"github.com/davidleathers/call-reconciliation/internal/domain/routing"
	"github.com/davidleathers/call-reconciliation/internal/domain/values"
)

// LeadRow is one raw lead-source export row. Timestamps stay strings until
// the matcher parses them; a malformed date degrades to no-match instead of
// failing ingestion.
type LeadRow struct {
	CallerID           string
	DateOfCall         string
	OriginalDateOfCall string
	Category           string
	Payout             values.Money
}

// LeadFeed supplies lead-source rows for a date range.
type LeadFeed interface {
	FetchRows(ctx context.Context, from, to time.Time) ([]LeadRow, error)
}

// CallLogSource supplies routing-platform legs for a date range.
type CallLogSource interface {
	QueryCallLogs(ctx context.Context, from, to time.Time, filter string) ([]*routing.CallLeg, error)
}

// LegResolver resolves a seed leg into a payout/revenue classification.
type LegResolver interface {
	Resolve(ctx context.Context, seedID string) (*routing.Resolution, error)
}

// CorrectionApplier applies payment overrides against the routing platform.
type CorrectionApplier interface {
	Apply(ctx context.Context, c routing.PaymentCorrection) (json.RawMessage, error)
}

// Store is the duplicate-safe persistence seam for one batch.
type Store interface {
	UpsertLeadRow(ctx context.Context, in lead.RowUpsert) (*lead.CallRecord, lead.UpsertOutcome, error)
	CaptureOriginal(ctx context.Context, rowID uuid.UUID, originalPayout, originalRevenue values.Money, linkedRoutingCallID string) (bool, error)
	MarkUnmatched(ctx context.Context, rowID uuid.UUID) error
	UpsertLeg(ctx context.Context, leg *routing.CallLeg) error
}

// TxStore runs a function against a transactional Store. A mid-batch
// failure rolls back the entire batch.
type TxStore interface {
	Store
	RunInTx(ctx context.Context, fn func(Store) error) error
}
