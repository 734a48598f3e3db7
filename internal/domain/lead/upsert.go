package lead

import (
	"time"

	"github.com/davidleathers/call-reconciliation/internal/domain/values"
)

// RowUpsert carries one lead-source row into the store.
type RowUpsert struct {
	CallerID           values.PhoneNumber
	DateOfCall         time.Time
	OriginalDateOfCall *time.Time
	Category           string
	Payout             values.Money
}

// UpsertOutcome describes what a lead-row upsert did.
type UpsertOutcome int

const (
	OutcomeInserted UpsertOutcome = iota
	OutcomeUpdated
	OutcomeTimestampCorrected
	// OutcomeSkippedCorrection means a timestamp correction was abandoned
	// because another row already occupies the corrected key. Uniqueness
	// outranks timestamp accuracy.
	OutcomeSkippedCorrection
)

func (o UpsertOutcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	case OutcomeTimestampCorrected:
		return "timestamp_corrected"
	case OutcomeSkippedCorrection:
		return "skipped_duplicate_correction"
	default:
		return "unknown"
	}
}
