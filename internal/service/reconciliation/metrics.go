package reconciliation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	itemsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_items_processed_total",
		Help: "Lead rows pulled into reconciliation runs.",
	})
	itemsMatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_items_matched_total",
		Help: "Lead rows paired with a routing leg.",
	})
	correctionsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_corrections_applied_total",
		Help: "Payment overrides successfully applied.",
	})
	itemFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_item_failures_total",
		Help: "Items that failed leg resolution or correction.",
	})
	skippedCorrections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_skipped_timestamp_corrections_total",
		Help: "Timestamp corrections abandoned to preserve row uniqueness.",
	})
)

func recordRunMetrics(result *RunResult) {
	itemsProcessed.Add(float64(result.Processed))
	itemsMatched.Add(float64(result.Matched))
	correctionsApplied.Add(float64(result.Corrected))
	itemFailures.Add(float64(len(result.Failures)))
	skippedCorrections.Add(float64(result.SkippedCorrections))
}
