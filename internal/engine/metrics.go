package engine

import "github.com/prometheus/client_golang/prometheus"

// Pass-level metrics, served at /metrics in Prometheus text format.
var (
	mtxPasses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracknote_passes_total",
			Help: "Reconciliation passes completed",
		},
	)

	mtxMatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracknote_orders_matched_total",
			Help: "Feed orders matched to stored records",
		},
	)

	mtxSaved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracknote_orders_saved_total",
			Help: "New orders persisted, by classification",
		},
		[]string{"kind"}, // main|sub
	)

	mtxExecuted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracknote_executed_total",
			Help: "Preorders detected as executed",
		},
	)

	mtxMerged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracknote_merged_total",
			Help: "Merge operations performed",
		},
	)

	mtxPassDuration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracknote_last_pass_duration_seconds",
			Help: "Wall time of the most recent reconciliation pass",
		},
	)

	mtxExitOrders = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracknote_exit_orders",
			Help: "Exit-position orders seen in the most recent pass",
		},
	)

	mtxFetchSuppressed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracknote_backlog_fetch_suppressed_total",
			Help: "Backlog fetches suppressed by the rate guard",
		},
	)
)

func init() {
	prometheus.MustRegister(mtxPasses, mtxMatched, mtxSaved)
	prometheus.MustRegister(mtxExecuted, mtxMerged)
	prometheus.MustRegister(mtxPassDuration, mtxExitOrders, mtxFetchSuppressed)
}
