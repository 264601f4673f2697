package notifications

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "toastd"

var (
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "sessions",
			Help:      "Sessions holding a toast queue",
		},
	)

	visibleToasts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "visible_toasts",
			Help:      "Visible toasts across all sessions",
		},
	)

	ledgerEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "ledger_entries",
			Help:      "Message ids held in dedup ledgers across all sessions",
		},
	)

	ingestRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "ingest_rate_limited_total",
			Help:      "Inbound events rejected by the per-recipient rate limit",
		},
	)

	historyRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "records_total",
			Help:      "Toast history records by result",
		},
		[]string{"result"},
	)

	historyFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "flush_duration_seconds",
			Help:      "Time to write a batch of history records",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)
)

// recordSweep updates the session gauges after a sweep.
func recordSweep(sessions, visible, seen int) {
	activeSessions.Set(float64(sessions))
	visibleToasts.Set(float64(visible))
	ledgerEntries.Set(float64(seen))
}

func recordRateLimited() {
	ingestRejected.Inc()
}

func recordHistory(result string, count int) {
	historyRecords.WithLabelValues(result).Add(float64(count))
}

func recordFlushDuration(d time.Duration) {
	historyFlushDuration.Observe(d.Seconds())
}
