package toasts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "toastd"

const (
	resultAccepted  = "accepted"
	resultDuplicate = "duplicate"
	resultMalformed = "malformed"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "toasts",
			Name:      "events_total",
			Help:      "Notification events offered to session queues by result",
		},
		[]string{"result"},
	)

	closedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "toasts",
			Name:      "closed_total",
			Help:      "Toasts removed from the visible queue by reason",
		},
		[]string{"reason"},
	)

	ledgerExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "toasts",
			Name:      "ledger_expired_total",
			Help:      "Message ids dropped from dedup ledgers after their window",
		},
	)
)

func recordEvent(result string) {
	eventsTotal.WithLabelValues(result).Inc()
}

func recordClosed(reason Reason) {
	closedTotal.WithLabelValues(string(reason)).Inc()
}

func recordLedgerExpired(n int) {
	ledgerExpired.Add(float64(n))
}
