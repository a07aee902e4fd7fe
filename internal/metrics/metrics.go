// Package metrics exposes Prometheus collectors for the graph engines.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orbit"

var (
	cascadeUnitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cascade",
			Name:      "units_total",
			Help:      "Per-entity delete units by outcome.",
		},
		[]string{"outcome"},
	)

	listingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "listing",
			Name:      "duration_seconds",
			Help:      "Listing request latency by mode.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	listingDegradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listing",
			Name:      "degraded_streams_total",
			Help:      "Streams that failed and contributed nothing to a listing.",
		},
		[]string{"stream"},
	)

	importRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Imported rows by outcome.",
		},
		[]string{"outcome"},
	)

	tagDriftTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tags",
			Name:      "drift_corrections_total",
			Help:      "Usage counts rewritten by reconciliation.",
		},
	)

	liveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "listing",
			Name:      "live_subscriptions",
			Help:      "Open live listing subscriptions.",
		},
	)
)

// Cascade and import outcomes.
const (
	OutcomeDeleted    = "deleted"
	OutcomeSkipped    = "skipped_not_owner"
	OutcomeFailed     = "failed"
	OutcomeCreated    = "created"
	OutcomeUpdated    = "updated"
	OutcomeRowSkipped = "skipped"
	OutcomeRowError   = "error"
)

// CascadeUnit records one delete unit outcome.
func CascadeUnit(outcome string) {
	cascadeUnitsTotal.WithLabelValues(outcome).Inc()
}

// ObserveListing records how long a listing took.
func ObserveListing(mode string, start time.Time) {
	listingDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}

// StreamDegraded counts a failed listing stream.
func StreamDegraded(stream string) {
	listingDegradedTotal.WithLabelValues(stream).Inc()
}

// ImportRows adds n rows with the given outcome.
func ImportRows(outcome string, n int) {
	if n > 0 {
		importRowsTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

// TagDriftCorrected counts one reconciled tag.
func TagDriftCorrected() {
	tagDriftTotal.Inc()
}

// SubscriptionOpened and SubscriptionClosed track live subscriptions.
func SubscriptionOpened() { liveSubscriptions.Inc() }

// SubscriptionClosed decrements the live subscription gauge.
func SubscriptionClosed() { liveSubscriptions.Dec() }

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
