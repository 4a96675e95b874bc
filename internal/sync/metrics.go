package sync

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "crisiskit"

var (
	queuePending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "pending",
			Help:      "Number of submissions waiting in the offline queue",
		},
	)

	drainItems = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "drain_items_total",
			Help:      "Total items present in drain snapshots. Sum of items_total should match this.",
		},
	)

	syncItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "items_total",
			Help:      "Total drained items by outcome",
		},
		[]string{"outcome"},
	)

	submitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "submit_duration_seconds",
			Help:      "Time to deliver one queued submission",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

// RecordQueueDepth updates the pending queue gauge.
func RecordQueueDepth(count int) {
	queuePending.Set(float64(count))
}

// recordDrainStarted records the size of a drain snapshot.
func recordDrainStarted(count int) {
	drainItems.Add(float64(count))
}

// recordItemResult records the outcome of one drained item.
func recordItemResult(outcome string) {
	syncItems.WithLabelValues(outcome).Inc()
}

// recordSubmitDuration records delivery duration for one item.
func recordSubmitDuration(duration time.Duration) {
	submitDuration.Observe(duration.Seconds())
}
