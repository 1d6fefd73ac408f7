// Package metrics defines the Prometheus collectors for the API, the store and the
// ingest pipeline. They register on the default registry via promauto and are
// scraped on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flight_replay"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route template and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route template.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	DBQueryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Store round-trip latency by operation.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	SnapshotsImportedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_imported_total",
			Help:      "Capture files processed by the importer, by outcome (imported, skipped, failed).",
		},
		[]string{"outcome"},
	)

	ObservationsImportedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_imported_total",
			Help:      "Observation rows written by the importer.",
		},
	)

	FeedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_requests_total",
			Help:      "Calls to the ADS-B feed API by result (ok, error).",
		},
		[]string{"result"},
	)

	TaskRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_runs_total",
			Help:      "Scheduled task runs by task and result (ok, error).",
		},
		[]string{"task", "result"},
	)
)

// ObserveQuery records the duration of one store operation started at start.
func ObserveQuery(operation string, start time.Time) {
	DBQueryDurationSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
