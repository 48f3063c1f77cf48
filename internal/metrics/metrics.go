// Package metrics declares the Prometheus collectors exported on /metrics.
//
// Collectors are package globals registered once with the default registry.
// Values are only ever written by the component that owns them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "linkbio"

// Click outcomes.
const (
	ClickEnqueued = "enqueued"
	ClickDropped  = "dropped" // queue full or accumulator stopped
	ClickApplied  = "applied"
	ClickMissed   = "missed" // handle or item id did not resolve
	ClickFailed   = "failed"
)

// Projection lookup results.
const (
	LookupHit      = "hit"
	LookupMiss     = "miss"
	LookupNotFound = "not_found"
)

var (
	Clicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clicks",
			Name:      "events_total",
			Help:      "Click events by outcome.",
		},
		[]string{"outcome"},
	)

	ClickQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "clicks",
			Name:      "queue_depth",
			Help:      "Click events waiting for a worker.",
		},
	)

	ProjectionLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "lookups_total",
			Help:      "Public profile lookups by cache result.",
		},
		[]string{"result"},
	)

	Imports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "results_total",
			Help:      "Import enrichment results by kind.",
		},
		[]string{"kind"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
