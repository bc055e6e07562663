// Package metrics exposes the prometheus collectors of the pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hospmap"

var (
	// DatasetLoadFailures counts DataUnavailable outcomes per dataset.
	DatasetLoadFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dataset_load_failures_total",
		Help:      "Dataset fetches that failed or could not be parsed",
	}, []string{"dataset"})

	// DatasetFeatures holds the feature count of the last successful load.
	DatasetFeatures = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dataset_features",
		Help:      "Features parsed from the last successful dataset load",
	}, []string{"dataset"})

	// DatasetLoadDuration observes fetch+parse time.
	DatasetLoadDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dataset_load_duration_seconds",
		Help:      "Dataset fetch and parse duration in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
	}, []string{"dataset"})

	// JoinAmbiguous holds the ambiguous assignment count of the last join.
	JoinAmbiguous = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "join_ambiguous",
		Help:      "Facilities contained by more than one region in the last join",
	})

	// JoinUnassigned holds the unassigned facility count of the last join.
	JoinUnassigned = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "join_unassigned",
		Help:      "Facilities outside every region in the last join",
	})

	// SessionsActive tracks open view sessions.
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Open view sessions",
	})

	// LateCompletions counts dataset results discarded after session teardown.
	LateCompletions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "late_completions_total",
		Help:      "Dataset completions discarded because the session was closed",
	})

	// TileRequests counts basemap tile lookups by outcome (hit, fetched, miss).
	TileRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tile_requests_total",
		Help:      "Basemap tile lookups by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		DatasetLoadFailures,
		DatasetFeatures,
		DatasetLoadDuration,
		JoinAmbiguous,
		JoinUnassigned,
		SessionsActive,
		LateCompletions,
		TileRequests,
		httpRequestDuration,
		httpRequestsTotal,
	)
}

// Handler returns the prometheus scrape handler.
func Handler() http.Handler { return promhttp.Handler() }
