package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/hybridex/internal/domain"
)

// Search, index and access metrics.
var (
	SearchStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_stage_duration_seconds",
			Help:      "Duration of each search pipeline stage",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"stage"},
	)

	SearchResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_results_total",
			Help:      "Matches returned, split into pinned and organic",
		},
		[]string{"kind"},
	)

	BackendErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_errors_total",
			Help:      "Backing store failures by operation",
		},
		[]string{"op", "kind"}, // kind: "timeout" / "unavailable"
	)

	IndexDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_documents_total",
			Help:      "Documents submitted for indexing by outcome",
		},
		[]string{"status"},
	)

	MaterializeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "materialize_total",
			Help:      "URI materializations by scheme and status",
		},
		[]string{"scheme", "status"},
	)

	AuthDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_decisions_total",
			Help:      "Authorization decisions by result and method",
		},
		[]string{"result", "method"},
	)

	CachedDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tag_cache_documents",
			Help:      "Documents mirrored in the tag cache",
		},
	)
)

var engineMetricsRegistered bool

// RegisterEngineMetrics registers search, index and access metrics. Must be called once from main.
func RegisterEngineMetrics() {
	if engineMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		SearchStageDuration,
		SearchResultsTotal,
		BackendErrorsTotal,
		IndexDocumentsTotal,
		MaterializeTotal,
		AuthDecisionsTotal,
		CachedDocuments,
	)
	engineMetricsRegistered = true
}

// ObserveBackendError counts err under op when it is a backing store failure.
func ObserveBackendError(op string, err error) {
	switch {
	case errors.Is(err, domain.ErrBackingStoreTimeout):
		BackendErrorsTotal.WithLabelValues(op, "timeout").Inc()
	case errors.Is(err, domain.ErrBackingStore):
		BackendErrorsTotal.WithLabelValues(op, "unavailable").Inc()
	}
}

// ObserveStage records how long a search stage took since start.
func ObserveStage(stage string, start time.Time) {
	SearchStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
