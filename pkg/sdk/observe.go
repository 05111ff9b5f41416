package hybridex

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status label values.
const (
	statusOK      = "ok"
	statusInvalid = "invalid"
	statusTimeout = "timeout"
	statusError   = "error"
)

type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	documents  *prometheus.CounterVec
	hits       prometheus.Histogram
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hybridex",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "SDK operations by type and status (ok, invalid, timeout, error).",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hybridex",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hybridex",
			Subsystem: "sdk",
			Name:      "documents_total",
			Help:      "Documents passed to index or update, by outcome (indexed, dropped).",
		}, []string{"operation", "outcome"}),
		hits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hybridex",
			Subsystem: "sdk",
			Name:      "search_hits",
			Help:      "Hits returned per search.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
		}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.documents); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.hits); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers c, or swaps in the collector a previous client registered.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("hybridex: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("hybridex: metric already registered with incompatible type: %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// statusOf maps an operation error to its metric label. Caller mistakes are "invalid".
func statusOf(err error) string {
	switch {
	case err == nil:
		return statusOK
	case errors.Is(err, ErrInvalidDocument), errors.Is(err, ErrInvalidQuery),
		errors.Is(err, ErrSchemaMismatch), errors.Is(err, ErrUnsupportedOperator),
		errors.Is(err, ErrFilterRequired):
		return statusInvalid
	case errors.Is(err, ErrBackingStoreTimeout):
		return statusTimeout
	default:
		return statusError
	}
}

// observer logs and measures SDK operations. Both sinks are optional.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	status := statusOf(err)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}
	if o.logger == nil {
		return
	}
	switch status {
	case statusOK:
		o.logger.Debug("operation completed", "op", op, "duration", dur)
	case statusInvalid:
		o.logger.Info("operation rejected", "op", op, "duration", dur, "error", err)
	default:
		o.logger.Warn("operation failed", "op", op, "duration", dur, "status", status, "error", err)
	}
}

// observeBatch counts per-document outcomes and logs every dropped document.
func (o *observer) observeBatch(op string, items []BatchItem) {
	if o == nil {
		return
	}
	var indexed, dropped int
	for _, it := range items {
		if it.Indexed {
			indexed++
			continue
		}
		dropped++
		if o.logger != nil {
			o.logger.Info("document dropped", "op", op, "position", it.Position, "id", it.ID, "error", it.Err)
		}
	}
	if o.metrics != nil {
		o.metrics.documents.WithLabelValues(op, "indexed").Add(float64(indexed))
		o.metrics.documents.WithLabelValues(op, "dropped").Add(float64(dropped))
	}
}

func (o *observer) observeHits(n int) {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.hits.Observe(float64(n))
}
