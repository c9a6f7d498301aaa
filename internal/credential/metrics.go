package credential

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains credential store metrics.
type Metrics struct {
	lookupsTotal   *prometheus.CounterVec
	lookupDuration *prometheus.HistogramVec
}

// NewMetrics creates new credential store metrics registered with the
// default registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates new credential store metrics registered
// with the provided registerer so they appear on the gateway's /metrics
// endpoint.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "authgw"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "credential",
				Name:      "lookups_total",
				Help:      "Total number of credential store lookups",
			},
			[]string{"store", "result"},
		),
		lookupDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "credential",
				Name:      "lookup_duration_seconds",
				Help:      "Duration of credential store lookups in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"store"},
		),
	}

	// Duplicate registration is safe to ignore because descriptors are
	// identical.
	_ = registerer.Register(m.lookupsTotal)
	_ = registerer.Register(m.lookupDuration)

	m.Init()

	return m
}

// Init pre-populates common label combinations so the Vec metrics appear in
// /metrics output immediately after startup. Idempotent.
func (m *Metrics) Init() {
	if m.lookupsTotal == nil {
		return
	}
	stores := []string{"memory", "redis", "vault"}
	results := []string{"hit", "miss", "error"}
	for _, s := range stores {
		for _, r := range results {
			m.lookupsTotal.WithLabelValues(s, r)
		}
	}
}

// RecordLookup records a credential lookup metric.
func (m *Metrics) RecordLookup(store, result string, duration time.Duration) {
	if m == nil || m.lookupsTotal == nil {
		return
	}
	m.lookupsTotal.WithLabelValues(store, result).Inc()
	m.lookupDuration.WithLabelValues(store).Observe(duration.Seconds())
}

// lookupResult maps a lookup error to a metric result label.
func lookupResult(err error) string {
	switch {
	case err == nil:
		return "hit"
	case errors.Is(err, ErrNotFound):
		return "miss"
	default:
		return "error"
	}
}
