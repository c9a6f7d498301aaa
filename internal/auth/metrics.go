package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Decision labels recorded on the metrics.
const (
	decisionAllowed = "allowed"
	decisionDenied  = "denied"
	decisionError   = "error"
)

// Metrics contains authentication decision metrics.
type Metrics struct {
	decisionsTotal   *prometheus.CounterVec
	decisionDuration *prometheus.HistogramVec
}

// NewMetrics creates new auth metrics registered with the default
// registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates new auth metrics registered with the
// provided registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "authgw"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "decisions_total",
				Help:      "Total number of authentication decisions",
			},
			[]string{"strategy", "decision"},
		),
		decisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "decision_duration_seconds",
				Help:      "Authentication decision duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"strategy"},
		),
	}

	// Duplicate registration is safe to ignore because descriptors are
	// identical.
	_ = registerer.Register(m.decisionsTotal)
	_ = registerer.Register(m.decisionDuration)

	return m
}

// Init pre-populates label combinations for the given strategies so the
// counters appear in /metrics output immediately after startup.
func (m *Metrics) Init(strategies ...string) {
	if m == nil || m.decisionsTotal == nil {
		return
	}
	decisions := []string{decisionAllowed, decisionDenied, decisionError}
	for _, s := range strategies {
		for _, d := range decisions {
			m.decisionsTotal.WithLabelValues(s, d)
		}
		m.decisionDuration.WithLabelValues(s)
	}
}

// RecordDecision records one authentication decision.
func (m *Metrics) RecordDecision(strategy, decision string, duration time.Duration) {
	if m == nil || m.decisionsTotal == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(strategy, decision).Inc()
	m.decisionDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}
