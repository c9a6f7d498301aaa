package audit

import "github.com/prometheus/client_golang/prometheus"

// Metrics contains audit logging metrics.
type Metrics struct {
	entriesTotal  *prometheus.CounterVec
	droppedTotal  prometheus.Counter
	failuresTotal prometheus.Counter
}

// NewMetrics creates new audit metrics registered with the default
// registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates new audit metrics registered with the
// provided registerer so they appear on the gateway's /metrics endpoint.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "authgw"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		entriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "entries_total",
				Help:      "Total number of audit entries written",
			},
			[]string{"level", "category"},
		),
		droppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "entries_dropped_total",
				Help:      "Total number of audit entries dropped by severity filtering",
			},
		),
		failuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "write_failures_total",
				Help:      "Total number of audit write failures absorbed by the logger",
			},
		),
	}

	// Duplicate registration is safe to ignore because descriptors are
	// identical.
	_ = registerer.Register(m.entriesTotal)
	_ = registerer.Register(m.droppedTotal)
	_ = registerer.Register(m.failuresTotal)

	m.Init()

	return m
}

// Init pre-populates common label combinations so the Vec metrics appear in
// /metrics output immediately after startup. Idempotent.
func (m *Metrics) Init() {
	if m.entriesTotal == nil {
		return
	}
	levels := []Severity{SeverityInfo, SeverityWarning, SeverityError}
	categories := []string{CategoryAuthentication, CategoryException}
	for _, l := range levels {
		for _, c := range categories {
			m.entriesTotal.WithLabelValues(string(l), c)
		}
	}
}

// RecordEntry records a written audit entry.
func (m *Metrics) RecordEntry(level Severity, category string) {
	if m == nil || m.entriesTotal == nil {
		return
	}
	m.entriesTotal.WithLabelValues(string(level), category).Inc()
}

// RecordDropped records an entry dropped by severity filtering.
func (m *Metrics) RecordDropped() {
	if m == nil || m.droppedTotal == nil {
		return
	}
	m.droppedTotal.Inc()
}

// RecordFailure records an absorbed write failure.
func (m *Metrics) RecordFailure() {
	if m == nil || m.failuresTotal == nil {
		return
	}
	m.failuresTotal.Inc()
}
