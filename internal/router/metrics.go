package router

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the ingest counters all routers share.
type Metrics struct {
	emitted *prometheus.CounterVec
	dropped *prometheus.CounterVec
	panics  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crossfeed",
			Name:      "events_emitted_total",
			Help:      "Canonical events published to the bus",
		}, []string{"platform", "type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crossfeed",
			Name:      "events_dropped_total",
			Help:      "Payloads dropped before normalization completed",
		}, []string{"platform", "reason"}),
		panics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crossfeed",
			Name:      "handler_panics_total",
			Help:      "Panics recovered at the dispatch boundary",
		}, []string{"type"}),
	}
	if reg != nil {
		reg.MustRegister(m.emitted, m.dropped, m.panics)
	}
	return m
}

func (m *Metrics) IncEmitted(platform, eventType string) {
	if m == nil {
		return
	}
	m.emitted.WithLabelValues(platform, eventType).Inc()
}

func (m *Metrics) IncDropped(platform, reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(platform, reason).Inc()
}

func (m *Metrics) IncPanics(eventType string) {
	if m == nil {
		return
	}
	m.panics.WithLabelValues(eventType).Inc()
}
