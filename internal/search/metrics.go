// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pdiddy/foursight/pkg/types"
)

// Outcomes recorded per adapter call.
const (
	OutcomeOK            = "ok"
	OutcomeCached        = "cached"
	OutcomeError         = "error"
	OutcomeNotConfigured = "not_configured"
	OutcomePanic         = "panic"
)

// Metrics records per-source aggregation statistics. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	calls    *prometheus.CounterVec
	records  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	total    prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foursight",
			Subsystem: "source",
			Name:      "calls_total",
			Help:      "Adapter calls by source and outcome.",
		}, []string{"source", "outcome"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foursight",
			Subsystem: "source",
			Name:      "records_total",
			Help:      "Records returned to callers by source.",
		}, []string{"source"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "foursight",
			Subsystem: "source",
			Name:      "duration_seconds",
			Help:      "Adapter call latency by source, cache hits excluded.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		total: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "foursight",
			Name:      "aggregation_duration_seconds",
			Help:      "Wall time of whole aggregation calls.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.calls, m.records, m.duration, m.total)
	return m
}

func (m *Metrics) observeSource(source types.Source, outcome string, d time.Duration, n int) {
	if m == nil {
		return
	}
	s := string(source)
	m.calls.WithLabelValues(s, outcome).Inc()
	m.records.WithLabelValues(s).Add(float64(n))
	if outcome != OutcomeCached {
		m.duration.WithLabelValues(s).Observe(d.Seconds())
	}
}

func (m *Metrics) observeAggregation(d time.Duration) {
	if m == nil {
		return
	}
	m.total.Observe(d.Seconds())
}

// WriteMetrics dumps everything g gathers to path in the Prometheus text
// format, for node-exporter style textfile collection.
func WriteMetrics(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
