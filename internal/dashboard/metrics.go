package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the aggregator itself.
type Metrics struct {
	UpstreamFetches  *prometheus.CounterVec
	SnapshotDuration prometheus.Histogram
}

// NewMetrics registers the aggregator metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		UpstreamFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supamon_upstream_fetch_total",
				Help: "Upstream fetches by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		SnapshotDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "supamon_snapshot_duration_seconds",
				Help:    "Time spent assembling one dashboard snapshot",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (m *Metrics) observe(source string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.UpstreamFetches.WithLabelValues(source, outcome).Inc()
}
