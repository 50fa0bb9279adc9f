package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fcexplorer"

// Metrics groups the collectors the explorer reports.
type Metrics struct {
	Derivations        *prometheus.CounterVec
	DerivationDuration prometheus.Histogram
	Reloads            *prometheus.CounterVec
	SnapshotRecords    prometheus.Gauge
	CacheLookups       *prometheus.CounterVec
	Sessions           prometheus.Gauge
}

// New registers the explorer collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Derivations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "derivations_total",
			Help:      "Figure derivations by outcome.",
		}, []string{"result"}),
		DerivationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "derivation_duration_seconds",
			Help:      "Duration of one filter, aggregate and select cycle.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),
		Reloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_reloads_total",
			Help:      "Snapshot reload attempts by outcome.",
		}, []string{"result"}),
		SnapshotRecords: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_records",
			Help:      "Records in the active snapshot.",
		}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "figure_cache_lookups_total",
			Help:      "Figure cache lookups by outcome.",
		}, []string{"result"}),
		Sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Dashboard sessions currently tracked.",
		}),
	}
}
