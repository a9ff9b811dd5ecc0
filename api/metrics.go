package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/warp/progress-engine/progress"
)

// Metrics are the engine counters exposed on /metrics. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	derivations        prometheus.Counter
	derivationDuration prometheus.Histogram
	capped             *prometheus.CounterVec
	unmatched          prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		derivations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "progress_engine",
			Subsystem: "engine",
			Name:      "activities_derived_total",
			Help:      "Number of activity derivations computed.",
		}),
		derivationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "progress_engine",
			Subsystem: "engine",
			Name:      "derivation_duration_seconds",
			Help:      "Time spent deriving one batch of activities.",
			Buckets:   prometheus.DefBuckets,
		}),
		capped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "progress_engine",
			Subsystem: "engine",
			Name:      "capped_quantities_total",
			Help:      "Derivations whose summed quantity exceeded total units, by input type.",
		}, []string{"input_type"}),
		unmatched: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "progress_engine",
			Subsystem: "data_quality",
			Name:      "unmatched_kpi_records",
			Help:      "KPI records that matched no activity at the last check.",
		}),
	}
	reg.MustRegister(m.derivations, m.derivationDuration, m.capped, m.unmatched)
	return m
}

// ObserveDerivation records one DeriveAll batch.
func (m *Metrics) ObserveDerivation(derived []progress.Derived, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.derivations.Add(float64(len(derived)))
	m.derivationDuration.Observe(elapsed.Seconds())
	for _, d := range derived {
		if d.Quantities.PlannedOverScope() {
			m.capped.WithLabelValues(string(progress.InputPlanned)).Inc()
		}
		if d.Quantities.ActualOverScope() {
			m.capped.WithLabelValues(string(progress.InputActual)).Inc()
		}
	}
}

// SetUnmatched updates the unmatched-record gauge.
func (m *Metrics) SetUnmatched(n int) {
	if m == nil {
		return
	}
	m.unmatched.Set(float64(n))
}
