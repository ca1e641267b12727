// Package metrics holds the Prometheus instrumentation for the
// collector: phase timings, cycle outcomes and persisted row counts.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry groups every collector metric.
type Registry struct {
	// PhaseDuration observes how long each pipeline phase took,
	// labelled by phase name and result.
	PhaseDuration *prometheus.HistogramVec

	// Cycles counts completed cycles by outcome
	// (harvest|failover|error).
	Cycles *prometheus.CounterVec

	// FailoverCycles counts failover branches by marker.
	FailoverCycles *prometheus.CounterVec

	// PersistedRows counts rows written per stream.
	PersistedRows *prometheus.CounterVec

	// PersistenceErrors counts failed stream writes per stream.
	PersistenceErrors *prometheus.CounterVec

	// TerminalsObserved gauges the terminal count of the last cycle.
	TerminalsObserved prometheus.Gauge

	// RegistrySize gauges the known-terminal registry size.
	RegistrySize prometheus.Gauge
}

// New creates the metric set and registers it with the given
// registerer (pass prometheus.DefaultRegisterer outside tests).
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		PhaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "atmwatch_phase_duration_seconds",
				Help:    "Duration of each collector phase in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"phase", "result"},
		),
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atmwatch_cycles_total",
				Help: "Completed collection cycles by outcome",
			},
			[]string{"outcome"},
		),
		FailoverCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atmwatch_failover_cycles_total",
				Help: "Failover cycles by marker",
			},
			[]string{"marker"},
		),
		PersistedRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atmwatch_persisted_rows_total",
				Help: "Rows written per persistence stream",
			},
			[]string{"stream"},
		),
		PersistenceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atmwatch_persistence_errors_total",
				Help: "Failed stream writes per persistence stream",
			},
			[]string{"stream"},
		),
		TerminalsObserved: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "atmwatch_terminals_observed",
				Help: "Terminals observed in the most recent cycle",
			},
		),
		RegistrySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "atmwatch_registry_terminals",
				Help: "Terminal IDs known to the registry",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			r.PhaseDuration, r.Cycles, r.FailoverCycles,
			r.PersistedRows, r.PersistenceErrors,
			r.TerminalsObserved, r.RegistrySize,
		)
	}
	return r
}
