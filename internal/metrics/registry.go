package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

// Registry holds the in-process Prometheus counters for the backtest
// and optimizer paths: one vector for which decision gate blocked a
// bar, one for how each optimizer trial resolved. Named CounterVec
// fields are built and registered against a local *prometheus.Registry
// rather than the global default.
type Registry struct {
	reg *prometheus.Registry

	GateBlocks *prometheus.CounterVec
	Trials     *prometheus.CounterVec
}

// NewRegistry builds a Registry with its own prometheus.Registry, so a
// backtest or optimizer run never collides with another run's counters
// in the same process.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		GateBlocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genesis_core_gate_blocks_total",
				Help: "Total bars blocked by each decision gate reason",
			},
			[]string{"reason"},
		),
		Trials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genesis_core_optimizer_trials_total",
				Help: "Total optimizer trials by outcome",
			},
			[]string{"outcome"},
		),
	}
	reg.MustRegister(m.GateBlocks, m.Trials)
	return m
}

// RecordGateBlock increments the counter for the gate reason that
// blocked a bar's action. ReasonNone (a bar that opened a position)
// is not recorded here.
func (m *Registry) RecordGateBlock(reason string) {
	if m == nil {
		return
	}
	m.GateBlocks.WithLabelValues(reason).Inc()
}

// RecordTrial increments the counter for one optimizer trial's
// terminal outcome: "cached_hit", "hard_failed", "aborted", or
// "scored".
func (m *Registry) RecordTrial(outcome string) {
	if m == nil {
		return
	}
	m.Trials.WithLabelValues(outcome).Inc()
}

// Gather returns the current counter values, the same payload a
// promhttp handler would serve, for tests and any future CLI
// diagnostics command.
func (m *Registry) Gather() ([]*io_prometheus_client.MetricFamily, error) {
	return m.reg.Gather()
}
