// Package metrics exposes Prometheus instrumentation for backtest runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	backtestsTotal    *prometheus.CounterVec
	backtestDuration  prometheus.Histogram
	signalsGenerated  *prometheus.CounterVec
	tradesExecuted    *prometheus.CounterVec
	executionFailures prometheus.Counter
	simulatedDays     prometheus.Counter
	rebalancesTotal   prometheus.Counter
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		backtestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hindcast_backtests_total",
				Help: "Total number of backtests by terminal status",
			},
			[]string{"status"},
		),

		backtestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hindcast_backtest_duration_seconds",
				Help:    "Backtest wall-clock duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
		),

		signalsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hindcast_signals_generated_total",
				Help: "Total number of signals generated",
			},
			[]string{"strategy", "action"},
		),

		tradesExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hindcast_trades_executed_total",
				Help: "Total number of trades applied to the portfolio",
			},
			[]string{"side"},
		),

		executionFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hindcast_execution_failures_total",
				Help: "Total number of signals that failed execution",
			},
		),

		simulatedDays: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hindcast_simulated_days_total",
				Help: "Total number of trading days simulated",
			},
		),

		rebalancesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hindcast_rebalances_total",
				Help: "Total number of rebalancing allocations computed",
			},
		),
	}

	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.signalsGenerated)
	reg.MustRegister(r.tradesExecuted)
	reg.MustRegister(r.executionFailures)
	reg.MustRegister(r.simulatedDays)
	reg.MustRegister(r.rebalancesTotal)

	return r
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(status string, duration float64) {
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration)
}

// RecordSignal records a generated signal.
func (r *Registry) RecordSignal(strategy, action string) {
	r.signalsGenerated.WithLabelValues(strategy, action).Inc()
}

// RecordTrade records an executed trade.
func (r *Registry) RecordTrade(side string) {
	r.tradesExecuted.WithLabelValues(side).Inc()
}

// RecordExecutionFailure records a signal that was not executed.
func (r *Registry) RecordExecutionFailure() {
	r.executionFailures.Inc()
}

// RecordSimulatedDay records one processed trading day.
func (r *Registry) RecordSimulatedDay() {
	r.simulatedDays.Inc()
}

// RecordRebalance records a computed rebalancing allocation.
func (r *Registry) RecordRebalance() {
	r.rebalancesTotal.Inc()
}
