package batch

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the sweep counters exported after a batch.
//   - marketsim_runs_total{scenario,result}   runs finished, result ok|error
//   - marketsim_run_seconds{scenario}          wall time per run
//   - marketsim_secondary_trades_total         secondary trades across all runs
//   - marketsim_requests_success_pct{scenario} last observed success rate
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	trades      prometheus.Counter
	successRate *prometheus.GaugeVec
}

// NewMetrics creates the sweep metrics and registers them with reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsim_runs_total",
				Help: "Simulation runs finished, by scenario and result.",
			},
			[]string{"scenario", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketsim_run_seconds",
				Help:    "Wall time of one simulation run.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"scenario"},
		),
		trades: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "marketsim_secondary_trades_total",
				Help: "Secondary market trades across all runs.",
			},
		),
		successRate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketsim_requests_success_pct",
				Help: "Success rate of the most recently finished run, by scenario.",
			},
			[]string{"scenario"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.duration, m.trades, m.successRate)
	}
	return m
}
