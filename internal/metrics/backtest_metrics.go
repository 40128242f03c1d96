// Package metrics defines backtesting-specific metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Backtest counter vectors
var (
	BacktestRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backtest_runs_total",
		Help:      "Total number of backtest runs by status",
	}, []string{"status"})

	TradesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trades_total",
		Help:      "Total number of simulated trades by exit reason",
	}, []string{"exit_reason"})
)

// Backtest gauges and histograms
var (
	BacktestReturnPct = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "backtest_total_return_pct",
		Help:      "Total return of the most recent backtest run in percent",
	})

	BacktestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backtest_duration_seconds",
		Help:      "Duration of portfolio aggregation in seconds",
		Buckets:   prometheus.DefBuckets,
	})
)

// RecordBacktestRun records a backtest run event.
// status should be one of: "success", "empty"
func RecordBacktestRun(status string, totalReturnPct, durationSeconds float64) {
	BacktestRunsTotal.WithLabelValues(status).Inc()
	BacktestReturnPct.Set(totalReturnPct)
	BacktestDuration.Observe(durationSeconds)
}

// RecordTrade records a closed trade.
func RecordTrade(exitReason string) {
	TradesTotal.WithLabelValues(exitReason).Inc()
}
