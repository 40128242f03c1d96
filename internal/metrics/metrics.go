// Package metrics provides the centralized Prometheus registry for the scanner.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vcp"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	SymbolsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "symbols_processed_total",
		Help:      "Total number of symbols processed by status",
	}, []string{"status"})
	PatternsDetectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "patterns_detected_total",
		Help:      "Total number of VCP patterns detected",
	})
	FetchRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_retries_total",
		Help:      "Total number of retried bar fetches by provider",
	}, []string{"provider"})
	CacheRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_requests_total",
		Help:      "Bar cache lookups by tier and result",
	}, []string{"tier", "result"})
	PublishErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_errors_total",
		Help:      "Total number of failed result publications by sink",
	}, []string{"sink"})
)

// Gauge metrics
var (
	LastBatchSymbols = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_batch_symbols",
		Help:      "Number of symbols in the most recent batch",
	})
	LastBatchTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_batch_timestamp_seconds",
		Help:      "Unix time the most recent batch completed",
	})
	WebSocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "websocket_clients",
		Help:      "Number of connected pattern stream clients",
	})
)

// Histogram metrics
var (
	SymbolDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "symbol_duration_seconds",
		Help:      "Duration of fetch, detection and simulation for one symbol",
		Buckets:   prometheus.DefBuckets,
	})
	BatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "batch_duration_seconds",
		Help:      "Duration of a full batch run",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	})
	PatternQualityScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pattern_quality_score",
		Help:      "Quality scores of detected patterns",
		Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		// Register counter metrics
		registry.MustRegister(SymbolsProcessedTotal)
		registry.MustRegister(PatternsDetectedTotal)
		registry.MustRegister(FetchRetriesTotal)
		registry.MustRegister(CacheRequestsTotal)
		registry.MustRegister(PublishErrorsTotal)

		// Register gauge metrics
		registry.MustRegister(LastBatchSymbols)
		registry.MustRegister(LastBatchTimestamp)
		registry.MustRegister(WebSocketClients)

		// Register histogram metrics
		registry.MustRegister(SymbolDuration)
		registry.MustRegister(BatchDuration)
		registry.MustRegister(PatternQualityScore)

		// Register backtest metrics
		registry.MustRegister(BacktestRunsTotal)
		registry.MustRegister(TradesTotal)
		registry.MustRegister(BacktestReturnPct)
		registry.MustRegister(BacktestDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordSymbol records one processed symbol.
// status should be one of: "ok", "failed"
func RecordSymbol(status string, durationSeconds float64) {
	SymbolsProcessedTotal.WithLabelValues(status).Inc()
	SymbolDuration.Observe(durationSeconds)
}

// RecordPattern records a detected pattern and its score.
func RecordPattern(score float64) {
	PatternsDetectedTotal.Inc()
	PatternQualityScore.Observe(score)
}

// RecordFetchRetry records a retried fetch against a provider.
func RecordFetchRetry(provider string) {
	FetchRetriesTotal.WithLabelValues(provider).Inc()
}

// RecordCacheHit records a cache hit on the given tier ("memory" or "redis").
func RecordCacheHit(tier string) {
	CacheRequestsTotal.WithLabelValues(tier, "hit").Inc()
}

// RecordCacheMiss records a cache miss on the given tier.
func RecordCacheMiss(tier string) {
	CacheRequestsTotal.WithLabelValues(tier, "miss").Inc()
}

// RecordPublishError records a failed publication.
func RecordPublishError(sink string) {
	PublishErrorsTotal.WithLabelValues(sink).Inc()
}

// RecordBatch records a completed batch.
func RecordBatch(symbols int, durationSeconds float64, completedUnix float64) {
	LastBatchSymbols.Set(float64(symbols))
	LastBatchTimestamp.Set(completedUnix)
	BatchDuration.Observe(durationSeconds)
}

// UpdateWebSocketClients updates the connected stream client gauge.
func UpdateWebSocketClients(count int) {
	WebSocketClients.Set(float64(count))
}
