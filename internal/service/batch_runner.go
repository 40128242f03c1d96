// Package service orchestrates concurrent scans across a symbol universe.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/vcp-scanner/internal/backtest"
	"github.com/yourusername/vcp-scanner/internal/datasource"
	"github.com/yourusername/vcp-scanner/internal/detector"
	"github.com/yourusername/vcp-scanner/internal/logger"
	"github.com/yourusername/vcp-scanner/internal/metrics"
	"github.com/yourusername/vcp-scanner/internal/models"
)

// ResultPublisher receives each finished symbol after the batch completes
type ResultPublisher interface {
	Publish(ctx context.Context, result models.ScanResult) error
}

// PatternStore persists detected patterns
type PatternStore interface {
	SavePatterns(ctx context.Context, patterns []models.Pattern) error
}

// RunStore persists backtest runs
type RunStore interface {
	SaveRun(ctx context.Context, results *backtest.Results) error
}

// BatchResult is the outcome of one batch run
type BatchResult struct {
	Results  []models.ScanResult
	Failed   []models.FailedSymbol
	Backtest *backtest.Results
	Summary  BatchSummary
}

// Patterns returns every detected pattern across symbols
func (b *BatchResult) Patterns() []models.Pattern {
	var out []models.Pattern
	for _, r := range b.Results {
		out = append(out, r.Patterns...)
	}
	return out
}

// BatchRunner fetches, detects and simulates symbols on a bounded worker pool. The compute path
// shares no state across symbols; only the result collector is locked.
type BatchRunner struct {
	provider  datasource.BarProvider
	detector  *detector.Detector
	simulator *backtest.Simulator
	cfg       BatchConfig
	logger    *logrus.Logger
	scanLog   *logger.ScanLogger

	publisher    ResultPublisher
	patternStore PatternStore
	runStore     RunStore
}

// Option configures optional sinks on a BatchRunner
type Option func(*BatchRunner)

// WithPublisher publishes every symbol result after the batch
func WithPublisher(p ResultPublisher) Option {
	return func(r *BatchRunner) { r.publisher = p }
}

// WithPatternStore persists detected patterns after the batch
func WithPatternStore(s PatternStore) Option {
	return func(r *BatchRunner) { r.patternStore = s }
}

// WithRunStore persists the backtest run after the batch
func WithRunStore(s RunStore) Option {
	return func(r *BatchRunner) { r.runStore = s }
}

// NewBatchRunner creates a runner. simulator may be nil for detection-only scans.
func NewBatchRunner(provider datasource.BarProvider, det *detector.Detector, sim *backtest.Simulator, cfg BatchConfig, log *logrus.Logger, opts ...Option) (*BatchRunner, error) {
	if provider == nil {
		return nil, fmt.Errorf("bar provider is required")
	}
	if det == nil {
		return nil, fmt.Errorf("detector is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.New()
	}

	r := &BatchRunner{
		provider:  provider,
		detector:  det,
		simulator: sim,
		cfg:       cfg,
		logger:    log,
		scanLog:   logger.NewScanLogger(log),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run scans every request. A failing symbol is recorded and never aborts the batch. The error is
// non-nil only when ctx ends before all symbols were started; partial results are still returned.
func (r *BatchRunner) Run(ctx context.Context, reqs []SymbolRequest) (*BatchResult, error) {
	stats := NewBatchStats(len(reqs))

	var (
		mu      sync.Mutex
		results = make([]models.ScanResult, 0, len(reqs))
	)
	collect := func(res models.ScanResult) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, res)
	}

	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)

	var runErr error
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			runErr = err
			collect(failedResult(req.Symbol, 0, fmt.Errorf("batch cancelled: %w", err)))
			stats.RecordFailure()
			continue
		}
		req := req
		g.Go(func() error {
			collect(r.processSymbol(ctx, req, stats))
			return nil
		})
	}
	_ = g.Wait()
	stats.Finish()

	sort.Slice(results, func(i, j int) bool { return results[i].Symbol < results[j].Symbol })

	batch := &BatchResult{
		Results: results,
		Failed:  make([]models.FailedSymbol, 0),
	}
	var trades []models.Trade
	for _, res := range results {
		if res.Status == models.ScanStatusFailed {
			batch.Failed = append(batch.Failed, models.FailedSymbol{Symbol: res.Symbol, Reason: res.Error})
			continue
		}
		trades = append(trades, res.Trades...)
	}

	if r.simulator != nil {
		started := time.Now()
		batch.Backtest = r.simulator.BuildResults(trades, batch.Failed)
		status := "success"
		if len(trades) == 0 {
			status = "empty"
		}
		metrics.RecordBacktestRun(status, batch.Backtest.Metrics.TotalReturnPct, time.Since(started).Seconds())
	}

	batch.Summary = stats.Snapshot()
	metrics.RecordBatch(len(reqs), batch.Summary.Duration.Seconds(), float64(time.Now().Unix()))
	r.scanLog.LogBatchComplete(len(reqs), len(batch.Failed), batch.Summary.Patterns, batch.Summary.Duration)

	r.deliver(ctx, batch)
	return batch, runErr
}

// processSymbol runs the full pipeline for one symbol. Panics are recovered into a failed result.
func (r *BatchRunner) processSymbol(ctx context.Context, req SymbolRequest, stats *BatchStats) (result models.ScanResult) {
	started := time.Now()
	attempts := 0

	defer func() {
		if rec := recover(); rec != nil {
			result = failedResult(req.Symbol, attempts, fmt.Errorf("panic: %v", rec))
			r.logger.WithFields(logrus.Fields{"symbol": req.Symbol, "panic": rec}).Error("Recovered panic in symbol scan")
		}
		result.Duration = time.Since(started)
		result.CompletedAt = time.Now().UTC()

		if result.Status == models.ScanStatusFailed {
			stats.RecordFailure()
			r.scanLog.LogSymbolFailed(req.Symbol, result.Attempts, errors.New(result.Error))
		} else {
			stats.RecordSuccess(len(result.Patterns), len(result.Trades))
			r.scanLog.LogSymbolComplete(result)
		}
		metrics.RecordSymbol(string(result.Status), result.Duration.Seconds())
	}()

	r.scanLog.LogSymbolStart(req.Symbol, r.cfg.Start, r.cfg.End)

	symCtx, cancel := context.WithTimeout(ctx, r.cfg.SymbolTimeout)
	defer cancel()

	bars, attempts, err := r.fetchWithRetry(symCtx, req.Symbol, stats)
	if err != nil {
		return failedResult(req.Symbol, attempts, err)
	}

	series, err := models.NewSeries(req.Symbol, bars)
	if err != nil {
		return failedResult(req.Symbol, attempts, err)
	}

	patterns := r.detector.Detect(series, req.RelativeStrength)
	for _, p := range patterns {
		r.scanLog.LogPatternDetected(p)
		metrics.RecordPattern(p.QualityScore)
	}

	trades := make([]models.Trade, 0)
	if r.simulator != nil {
		trades = r.simulator.Simulate(series, patterns)
		for _, t := range trades {
			metrics.RecordTrade(string(t.ExitReason))
		}
	}

	return models.ScanResult{
		Symbol:   req.Symbol,
		Status:   models.ScanStatusOK,
		BarCount: series.Len(),
		Patterns: patterns,
		Trades:   trades,
		Attempts: attempts,
	}
}

// fetchWithRetry retries transient provider failures with exponential backoff
func (r *BatchRunner) fetchWithRetry(ctx context.Context, symbol string, stats *BatchStats) ([]models.Bar, int, error) {
	backoff := r.cfg.RetryBackoff
	var lastErr error

	for attempt := 1; attempt <= r.cfg.FetchAttempts; attempt++ {
		bars, err := r.provider.GetBars(ctx, symbol, r.cfg.Start, r.cfg.End)
		if err == nil {
			return bars, attempt, nil
		}
		lastErr = err

		if attempt == r.cfg.FetchAttempts || !datasource.IsRetryable(err) || ctx.Err() != nil {
			return nil, attempt, err
		}

		r.scanLog.LogFetchRetry(symbol, attempt, backoff, err)
		stats.RecordRetry()
		metrics.RecordFetchRetry(r.provider.Name())

		select {
		case <-ctx.Done():
			return nil, attempt, fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, r.cfg.FetchAttempts, lastErr
}

// deliver hands results to the configured sinks. Sink failures are logged and never fatal.
func (r *BatchRunner) deliver(ctx context.Context, batch *BatchResult) {
	if r.patternStore != nil {
		if patterns := batch.Patterns(); len(patterns) > 0 {
			if err := r.patternStore.SavePatterns(ctx, patterns); err != nil {
				r.logger.WithError(err).Error("Failed to persist patterns")
			}
		}
	}
	if r.runStore != nil && batch.Backtest != nil {
		if err := r.runStore.SaveRun(ctx, batch.Backtest); err != nil {
			r.logger.WithError(err).Error("Failed to persist backtest run")
		}
	}
	if r.publisher != nil {
		for _, res := range batch.Results {
			if err := r.publisher.Publish(ctx, res); err != nil {
				r.logger.WithError(err).WithField("symbol", res.Symbol).Warn("Failed to publish scan result")
			}
		}
	}
}

func failedResult(symbol string, attempts int, err error) models.ScanResult {
	return models.ScanResult{
		Symbol:   symbol,
		Status:   models.ScanStatusFailed,
		Error:    err.Error(),
		Patterns: []models.Pattern{},
		Trades:   []models.Trade{},
		Attempts: attempts,
	}
}
