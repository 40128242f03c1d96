package service

import (
	"strings"
	"time"

	"github.com/yourusername/vcp-scanner/internal/config"
	"github.com/yourusername/vcp-scanner/internal/models"
)

// BatchConfig controls the worker pool and the fetch window
type BatchConfig struct {
	Workers       int
	SymbolTimeout time.Duration
	FetchAttempts int
	RetryBackoff  time.Duration
	// Start and End bound the fetched bars. End defaults to the run time.
	Start time.Time
	End   time.Time
}

// SymbolRequest is one symbol to scan with its externally supplied relative strength
type SymbolRequest struct {
	Symbol           string
	RelativeStrength float64
}

// BatchConfigFromConfig derives the batch settings. The fetch window ends at the backtest end date
// when one is set and reaches back HistoryDays calendar days.
func BatchConfigFromConfig(cfg *config.Config, now time.Time) (BatchConfig, error) {
	bc := BatchConfig{
		Workers:       cfg.Batch.Workers,
		SymbolTimeout: time.Duration(cfg.Batch.SymbolTimeoutSeconds) * time.Second,
		FetchAttempts: cfg.Batch.FetchAttempts,
		RetryBackoff:  time.Duration(cfg.Batch.RetryBackoffMillis) * time.Millisecond,
		End:           truncateDay(now),
	}
	if cfg.Backtest.EndDate != "" {
		end, err := time.Parse("2006-01-02", cfg.Backtest.EndDate)
		if err != nil {
			return BatchConfig{}, models.NewConfigurationError("backtest.end_date", err.Error())
		}
		bc.End = end
	}
	bc.Start = bc.End.AddDate(0, 0, -cfg.Batch.HistoryDays)
	return bc, bc.Validate()
}

// Validate checks the batch settings
func (c BatchConfig) Validate() error {
	if c.Workers <= 0 {
		return models.NewConfigurationError("batch.workers", "must be positive")
	}
	if c.SymbolTimeout <= 0 {
		return models.NewConfigurationError("batch.symbol_timeout_seconds", "must be positive")
	}
	if c.FetchAttempts <= 0 {
		return models.NewConfigurationError("batch.fetch_attempts", "must be positive")
	}
	if c.RetryBackoff < 0 {
		return models.NewConfigurationError("batch.retry_backoff_millis", "must not be negative")
	}
	if !c.Start.Before(c.End) {
		return models.NewConfigurationError("batch.history_days", "fetch window is empty")
	}
	return nil
}

// RequestsFromConfig lists the configured universe as batch requests
func RequestsFromConfig(cfg *config.Config) []SymbolRequest {
	reqs := make([]SymbolRequest, 0, len(cfg.Universe))
	for _, s := range cfg.Universe {
		reqs = append(reqs, SymbolRequest{
			Symbol:           strings.ToUpper(strings.TrimSpace(s.Symbol)),
			RelativeStrength: s.RelativeStrength,
		})
	}
	return reqs
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
