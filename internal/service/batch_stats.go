package service

import (
	"fmt"
	"sync"
	"time"
)

// BatchStats tracks counters for one batch run
type BatchStats struct {
	mu           sync.RWMutex
	StartTime    time.Time
	Duration     time.Duration
	TotalSymbols int
	Succeeded    int
	Failed       int
	Patterns     int
	Trades       int
	FetchRetries int
}

// NewBatchStats creates a new stats tracker
func NewBatchStats(total int) *BatchStats {
	return &BatchStats{
		StartTime:    time.Now(),
		TotalSymbols: total,
	}
}

// RecordSuccess counts a completed symbol and its output
func (s *BatchStats) RecordSuccess(patterns, trades int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Succeeded++
	s.Patterns += patterns
	s.Trades += trades
}

// RecordFailure counts a failed symbol
func (s *BatchStats) RecordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Failed++
}

// RecordRetry counts a retried fetch
func (s *BatchStats) RecordRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FetchRetries++
}

// Finish stamps the batch duration
func (s *BatchStats) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Duration = time.Since(s.StartTime)
}

// Snapshot returns a copy safe to read without locking
func (s *BatchStats) Snapshot() BatchSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return BatchSummary{
		StartTime:    s.StartTime,
		Duration:     s.Duration,
		TotalSymbols: s.TotalSymbols,
		Succeeded:    s.Succeeded,
		Failed:       s.Failed,
		Patterns:     s.Patterns,
		Trades:       s.Trades,
		FetchRetries: s.FetchRetries,
	}
}

// BatchSummary is an immutable view of BatchStats
type BatchSummary struct {
	StartTime    time.Time     `json:"start_time"`
	Duration     time.Duration `json:"duration"`
	TotalSymbols int           `json:"total_symbols"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	Patterns     int           `json:"patterns"`
	Trades       int           `json:"trades"`
	FetchRetries int           `json:"fetch_retries"`
}

// String returns a formatted string representation of the summary
func (b BatchSummary) String() string {
	successRate := float64(0)
	if b.TotalSymbols > 0 {
		successRate = float64(b.Succeeded) / float64(b.TotalSymbols) * 100
	}
	return fmt.Sprintf(
		"BatchSummary{Total=%d, Succeeded=%d (%.1f%%), Failed=%d, Patterns=%d, Trades=%d, Retries=%d, Duration=%v}",
		b.TotalSymbols,
		b.Succeeded,
		successRate,
		b.Failed,
		b.Patterns,
		b.Trades,
		b.FetchRetries,
		b.Duration,
	)
}
