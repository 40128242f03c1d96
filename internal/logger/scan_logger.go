package logger

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/vcp-scanner/internal/models"
)

// ScanLogger provides dedicated logging for per-symbol scan events.
type ScanLogger struct {
	*logrus.Entry
}

// NewScanLogger creates a new scan logger.
func NewScanLogger(baseLogger *logrus.Logger) *ScanLogger {
	return &ScanLogger{
		Entry: baseLogger.WithField("component", "scanner"),
	}
}

// LogSymbolStart logs the start of a symbol scan.
func (sl *ScanLogger) LogSymbolStart(symbol string, start, end time.Time) {
	sl.WithFields(logrus.Fields{
		"symbol": symbol,
		"start":  start.Format("2006-01-02"),
		"end":    end.Format("2006-01-02"),
	}).Debug("Symbol scan started")
}

// LogFetchRetry logs a retried bar fetch.
func (sl *ScanLogger) LogFetchRetry(symbol string, attempt int, backoff time.Duration, err error) {
	sl.WithFields(logrus.Fields{
		"symbol":     symbol,
		"attempt":    attempt,
		"backoff_ms": backoff.Milliseconds(),
		"error":      err.Error(),
	}).Warn("Bar fetch failed, retrying")
}

// LogPatternDetected logs a detected pattern.
func (sl *ScanLogger) LogPatternDetected(p models.Pattern) {
	sl.WithFields(logrus.Fields{
		"symbol":         p.Symbol,
		"pattern_id":     p.ID.String(),
		"base_end":       p.BaseEndDate.Format("2006-01-02"),
		"contractions":   p.ContractionCount(),
		"quality_score":  p.QualityScore,
		"stage":          int(p.Stage),
		"setup_complete": p.SetupComplete,
	}).Debug("Pattern detected")
}

// LogSymbolComplete logs a finished symbol.
func (sl *ScanLogger) LogSymbolComplete(result models.ScanResult) {
	sl.WithFields(logrus.Fields{
		"symbol":      result.Symbol,
		"bars":        result.BarCount,
		"patterns":    len(result.Patterns),
		"trades":      len(result.Trades),
		"attempts":    result.Attempts,
		"duration_ms": result.Duration.Milliseconds(),
	}).Info("Symbol scan completed")
}

// LogSymbolFailed logs a symbol excluded from the batch.
func (sl *ScanLogger) LogSymbolFailed(symbol string, attempts int, err error) {
	sl.WithFields(logrus.Fields{
		"symbol":   symbol,
		"attempts": attempts,
		"error":    err.Error(),
	}).Error("Symbol scan failed")
}

// LogBatchComplete logs the batch summary.
func (sl *ScanLogger) LogBatchComplete(symbols, failed, patterns int, duration time.Duration) {
	sl.WithFields(logrus.Fields{
		"symbols":     symbols,
		"failed":      failed,
		"patterns":    patterns,
		"duration_ms": duration.Milliseconds(),
	}).Info("Batch scan completed")
}
