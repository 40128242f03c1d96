package logger

import (
	"github.com/sirupsen/logrus"

	"github.com/yourusername/vcp-scanner/internal/models"
)

// TradeLogger records the simulated trade trail of a backtest.
type TradeLogger struct {
	*logrus.Entry
}

// NewTradeLogger creates a new trade logger.
func NewTradeLogger(baseLogger *logrus.Logger) *TradeLogger {
	return &TradeLogger{
		Entry: baseLogger.WithField("component", "backtest"),
	}
}

// LogTradeClosed logs a finalized trade.
func (tl *TradeLogger) LogTradeClosed(t models.Trade) {
	tl.WithFields(logrus.Fields{
		"symbol":       t.Symbol,
		"pattern_id":   t.PatternID.String(),
		"entry_date":   t.EntryDate.Format("2006-01-02"),
		"entry_price":  t.EntryPrice,
		"exit_date":    t.ExitDate.Format("2006-01-02"),
		"exit_price":   t.ExitPrice,
		"exit_reason":  string(t.ExitReason),
		"quantity":     t.Quantity,
		"net_pnl":      t.NetPnL,
		"holding_days": t.HoldingDays,
	}).Debug("Trade closed")
}

// LogPatternSkipped logs a pattern that did not produce a trade.
func (tl *TradeLogger) LogPatternSkipped(p models.Pattern, reason string) {
	tl.WithFields(logrus.Fields{
		"symbol":     p.Symbol,
		"pattern_id": p.ID.String(),
		"reason":     reason,
	}).Debug("Pattern skipped")
}

// LogEviction logs a position closed early by the concurrency cap.
func (tl *TradeLogger) LogEviction(symbol string, evicted, incoming models.Trade) {
	tl.WithFields(logrus.Fields{
		"symbol":           symbol,
		"evicted_pattern":  evicted.PatternID.String(),
		"incoming_pattern": incoming.PatternID.String(),
		"exit_date":        incoming.EntryDate.Format("2006-01-02"),
	}).Info("Oldest position evicted")
}

// LogRunSummary logs the portfolio level result of a run.
func (tl *TradeLogger) LogRunSummary(runID string, trades int, totalReturnPct, sharpe, maxDrawdownPct float64) {
	tl.WithFields(logrus.Fields{
		"run_id":           runID,
		"trades":           trades,
		"total_return_pct": totalReturnPct,
		"sharpe_ratio":     sharpe,
		"max_drawdown_pct": maxDrawdownPct,
	}).Info("Backtest run completed")
}
