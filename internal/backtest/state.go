package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourusername/vcp-scanner/internal/models"
)

// portfolioState steps capital through closed trades in exit order
type portfolioState struct {
	capital     decimal.Decimal
	peak        decimal.Decimal
	trades      int
	equityCurve EquityCurve
}

func newPortfolioState(initialCapital float64, start time.Time) *portfolioState {
	capital := decimal.NewFromFloat(initialCapital)
	state := &portfolioState{
		capital: capital,
		peak:    capital,
	}
	state.recordEquityPoint(start, decimal.Zero)
	return state
}

// apply books a closed trade's net P&L and records the resulting equity point
func (s *portfolioState) apply(trade models.Trade) {
	pnl := decimal.NewFromFloat(trade.NetPnL)
	s.capital = s.capital.Add(pnl)
	if s.capital.GreaterThan(s.peak) {
		s.peak = s.capital
	}
	s.trades++
	s.recordEquityPoint(trade.ExitDate, pnl)
}

// drawdownPct returns the current peak-to-trough decline in percent
func (s *portfolioState) drawdownPct() float64 {
	if !s.peak.IsPositive() {
		return 0
	}
	dd := s.peak.Sub(s.capital).Div(s.peak).Mul(decimal.NewFromInt(100))
	if dd.IsNegative() {
		return 0
	}
	return dd.InexactFloat64()
}

func (s *portfolioState) recordEquityPoint(t time.Time, pnl decimal.Decimal) {
	s.equityCurve = append(s.equityCurve, EquityPoint{
		Time:        t,
		Value:       s.capital.InexactFloat64(),
		DrawdownPct: s.drawdownPct(),
		PnL:         pnl.InexactFloat64(),
	})
}
