package backtest

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/vcp-scanner/internal/logger"
	"github.com/yourusername/vcp-scanner/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Simulator turns detected patterns into simulated long trades
type Simulator struct {
	config   BacktestConfig
	logger   *logrus.Logger
	tradeLog *logger.TradeLogger
}

// SymbolInput is one symbol's bars and the patterns detected on them
type SymbolInput struct {
	Series   *models.Series
	Patterns []models.Pattern
}

// NewSimulator creates a simulator after validating the config
func NewSimulator(cfg BacktestConfig, log *logrus.Logger) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.New()
	}
	return &Simulator{
		config:   cfg,
		logger:   log,
		tradeLog: logger.NewTradeLogger(log),
	}, nil
}

// Config returns the backtest configuration
func (s *Simulator) Config() BacktestConfig {
	return s.config
}

// Simulate replays one symbol's patterns in base-end order. Every returned trade is closed.
func (s *Simulator) Simulate(series *models.Series, patterns []models.Pattern) []models.Trade {
	trades := make([]models.Trade, 0)
	if series.Len() == 0 || len(patterns) == 0 {
		return trades
	}

	ordered := make([]models.Pattern, len(patterns))
	copy(ordered, patterns)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].BaseEndDate.Equal(ordered[j].BaseEndDate) {
			return ordered[i].BaseEndDate.Before(ordered[j].BaseEndDate)
		}
		return ordered[i].BaseStartDate.Before(ordered[j].BaseStartDate)
	})

	bars := series.Bars()
	var open []position

	for _, p := range ordered {
		if reason := s.ineligible(p); reason != "" {
			s.tradeLog.LogPatternSkipped(p, reason)
			continue
		}

		entryIdx, ok := series.IndexAfter(p.BaseEndDate)
		if !ok {
			s.tradeLog.LogPatternSkipped(p, "no bar after base end")
			continue
		}
		entryBar := bars[entryIdx]
		if !s.config.inWindow(entryBar.Date) {
			s.tradeLog.LogPatternSkipped(p, "entry outside analysis window")
			continue
		}

		entry := decimal.NewFromFloat(entryBar.Open)
		qty := s.quantity(entry)
		if qty < 1 {
			s.tradeLog.LogPatternSkipped(p, "position size below one share")
			continue
		}

		open = releaseClosed(open, trades, entryIdx)
		if overlapsOpen(open, p) {
			s.tradeLog.LogPatternSkipped(p, "base already traded by open position")
			continue
		}

		trade := newTrade(series.Symbol, p, entryIdx, entryBar, qty)
		if len(open) >= s.config.MaxConcurrentPositions {
			oldest := open[0].trade
			open = open[1:]
			s.tradeLog.LogEviction(series.Symbol, trades[oldest], trade)
			trades[oldest] = s.finalize(trades[oldest], entryIdx, entryBar.Date, entryBar.Open, models.ExitTimeLimit)
		}

		exitIdx, exitPrice, reason := s.scanExit(bars, entryIdx, entry)
		trade = s.finalize(trade, exitIdx, bars[exitIdx].Date, exitPrice, reason)
		trades = append(trades, trade)
		open = append(open, position{trade: len(trades) - 1, baseStart: p.BaseStartIndex, baseEnd: p.BaseEndIndex})
	}

	for _, t := range trades {
		s.tradeLog.LogTradeClosed(t)
	}
	return trades
}

func (s *Simulator) ineligible(p models.Pattern) string {
	switch {
	case p.QualityScore < s.config.MinQuality:
		return "quality below minimum"
	case int(p.Stage) < s.config.MinStage:
		return "stage below minimum"
	case s.config.RequireSetupComplete && !p.SetupComplete:
		return "setup incomplete"
	}
	return ""
}

// quantity is floor(capital * size% / entry)
func (s *Simulator) quantity(entry decimal.Decimal) int64 {
	if !entry.IsPositive() {
		return 0
	}
	budget := decimal.NewFromFloat(s.config.InitialCapital).
		Mul(decimal.NewFromFloat(s.config.PositionSizePct)).
		Div(hundred)
	return budget.Div(entry).Floor().IntPart()
}

// position is an open trade and the bar range of the base it was entered from
type position struct {
	trade              int
	baseStart, baseEnd int
}

// releaseClosed drops open positions whose exit bar precedes idx
func releaseClosed(open []position, trades []models.Trade, idx int) []position {
	kept := open[:0]
	for _, pos := range open {
		if trades[pos.trade].ExitIndex >= idx {
			kept = append(kept, pos)
		}
	}
	return kept
}

// overlapsOpen reports whether p's base shares bars with the base of an open position
func overlapsOpen(open []position, p models.Pattern) bool {
	for _, pos := range open {
		if p.BaseStartIndex <= pos.baseEnd && pos.baseStart <= p.BaseEndIndex {
			return true
		}
	}
	return false
}

// scanExit walks forward from the entry bar. The stop is tested before the target on each bar.
func (s *Simulator) scanExit(bars []models.Bar, entryIdx int, entry decimal.Decimal) (int, float64, models.ExitReason) {
	fixedStop := pctBelow(entry, s.config.StopLossPct)
	target := pctAbove(entry, s.config.ProfitTargetPct).InexactFloat64()
	highest := entry.InexactFloat64()

	last := entryIdx + s.config.MaxHoldDays - 1
	if last > len(bars)-1 {
		last = len(bars) - 1
	}

	for i := entryIdx; i <= last; i++ {
		b := bars[i]
		if b.High > highest {
			highest = b.High
		}

		stop := fixedStop
		if s.config.TrailingStopPct > 0 {
			if trailing := pctBelow(decimal.NewFromFloat(highest), s.config.TrailingStopPct); trailing.GreaterThan(stop) {
				stop = trailing
			}
		}

		if stopPx := stop.InexactFloat64(); b.Low <= stopPx {
			return i, stopPx, models.ExitStopLoss
		}
		if b.High >= target {
			return i, target, models.ExitProfitTarget
		}
	}

	return last, bars[last].Close, models.ExitTimeLimit
}

func pctBelow(price decimal.Decimal, pct float64) decimal.Decimal {
	return price.Mul(hundred.Sub(decimal.NewFromFloat(pct))).Div(hundred)
}

func pctAbove(price decimal.Decimal, pct float64) decimal.Decimal {
	return price.Mul(hundred.Add(decimal.NewFromFloat(pct))).Div(hundred)
}

func newTrade(symbol string, p models.Pattern, entryIdx int, entryBar models.Bar, qty int64) models.Trade {
	return models.Trade{
		Symbol:                symbol,
		PatternID:             p.ID,
		EntryIndex:            entryIdx,
		EntryDate:             entryBar.Date,
		EntryPrice:            entryBar.Open,
		Quantity:              qty,
		QualityScore:          p.QualityScore,
		ContractionCount:      p.ContractionCount(),
		VolatilityCompression: p.VolatilityCompression,
		Stage:                 p.Stage,
	}
}

// finalize books the exit and computes P&L in decimal
func (s *Simulator) finalize(t models.Trade, exitIdx int, exitDate time.Time, exitPrice float64, reason models.ExitReason) models.Trade {
	entry := decimal.NewFromFloat(t.EntryPrice)
	exit := decimal.NewFromFloat(exitPrice)
	qty := decimal.NewFromInt(t.Quantity)

	gross := exit.Sub(entry).Mul(qty)
	commission := decimal.NewFromFloat(s.config.CommissionRate).Mul(entry.Add(exit)).Mul(qty)
	net := gross.Sub(commission)

	t.ExitIndex = exitIdx
	t.ExitDate = exitDate
	t.ExitPrice = exitPrice
	t.ExitReason = reason
	t.GrossPnL = gross.InexactFloat64()
	t.Commission = commission.InexactFloat64()
	t.NetPnL = net.InexactFloat64()
	t.ReturnPct = exit.Div(entry).Sub(decimal.NewFromInt(1)).Mul(hundred).InexactFloat64()
	t.HoldingDays = int(exitDate.Sub(t.EntryDate).Hours() / 24)
	return t
}

// Run simulates each symbol in turn and aggregates the portfolio result
func (s *Simulator) Run(inputs []SymbolInput, failed []models.FailedSymbol) *Results {
	var trades []models.Trade
	for _, in := range inputs {
		trades = append(trades, s.Simulate(in.Series, in.Patterns)...)
	}
	return s.BuildResults(trades, failed)
}

// BuildResults computes the equity curve, portfolio metrics and per-symbol stats over closed trades
func (s *Simulator) BuildResults(trades []models.Trade, failed []models.FailedSymbol) *Results {
	ordered := make([]models.Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].ExitDate.Equal(ordered[j].ExitDate) {
			return ordered[i].ExitDate.Before(ordered[j].ExitDate)
		}
		return ordered[i].Symbol < ordered[j].Symbol
	})

	if failed == nil {
		failed = []models.FailedSymbol{}
	}

	results := &Results{
		RunID:         uuid.New(),
		CreatedAt:     time.Now().UTC(),
		Config:        s.config,
		Trades:        ordered,
		EquityCurve:   EquityCurve{},
		SymbolStats:   calculateSymbolStats(ordered),
		FailedSymbols: failed,
	}

	if len(ordered) > 0 {
		state := newPortfolioState(s.config.InitialCapital, earliestEntry(ordered))
		for _, t := range ordered {
			state.apply(t)
		}
		results.EquityCurve = state.equityCurve
	}
	results.Metrics = CalculateMetrics(ordered, results.EquityCurve, s.config)

	s.tradeLog.LogRunSummary(results.RunID.String(), len(ordered),
		results.Metrics.TotalReturnPct, results.Metrics.SharpeRatio, results.Metrics.MaxDrawdownPct)
	return results
}

func earliestEntry(trades []models.Trade) time.Time {
	earliest := trades[0].EntryDate
	for _, t := range trades[1:] {
		if t.EntryDate.Before(earliest) {
			earliest = t.EntryDate
		}
	}
	return earliest
}
