package backtest

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/yourusername/vcp-scanner/internal/models"
)

const (
	daysPerYear      = 365.25
	minYears         = 1.0 / 252.0
	maxProfitFactor  = 999.0
	varConfidenceLvl = 0.95
)

// Metrics represents portfolio performance over closed trades. Percent fields are in percent.
type Metrics struct {
	TotalTrades         int                       `json:"total_trades"`
	WinningTrades       int                       `json:"winning_trades"`
	LosingTrades        int                       `json:"losing_trades"`
	InitialCapital      float64                   `json:"initial_capital"`
	FinalCapital        float64                   `json:"final_capital"`
	NetProfit           float64                   `json:"net_profit"`
	TotalCommission     float64                   `json:"total_commission"`
	TotalReturnPct      float64                   `json:"total_return_pct"`
	AnnualizedReturnPct float64                   `json:"annualized_return_pct"`
	VolatilityPct       float64                   `json:"volatility_pct"`
	SharpeRatio         float64                   `json:"sharpe_ratio"`
	SortinoRatio        float64                   `json:"sortino_ratio"`
	MaxDrawdownPct      float64                   `json:"max_drawdown_pct"`
	CalmarRatio         float64                   `json:"calmar_ratio"`
	WinRatePct          float64                   `json:"win_rate_pct"`
	ProfitFactor        float64                   `json:"profit_factor"`
	AverageWin          float64                   `json:"average_win"`
	AverageLoss         float64                   `json:"average_loss"`
	LargestWin          float64                   `json:"largest_win"`
	LargestLoss         float64                   `json:"largest_loss"`
	Expectancy          float64                   `json:"expectancy"`
	AvgHoldingDays      float64                   `json:"avg_holding_days"`
	VaR95Pct            float64                   `json:"var_95_pct"`
	CVaR95Pct           float64                   `json:"cvar_95_pct"`
	AlphaPct            float64                   `json:"alpha_pct"`
	ExitReasons         map[models.ExitReason]int `json:"exit_reasons"`
	StartDate           time.Time                 `json:"start_date"`
	EndDate             time.Time                 `json:"end_date"`
	Years               float64                   `json:"years"`
}

// SymbolStats summarizes one symbol's closed trades
type SymbolStats struct {
	Symbol       string  `json:"symbol"`
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	WinRatePct   float64 `json:"win_rate_pct"`
	NetPnL       float64 `json:"net_pnl"`
	AvgReturnPct float64 `json:"avg_return_pct"`
	ProfitFactor float64 `json:"profit_factor"`
}

// CalculateMetrics computes portfolio metrics from trades ordered by exit date and their equity curve
func CalculateMetrics(trades []models.Trade, curve EquityCurve, cfg BacktestConfig) Metrics {
	metrics := Metrics{
		InitialCapital: cfg.InitialCapital,
		FinalCapital:   cfg.InitialCapital,
		ExitReasons:    map[models.ExitReason]int{},
	}
	if len(trades) == 0 || len(curve) == 0 {
		return metrics
	}

	metrics.StartDate = curve[0].Time
	metrics.EndDate = curve[len(curve)-1].Time
	metrics.Years = elapsedYears(metrics.StartDate, metrics.EndDate)

	initial := curve[0].Value
	final := curve[len(curve)-1].Value
	metrics.FinalCapital = final
	metrics.NetProfit = final - initial
	if initial > 0 {
		metrics.TotalReturnPct = (final - initial) / initial * 100
		metrics.AnnualizedReturnPct = calculateAnnualizedReturn(initial, final, metrics.Years)
	}

	returns := curve.GetReturns()
	periodsPerYear := float64(len(returns)) / metrics.Years
	metrics.VolatilityPct = curve.GetVolatility() * math.Sqrt(periodsPerYear) * 100
	downsidePct := curve.GetDownsideDeviation() * math.Sqrt(periodsPerYear) * 100
	excess := metrics.AnnualizedReturnPct - cfg.RiskFreeRate*100
	metrics.SharpeRatio = ratio(excess, metrics.VolatilityPct)
	metrics.SortinoRatio = ratio(excess, downsidePct)

	metrics.MaxDrawdownPct = curve.MaxDrawdownPct()
	metrics.CalmarRatio = ratio(metrics.AnnualizedReturnPct, metrics.MaxDrawdownPct)
	metrics.VaR95Pct, metrics.CVaR95Pct = calculateVaR(returns, varConfidenceLvl)
	metrics.AlphaPct = metrics.AnnualizedReturnPct - cfg.BenchmarkReturnPct

	metrics.TotalTrades = len(trades)
	holding := 0
	for _, t := range trades {
		metrics.ExitReasons[t.ExitReason]++
		metrics.TotalCommission += t.Commission
		holding += t.HoldingDays
	}
	metrics.AvgHoldingDays = float64(holding) / float64(len(trades))

	stats := calculateTradeStats(trades)
	metrics.WinningTrades = stats.wins
	metrics.LosingTrades = stats.losses
	metrics.AverageWin = stats.avgWin
	metrics.AverageLoss = stats.avgLoss
	metrics.LargestWin = stats.largestWin
	metrics.LargestLoss = stats.largestLoss
	metrics.WinRatePct = float64(stats.wins) / float64(len(trades)) * 100
	metrics.ProfitFactor = calculateProfitFactor(trades)
	metrics.Expectancy = metrics.NetProfit / float64(len(trades))

	return metrics.finite()
}

// ToJSON exports metrics to JSON
func (m Metrics) ToJSON() string {
	data, _ := json.Marshal(m)
	return string(data)
}

// finite replaces any NaN or Inf with zero so results always serialize
func (m Metrics) finite() Metrics {
	for _, f := range []*float64{
		&m.TotalReturnPct, &m.AnnualizedReturnPct, &m.VolatilityPct, &m.SharpeRatio, &m.SortinoRatio,
		&m.MaxDrawdownPct, &m.CalmarRatio, &m.WinRatePct, &m.ProfitFactor, &m.VaR95Pct, &m.CVaR95Pct,
		&m.AlphaPct, &m.Expectancy, &m.AverageWin, &m.AverageLoss,
	} {
		if math.IsNaN(*f) || math.IsInf(*f, 0) {
			*f = 0
		}
	}
	return m
}

func elapsedYears(start, end time.Time) float64 {
	years := end.Sub(start).Hours() / 24 / daysPerYear
	if years < minYears {
		return minYears
	}
	return years
}

func calculateAnnualizedReturn(initial, final, years float64) float64 {
	if initial <= 0 || years <= 0 {
		return 0
	}
	if final <= 0 {
		return -100
	}
	return (math.Pow(final/initial, 1.0/years) - 1.0) * 100
}

func ratio(num, den float64) float64 {
	den = math.Abs(den)
	if den == 0 {
		return 0
	}
	return num / den
}

// calculateVaR returns the historical VaR at level and the mean of returns at or below it, both in percent
func calculateVaR(returns []float64, level float64) (float64, float64) {
	if len(returns) == 0 {
		return 0, 0
	}
	sorted := append([]float64{}, returns...)
	sort.Float64s(sorted)

	index := int(math.Floor((1.0 - level) * float64(len(sorted))))
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	threshold := sorted[index]

	tail := 0.0
	count := 0
	for _, r := range sorted {
		if r > threshold {
			break
		}
		tail += r
		count++
	}
	return threshold * 100, tail / float64(count) * 100
}

type tradeStats struct {
	wins        int
	losses      int
	avgWin      float64
	avgLoss     float64
	largestWin  float64
	largestLoss float64
}

func calculateTradeStats(trades []models.Trade) tradeStats {
	var s tradeStats
	winSum := 0.0
	lossSum := 0.0
	for _, t := range trades {
		pl := t.NetPnL
		if pl > 0 {
			s.wins++
			winSum += pl
			if pl > s.largestWin {
				s.largestWin = pl
			}
		} else if pl < 0 {
			s.losses++
			lossSum += pl
			if pl < s.largestLoss {
				s.largestLoss = pl
			}
		}
	}
	if s.wins > 0 {
		s.avgWin = winSum / float64(s.wins)
	}
	if s.losses > 0 {
		s.avgLoss = lossSum / float64(s.losses)
	}
	return s
}

func calculateProfitFactor(trades []models.Trade) float64 {
	grossProfit := 0.0
	grossLoss := 0.0
	for _, t := range trades {
		if t.NetPnL > 0 {
			grossProfit += t.NetPnL
		} else {
			grossLoss += math.Abs(t.NetPnL)
		}
	}
	if grossLoss == 0 {
		if grossProfit > 0 {
			return maxProfitFactor
		}
		return 0
	}
	return math.Min(grossProfit/grossLoss, maxProfitFactor)
}

// calculateSymbolStats groups trades by symbol. Symbols without trades never appear.
func calculateSymbolStats(trades []models.Trade) []SymbolStats {
	bySymbol := make(map[string][]models.Trade)
	for _, t := range trades {
		bySymbol[t.Symbol] = append(bySymbol[t.Symbol], t)
	}

	out := make([]SymbolStats, 0, len(bySymbol))
	for symbol, ts := range bySymbol {
		st := SymbolStats{Symbol: symbol, Trades: len(ts)}
		returns := 0.0
		for _, t := range ts {
			if t.IsWin() {
				st.Wins++
			}
			st.NetPnL += t.NetPnL
			returns += t.ReturnPct
		}
		st.WinRatePct = float64(st.Wins) / float64(st.Trades) * 100
		st.AvgReturnPct = returns / float64(st.Trades)
		st.ProfitFactor = calculateProfitFactor(ts)
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	return mean / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := average(values)
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}
