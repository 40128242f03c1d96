package backtest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yourusername/vcp-scanner/internal/models"
)

// GenerateConsoleReport formats a run for terminal output
func GenerateConsoleReport(r *Results) string {
	m := r.Metrics
	var builder strings.Builder
	builder.WriteString("Backtest Report\n")
	builder.WriteString("================\n")
	builder.WriteString(fmt.Sprintf("Run ID: %s\n", r.RunID))
	if m.TotalTrades == 0 {
		builder.WriteString("No trades were generated.\n")
	} else {
		builder.WriteString(fmt.Sprintf("Period: %s to %s (%.2f years)\n",
			m.StartDate.Format("2006-01-02"), m.EndDate.Format("2006-01-02"), m.Years))
		builder.WriteString(fmt.Sprintf("Trades: %d (won %d, lost %d)\n", m.TotalTrades, m.WinningTrades, m.LosingTrades))
		builder.WriteString(fmt.Sprintf("Capital: %.2f -> %.2f\n", m.InitialCapital, m.FinalCapital))
		builder.WriteString(fmt.Sprintf("Total Return: %.2f%%\n", m.TotalReturnPct))
		builder.WriteString(fmt.Sprintf("Annualized Return: %.2f%%\n", m.AnnualizedReturnPct))
		builder.WriteString(fmt.Sprintf("Volatility: %.2f%%\n", m.VolatilityPct))
		builder.WriteString(fmt.Sprintf("Sharpe Ratio: %.2f\n", m.SharpeRatio))
		builder.WriteString(fmt.Sprintf("Sortino Ratio: %.2f\n", m.SortinoRatio))
		builder.WriteString(fmt.Sprintf("Max Drawdown: %.2f%%\n", m.MaxDrawdownPct))
		builder.WriteString(fmt.Sprintf("Calmar Ratio: %.2f\n", m.CalmarRatio))
		builder.WriteString(fmt.Sprintf("Win Rate: %.2f%%\n", m.WinRatePct))
		builder.WriteString(fmt.Sprintf("Profit Factor: %.2f\n", m.ProfitFactor))
		builder.WriteString(fmt.Sprintf("VaR 95%%: %.2f%%  CVaR 95%%: %.2f%%\n", m.VaR95Pct, m.CVaR95Pct))
		builder.WriteString(fmt.Sprintf("Alpha: %.2f%%\n", m.AlphaPct))
		builder.WriteString(fmt.Sprintf("Avg Holding: %.1f days\n", m.AvgHoldingDays))

		reasons := make([]string, 0, len(m.ExitReasons))
		for reason := range m.ExitReasons {
			reasons = append(reasons, string(reason))
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			builder.WriteString(fmt.Sprintf("  %-14s %d\n", reason, m.ExitReasons[models.ExitReason(reason)]))
		}
	}

	if len(r.SymbolStats) > 0 {
		builder.WriteString("\nPer Symbol\n")
		builder.WriteString("----------\n")
		for _, s := range r.SymbolStats {
			builder.WriteString(fmt.Sprintf("%-12s trades=%-4d win=%6.2f%% net=%12.2f avg=%6.2f%%\n",
				s.Symbol, s.Trades, s.WinRatePct, s.NetPnL, s.AvgReturnPct))
		}
	}

	if len(r.FailedSymbols) > 0 {
		builder.WriteString("\nFailed Symbols\n")
		builder.WriteString("--------------\n")
		for _, f := range r.FailedSymbols {
			builder.WriteString(fmt.Sprintf("%-12s %s\n", f.Symbol, f.Reason))
		}
	}
	return builder.String()
}
