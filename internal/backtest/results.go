package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/vcp-scanner/internal/models"
)

// Results is the output of one backtest run
type Results struct {
	RunID         uuid.UUID             `json:"run_id"`
	CreatedAt     time.Time             `json:"created_at"`
	Config        BacktestConfig        `json:"config"`
	Trades        []models.Trade        `json:"trades"`
	EquityCurve   EquityCurve           `json:"equity_curve"`
	Metrics       Metrics               `json:"metrics"`
	SymbolStats   []SymbolStats         `json:"symbol_stats"`
	FailedSymbols []models.FailedSymbol `json:"failed_symbols"`
}

// ToJSON exports the full result
func (r *Results) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ExportJSON writes results, trades and the equity curve under dir, named by run ID
func ExportJSON(r *Results, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := r.ToJSON()
	if err != nil {
		return "", fmt.Errorf("failed to marshal results: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("backtest_%s.json", r.RunID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write results: %w", err)
	}

	if err := exportTradesCSV(r.Trades, filepath.Join(dir, fmt.Sprintf("trades_%s.csv", r.RunID))); err != nil {
		return "", err
	}
	equityPath := filepath.Join(dir, fmt.Sprintf("equity_%s.csv", r.RunID))
	if err := os.WriteFile(equityPath, []byte(r.EquityCurve.ToCSV()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write equity curve: %w", err)
	}
	return path, nil
}

func exportTradesCSV(trades []models.Trade, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trades file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	header := []string{
		"symbol", "pattern_id", "entry_date", "entry_price", "exit_date", "exit_price", "exit_reason",
		"quantity", "gross_pnl", "commission", "net_pnl", "return_pct", "holding_days",
		"quality_score", "contraction_count", "volatility_compression", "stage",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, t := range trades {
		row := []string{
			t.Symbol,
			t.PatternID.String(),
			t.EntryDate.Format("2006-01-02"),
			formatFloat(t.EntryPrice),
			t.ExitDate.Format("2006-01-02"),
			formatFloat(t.ExitPrice),
			string(t.ExitReason),
			strconv.FormatInt(t.Quantity, 10),
			formatFloat(t.GrossPnL),
			formatFloat(t.Commission),
			formatFloat(t.NetPnL),
			formatFloat(t.ReturnPct),
			strconv.Itoa(t.HoldingDays),
			formatFloat(t.QualityScore),
			strconv.Itoa(t.ContractionCount),
			formatFloat(t.VolatilityCompression),
			strconv.Itoa(int(t.Stage)),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
