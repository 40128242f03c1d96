package backtest

import (
	"time"

	"github.com/yourusername/vcp-scanner/internal/config"
	"github.com/yourusername/vcp-scanner/internal/models"
)

// BacktestConfig holds entry filters, exit thresholds and sizing. Percent fields are in percent.
type BacktestConfig struct {
	StartDate              time.Time `json:"start_date,omitempty"`
	EndDate                time.Time `json:"end_date,omitempty"`
	InitialCapital         float64   `json:"initial_capital"`
	MinQuality             float64   `json:"min_quality"`
	MinStage               int       `json:"min_stage"`
	RequireSetupComplete   bool      `json:"require_setup_complete"`
	StopLossPct            float64   `json:"stop_loss_pct"`
	TrailingStopPct        float64   `json:"trailing_stop_pct"`
	ProfitTargetPct        float64   `json:"profit_target_pct"`
	MaxHoldDays            int       `json:"max_hold_days"`
	PositionSizePct        float64   `json:"position_size_pct"`
	MaxConcurrentPositions int       `json:"max_concurrent_positions"`
	CommissionRate         float64   `json:"commission_rate"`
	RiskFreeRate           float64   `json:"risk_free_rate"`
	BenchmarkReturnPct     float64   `json:"benchmark_return_pct"`
	OutputPath             string    `json:"-"`
}

// DefaultConfig returns the standard backtest settings
func DefaultConfig() BacktestConfig {
	return BacktestConfig{
		InitialCapital:         100000,
		MinQuality:             60,
		MinStage:               1,
		StopLossPct:            8,
		ProfitTargetPct:        20,
		MaxHoldDays:            60,
		PositionSizePct:        10,
		MaxConcurrentPositions: 1,
		CommissionRate:         0.001,
		RiskFreeRate:           0.06,
	}
}

// FromConfig converts app config to backtest config
func FromConfig(cfg *config.BacktestConfig) (BacktestConfig, error) {
	if cfg == nil {
		return BacktestConfig{}, models.NewConfigurationError("backtest", "backtest config is required")
	}

	bt := BacktestConfig{
		InitialCapital:         cfg.InitialCapital,
		MinQuality:             cfg.MinQuality,
		MinStage:               cfg.MinStage,
		RequireSetupComplete:   cfg.RequireSetupComplete,
		StopLossPct:            cfg.StopLossPct,
		TrailingStopPct:        cfg.TrailingStopPct,
		ProfitTargetPct:        cfg.ProfitTargetPct,
		MaxHoldDays:            cfg.MaxHoldDays,
		PositionSizePct:        cfg.PositionSizePct,
		MaxConcurrentPositions: cfg.MaxConcurrentPositions,
		CommissionRate:         cfg.CommissionRate,
		RiskFreeRate:           cfg.RiskFreeRate,
		BenchmarkReturnPct:     cfg.BenchmarkReturn,
		OutputPath:             cfg.OutputPath,
	}

	if cfg.StartDate != "" {
		start, err := time.Parse("2006-01-02", cfg.StartDate)
		if err != nil {
			return BacktestConfig{}, models.NewConfigurationError("backtest.start_date", err.Error())
		}
		bt.StartDate = start
	}
	if cfg.EndDate != "" {
		end, err := time.Parse("2006-01-02", cfg.EndDate)
		if err != nil {
			return BacktestConfig{}, models.NewConfigurationError("backtest.end_date", err.Error())
		}
		bt.EndDate = end
	}

	return bt, bt.Validate()
}

// Validate validates backtest config parameters
func (b BacktestConfig) Validate() error {
	if !b.StartDate.IsZero() && !b.EndDate.IsZero() && !b.StartDate.Before(b.EndDate) {
		return models.NewConfigurationError("backtest.start_date", "must be before end date")
	}
	if b.InitialCapital <= 0 {
		return models.NewConfigurationError("backtest.initial_capital", "must be positive")
	}
	if b.MinQuality < 0 || b.MinQuality > 100 {
		return models.NewConfigurationError("backtest.min_quality", "must be between 0 and 100")
	}
	if b.MinStage < 0 || b.MinStage > 4 {
		return models.NewConfigurationError("backtest.min_stage", "must be between 0 and 4")
	}
	if b.StopLossPct <= 0 || b.StopLossPct >= 100 {
		return models.NewConfigurationError("backtest.stop_loss_pct", "must be between 0 and 100")
	}
	if b.TrailingStopPct < 0 || b.TrailingStopPct >= 100 {
		return models.NewConfigurationError("backtest.trailing_stop_pct", "must be between 0 and 100")
	}
	if b.ProfitTargetPct <= 0 {
		return models.NewConfigurationError("backtest.profit_target_pct", "must be positive")
	}
	if b.MaxHoldDays <= 0 {
		return models.NewConfigurationError("backtest.max_hold_days", "must be positive")
	}
	if b.PositionSizePct <= 0 || b.PositionSizePct > 100 {
		return models.NewConfigurationError("backtest.position_size_pct", "must be within (0,100]")
	}
	if b.MaxConcurrentPositions <= 0 {
		return models.NewConfigurationError("backtest.max_concurrent_positions", "must be positive")
	}
	if b.CommissionRate < 0 || b.CommissionRate > 0.1 {
		return models.NewConfigurationError("backtest.commission_rate", "must be between 0 and 0.1")
	}
	if b.RiskFreeRate < 0 || b.RiskFreeRate > 1 {
		return models.NewConfigurationError("backtest.risk_free_rate", "must be between 0 and 1")
	}
	return nil
}

// inWindow reports whether t falls inside the analysis window; an unset bound is open
func (b BacktestConfig) inWindow(t time.Time) bool {
	if !b.StartDate.IsZero() && t.Before(b.StartDate) {
		return false
	}
	if !b.EndDate.IsZero() && t.After(b.EndDate) {
		return false
	}
	return true
}
