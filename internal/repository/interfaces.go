// Package repository persists detected patterns and backtest runs in PostgreSQL.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/vcp-scanner/internal/backtest"
	"github.com/yourusername/vcp-scanner/internal/models"
)

// PatternRepository defines the interface for pattern data access
type PatternRepository interface {
	SavePatterns(ctx context.Context, patterns []models.Pattern) error
	GetBySymbol(ctx context.Context, symbol string, limit int) ([]models.Pattern, error)
	GetLatest(ctx context.Context, limit int) ([]models.Pattern, error)
}

// BacktestRunRepository defines the interface for backtest run data access
type BacktestRunRepository interface {
	SaveRun(ctx context.Context, results *backtest.Results) error
	GetRun(ctx context.Context, id uuid.UUID) (*backtest.Results, error)
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
}

// RunSummary is the indexed headline of a stored backtest run
type RunSummary struct {
	ID             uuid.UUID `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	TotalTrades    int       `json:"total_trades"`
	TotalReturnPct float64   `json:"total_return_pct"`
	SharpeRatio    float64   `json:"sharpe_ratio"`
	MaxDrawdownPct float64   `json:"max_drawdown_pct"`
}
