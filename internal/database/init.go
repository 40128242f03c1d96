package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/vcp-scanner/internal/config"
)

// schema is applied idempotently on startup
var schema = []string{
	`CREATE TABLE IF NOT EXISTS vcp_patterns (
		id              UUID PRIMARY KEY,
		symbol          TEXT NOT NULL,
		base_start_date DATE NOT NULL,
		base_end_date   DATE NOT NULL,
		stage           SMALLINT NOT NULL,
		quality_score   DOUBLE PRECISION NOT NULL,
		setup_complete  BOOLEAN NOT NULL,
		breakout_price  DOUBLE PRECISION NOT NULL,
		stop_loss_price DOUBLE PRECISION NOT NULL,
		payload         JSONB NOT NULL,
		detected_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_vcp_patterns_symbol_end ON vcp_patterns (symbol, base_end_date DESC)`,
	`CREATE TABLE IF NOT EXISTS backtest_runs (
		id               UUID PRIMARY KEY,
		created_at       TIMESTAMPTZ NOT NULL,
		start_date       DATE,
		end_date         DATE,
		total_trades     INTEGER NOT NULL,
		total_return_pct DOUBLE PRECISION NOT NULL,
		sharpe_ratio     DOUBLE PRECISION NOT NULL,
		max_drawdown_pct DOUBLE PRECISION NOT NULL,
		payload          JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_backtest_runs_created ON backtest_runs (created_at DESC)`,
}

// EnsureSchema creates the pattern and backtest tables when missing
func EnsureSchema(ctx context.Context, db DBTX) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Initialize creates a database connection pool and applies the schema
func Initialize(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"host":     cfg.Database.Host,
		"database": cfg.Database.Name,
	}).Info("Database initialized")
	return db, nil
}
