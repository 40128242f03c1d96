package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/vcp-scanner/internal/backtest"
	"github.com/yourusername/vcp-scanner/internal/database"
	"github.com/yourusername/vcp-scanner/internal/models"
)

// PostgresBacktestRunRepository implements BacktestRunRepository for PostgreSQL
type PostgresBacktestRunRepository struct {
	db database.DBTX
}

// NewPostgresBacktestRunRepository creates a new backtest run repository
func NewPostgresBacktestRunRepository(db database.DBTX) *PostgresBacktestRunRepository {
	return &PostgresBacktestRunRepository{db: db}
}

// SaveRun inserts a backtest run with its headline metrics and the full result payload
func (r *PostgresBacktestRunRepository) SaveRun(ctx context.Context, results *backtest.Results) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to encode backtest run: %w", err)
	}

	query := `
		INSERT INTO backtest_runs (
			id, created_at, start_date, end_date, total_trades,
			total_return_pct, sharpe_ratio, max_drawdown_pct, payload
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`
	m := results.Metrics
	_, err = r.db.Exec(ctx, query,
		results.RunID, results.CreatedAt, nullableDate(m.StartDate), nullableDate(m.EndDate), m.TotalTrades,
		m.TotalReturnPct, m.SharpeRatio, m.MaxDrawdownPct, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save backtest run: %w", err)
	}
	return nil
}

// GetRun retrieves a stored run by ID
func (r *PostgresBacktestRunRepository) GetRun(ctx context.Context, id uuid.UUID) (*backtest.Results, error) {
	var payload []byte
	err := r.db.QueryRow(ctx, `SELECT payload FROM backtest_runs WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("backtest run %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get backtest run: %w", err)
	}

	results := &backtest.Results{}
	if err := json.Unmarshal(payload, results); err != nil {
		return nil, fmt.Errorf("failed to decode backtest run: %w", err)
	}
	return results, nil
}

// ListRuns retrieves the latest run summaries
func (r *PostgresBacktestRunRepository) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
		SELECT id, created_at, total_trades, total_return_pct, sharpe_ratio, max_drawdown_pct
		FROM backtest_runs ORDER BY created_at DESC LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunSummary, 0)
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.TotalTrades, &s.TotalReturnPct, &s.SharpeRatio, &s.MaxDrawdownPct); err != nil {
			return nil, fmt.Errorf("failed to scan backtest run: %w", err)
		}
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

func nullableDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
