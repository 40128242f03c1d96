package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/vcp-scanner/internal/database"
	"github.com/yourusername/vcp-scanner/internal/models"
)

const errScanPattern = "failed to scan pattern: %w"

// PostgresPatternRepository implements PatternRepository for PostgreSQL
type PostgresPatternRepository struct {
	db database.DBTX
}

// NewPostgresPatternRepository creates a new pattern repository
func NewPostgresPatternRepository(db database.DBTX) *PostgresPatternRepository {
	return &PostgresPatternRepository{db: db}
}

// SavePatterns upserts patterns by ID. Re-detecting the same base on a later run replaces the row.
func (r *PostgresPatternRepository) SavePatterns(ctx context.Context, patterns []models.Pattern) error {
	if len(patterns) == 0 {
		return nil
	}

	query := `
		INSERT INTO vcp_patterns (
			id, symbol, base_start_date, base_end_date, stage, quality_score,
			setup_complete, breakout_price, stop_loss_price, payload
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
			stage = EXCLUDED.stage,
			quality_score = EXCLUDED.quality_score,
			setup_complete = EXCLUDED.setup_complete,
			breakout_price = EXCLUDED.breakout_price,
			stop_loss_price = EXCLUDED.stop_loss_price,
			payload = EXCLUDED.payload,
			detected_at = NOW()
	`

	return inTx(ctx, r.db, func(tx database.DBTX) error {
		for _, p := range patterns {
			payload, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("failed to encode pattern %s: %w", p.ID, err)
			}
			if _, err := tx.Exec(ctx, query,
				p.ID, p.Symbol, p.BaseStartDate, p.BaseEndDate, int(p.Stage), p.QualityScore,
				p.SetupComplete, p.BreakoutPrice, p.StopLossPrice, payload,
			); err != nil {
				return fmt.Errorf("failed to save pattern %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

// GetBySymbol retrieves the most recent patterns for a symbol
func (r *PostgresPatternRepository) GetBySymbol(ctx context.Context, symbol string, limit int) ([]models.Pattern, error) {
	query := `SELECT payload FROM vcp_patterns WHERE symbol = $1 ORDER BY base_end_date DESC LIMIT $2`
	rows, err := r.db.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns for %s: %w", symbol, err)
	}
	return scanPatterns(rows)
}

// GetLatest retrieves the most recently ending patterns across all symbols
func (r *PostgresPatternRepository) GetLatest(ctx context.Context, limit int) ([]models.Pattern, error) {
	query := `SELECT payload FROM vcp_patterns ORDER BY base_end_date DESC, quality_score DESC LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest patterns: %w", err)
	}
	return scanPatterns(rows)
}

func scanPatterns(rows pgx.Rows) ([]models.Pattern, error) {
	defer rows.Close()

	patterns := make([]models.Pattern, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf(errScanPattern, err)
		}
		var p models.Pattern
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf(errScanPattern, err)
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}
