package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yourusername/vcp-scanner/internal/models"
)

const sqliteSourceName = "sqlite"

// SQLiteProvider reads bars from a local SQLite store
type SQLiteProvider struct {
	db         *sql.DB
	maxGapDays int
}

// NewSQLiteProvider opens the database at path and creates the bars table if missing
func NewSQLiteProvider(path string, maxGapDays int) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createBarsSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLiteProvider{db: db, maxGapDays: maxGapDays}, nil
}

func createBarsSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS daily_bars (
			symbol TEXT    NOT NULL,
			date   TEXT    NOT NULL,
			open   REAL    NOT NULL,
			high   REAL    NOT NULL,
			low    REAL    NOT NULL,
			close  REAL    NOT NULL,
			volume REAL    NOT NULL DEFAULT 0,
			PRIMARY KEY (symbol, date)
		);
	`)
	return err
}

// Name returns the provider name
func (p *SQLiteProvider) Name() string {
	return sqliteSourceName
}

// GetBars reads bars for symbol ordered by date
func (p *SQLiteProvider) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	to := "9999-12-31"
	if !end.IsZero() {
		to = end.Format(dateLayout)
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume
		FROM daily_bars
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, strings.ToUpper(symbol), start.Format(dateLayout), to)
	if err != nil {
		return nil, NewDataSourceError(sqliteSourceName, ErrCodeUnknown, "query daily_bars", err)
	}
	defer rows.Close()

	var bars []models.Bar
	for rows.Next() {
		var b models.Bar
		var date string
		if err := rows.Scan(&date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, NewDataSourceError(sqliteSourceName, ErrCodeInvalidData, "scan daily_bars", err)
		}
		b.Date, err = time.Parse(dateLayout, date)
		if err != nil {
			return nil, NewDataSourceError(sqliteSourceName, ErrCodeInvalidData, "bad date "+date, err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, NewDataSourceError(sqliteSourceName, ErrCodeUnknown, "iterate daily_bars", err)
	}

	return finalizeBars(sqliteSourceName, symbol, bars, start, end, p.maxGapDays)
}

// SaveBars upserts bars for symbol in one transaction
func (p *SQLiteProvider) SaveBars(ctx context.Context, symbol string, bars []models.Bar) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO daily_bars (symbol, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	sym := strings.ToUpper(symbol)
	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, sym, b.Date.Format(dateLayout), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("sqlite insert %s %s: %w", sym, b.Date.Format(dateLayout), err)
		}
	}
	return tx.Commit()
}

// Close closes the database
func (p *SQLiteProvider) Close() error {
	return p.db.Close()
}
