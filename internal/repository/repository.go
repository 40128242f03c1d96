package repository

import (
	"context"
	"fmt"

	"github.com/yourusername/vcp-scanner/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	Pattern     PatternRepository
	BacktestRun BacktestRunRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Pattern:     NewPostgresPatternRepository(db),
		BacktestRun: NewPostgresBacktestRunRepository(db),
	}, nil
}

// transactor is implemented by *database.DB; plain DBTX values run statements directly
type transactor interface {
	WithTransaction(ctx context.Context, fn func(database.DBTX) error) error
}

func inTx(ctx context.Context, db database.DBTX, fn func(database.DBTX) error) error {
	if t, ok := db.(transactor); ok {
		return t.WithTransaction(ctx, fn)
	}
	return fn(db)
}
