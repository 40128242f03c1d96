package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execRecorder struct {
	statements []string
	failOn     int
}

func (e *execRecorder) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	e.statements = append(e.statements, sql)
	if e.failOn > 0 && len(e.statements) == e.failOn {
		return pgconn.CommandTag{}, errors.New("permission denied")
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (e *execRecorder) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (e *execRecorder) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func TestEnsureSchemaAppliesAllStatements(t *testing.T) {
	rec := &execRecorder{}
	require.NoError(t, EnsureSchema(context.Background(), rec))
	require.Len(t, rec.statements, len(schema))
	assert.True(t, strings.Contains(rec.statements[0], "vcp_patterns"))
	for _, stmt := range rec.statements {
		assert.Contains(t, stmt, "IF NOT EXISTS")
	}
}

func TestEnsureSchemaStopsOnError(t *testing.T) {
	rec := &execRecorder{failOn: 2}
	err := EnsureSchema(context.Background(), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Len(t, rec.statements, 2)
}
