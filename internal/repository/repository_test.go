package repository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/vcp-scanner/internal/backtest"
	"github.com/yourusername/vcp-scanner/internal/config"
	"github.com/yourusername/vcp-scanner/internal/database"
	"github.com/yourusername/vcp-scanner/internal/models"
)

const skipIntegrationMsg = "Integration test - set VCP_TEST_DB_HOST to run against PostgreSQL"

type execCall struct {
	sql  string
	args []any
}

// fakeDB records statements and replays canned rows
type fakeDB struct {
	execs   []execCall
	execErr error
	rows    [][]any
	row     []any
	rowErr  error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return &fakeRows{data: f.rows, pos: -1}, nil
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return fakeRow{values: f.row, err: f.rowErr}
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.values)
}

type fakeRows struct {
	data [][]any
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.data[r.pos], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	return assign(dest, r.data[r.pos])
}

func assign(dest, values []any) error {
	if len(dest) != len(values) {
		return errors.New("column count mismatch")
	}
	for i, v := range values {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

func samplePattern(symbol string, end time.Time) models.Pattern {
	start := end.AddDate(0, 0, -40)
	return models.Pattern{
		ID:            models.PatternID(symbol, start, end),
		Symbol:        symbol,
		BaseStartDate: start,
		BaseEndDate:   end,
		Stage:         models.StageAdvancing,
		QualityScore:  72.5,
		SetupComplete: true,
		BreakoutPrice: 104.2,
		StopLossPrice: 88.1,
		Contractions:  []models.Contraction{{StartIndex: 1, EndIndex: 9, RangePct: 12, Valid: true}},
	}
}

func TestSavePatternsUpserts(t *testing.T) {
	db := &fakeDB{}
	repo := NewPostgresPatternRepository(db)

	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	patterns := []models.Pattern{samplePattern("AAA", end), samplePattern("BBB", end)}
	require.NoError(t, repo.SavePatterns(context.Background(), patterns))

	require.Len(t, db.execs, 2)
	assert.Contains(t, db.execs[0].sql, "ON CONFLICT (id)")
	assert.Equal(t, patterns[0].ID, db.execs[0].args[0])
	assert.Equal(t, "BBB", db.execs[1].args[1])
	assert.Equal(t, 2, db.execs[0].args[4])

	var decoded models.Pattern
	require.NoError(t, json.Unmarshal(db.execs[0].args[9].([]byte), &decoded))
	assert.Equal(t, patterns[0].Contractions, decoded.Contractions)
}

func TestSavePatternsEmptyIsNoop(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewPostgresPatternRepository(db).SavePatterns(context.Background(), nil))
	assert.Empty(t, db.execs)
}

func TestSavePatternsPropagatesErrors(t *testing.T) {
	db := &fakeDB{execErr: errors.New("unique violation")}
	err := NewPostgresPatternRepository(db).SavePatterns(context.Background(),
		[]models.Pattern{samplePattern("AAA", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unique violation")
}

func TestGetBySymbolDecodesPayload(t *testing.T) {
	p := samplePattern("AAA", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	payload, err := json.Marshal(p)
	require.NoError(t, err)

	db := &fakeDB{rows: [][]any{{payload}}}
	got, err := NewPostgresPatternRepository(db).GetBySymbol(context.Background(), "AAA", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, p.ID, got[0].ID)
	assert.Equal(t, p.BreakoutPrice, got[0].BreakoutPrice)
}

func TestSaveRunStoresHeadlineMetrics(t *testing.T) {
	db := &fakeDB{}
	repo := NewPostgresBacktestRunRepository(db)

	results := &backtest.Results{
		RunID:     uuid.New(),
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Metrics:   backtest.Metrics{TotalTrades: 4, TotalReturnPct: 12.5, SharpeRatio: 1.1, MaxDrawdownPct: 3.2},
	}
	require.NoError(t, repo.SaveRun(context.Background(), results))

	require.Len(t, db.execs, 1)
	args := db.execs[0].args
	assert.Equal(t, results.RunID, args[0])
	assert.Nil(t, args[2], "zero start date is stored as NULL")
	assert.Equal(t, 4, args[4])
	assert.Equal(t, 12.5, args[5])
}

func TestGetRunNotFound(t *testing.T) {
	db := &fakeDB{rowErr: pgx.ErrNoRows}
	_, err := NewPostgresBacktestRunRepository(db).GetRun(context.Background(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetRunDecodesPayload(t *testing.T) {
	id := uuid.New()
	payload, err := json.Marshal(&backtest.Results{RunID: id, Metrics: backtest.Metrics{TotalTrades: 2}})
	require.NoError(t, err)

	db := &fakeDB{row: []any{payload}}
	got, err := NewPostgresBacktestRunRepository(db).GetRun(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, got.RunID)
	assert.Equal(t, 2, got.Metrics.TotalTrades)
}

func TestListRuns(t *testing.T) {
	id := uuid.New()
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	db := &fakeDB{rows: [][]any{{id, created, 3, 4.5, 0.9, 2.1}}}

	runs, err := NewPostgresBacktestRunRepository(db).ListRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunSummary{ID: id, CreatedAt: created, TotalTrades: 3, TotalReturnPct: 4.5, SharpeRatio: 0.9, MaxDrawdownPct: 2.1}, runs[0])
}

func TestNewRepositoriesRequiresDB(t *testing.T) {
	_, err := NewRepositories(nil)
	assert.Error(t, err)
}

// TestPatternRoundTripPostgres exercises the real schema
func TestPatternRoundTripPostgres(t *testing.T) {
	host := os.Getenv("VCP_TEST_DB_HOST")
	if host == "" {
		t.Skip(skipIntegrationMsg)
	}
	port, _ := strconv.Atoi(os.Getenv("VCP_TEST_DB_PORT"))
	if port == 0 {
		port = 5432
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.NewDB(ctx, &config.DatabaseConfig{
		Host:     host,
		Port:     port,
		Name:     os.Getenv("VCP_TEST_DB_NAME"),
		User:     os.Getenv("VCP_TEST_DB_USER"),
		Password: os.Getenv("VCP_TEST_DB_PASSWORD"),
		SSLMode:  "disable",
	})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, database.EnsureSchema(ctx, db))

	repos, err := NewRepositories(db)
	require.NoError(t, err)

	p := samplePattern("ITEST", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, repos.Pattern.SavePatterns(ctx, []models.Pattern{p}))

	got, err := repos.Pattern.GetBySymbol(ctx, "ITEST", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, p.ID, got[0].ID)
}
