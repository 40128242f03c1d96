package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/vcp-scanner/internal/config"
	"github.com/yourusername/vcp-scanner/internal/logger"
)

func writeCSV(t *testing.T, dir, symbol string, end time.Time, n int) {
	t.Helper()
	var b strings.Builder
	b.WriteString("date,open,high,low,close,volume\n")
	for i := n; i > 0; i-- {
		fmt.Fprintf(&b, "%s,100,101,99,100,1000\n", end.AddDate(0, 0, -i).Format("2006-01-02"))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, symbol+".csv"), []byte(b.String()), 0o644))
}

func TestPipelineFromCSV(t *testing.T) {
	cfg, err := config.LoadWithDefaults(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	dir := t.TempDir()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	writeCSV(t, dir, "AAA", now, 150)

	cfg.DataSource.CSVDir = dir
	cfg.Batch.HistoryDays = 400
	cfg.Universe = []config.SymbolConfig{{Symbol: "aaa", RelativeStrength: 70}, {Symbol: "MISSING"}}

	p, err := NewPipeline(context.Background(), cfg, logger.NewDiscardLogger(), PipelineOptions{Backtest: true, Now: now})
	require.NoError(t, err)
	defer p.Close()

	assert.Nil(t, p.Repos, "database stays closed unless persistence is requested")
	assert.Equal(t, "AAA", p.Requests[0].Symbol)

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	assert.Equal(t, 150, result.Results[0].BarCount)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "MISSING", result.Failed[0].Symbol)
	require.NotNil(t, result.Backtest)
}
