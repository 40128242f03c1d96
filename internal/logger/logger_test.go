package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/vcp-scanner/internal/models"
)

func setupTestLogger() (*logrus.Logger, *bytes.Buffer) {
	log := logrus.New()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)
	return log, buf
}

func parseLogOutput(buf *bytes.Buffer) map[string]interface{} {
	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	if err != nil {
		return nil
	}
	return logEntry
}

func TestNewLoggerForEnvironment(t *testing.T) {
	prod := NewLoggerForEnvironment("debug", "production")
	assert.Equal(t, logrus.DebugLevel, prod.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, prod.Formatter)

	dev := NewLoggerForEnvironment("nonsense", "development")
	assert.Equal(t, logrus.InfoLevel, dev.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, dev.Formatter)
}

func TestScanLoggerSymbolComplete(t *testing.T) {
	log, buf := setupTestLogger()
	scanLogger := NewScanLogger(log)

	scanLogger.LogSymbolComplete(models.ScanResult{
		Symbol:   "TCS",
		BarCount: 480,
		Patterns: make([]models.Pattern, 2),
		Attempts: 1,
		Duration: 1500 * time.Millisecond,
	})

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "scanner", logEntry["component"])
	assert.Equal(t, "TCS", logEntry["symbol"])
	assert.Equal(t, float64(2), logEntry["patterns"])
	assert.Equal(t, float64(1500), logEntry["duration_ms"])
}

func TestScanLoggerSymbolFailed(t *testing.T) {
	log, buf := setupTestLogger()
	scanLogger := NewScanLogger(log)

	scanLogger.LogSymbolFailed("INFY", 3, errors.New("upstream unavailable"))

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "error", logEntry["level"])
	assert.Equal(t, "upstream unavailable", logEntry["error"])
	assert.Equal(t, float64(3), logEntry["attempts"])
}

func TestTradeLoggerTradeClosed(t *testing.T) {
	log, buf := setupTestLogger()
	tradeLogger := NewTradeLogger(log)

	tradeLogger.LogTradeClosed(models.Trade{
		Symbol:     "TCS",
		EntryDate:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		ExitDate:   time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
		EntryPrice: 100,
		ExitPrice:  92,
		ExitReason: models.ExitStopLoss,
		Quantity:   100,
		NetPnL:     -819.2,
	})

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "backtest", logEntry["component"])
	assert.Equal(t, "STOP_LOSS", logEntry["exit_reason"])
	assert.Equal(t, "2024-03-08", logEntry["exit_date"])
}

func TestDiscardLogger(t *testing.T) {
	log := NewDiscardLogger()
	assert.NotPanics(t, func() { NewScanLogger(log).LogBatchComplete(1, 0, 0, time.Second) })
}
