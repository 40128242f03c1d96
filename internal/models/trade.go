package models

import (
	"time"

	"github.com/google/uuid"
)

// ExitReason is the terminal state of a simulated trade
type ExitReason string

const (
	ExitStopLoss     ExitReason = "STOP_LOSS"
	ExitProfitTarget ExitReason = "PROFIT_TARGET"
	ExitTimeLimit    ExitReason = "TIME_LIMIT"
)

// Valid reports whether the reason is one of the terminal states
func (r ExitReason) Valid() bool {
	switch r {
	case ExitStopLoss, ExitProfitTarget, ExitTimeLimit:
		return true
	default:
		return false
	}
}

// Trade is one simulated long position opened from a pattern
type Trade struct {
	Symbol      string     `json:"symbol"`
	PatternID   uuid.UUID  `json:"pattern_id"`
	EntryIndex  int        `json:"entry_index"`
	EntryDate   time.Time  `json:"entry_date"`
	EntryPrice  float64    `json:"entry_price"`
	ExitIndex   int        `json:"exit_index"`
	ExitDate    time.Time  `json:"exit_date"`
	ExitPrice   float64    `json:"exit_price"`
	ExitReason  ExitReason `json:"exit_reason"`
	Quantity    int64      `json:"quantity"`
	GrossPnL    float64    `json:"gross_pnl"`
	Commission  float64    `json:"commission"`
	NetPnL      float64    `json:"net_pnl"`
	ReturnPct   float64    `json:"return_pct"`
	HoldingDays int        `json:"holding_days"`

	QualityScore          float64    `json:"quality_score"`
	ContractionCount      int        `json:"contraction_count"`
	VolatilityCompression float64    `json:"volatility_compression"`
	Stage                 TrendStage `json:"stage"`
}

// IsWin reports whether the trade closed with a positive net result
func (t Trade) IsWin() bool {
	return t.NetPnL > 0
}
