package models

import (
	"time"

	"github.com/google/uuid"
)

// SwingKind distinguishes swing highs from swing lows
type SwingKind string

const (
	SwingHigh SwingKind = "high"
	SwingLow  SwingKind = "low"
)

// SwingPoint is a local extreme inside a base
type SwingPoint struct {
	Index int
	Date  time.Time
	Price float64
	Kind  SwingKind
}

// TrendStage is the Weinstein stage classification
type TrendStage int

const (
	StageBasing    TrendStage = 1
	StageAdvancing TrendStage = 2
	StageTopping   TrendStage = 3
	StageDeclining TrendStage = 4
)

// String returns a readable stage name
func (s TrendStage) String() string {
	switch s {
	case StageBasing:
		return "basing"
	case StageAdvancing:
		return "advancing"
	case StageTopping:
		return "topping"
	case StageDeclining:
		return "declining"
	default:
		return "unknown"
	}
}

// Contraction is one pullback from a swing high to the lowest low before the next swing high
type Contraction struct {
	StartIndex       int       `json:"start_index"`
	EndIndex         int       `json:"end_index"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	Duration         int       `json:"duration"`
	HighPrice        float64   `json:"high_price"`
	LowPrice         float64   `json:"low_price"`
	RangePct         float64   `json:"range_pct"`
	AvgVolume        float64   `json:"avg_volume"`
	VolumeDeclinePct float64   `json:"volume_decline_pct"`
	VolatilityRatio  float64   `json:"volatility_ratio"`
	Valid            bool      `json:"valid"`
}

// Pattern is a validated volatility contraction pattern
type Pattern struct {
	ID                    uuid.UUID     `json:"id"`
	Symbol                string        `json:"symbol"`
	BaseStartIndex        int           `json:"base_start_index"`
	BaseEndIndex          int           `json:"base_end_index"`
	BaseStartDate         time.Time     `json:"base_start_date"`
	BaseEndDate           time.Time     `json:"base_end_date"`
	BaseDuration          int           `json:"base_duration"`
	BaseHigh              float64       `json:"base_high"`
	BaseLow               float64       `json:"base_low"`
	Contractions          []Contraction `json:"contractions"`
	TotalDeclinePct       float64       `json:"total_decline_pct"`
	VolatilityCompression float64       `json:"volatility_compression"`
	VolumeCompression     float64       `json:"volume_compression"`
	Stage                 TrendStage    `json:"stage"`
	RelativeStrength      float64       `json:"relative_strength"`
	QualityScore          float64       `json:"quality_score"`
	SetupComplete         bool          `json:"setup_complete"`
	BreakoutPrice         float64       `json:"breakout_price"`
	StopLossPrice         float64       `json:"stop_loss_price"`
}

// ContractionCount returns the number of contractions in the pattern
func (p Pattern) ContractionCount() int {
	return len(p.Contractions)
}

var patternNamespace = uuid.MustParse("3f1c2a9e-6d0b-4c8e-9a57-1b2d4e6f8a10")

// PatternID derives a stable identifier from the symbol and base bounds
func PatternID(symbol string, baseStart, baseEnd time.Time) uuid.UUID {
	key := symbol + "|" + baseStart.UTC().Format(time.RFC3339) + "|" + baseEnd.UTC().Format(time.RFC3339)
	return uuid.NewSHA1(patternNamespace, []byte(key))
}
