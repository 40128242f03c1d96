package detector

import (
	"math"

	"github.com/yourusername/vcp-scanner/internal/indicators"
	"github.com/yourusername/vcp-scanner/internal/models"
)

// ScoreBreakdown itemizes the quality score
type ScoreBreakdown struct {
	Contractions float64 `json:"contractions"`
	Volatility   float64 `json:"volatility"`
	Volume       float64 `json:"volume"`
	Stage        float64 `json:"stage"`
	Strength     float64 `json:"strength"`
	Decline      float64 `json:"decline"`
}

// Total sums the components and clamps to [0,100]
func (b ScoreBreakdown) Total() float64 {
	return clamp(b.Contractions+b.Volatility+b.Volume+b.Stage+b.Strength+b.Decline, 0, 100)
}

// Score computes the weighted quality score of a pattern's measurements
func Score(w ScoreWeights, contractions int, volCompression, volumeCompression float64, stage models.TrendStage, rs, declinePct float64) ScoreBreakdown {
	var b ScoreBreakdown
	b.Contractions = w.ContractionMax * clamp(float64(contractions)/float64(w.ContractionCap), 0, 1)
	b.Volatility = w.VolatilityMax * clamp(safe(volCompression)/w.VolatilityTarget, 0, 1)
	b.Volume = w.VolumeMax * clamp(safe(volumeCompression)/w.VolumeTarget, 0, 1)
	if stage >= models.StageBasing && stage <= models.StageDeclining {
		b.Stage = w.StagePoints[stage-1]
	}
	b.Strength = w.StrengthMax * clamp(NormalizeStrength(rs)/100, 0, 1)
	b.Decline = clamp(w.DeclineMax-safe(declinePct)/w.DeclineDivisor, 0, w.DeclineMax)
	return b
}

// NormalizeStrength maps an external relative strength percentile into [0,100]; undefined becomes 0
func NormalizeStrength(rs float64) float64 {
	return clamp(safe(rs), 0, 100)
}

func safe(v float64) float64 {
	if !indicators.Defined(v) {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
