package detector

import (
	"github.com/yourusername/vcp-scanner/internal/indicators"
	"github.com/yourusername/vcp-scanner/internal/models"
)

// trendLines are the moving averages used to classify Weinstein stages
type trendLines struct {
	short, mid, long []float64
}

func newTrendLines(closes []float64, cfg Config) trendLines {
	return trendLines{
		short: indicators.SMA(closes, cfg.ShortMA),
		mid:   indicators.SMA(closes, cfg.MidMA),
		long:  indicators.SMA(closes, cfg.LongMA),
	}
}

// classifyStage evaluates the stage at bar i. Without a full long average the stage is basing.
func classifyStage(closes []float64, tl trendLines, i int, cfg Config) models.TrendStage {
	if i+1 < cfg.LongMA || !indicators.Defined(tl.long[i]) || !indicators.Defined(tl.mid[i]) {
		return models.StageBasing
	}

	px := closes[i]
	mid, long := tl.mid[i], tl.long[i]

	prev := i - cfg.SlopeLookback
	midRising, longRising, midFalling := false, false, false
	if prev >= 0 && indicators.Defined(tl.mid[prev]) {
		midRising = mid > tl.mid[prev]
		midFalling = mid < tl.mid[prev]
	}
	if prev >= 0 && indicators.Defined(tl.long[prev]) {
		longRising = long > tl.long[prev]
	}

	aboveShort := true
	if cfg.RequireAboveShortMA {
		aboveShort = indicators.Defined(tl.short[i]) && px > tl.short[i]
	}

	switch {
	case px > mid && mid > long && midRising && longRising && aboveShort:
		return models.StageAdvancing
	case px < mid && midFalling:
		return models.StageDeclining
	case px > mid:
		return models.StageTopping
	default:
		return models.StageBasing
	}
}
