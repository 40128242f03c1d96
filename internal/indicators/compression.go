package indicators

import "github.com/yourusername/vcp-scanner/internal/models"

// RangeStats holds daily range features for one window
type RangeStats struct {
	DailyPct []float64
	MeanPct  []float64
	Ratio    []float64
	// Trend is the rank correlation of range% against time; negative means ranges are tightening.
	Trend []float64
}

// RangeCompression computes daily range% and its compression against the trailing p-bar mean
func RangeCompression(bars []models.Bar, p int) RangeStats {
	n := len(bars)
	daily := NaN(n)
	for i, b := range bars {
		if b.Close > 0 {
			daily[i] = (b.High - b.Low) / b.Close * 100
		}
	}
	mean := RollingMean(daily, p)
	ratio := NaN(n)
	for i := range daily {
		if Defined(mean[i]) && mean[i] > 0 {
			ratio[i] = daily[i] / mean[i]
		}
	}
	return RangeStats{
		DailyPct: daily,
		MeanPct:  mean,
		Ratio:    ratio,
		Trend:    RollingSpearman(daily, p),
	}
}

// Squeeze flags bars whose width sits below the trailing percentile of the last lookback widths,
// and counts consecutive squeezed bars. Bars without a defined percentile are never squeezed.
func Squeeze(width []float64, lookback int, percentile float64) (flags []bool, run []int) {
	threshold := RollingPercentile(width, lookback, percentile)
	flags = make([]bool, len(width))
	run = make([]int, len(width))
	for i := range width {
		if Defined(threshold[i]) && width[i] < threshold[i] {
			flags[i] = true
			run[i] = 1
			if i > 0 {
				run[i] += run[i-1]
			}
		}
	}
	return flags, run
}
