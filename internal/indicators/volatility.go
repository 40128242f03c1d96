package indicators

import (
	"github.com/markcheno/go-talib"

	"github.com/yourusername/vcp-scanner/internal/models"
)

// TrueRange returns max(h-l, |h-prevClose|, |l-prevClose|) per bar. The first bar has no
// previous close and uses h-l.
func TrueRange(bars []models.Bar) []float64 {
	if len(bars) == 0 {
		return nil
	}
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
	}
	out := talib.TRange(highs, lows, closes)
	out[0] = bars[0].High - bars[0].Low
	return out
}

// ATR is the rolling mean of true range over n bars; the first n-1 values are undefined
func ATR(bars []models.Bar, n int) []float64 {
	return SMA(TrueRange(bars), n)
}

// ATRPercent expresses ATR as a percentage of close
func ATRPercent(atr []float64, bars []models.Bar) []float64 {
	out := NaN(len(atr))
	for i := range atr {
		if i >= len(bars) || !Defined(atr[i]) || bars[i].Close <= 0 {
			continue
		}
		out[i] = atr[i] / bars[i].Close * 100
	}
	return out
}

// BollingerBands holds the band series for one window
type BollingerBands struct {
	Middle   []float64
	Upper    []float64
	Lower    []float64
	WidthPct []float64
	PercentB []float64
}

// Bollinger computes bands of k sample standard deviations around SMA(p)
func Bollinger(closes []float64, p int, k float64) BollingerBands {
	n := len(closes)
	bb := BollingerBands{
		Middle:   SMA(closes, p),
		Upper:    NaN(n),
		Lower:    NaN(n),
		WidthPct: NaN(n),
		PercentB: NaN(n),
	}
	std := RollingStd(closes, p)
	for i := 0; i < n; i++ {
		mid := bb.Middle[i]
		if !Defined(mid) || !Defined(std[i]) {
			continue
		}
		bb.Upper[i] = mid + k*std[i]
		bb.Lower[i] = mid - k*std[i]
		if mid > 0 {
			bb.WidthPct[i] = (bb.Upper[i] - bb.Lower[i]) / mid * 100
		}
		if width := bb.Upper[i] - bb.Lower[i]; width > 0 {
			bb.PercentB[i] = (closes[i] - bb.Lower[i]) / width
		}
	}
	return bb
}
