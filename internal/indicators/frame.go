package indicators

import (
	"fmt"
	"sort"

	"github.com/yourusername/vcp-scanner/internal/models"
)

// Config selects the windows used by Compute
type Config struct {
	ATRWindows        []int
	BollingerPeriod   int
	BollingerK        float64
	VolumeWindows     []int
	RangeWindow       int
	SqueezeLookback   int
	SqueezePercentile float64
}

// DefaultConfig returns the standard indicator windows
func DefaultConfig() Config {
	return Config{
		ATRWindows:        []int{14, 20},
		BollingerPeriod:   20,
		BollingerK:        2.0,
		VolumeWindows:     []int{20, 50},
		RangeWindow:       20,
		SqueezeLookback:   50,
		SqueezePercentile: 20,
	}
}

// Validate checks that every window is usable
func (c Config) Validate() error {
	if len(c.ATRWindows) == 0 {
		return models.NewConfigurationError("indicators.atr_windows", "at least one window required")
	}
	for _, w := range c.ATRWindows {
		if w <= 0 {
			return models.NewConfigurationError("indicators.atr_windows", fmt.Sprintf("window %d must be positive", w))
		}
	}
	for _, w := range c.VolumeWindows {
		if w <= 0 {
			return models.NewConfigurationError("indicators.volume_windows", fmt.Sprintf("window %d must be positive", w))
		}
	}
	if c.BollingerPeriod < 2 {
		return models.NewConfigurationError("indicators.bollinger_period", "must be at least 2")
	}
	if c.BollingerK <= 0 {
		return models.NewConfigurationError("indicators.bollinger_k", "must be positive")
	}
	if c.RangeWindow < 2 {
		return models.NewConfigurationError("indicators.range_window", "must be at least 2")
	}
	if c.SqueezeLookback <= 0 {
		return models.NewConfigurationError("indicators.squeeze_lookback", "must be positive")
	}
	if c.SqueezePercentile <= 0 || c.SqueezePercentile >= 100 {
		return models.NewConfigurationError("indicators.squeeze_percentile", "must be within (0,100)")
	}
	return nil
}

// Frame holds per-bar features aligned to a series. Undefined values are NaN.
type Frame struct {
	TrueRange   []float64
	ATR         map[int][]float64
	ATRPercent  map[int][]float64
	Bollinger   BollingerBands
	VolumeMA    map[int][]float64
	VolumeRatio []float64 // against the shortest volume window
	Range       RangeStats
	Squeeze     []bool
	SqueezeDays []int

	atrPrimary    int
	volumePrimary int
}

// Compute derives every feature in one pass over the series
func Compute(series *models.Series, cfg Config) *Frame {
	bars := series.Bars()
	closes := series.Closes()
	volumes := series.Volumes()

	f := &Frame{
		TrueRange:  TrueRange(bars),
		ATR:        make(map[int][]float64, len(cfg.ATRWindows)),
		ATRPercent: make(map[int][]float64, len(cfg.ATRWindows)),
		VolumeMA:   make(map[int][]float64, len(cfg.VolumeWindows)),
	}

	atrWindows := sortedWindows(cfg.ATRWindows)
	for _, w := range atrWindows {
		atr := SMA(f.TrueRange, w)
		f.ATR[w] = atr
		f.ATRPercent[w] = ATRPercent(atr, bars)
	}
	if len(atrWindows) > 0 {
		f.atrPrimary = atrWindows[0]
	}

	volWindows := sortedWindows(cfg.VolumeWindows)
	for _, w := range volWindows {
		f.VolumeMA[w] = VolumeMA(volumes, w)
	}
	if len(volWindows) > 0 {
		f.volumePrimary = volWindows[0]
		f.VolumeRatio = VolumeRatio(volumes, f.VolumeMA[f.volumePrimary])
	} else {
		f.VolumeRatio = NaN(len(bars))
	}

	f.Bollinger = Bollinger(closes, cfg.BollingerPeriod, cfg.BollingerK)
	f.Range = RangeCompression(bars, cfg.RangeWindow)
	f.Squeeze, f.SqueezeDays = Squeeze(f.Bollinger.WidthPct, cfg.SqueezeLookback, cfg.SqueezePercentile)
	return f
}

// PrimaryATR returns the ATR series of the shortest configured window
func (f *Frame) PrimaryATR() []float64 {
	return f.ATR[f.atrPrimary]
}

// Len returns the number of bars covered
func (f *Frame) Len() int {
	return len(f.TrueRange)
}

func sortedWindows(windows []int) []int {
	out := make([]int, 0, len(windows))
	seen := make(map[int]bool, len(windows))
	for _, w := range windows {
		if w > 0 && !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	sort.Ints(out)
	return out
}
