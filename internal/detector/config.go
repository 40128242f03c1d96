package detector

import (
	"fmt"

	"github.com/yourusername/vcp-scanner/internal/config"
	"github.com/yourusername/vcp-scanner/internal/indicators"
	"github.com/yourusername/vcp-scanner/internal/models"
)

// Config holds detection thresholds. The vote ratios and score weights are tunable heuristics.
type Config struct {
	MinBars        int
	Lookback       int
	MaxCloseToHigh float64
	MinBaseLength  int
	MinBaseRange   float64
	MaxBaseRange   float64

	SwingWindow            int
	MinContractionBars     int
	MinContractionRangePct float64
	MaxContractionRangePct float64

	MinContractions     int
	VolatilityVoteRatio float64
	VolumeVoteRatio     float64

	ShortMA             int
	MidMA               int
	LongMA              int
	SlopeLookback       int
	RequireAboveShortMA bool

	MinScore          float64
	SetupCompression  float64
	BreakoutBufferPct float64
	StopBufferPct     float64
	Deduplicate       bool

	Weights    ScoreWeights
	Indicators indicators.Config
}

// ScoreWeights are the point caps and normalizers of the quality score
type ScoreWeights struct {
	ContractionMax   float64
	ContractionCap   int
	VolatilityMax    float64
	VolatilityTarget float64
	VolumeMax        float64
	VolumeTarget     float64
	StagePoints      [4]float64
	StrengthMax      float64
	DeclineMax       float64
	DeclineDivisor   float64
}

// DefaultScoreWeights returns the standard weights: 20/25/20/15/15/5 points
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		ContractionMax:   20,
		ContractionCap:   5,
		VolatilityMax:    25,
		VolatilityTarget: 3,
		VolumeMax:        20,
		VolumeTarget:     2,
		StagePoints:      [4]float64{5, 15, 8, 0},
		StrengthMax:      15,
		DeclineMax:       5,
		DeclineDivisor:   10,
	}
}

// DefaultConfig returns the standard detection thresholds
func DefaultConfig() Config {
	return Config{
		MinBars:                100,
		Lookback:               252,
		MaxCloseToHigh:         0.98,
		MinBaseLength:          20,
		MinBaseRange:           5,
		MaxBaseRange:           50,
		SwingWindow:            5,
		MinContractionBars:     3,
		MinContractionRangePct: 2,
		MaxContractionRangePct: 25,
		MinContractions:        3,
		VolatilityVoteRatio:    0.5,
		VolumeVoteRatio:        0.4,
		ShortMA:                50,
		MidMA:                  150,
		LongMA:                 200,
		SlopeLookback:          20,
		MinScore:               60,
		SetupCompression:       1.2,
		BreakoutBufferPct:      2,
		StopBufferPct:          8,
		Weights:                DefaultScoreWeights(),
		Indicators:             indicators.DefaultConfig(),
	}
}

// FromConfig converts app config to detector config
func FromConfig(dc *config.DetectorConfig, ic *config.IndicatorConfig) (Config, error) {
	if dc == nil || ic == nil {
		return Config{}, models.NewConfigurationError("detector", "detector and indicator config are required")
	}

	cfg := DefaultConfig()
	cfg.MinBars = dc.MinBars
	cfg.Lookback = dc.Lookback
	cfg.MaxCloseToHigh = dc.MaxCloseToHigh
	cfg.MinBaseLength = dc.MinBaseLength
	cfg.MinBaseRange = dc.MinBaseRangePct
	cfg.MaxBaseRange = dc.MaxBaseRangePct
	cfg.SwingWindow = dc.SwingWindow
	cfg.MinContractionBars = dc.MinContractionBars
	cfg.MinContractionRangePct = dc.MinContractionRangePct
	cfg.MaxContractionRangePct = dc.MaxContractionRangePct
	cfg.MinContractions = dc.MinContractions
	cfg.VolatilityVoteRatio = dc.VolatilityVoteRatio
	cfg.VolumeVoteRatio = dc.VolumeVoteRatio
	cfg.MinScore = dc.MinScore
	cfg.SetupCompression = dc.SetupCompression
	cfg.BreakoutBufferPct = dc.BreakoutBufferPct
	cfg.StopBufferPct = dc.StopBufferPct
	cfg.SlopeLookback = dc.SlopeLookback
	cfg.RequireAboveShortMA = dc.RequireAboveShortMA
	cfg.Deduplicate = dc.Deduplicate
	cfg.Weights = mergeWeights(cfg.Weights, dc.Weights)

	cfg.Indicators = indicators.Config{
		ATRWindows:        ic.ATRWindows,
		BollingerPeriod:   ic.BollingerPeriod,
		BollingerK:        ic.BollingerK,
		VolumeWindows:     ic.VolumeWindows,
		RangeWindow:       ic.RangeWindow,
		SqueezeLookback:   ic.SqueezeLookback,
		SqueezePercentile: ic.SqueezePercentile,
	}

	return cfg, cfg.Validate()
}

func mergeWeights(w ScoreWeights, o config.ScoreWeightsConfig) ScoreWeights {
	set := func(dst *float64, v float64) {
		if v > 0 {
			*dst = v
		}
	}
	set(&w.ContractionMax, o.ContractionMax)
	set(&w.VolatilityMax, o.VolatilityMax)
	set(&w.VolatilityTarget, o.VolatilityTarget)
	set(&w.VolumeMax, o.VolumeMax)
	set(&w.VolumeTarget, o.VolumeTarget)
	set(&w.StrengthMax, o.StrengthMax)
	set(&w.DeclineMax, o.DeclineMax)
	set(&w.DeclineDivisor, o.DeclineDivisor)
	if o.ContractionCap > 0 {
		w.ContractionCap = o.ContractionCap
	}
	if len(o.StagePoints) == 4 {
		copy(w.StagePoints[:], o.StagePoints)
	}
	return w
}

// Validate rejects thresholds that cannot produce a meaningful scan
func (c Config) Validate() error {
	switch {
	case c.MinBars <= 0:
		return models.NewConfigurationError("detector.min_bars", "must be positive")
	case c.Lookback <= 0:
		return models.NewConfigurationError("detector.lookback", "must be positive")
	case c.MaxCloseToHigh <= 0 || c.MaxCloseToHigh > 1:
		return models.NewConfigurationError("detector.max_close_to_high", "must be within (0,1]")
	case c.MinBaseLength <= 0 || c.MinBaseLength > c.Lookback:
		return models.NewConfigurationError("detector.min_base_length", "must be positive and not exceed lookback")
	case c.MinBaseRange < 0 || c.MinBaseRange >= c.MaxBaseRange:
		return models.NewConfigurationError("detector.min_base_range_pct", "must be non-negative and below max_base_range_pct")
	case c.SwingWindow <= 0:
		return models.NewConfigurationError("detector.swing_window", "must be positive")
	case c.MinContractionBars <= 0:
		return models.NewConfigurationError("detector.min_contraction_bars", "must be positive")
	case c.MinContractionRangePct < 0 || c.MinContractionRangePct >= c.MaxContractionRangePct:
		return models.NewConfigurationError("detector.min_contraction_range_pct", "must be non-negative and below max_contraction_range_pct")
	case c.MinContractions <= 0:
		return models.NewConfigurationError("detector.min_contractions", "must be positive")
	case c.VolatilityVoteRatio < 0 || c.VolatilityVoteRatio > 1:
		return models.NewConfigurationError("detector.volatility_vote_ratio", "must be within [0,1]")
	case c.VolumeVoteRatio < 0 || c.VolumeVoteRatio > 1:
		return models.NewConfigurationError("detector.volume_vote_ratio", "must be within [0,1]")
	case c.ShortMA <= 0 || c.MidMA <= 0 || c.LongMA <= 0:
		return models.NewConfigurationError("detector.moving_averages", "windows must be positive")
	case c.SlopeLookback <= 0:
		return models.NewConfigurationError("detector.slope_lookback", "must be positive")
	case c.MinScore < 0 || c.MinScore > 100:
		return models.NewConfigurationError("detector.min_score", "must be within [0,100]")
	case c.SetupCompression <= 0:
		return models.NewConfigurationError("detector.setup_compression", "must be positive")
	case c.BreakoutBufferPct < 0:
		return models.NewConfigurationError("detector.breakout_buffer_pct", "must not be negative")
	case c.StopBufferPct < 0 || c.StopBufferPct >= 100:
		return models.NewConfigurationError("detector.stop_buffer_pct", "must be within [0,100)")
	case c.Weights.ContractionCap <= 0 || c.Weights.VolatilityTarget <= 0 || c.Weights.VolumeTarget <= 0 || c.Weights.DeclineDivisor <= 0:
		return models.NewConfigurationError("detector.weights", "normalizers must be positive")
	}
	if err := c.Indicators.Validate(); err != nil {
		return fmt.Errorf("indicators: %w", err)
	}
	return nil
}
