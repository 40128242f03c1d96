// Package detector finds volatility contraction patterns in a daily bar series.
//
// Every bar i is treated as a potential base end. The trailing window is a base candidate when
// price sits below its high and the window's range is plausible; swing highs inside the base
// define contractions, the chain is put to a majority vote, and survivors are staged, scored
// and given trading levels. Detection is deterministic and never blocks.
package detector

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/vcp-scanner/internal/indicators"
	"github.com/yourusername/vcp-scanner/internal/logger"
	"github.com/yourusername/vcp-scanner/internal/models"
)

// Detector scans a series for patterns
type Detector struct {
	cfg    Config
	logger *logrus.Logger
}

// New creates a detector after validating its configuration
func New(cfg Config, log *logrus.Logger) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &Detector{cfg: cfg, logger: log}, nil
}

// Config returns the detector configuration
func (d *Detector) Config() Config {
	return d.cfg
}

// Detect returns every pattern scoring at least MinScore, best first. rs is the symbol's
// externally supplied relative strength percentile. Short series yield no patterns and no error.
func (d *Detector) Detect(series *models.Series, rs float64) []models.Pattern {
	if series.Len() < d.cfg.MinBars {
		d.logger.WithError(models.InsufficientDataError{
			Stage: "detect", Required: d.cfg.MinBars, Got: series.Len(),
		}).WithField("symbol", symbolOf(series)).Debug("Skipping detection")
		return []models.Pattern{}
	}

	bars := series.Bars()
	closes := series.Closes()
	frame := indicators.Compute(series, d.cfg.Indicators)
	trend := newTrendLines(closes, d.cfg)
	rs = NormalizeStrength(rs)

	patterns := make([]models.Pattern, 0)
	for i := d.cfg.MinBaseLength - 1; i < len(bars); i++ {
		p, ok := d.evaluateBase(series, closes, frame.TrueRange, trend, i, rs)
		if ok {
			patterns = append(patterns, p)
		}
	}

	sort.SliceStable(patterns, func(a, b int) bool {
		pa, pb := patterns[a], patterns[b]
		if pa.QualityScore != pb.QualityScore {
			return pa.QualityScore > pb.QualityScore
		}
		if pa.BaseEndIndex != pb.BaseEndIndex {
			return pa.BaseEndIndex < pb.BaseEndIndex
		}
		return pa.BaseStartIndex < pb.BaseStartIndex
	})

	if d.cfg.Deduplicate {
		patterns = dedupe(patterns)
	}
	return patterns
}

// evaluateBase runs the full pipeline for the base ending at bar i
func (d *Detector) evaluateBase(series *models.Series, closes, tr []float64, trend trendLines, i int, rs float64) (models.Pattern, bool) {
	cfg := d.cfg
	bars := series.Bars()

	start := i - cfg.Lookback + 1
	if start < 0 {
		start = 0
	}
	if i-start+1 < cfg.MinBaseLength {
		return models.Pattern{}, false
	}

	baseHigh, baseLow, lowIdx := bars[start].High, bars[start].Low, start
	for j := start + 1; j <= i; j++ {
		if bars[j].High > baseHigh {
			baseHigh = bars[j].High
		}
		if bars[j].Low < baseLow {
			baseLow, lowIdx = bars[j].Low, j
		}
	}
	if baseLow <= 0 || baseHigh <= 0 {
		d.discard(series, models.DegenerateCalculationError{Quantity: "base low", Index: lowIdx})
		return models.Pattern{}, false
	}
	if bars[i].Close > cfg.MaxCloseToHigh*baseHigh {
		return models.Pattern{}, false
	}
	rangePct := (baseHigh - baseLow) / baseLow * 100
	if rangePct < cfg.MinBaseRange || rangePct > cfg.MaxBaseRange {
		return models.Pattern{}, false
	}

	highs := findSwings(bars, start, i, cfg.SwingWindow, models.SwingHigh)
	if len(highs) < cfg.MinContractions+1 {
		return models.Pattern{}, false
	}
	contractions := buildContractions(bars, tr, highs, cfg, func(err error) { d.discard(series, err) })
	if !validChain(contractions, cfg) {
		return models.Pattern{}, false
	}

	first, last := contractions[0], contractions[len(contractions)-1]
	if last.RangePct <= 0 {
		d.discard(series, models.DegenerateCalculationError{Quantity: "final contraction range", Index: last.EndIndex})
		return models.Pattern{}, false
	}
	volCompression := first.RangePct / last.RangePct
	volumeCompression := 0.0
	if last.AvgVolume > 0 {
		volumeCompression = first.AvgVolume / last.AvgVolume
	}
	declinePct := (baseHigh - baseLow) / baseHigh * 100
	stage := classifyStage(closes, trend, i, cfg)

	score := Score(cfg.Weights, len(contractions), volCompression, volumeCompression, stage, rs, declinePct).Total()
	if score < cfg.MinScore {
		return models.Pattern{}, false
	}

	return models.Pattern{
		ID:                    models.PatternID(series.Symbol, bars[start].Date, bars[i].Date),
		Symbol:                series.Symbol,
		BaseStartIndex:        start,
		BaseEndIndex:          i,
		BaseStartDate:         bars[start].Date,
		BaseEndDate:           bars[i].Date,
		BaseDuration:          i - start + 1,
		BaseHigh:              baseHigh,
		BaseLow:               baseLow,
		Contractions:          contractions,
		TotalDeclinePct:       declinePct,
		VolatilityCompression: volCompression,
		VolumeCompression:     volumeCompression,
		Stage:                 stage,
		RelativeStrength:      rs,
		QualityScore:          score,
		SetupComplete:         len(contractions) >= cfg.MinContractions && volCompression >= cfg.SetupCompression && stage == models.StageAdvancing,
		BreakoutPrice:         baseHigh * (1 + cfg.BreakoutBufferPct/100),
		StopLossPrice:         baseLow * (1 - cfg.StopBufferPct/100),
	}, true
}

// dedupe keeps the first pattern for each distinct contraction chain
func dedupe(patterns []models.Pattern) []models.Pattern {
	seen := make(map[string]bool, len(patterns))
	out := patterns[:0]
	for _, p := range patterns {
		key := chainKey(p.Contractions)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

func chainKey(cs []models.Contraction) string {
	parts := make([]string, len(cs))
	for k, c := range cs {
		parts[k] = strconv.Itoa(c.StartIndex) + "-" + strconv.Itoa(c.EndIndex)
	}
	return strings.Join(parts, ",")
}

// discard logs a base or contraction dropped because a denominator was not positive
func (d *Detector) discard(series *models.Series, err error) {
	d.logger.WithError(err).WithField("symbol", symbolOf(series)).Debug("Discarding degenerate candidate")
}

func symbolOf(s *models.Series) string {
	if s == nil {
		return ""
	}
	return s.Symbol
}
