package detector

import (
	"bytes"
	"encoding/json"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/vcp-scanner/internal/backtest"
	"github.com/yourusername/vcp-scanner/internal/logger"
	"github.com/yourusername/vcp-scanner/internal/models"
)

var baseDate = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

type seriesBuilder struct {
	closes []float64
	vols   []float64
}

// leg appends n bars moving linearly from `from` (exclusive) to `to` (inclusive)
func (b *seriesBuilder) leg(from, to float64, n int, v0, v1 float64) {
	for k := 1; k <= n; k++ {
		b.closes = append(b.closes, from+(to-from)*float64(k)/float64(n))
		v := v0
		if n > 1 {
			v = v0 + (v1-v0)*float64(k-1)/float64(n-1)
		}
		b.vols = append(b.vols, v)
	}
}

func (b *seriesBuilder) series(t *testing.T, symbol string) *models.Series {
	t.Helper()
	bars := make([]models.Bar, len(b.closes))
	for i, c := range b.closes {
		open := c
		if i > 0 {
			open = b.closes[i-1]
		}
		bars[i] = models.Bar{
			Date:   baseDate.AddDate(0, 0, i),
			Open:   open,
			High:   c * 1.005,
			Low:    c * 0.995,
			Close:  c,
			Volume: b.vols[i],
		}
	}
	s, err := models.NewSeries(symbol, bars)
	require.NoError(t, err)
	return s
}

// scenarioA is a 300-bar advance into three pullbacks of roughly 15%, 10% and 5%, each on
// lighter and declining volume
func scenarioA(t *testing.T) *models.Series {
	b := &seriesBuilder{}
	for i := 0; i <= 190; i++ {
		b.closes = append(b.closes, 75+25*float64(i)/190)
		b.vols = append(b.vols, 2.2e6)
	}
	b.leg(100, 85, 8, 2.0e6, 1.6e6)
	b.leg(85, 99, 8, 1.5e6, 1.5e6)
	b.leg(99, 89, 8, 1.3e6, 1.0e6)
	b.leg(89, 98, 8, 1.0e6, 1.0e6)
	b.leg(98, 93, 8, 0.8e6, 0.6e6)
	b.leg(93, 97.5, 8, 0.7e6, 0.7e6)
	b.leg(97.5, 97, 61, 0.6e6, 0.6e6)
	require.Len(t, b.closes, 300)
	return b.series(t, "VCPA")
}

func randomWalk(t *testing.T, n int, seed int64) *models.Series {
	rng := rand.New(rand.NewSource(seed))
	b := &seriesBuilder{}
	price := 100.0
	for i := 0; i < n; i++ {
		price *= 1 + rng.NormFloat64()*0.02
		b.closes = append(b.closes, price)
		b.vols = append(b.vols, 5e5+rng.Float64()*1e6)
	}
	return b.series(t, "RAND")
}

func newDetector(t *testing.T, mutate func(*Config)) *Detector {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	d, err := New(cfg, nil)
	require.NoError(t, err)
	return d
}

func TestScenarioAYieldsQualityPattern(t *testing.T) {
	d := newDetector(t, nil)
	patterns := d.Detect(scenarioA(t), 80)

	require.NotEmpty(t, patterns)
	best := patterns[0]
	assert.GreaterOrEqual(t, best.QualityScore, 60.0)
	assert.Equal(t, "VCPA", best.Symbol)
	require.Len(t, best.Contractions, 3)

	c := best.Contractions
	assert.Equal(t, 190, c[0].StartIndex)
	assert.Equal(t, 198, c[0].EndIndex)
	assert.Greater(t, c[0].RangePct, c[1].RangePct)
	assert.Greater(t, c[1].RangePct, c[2].RangePct)
	assert.Less(t, c[1].VolatilityRatio, 1.0)
	assert.Less(t, c[2].VolatilityRatio, 1.0)
	assert.Greater(t, c[1].VolumeDeclinePct, 0.0)
	assert.Greater(t, c[2].VolumeDeclinePct, 0.0)

	assert.InDelta(t, c[0].RangePct/c[2].RangePct, best.VolatilityCompression, 1e-9)
	assert.Greater(t, best.VolumeCompression, 2.0)
	assert.InDelta(t, best.BaseHigh*1.02, best.BreakoutPrice, 1e-9)
	assert.InDelta(t, best.BaseLow*0.92, best.StopLossPrice, 1e-9)
	assert.NotEqual(t, models.StageDeclining, best.Stage)
	assert.Equal(t, 80.0, best.RelativeStrength)
}

func TestScenarioASimulatesOnePositionPerBase(t *testing.T) {
	d := newDetector(t, nil)
	series := scenarioA(t)
	patterns := d.Detect(series, 80)
	require.Greater(t, len(patterns), 1, "overlapping base ends are all reported")

	sim, err := backtest.NewSimulator(backtest.DefaultConfig(), logger.NewDiscardLogger())
	require.NoError(t, err)
	trades := sim.Simulate(series, patterns)
	require.Len(t, trades, 1)

	earliest := patterns[0]
	for _, p := range patterns[1:] {
		if p.BaseEndIndex < earliest.BaseEndIndex {
			earliest = p
		}
	}
	tr := trades[0]
	assert.Equal(t, earliest.ID, tr.PatternID)
	assert.Equal(t, earliest.BaseEndIndex+1, tr.EntryIndex)
	assert.Greater(t, tr.ExitIndex-tr.EntryIndex, 1, "position must not be churned by the next base end")
}

func TestDetectDiscardsBaseWithZeroLow(t *testing.T) {
	bars := append([]models.Bar(nil), scenarioA(t).Bars()...)
	bars[5].Low = 0
	series, err := models.NewSeries("VCPA", bars)
	require.NoError(t, err)

	log := logrus.New()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)

	d, err := New(DefaultConfig(), log)
	require.NoError(t, err)
	patterns := d.Detect(series, 80)

	require.NotEmpty(t, patterns)
	for _, p := range patterns {
		assert.Greater(t, p.BaseStartIndex, 5)
		assert.Greater(t, p.BaseLow, 0.0)
	}
	assert.Contains(t, buf.String(), "degenerate base low at bar 5")
	assert.Contains(t, buf.String(), `"symbol":"VCPA"`)
}

func TestScenarioAWithoutRelativeStrength(t *testing.T) {
	d := newDetector(t, nil)
	patterns := d.Detect(scenarioA(t), math.NaN())
	require.NotEmpty(t, patterns)
	assert.GreaterOrEqual(t, patterns[0].QualityScore, 60.0)
	assert.Zero(t, patterns[0].RelativeStrength)
}

func TestDetectDeterministic(t *testing.T) {
	d := newDetector(t, nil)
	series := scenarioA(t)
	first := d.Detect(series, 70)
	second := d.Detect(series, 70)
	assert.Equal(t, first, second)
}

func TestDetectOrdering(t *testing.T) {
	d := newDetector(t, func(c *Config) { c.MinScore = 0 })
	patterns := d.Detect(scenarioA(t), 50)
	require.NotEmpty(t, patterns)
	for k := 1; k < len(patterns); k++ {
		prev, cur := patterns[k-1], patterns[k]
		require.GreaterOrEqual(t, prev.QualityScore, cur.QualityScore)
		if prev.QualityScore == cur.QualityScore {
			require.True(t, prev.BaseEndIndex < cur.BaseEndIndex ||
				(prev.BaseEndIndex == cur.BaseEndIndex && prev.BaseStartIndex <= cur.BaseStartIndex))
		}
	}
}

func TestDeduplicate(t *testing.T) {
	d := newDetector(t, func(c *Config) { c.Deduplicate = true })
	patterns := d.Detect(scenarioA(t), 80)
	assert.Len(t, patterns, 1)
}

func TestDetectInsufficientData(t *testing.T) {
	d := newDetector(t, nil)
	b := &seriesBuilder{}
	b.leg(50, 60, 99, 1e6, 1e6)
	patterns := d.Detect(b.series(t, "SHORT"), 90)
	assert.NotNil(t, patterns)
	assert.Empty(t, patterns)
	assert.Empty(t, d.Detect(nil, 90))
}

func TestDetectInvariantsOnRandomWalks(t *testing.T) {
	d := newDetector(t, func(c *Config) {
		c.MinScore = 0
		c.MinContractions = 2
	})
	for seed := int64(1); seed <= 5; seed++ {
		patterns := d.Detect(randomWalk(t, 400, seed), float64(seed*20))
		for _, p := range patterns {
			require.GreaterOrEqual(t, p.QualityScore, 0.0)
			require.LessOrEqual(t, p.QualityScore, 100.0)
			require.GreaterOrEqual(t, len(p.Contractions), 2)
			for k, c := range p.Contractions {
				require.True(t, c.Valid)
				require.LessOrEqual(t, c.StartIndex, c.EndIndex)
				require.GreaterOrEqual(t, c.StartIndex, p.BaseStartIndex)
				require.LessOrEqual(t, c.EndIndex, p.BaseEndIndex)
				if k > 0 {
					require.Greater(t, c.StartIndex, p.Contractions[k-1].EndIndex, "contractions must not overlap")
				}
			}
		}
	}
}

func TestMinContractionCountEnforced(t *testing.T) {
	d := newDetector(t, func(c *Config) { c.MinContractions = 4 })
	assert.Empty(t, d.Detect(scenarioA(t), 80))
}

func TestPatternJSONRoundTrip(t *testing.T) {
	d := newDetector(t, nil)
	patterns := d.Detect(scenarioA(t), 80)
	require.NotEmpty(t, patterns)

	data, err := json.Marshal(patterns[0])
	require.NoError(t, err)
	var decoded models.Pattern
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, patterns[0], decoded)
}

func TestScoreClamped(t *testing.T) {
	w := DefaultScoreWeights()
	tests := []struct {
		name  string
		score ScoreBreakdown
		want  float64
	}{
		{"maximal", Score(w, 12, 9, 9, models.StageAdvancing, 100, 0), 100},
		{"degenerate inputs", Score(w, 0, math.NaN(), math.Inf(1), models.StageDeclining, -40, 400), 0},
		{"typical", Score(w, 3, 1.5, 1, models.StageTopping, 50, 20), 12 + 12.5 + 10 + 8 + 7.5 + 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total := tt.score.Total()
			assert.InDelta(t, tt.want, total, 1e-9)
			assert.GreaterOrEqual(t, total, 0.0)
			assert.LessOrEqual(t, total, 100.0)
		})
	}
}

func TestScoreCustomWeightsStillClamp(t *testing.T) {
	w := DefaultScoreWeights()
	w.ContractionMax = 90
	w.VolatilityMax = 90
	assert.Equal(t, 100.0, Score(w, 5, 3, 2, models.StageAdvancing, 100, 0).Total())
}

func TestClassifyStage(t *testing.T) {
	cfg := DefaultConfig()

	rising := &seriesBuilder{}
	rising.leg(50, 150, 260, 1e6, 1e6)
	up := rising.series(t, "UP")
	assert.Equal(t, models.StageAdvancing, classifyStage(up.Closes(), newTrendLines(up.Closes(), cfg), 259, cfg))

	falling := &seriesBuilder{}
	falling.leg(150, 50, 260, 1e6, 1e6)
	down := falling.series(t, "DOWN")
	assert.Equal(t, models.StageDeclining, classifyStage(down.Closes(), newTrendLines(down.Closes(), cfg), 259, cfg))

	// fewer than 200 bars of history
	assert.Equal(t, models.StageBasing, classifyStage(up.Closes(), newTrendLines(up.Closes(), cfg), 150, cfg))

	// rolled over: price above the mid average but the long average still catching up
	top := &seriesBuilder{}
	top.leg(50, 150, 220, 1e6, 1e6)
	top.leg(150, 140, 40, 1e6, 1e6)
	topped := top.series(t, "TOP")
	stage := classifyStage(topped.Closes(), newTrendLines(topped.Closes(), cfg), 259, cfg)
	assert.Contains(t, []models.TrendStage{models.StageAdvancing, models.StageTopping}, stage)
}

func TestFindSwings(t *testing.T) {
	b := &seriesBuilder{}
	b.leg(10, 20, 10, 1, 1)
	b.leg(20, 12, 8, 1, 1)
	b.leg(12, 18, 8, 1, 1)
	s := b.series(t, "SW")

	highs := findSwings(s.Bars(), 0, s.Len()-1, 3, models.SwingHigh)
	require.Len(t, highs, 1)
	assert.Equal(t, 9, highs[0].Index)

	lows := findSwings(s.Bars(), 0, s.Len()-1, 3, models.SwingLow)
	require.Len(t, lows, 1)
	assert.Equal(t, 17, lows[0].Index)
}

func TestValidChainVotes(t *testing.T) {
	cfg := DefaultConfig()
	chain := []models.Contraction{
		{VolatilityRatio: 1.4, VolumeDeclinePct: 0},
		{VolatilityRatio: 0.8, VolumeDeclinePct: -5},
		{VolatilityRatio: 1.1, VolumeDeclinePct: 10},
	}
	assert.True(t, validChain(chain, cfg), "one of two pairs tightening meets a 50% vote")

	cfg.VolatilityVoteRatio = 0.75
	assert.False(t, validChain(chain, cfg))

	cfg = DefaultConfig()
	cfg.MinContractions = 4
	assert.False(t, validChain(chain, cfg))
}

func TestConfigValidation(t *testing.T) {
	_, err := New(DefaultConfig(), nil)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.VolumeVoteRatio = 1.5
	_, err = New(cfg, nil)
	assert.ErrorIs(t, err, models.ErrConfiguration)

	cfg = DefaultConfig()
	cfg.MinBaseRange = 60
	_, err = New(cfg, nil)
	assert.ErrorIs(t, err, models.ErrConfiguration)

	cfg = DefaultConfig()
	cfg.Indicators.BollingerPeriod = 1
	_, err = New(cfg, nil)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}
