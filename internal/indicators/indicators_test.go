package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/vcp-scanner/internal/models"
)

func makeSeries(t *testing.T, n int) *models.Series {
	t.Helper()
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	for i := 0; i < n; i++ {
		c := 100 + 10*math.Sin(float64(i)/7)
		bars[i] = models.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1e6 + float64(i%10)*1e4,
		}
	}
	series, err := models.NewSeries("TEST", bars)
	require.NoError(t, err)
	return series
}

func TestATRDefinedCount(t *testing.T) {
	series := makeSeries(t, 250)
	for _, n := range []int{1, 14, 20, 200} {
		atr := ATR(series.Bars(), n)
		require.Len(t, atr, 250)
		assert.Equal(t, 250-n+1, CountDefined(atr), "window %d", n)
		for i := 0; i < n-1; i++ {
			assert.True(t, math.IsNaN(atr[i]))
		}
	}
}

func TestATRShortSeriesIsUndefined(t *testing.T) {
	series := makeSeries(t, 10)
	atr := ATR(series.Bars(), 14)
	assert.Len(t, atr, 10)
	assert.Zero(t, CountDefined(atr))
}

func TestTrueRange(t *testing.T) {
	bars := []models.Bar{
		{High: 11, Low: 9, Close: 10},
		{High: 12, Low: 11, Close: 11.5}, // gap up: |h - prev close| dominates
		{High: 11, Low: 8, Close: 9},     // wide day
	}
	tr := TrueRange(bars)
	require.Len(t, tr, 3)
	assert.InDelta(t, 2.0, tr[0], 1e-9)
	assert.InDelta(t, 2.0, tr[1], 1e-9)
	assert.InDelta(t, 3.5, tr[2], 1e-9)
}

func TestSMAWarmup(t *testing.T) {
	out := SMA([]float64{1, 2, 3, 4, 5}, 3)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-9)
	assert.InDelta(t, 4.0, out[4], 1e-9)
}

func TestRollingStdIsSample(t *testing.T) {
	out := RollingStd([]float64{1, 2, 3, 4}, 4)
	assert.InDelta(t, math.Sqrt(5.0/3.0), out[3], 1e-9)
	assert.Equal(t, 1, CountDefined(out))
}

func TestRollingExtremes(t *testing.T) {
	x := []float64{3, 1, 4, 1, 5, 9, 2}
	maxes := RollingMax(x, 3)
	mins := RollingMin(x, 3)
	assert.Equal(t, 4.0, maxes[2])
	assert.Equal(t, 9.0, maxes[6])
	assert.Equal(t, 1.0, mins[3])
	assert.Equal(t, 2.0, mins[6])
}

func TestPercentileInterpolates(t *testing.T) {
	assert.InDelta(t, 1.8, Percentile([]float64{5, 4, 3, 2, 1}, 20), 1e-9)
	assert.InDelta(t, 3.0, Percentile([]float64{1, 2, 3, 4, 5}, 50), 1e-9)
	assert.True(t, math.IsNaN(Percentile(nil, 50)))
}

func TestSpearman(t *testing.T) {
	assert.InDelta(t, 1.0, Spearman([]float64{1, 2, 3, 4, 5}), 1e-9)
	assert.InDelta(t, -1.0, Spearman([]float64{9, 7, 5, 3, 1}), 1e-9)
	assert.True(t, math.IsNaN(Spearman([]float64{2, 2, 2})))
}

func TestBollingerFlatSeries(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 50
	}
	bb := Bollinger(closes, 20, 2)
	assert.Equal(t, 11, CountDefined(bb.Middle))
	assert.InDelta(t, 0.0, bb.WidthPct[29], 1e-9)
	assert.True(t, math.IsNaN(bb.PercentB[29]), "zero band width leaves %B undefined")
}

func TestBollingerBands(t *testing.T) {
	closes := []float64{1, 2, 3, 4}
	bb := Bollinger(closes, 4, 2)
	std := math.Sqrt(5.0 / 3.0)
	assert.InDelta(t, 2.5+2*std, bb.Upper[3], 1e-9)
	assert.InDelta(t, 2.5-2*std, bb.Lower[3], 1e-9)
	assert.InDelta(t, 4*std/2.5*100, bb.WidthPct[3], 1e-9)
	assert.InDelta(t, (4-(2.5-2*std))/(4*std), bb.PercentB[3], 1e-9)
}

func TestVolumeRatio(t *testing.T) {
	vols := []float64{100, 100, 100, 400}
	ma := VolumeMA(vols, 4)
	ratio := VolumeRatio(vols, ma)
	assert.Equal(t, 1, CountDefined(ratio))
	assert.InDelta(t, 400.0/175.0, ratio[3], 1e-9)
}

func TestRangeCompressionTightening(t *testing.T) {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, 30)
	for i := range bars {
		spread := 3.0 - float64(i)*0.09
		bars[i] = models.Bar{Date: start.AddDate(0, 0, i), Open: 100, High: 100 + spread, Low: 100 - spread, Close: 100}
	}
	stats := RangeCompression(bars, 10)
	assert.True(t, math.IsNaN(stats.MeanPct[8]))
	assert.InDelta(t, -1.0, stats.Trend[29], 1e-9)
	assert.Less(t, stats.Ratio[29], 1.0)
}

func TestSqueezeRunLength(t *testing.T) {
	width := make([]float64, 60)
	for i := range width {
		width[i] = 10
	}
	for i := 55; i < 60; i++ {
		width[i] = 1
	}
	flags, run := Squeeze(width, 50, 20)
	assert.False(t, flags[54])
	assert.True(t, flags[55])
	assert.Equal(t, 5, run[59])
	assert.Equal(t, 0, run[10])
}

func TestComputeFrame(t *testing.T) {
	series := makeSeries(t, 220)
	frame := Compute(series, DefaultConfig())
	assert.Equal(t, 220, frame.Len())
	assert.Equal(t, 220-14+1, CountDefined(frame.PrimaryATR()))
	assert.Equal(t, 220-20+1, CountDefined(frame.ATR[20]))
	assert.Equal(t, 220-50+1, CountDefined(frame.VolumeMA[50]))
	assert.Equal(t, 220-20+1, CountDefined(frame.VolumeRatio))
	assert.Len(t, frame.Squeeze, 220)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.ATRWindows = []int{0}
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConfiguration)

	cfg = DefaultConfig()
	cfg.SqueezePercentile = 120
	assert.ErrorIs(t, cfg.Validate(), models.ErrConfiguration)
}
