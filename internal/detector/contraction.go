package detector

import (
	"github.com/yourusername/vcp-scanner/internal/indicators"
	"github.com/yourusername/vcp-scanner/internal/models"
)

// buildContractions pairs consecutive swing highs with the lowest low strictly between them,
// keeps the candidates that pass the duration and range checks, then measures each survivor
// against the period before it. Degenerate candidates are dropped and reported to discard.
func buildContractions(bars []models.Bar, tr []float64, highs []models.SwingPoint, cfg Config, discard func(error)) []models.Contraction {
	candidates := make([]models.Contraction, 0, len(highs))
	for k := 0; k+1 < len(highs); k++ {
		from, to := highs[k].Index, highs[k+1].Index
		lowIdx := -1
		for j := from + 1; j < to; j++ {
			if lowIdx < 0 || bars[j].Low < bars[lowIdx].Low {
				lowIdx = j
			}
		}
		if lowIdx < 0 {
			continue
		}

		high := highs[k].Price
		low := bars[lowIdx].Low
		if low <= 0 {
			discard(models.DegenerateCalculationError{Quantity: "contraction low", Index: lowIdx})
			continue
		}
		c := models.Contraction{
			StartIndex: from,
			EndIndex:   lowIdx,
			StartDate:  bars[from].Date,
			EndDate:    bars[lowIdx].Date,
			Duration:   lowIdx - from + 1,
			HighPrice:  high,
			LowPrice:   low,
			RangePct:   (high - low) / low * 100,
		}
		if c.Duration < cfg.MinContractionBars ||
			c.RangePct < cfg.MinContractionRangePct || c.RangePct > cfg.MaxContractionRangePct {
			continue
		}
		candidates = append(candidates, c)
	}

	out := make([]models.Contraction, 0, len(candidates))
	for _, c := range candidates {
		prevStart, prevEnd := c.StartIndex-c.Duration, c.StartIndex-1
		if len(out) > 0 {
			prev := out[len(out)-1]
			prevStart, prevEnd = prev.StartIndex, prev.EndIndex
		}
		if prevStart < 0 {
			prevStart = 0
		}
		if prevEnd < prevStart {
			continue
		}

		curVol, ok := meanVolume(bars, c.StartIndex, c.EndIndex)
		if !ok {
			continue
		}
		baseVol, ok := meanVolume(bars, prevStart, prevEnd)
		if !ok {
			continue
		}
		if baseVol <= 0 {
			discard(models.DegenerateCalculationError{Quantity: "prior volume", Index: prevStart})
			continue
		}
		curATR, ok := indicators.Mean(tr[c.StartIndex : c.EndIndex+1])
		if !ok {
			continue
		}
		baseATR, ok := indicators.Mean(tr[prevStart : prevEnd+1])
		if !ok {
			continue
		}
		if baseATR <= 0 {
			discard(models.DegenerateCalculationError{Quantity: "prior ATR", Index: prevStart})
			continue
		}

		c.AvgVolume = curVol
		c.VolumeDeclinePct = (baseVol - curVol) / baseVol * 100
		c.VolatilityRatio = curATR / baseATR
		c.Valid = true
		out = append(out, c)
	}
	return out
}

func meanVolume(bars []models.Bar, start, end int) (float64, bool) {
	if start > end {
		return 0, false
	}
	var sum float64
	for i := start; i <= end; i++ {
		sum += bars[i].Volume
	}
	return sum / float64(end-start+1), true
}

// validChain applies the majority vote: enough contractions, enough pairs tightening in
// volatility, and enough contractions after the first drying up in volume
func validChain(cs []models.Contraction, cfg Config) bool {
	if len(cs) < cfg.MinContractions {
		return false
	}
	pairs := len(cs) - 1
	if pairs == 0 {
		return true
	}

	var tighter, drier int
	for k := 1; k < len(cs); k++ {
		if cs[k].VolatilityRatio < 1 {
			tighter++
		}
		if cs[k].VolumeDeclinePct > 0 {
			drier++
		}
	}
	const eps = 1e-9
	return float64(tighter) >= cfg.VolatilityVoteRatio*float64(pairs)-eps &&
		float64(drier) >= cfg.VolumeVoteRatio*float64(pairs)-eps
}
