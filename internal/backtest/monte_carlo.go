package backtest

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/yourusername/vcp-scanner/internal/models"
)

// MonteCarloConfig configures trade-order resampling
type MonteCarloConfig struct {
	Iterations     int
	Seed           int64
	InitialCapital float64
	// RuinDrawdownPct marks a path as ruined once its drawdown reaches this level
	RuinDrawdownPct float64
}

// MonteCarloResult summarizes resampled equity paths. Return and drawdown fields are in percent.
type MonteCarloResult struct {
	Iterations          int                `json:"iterations"`
	MeanReturnPct       float64            `json:"mean_return_pct"`
	StdReturnPct        float64            `json:"std_return_pct"`
	MedianMaxDrawdown   float64            `json:"median_max_drawdown_pct"`
	WorstMaxDrawdown    float64            `json:"worst_max_drawdown_pct"`
	VaR95Pct            float64            `json:"var_95_pct"`
	ProbabilityOfProfit float64            `json:"probability_of_profit"`
	ProbabilityOfRuin   float64            `json:"probability_of_ruin"`
	ConfidenceIntervals map[string]float64 `json:"confidence_intervals"`
	Distribution        []float64          `json:"distribution"`
}

// RunMonteCarlo bootstraps trade returns with replacement and replays each sample on a fresh
// capital base sized like the original run
func RunMonteCarlo(ctx context.Context, trades []models.Trade, cfg MonteCarloConfig) (MonteCarloResult, error) {
	if len(trades) == 0 {
		return MonteCarloResult{}, models.InsufficientDataError{Stage: "monte carlo", Required: 1, Got: 0}
	}
	if cfg.InitialCapital <= 0 {
		return MonteCarloResult{}, models.NewConfigurationError("initial_capital", "must be positive")
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = 1000
	}
	if cfg.RuinDrawdownPct <= 0 {
		cfg.RuinDrawdownPct = 50
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	rng := rand.New(rand.NewSource(seed))
	distribution := make([]float64, cfg.Iterations)
	drawdowns := make([]float64, cfg.Iterations)
	ruined := 0

	for i := 0; i < cfg.Iterations; i++ {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return MonteCarloResult{}, err
			}
		}

		capital := cfg.InitialCapital
		peak := capital
		maxDD := 0.0
		for range trades {
			capital += trades[rng.Intn(len(trades))].NetPnL
			if capital > peak {
				peak = capital
			}
			if dd := (peak - capital) / peak * 100; dd > maxDD {
				maxDD = dd
			}
			if capital <= 0 {
				capital = 0
				maxDD = 100
				break
			}
		}
		if maxDD >= cfg.RuinDrawdownPct {
			ruined++
		}
		distribution[i] = (capital - cfg.InitialCapital) / cfg.InitialCapital * 100
		drawdowns[i] = maxDD
	}

	mean, std := meanStd(distribution)
	return MonteCarloResult{
		Iterations:          cfg.Iterations,
		MeanReturnPct:       mean,
		StdReturnPct:        std,
		MedianMaxDrawdown:   percentile(drawdowns, 0.5),
		WorstMaxDrawdown:    percentile(drawdowns, 1),
		VaR95Pct:            percentile(distribution, 0.05),
		ProbabilityOfProfit: probabilityAbove(distribution, 0),
		ProbabilityOfRuin:   float64(ruined) / float64(cfg.Iterations),
		ConfidenceIntervals: CalculateConfidenceIntervals(distribution, []float64{0.9, 0.95, 0.99}),
		Distribution:        distribution,
	}, nil
}

// CalculateConfidenceIntervals computes the width of each two-sided interval
func CalculateConfidenceIntervals(distribution []float64, levels []float64) map[string]float64 {
	results := make(map[string]float64)
	for _, level := range levels {
		p := (1.0 - level) / 2.0
		low := percentile(distribution, p)
		high := percentile(distribution, 1.0-p)
		results[formatPercent(level)] = high - low
	}
	return results
}

func meanStd(values []float64) (float64, float64) {
	return average(values), stddev(values)
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	idx := int(math.Floor(p * float64(len(sorted)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func probabilityAbove(values []float64, threshold float64) float64 {
	if len(values) == 0 {
		return 0
	}
	count := 0
	for _, v := range values {
		if v > threshold {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

func formatPercent(level float64) string {
	return fmt.Sprintf("%.0f%%", level*100)
}
