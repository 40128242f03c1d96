package backtest

import (
	"context"
	"errors"
	"testing"

	"github.com/yourusername/vcp-scanner/internal/models"
)

func TestRunMonteCarloDeterministic(t *testing.T) {
	trades := []models.Trade{
		closedTrade("A", 0, 5, 1200, 12),
		closedTrade("A", 6, 9, -800, -8),
		closedTrade("B", 3, 20, 400, 4),
	}
	cfg := MonteCarloConfig{Iterations: 500, Seed: 42, InitialCapital: 100000}

	first, err := RunMonteCarlo(context.Background(), trades, cfg)
	if err != nil {
		t.Fatalf("RunMonteCarlo failed: %v", err)
	}
	second, err := RunMonteCarlo(context.Background(), trades, cfg)
	if err != nil {
		t.Fatalf("RunMonteCarlo failed: %v", err)
	}

	if first.Iterations != 500 || len(first.Distribution) != 500 {
		t.Fatalf("expected 500 iterations")
	}
	if first.MeanReturnPct != second.MeanReturnPct {
		t.Fatalf("expected a fixed seed to reproduce results")
	}
	if first.ProbabilityOfProfit <= 0 || first.ProbabilityOfProfit > 1 {
		t.Fatalf("unexpected probability of profit %v", first.ProbabilityOfProfit)
	}
	if first.ProbabilityOfRuin != 0 {
		t.Fatalf("small trades should never ruin the account")
	}
	if first.WorstMaxDrawdown < first.MedianMaxDrawdown {
		t.Fatalf("worst drawdown below median")
	}
}

func TestRunMonteCarloRequiresTrades(t *testing.T) {
	_, err := RunMonteCarlo(context.Background(), nil, MonteCarloConfig{InitialCapital: 100})
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected insufficient data error, got %v", err)
	}
}

func TestRunMonteCarloCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunMonteCarlo(ctx, []models.Trade{closedTrade("A", 0, 1, 1, 1)}, MonteCarloConfig{InitialCapital: 100})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
