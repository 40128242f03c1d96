// Package main provides the entry point for the backtesting CLI tool.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/vcp-scanner/internal/backtest"
	"github.com/yourusername/vcp-scanner/internal/config"
	"github.com/yourusername/vcp-scanner/internal/logger"
	"github.com/yourusername/vcp-scanner/internal/service"
)

func main() {
	var (
		configPath = flag.String("config", "config/config.yaml", "Path to config file")
		startDate  = flag.String("start-date", "", "Override start date (YYYY-MM-DD)")
		endDate    = flag.String("end-date", "", "Override end date (YYYY-MM-DD)")
		symbols    = flag.String("symbols", "", "Comma-separated symbols replacing the configured universe")
		output     = flag.String("output", "", "Directory for JSON and CSV exports")
		monteCarlo = flag.Int("monte-carlo", 0, "Monte Carlo iterations over the closed trades (0 disables)")
		seed       = flag.Int64("seed", 0, "Monte Carlo seed (0 uses the clock)")
		persist    = flag.Bool("persist", false, "Store patterns and the run in PostgreSQL")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadConfigWithSecrets(ctx, *configPath)
	applyOverrides(cfg, *startDate, *endDate, *symbols, *output)
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLoggerForEnvironment(cfg.App.LogLevel, cfg.App.Environment)
	pipeline, err := service.NewPipeline(ctx, cfg, log, service.PipelineOptions{Backtest: true, Persist: *persist})
	if err != nil {
		log.WithError(err).Error("Failed to build pipeline")
		os.Exit(1)
	}

	if code := execute(ctx, log, cfg, pipeline, *monteCarlo, *seed); code != 0 {
		os.Exit(code)
	}
}

// backtestPipeline is the part of service.Pipeline the CLI drives
type backtestPipeline interface {
	Run(ctx context.Context) (*service.BatchResult, error)
	Close() error
}

// execute runs the backtest and always closes p before returning the process exit code
func execute(ctx context.Context, log *logrus.Logger, cfg *config.Config, p backtestPipeline, monteCarlo int, seed int64) int {
	runErr := runBacktest(ctx, log, cfg, p, monteCarlo, seed)
	if err := p.Close(); err != nil {
		log.WithError(err).Warn("Failed to close pipeline")
	}
	if runErr != nil {
		log.WithError(runErr).Error("Backtest failed")
		return 1
	}
	return 0
}

// runBacktest runs the scan, prints the report and writes exports. The caller owns closing p.
func runBacktest(ctx context.Context, log *logrus.Logger, cfg *config.Config, p backtestPipeline, monteCarlo int, seed int64) error {
	log.WithField("symbols", len(cfg.Universe)).Info("Starting backtest")
	result, err := p.Run(ctx)
	if err != nil {
		log.WithError(err).Warn("Backtest interrupted; reporting partial results")
	}
	if result == nil || result.Backtest == nil {
		return errors.New("backtest produced no results")
	}

	fmt.Println(backtest.GenerateConsoleReport(result.Backtest))
	fmt.Println(result.Summary.String())

	if monteCarlo > 0 {
		runMonteCarlo(ctx, log, result.Backtest, monteCarlo, seed)
	}

	if cfg.Backtest.OutputPath != "" {
		path, err := backtest.ExportJSON(result.Backtest, cfg.Backtest.OutputPath)
		if err != nil {
			return fmt.Errorf("failed to export results: %w", err)
		}
		log.WithField("path", path).Info("Results exported")
	}
	return nil
}

func loadConfigWithSecrets(ctx context.Context, path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.LoadSecretsFromAWS(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load secrets: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func applyOverrides(cfg *config.Config, start, end, symbols, output string) {
	if start != "" {
		cfg.Backtest.StartDate = start
	}
	if end != "" {
		cfg.Backtest.EndDate = end
	}
	if output != "" {
		cfg.Backtest.OutputPath = output
	}
	if symbols != "" {
		cfg.Universe = cfg.Universe[:0]
		for _, s := range strings.Split(symbols, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Universe = append(cfg.Universe, config.SymbolConfig{Symbol: s})
			}
		}
	}
}

func runMonteCarlo(ctx context.Context, log *logrus.Logger, results *backtest.Results, iterations int, seed int64) {
	mc, err := backtest.RunMonteCarlo(ctx, results.Trades, backtest.MonteCarloConfig{
		Iterations:     iterations,
		Seed:           seed,
		InitialCapital: results.Config.InitialCapital,
	})
	if err != nil {
		log.WithError(err).Warn("Monte Carlo skipped")
		return
	}
	log.WithFields(logrus.Fields{
		"iterations":            mc.Iterations,
		"mean_return_pct":       mc.MeanReturnPct,
		"var_95_pct":            mc.VaR95Pct,
		"probability_of_profit": mc.ProbabilityOfProfit,
		"probability_of_ruin":   mc.ProbabilityOfRuin,
	}).Info("Monte Carlo completed")
}
