package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/vcp-scanner/internal/backtest"
	"github.com/yourusername/vcp-scanner/internal/config"
	"github.com/yourusername/vcp-scanner/internal/database"
	"github.com/yourusername/vcp-scanner/internal/datasource"
	"github.com/yourusername/vcp-scanner/internal/detector"
	"github.com/yourusername/vcp-scanner/internal/publisher"
	"github.com/yourusername/vcp-scanner/internal/repository"
)

// PipelineOptions selects which optional stages are wired
type PipelineOptions struct {
	Backtest bool
	Persist  bool
	Stream   bool
	Now      time.Time
}

// Pipeline bundles a ready batch runner with the resources it owns
type Pipeline struct {
	Runner    *BatchRunner
	Requests  []SymbolRequest
	Simulator *backtest.Simulator
	DB        *database.DB
	Repos     *repository.Repositories
	Hub       *publisher.Hub

	factory   *datasource.Factory
	publisher *publisher.Multi
	logger    *logrus.Logger
}

// NewPipeline wires provider, detector, simulator and sinks from configuration. The database is
// only opened when persistence is requested and enabled in config.
func NewPipeline(ctx context.Context, cfg *config.Config, log *logrus.Logger, opts PipelineOptions) (*Pipeline, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	p := &Pipeline{
		Requests: RequestsFromConfig(cfg),
		factory:  datasource.NewFactory(cfg, log),
		logger:   log,
	}

	provider, err := p.factory.NewProvider()
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to create bar provider: %w", err)
	}

	detCfg, err := detector.FromConfig(&cfg.Detector, &cfg.Indicators)
	if err != nil {
		p.Close()
		return nil, err
	}
	det, err := detector.New(detCfg, log)
	if err != nil {
		p.Close()
		return nil, err
	}

	if opts.Backtest {
		btCfg, err := backtest.FromConfig(&cfg.Backtest)
		if err != nil {
			p.Close()
			return nil, err
		}
		if p.Simulator, err = backtest.NewSimulator(btCfg, log); err != nil {
			p.Close()
			return nil, err
		}
	}

	batchCfg, err := BatchConfigFromConfig(cfg, now)
	if err != nil {
		p.Close()
		return nil, err
	}

	var runnerOpts []Option
	if opts.Persist && cfg.Database.Enabled {
		if p.DB, err = database.Initialize(ctx, cfg, log); err != nil {
			p.Close()
			return nil, err
		}
		if p.Repos, err = repository.NewRepositories(p.DB); err != nil {
			p.Close()
			return nil, err
		}
		runnerOpts = append(runnerOpts, WithPatternStore(p.Repos.Pattern), WithRunStore(p.Repos.BacktestRun))
	}

	var sinks []publisher.Publisher
	if len(cfg.Publisher.KafkaBrokers) > 0 {
		timeout := time.Duration(cfg.Publisher.TimeoutSeconds) * time.Second
		sinks = append(sinks, publisher.NewKafkaPublisher(cfg.Publisher.KafkaBrokers, cfg.Publisher.KafkaTopic, timeout))
	}
	if opts.Stream && cfg.Publisher.WebSocket {
		p.Hub = publisher.NewHub(log)
		sinks = append(sinks, p.Hub)
	}
	if len(sinks) > 0 {
		p.publisher = publisher.NewMulti(log, sinks...)
		runnerOpts = append(runnerOpts, WithPublisher(p.publisher))
	}

	if p.Runner, err = NewBatchRunner(provider, det, p.Simulator, batchCfg, log, runnerOpts...); err != nil {
		p.Close()
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"provider": provider.Name(),
		"symbols":  len(p.Requests),
		"backtest": p.Simulator != nil,
		"persist":  p.Repos != nil,
		"sinks":    len(sinks),
		"start":    batchCfg.Start.Format("2006-01-02"),
		"end":      batchCfg.End.Format("2006-01-02"),
	}).Info("Pipeline ready")
	return p, nil
}

// Run scans the configured universe
func (p *Pipeline) Run(ctx context.Context) (*BatchResult, error) {
	return p.Runner.Run(ctx, p.Requests)
}

// Close releases sinks, the database and provider resources
func (p *Pipeline) Close() error {
	var errs []error
	if p.publisher != nil {
		errs = append(errs, p.publisher.Close())
	}
	if p.DB != nil {
		p.DB.Close()
	}
	if p.factory != nil {
		errs = append(errs, p.factory.Close())
	}
	return errors.Join(errs...)
}
