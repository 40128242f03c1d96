// Package main provides the VCP scanner CLI: one-off scans, the scheduled service and stored runs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/vcp-scanner/internal/config"
	"github.com/yourusername/vcp-scanner/internal/database"
	"github.com/yourusername/vcp-scanner/internal/health"
	"github.com/yourusername/vcp-scanner/internal/logger"
	"github.com/yourusername/vcp-scanner/internal/metrics"
	"github.com/yourusername/vcp-scanner/internal/repository"
	"github.com/yourusername/vcp-scanner/internal/scheduler"
	"github.com/yourusername/vcp-scanner/internal/service"
)

const scanTimeout = 2 * time.Hour

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	configFile string
	cfg        *config.Config
	appLog     *logrus.Logger

	withBacktest bool
	jsonOutput   bool
	persist      bool
	runLimit     int
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")

	scanCmd.Flags().BoolVar(&withBacktest, "backtest", false, "Simulate trades on detected patterns")
	scanCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	scanCmd.Flags().BoolVar(&persist, "persist", false, "Store patterns in PostgreSQL")

	runsCmd.Flags().IntVar(&runLimit, "limit", 10, "Number of runs to list")

	rootCmd.AddCommand(scanCmd, serveCmd, runsCmd)
}

var rootCmd = &cobra.Command{
	Use:   "vcp-scanner",
	Short: "Detect volatility contraction patterns",
	Long:  `Scans a symbol universe for volatility contraction patterns and optionally backtests them.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		appLog = logger.NewLoggerForEnvironment(cfg.App.LogLevel, cfg.App.Environment)
		return nil
	},
	SilenceUsage: true,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan over the configured universe",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipeline, err := service.NewPipeline(cmd.Context(), cfg, appLog, service.PipelineOptions{
			Backtest: withBacktest,
			Persist:  persist,
		})
		if err != nil {
			return err
		}
		defer pipeline.Close()

		result, runErr := pipeline.Run(cmd.Context())
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result.Results); err != nil {
				return err
			}
		} else {
			printPatterns(result)
		}
		return runErr
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled scans and serve health, metrics and the pattern stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored backtest runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Database.Enabled {
			return fmt.Errorf("database is not enabled in configuration")
		}
		db, err := database.NewDB(cmd.Context(), &cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := repository.NewPostgresBacktestRunRepository(db).ListRuns(cmd.Context(), runLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tCREATED\tTRADES\tRETURN %\tSHARPE\tMAX DD %")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%.2f\t%.2f\n",
				r.ID, r.CreatedAt.Format(time.RFC3339), r.TotalTrades, r.TotalReturnPct, r.SharpeRatio, r.MaxDrawdownPct)
		}
		return w.Flush()
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig(ctx context.Context) error {
	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return err
	}
	if err := config.LoadSecretsFromAWS(ctx, cfg); err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	return config.ValidateEnvironment(cfg)
}

func printPatterns(result *service.BatchResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tBASE END\tSTAGE\tSCORE\tCONTRACTIONS\tBREAKOUT\tSTOP\tSETUP")
	for _, p := range result.Patterns() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%d\t%.2f\t%.2f\t%t\n",
			p.Symbol, p.BaseEndDate.Format("2006-01-02"), p.Stage, p.QualityScore,
			len(p.Contractions), p.BreakoutPrice, p.StopLossPrice, p.SetupComplete)
	}
	w.Flush()

	for _, f := range result.Failed {
		fmt.Printf("FAILED %s: %s\n", f.Symbol, f.Reason)
	}
	fmt.Println(result.Summary.String())
}

func serve(ctx context.Context) error {
	pipeline, err := service.NewPipeline(ctx, cfg, appLog, service.PipelineOptions{
		Backtest: true,
		Persist:  true,
		Stream:   true,
	})
	if err != nil {
		return err
	}
	defer pipeline.Close()

	metrics.InitRegistry()

	handlers := map[string]http.Handler{}
	if cfg.Metrics.Enabled {
		handlers["/metrics"] = metrics.Handler()
	}
	if pipeline.Hub != nil {
		handlers["/ws/patterns"] = pipeline.Hub
	}

	sched := scheduler.NewScheduler(appLog, scanTimeout)
	scan := func(ctx context.Context) error {
		_, err := pipeline.Run(ctx)
		return err
	}

	var db health.DatabasePinger
	if pipeline.DB != nil {
		db = pipeline.DB
	}
	server := health.NewServer(health.Config{
		ServiceName: cfg.App.Name,
		Version:     Version + "+" + GitCommit,
		Port:        cfg.Server.Port,
		Logger:      appLog,
		DB:          db,
		Handlers:    handlers,
		Checks: map[string]health.CheckFunc{
			"last_scan": func(context.Context) error {
				_, err := sched.LastRun()
				return err
			},
		},
	})
	if err := server.Start(ctx); err != nil {
		return err
	}

	if err := scan(ctx); err != nil {
		appLog.WithError(err).Warn("Initial scan ended early")
	}
	server.SetReady(true)

	if !cfg.Schedule.Enabled {
		appLog.Info("Schedule disabled; serving results of the initial scan")
		<-ctx.Done()
		return nil
	}

	if err := sched.ScheduleScan(cfg.Schedule.Cron, "universe_scan", scan); err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	server.SetReady(false)

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}
