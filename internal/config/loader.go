package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix         = "VCP"
	defaultConfigPath = "config/config.yaml"
)

// Load reads and parses the configuration from file and environment variables.
// It expands environment variable placeholders in the YAML file (${VAR_NAME}).
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	setDefaults(v)

	expanded := os.ExpandEnv(string(data))
	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration, falling back to defaults and environment
// variables when the file does not exist
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	v := newViper()
	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		expanded := os.ExpandEnv(string(data))
		if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// ReloadFromEnv reloads the configuration from VCP_CONFIG_PATH when it is set
func ReloadFromEnv(cfg *Config) error {
	if envPath := os.Getenv(envPrefix + "_CONFIG_PATH"); envPath != "" {
		newCfg, err := Load(envPath)
		if err != nil {
			return err
		}
		*cfg = *newCfg
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults registers every scalar default so environment overrides bind even when the
// key is absent from the file
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "vcp-scanner")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("indicators.atr_windows", []int{14, 20})
	v.SetDefault("indicators.bollinger_period", 20)
	v.SetDefault("indicators.bollinger_k", 2.0)
	v.SetDefault("indicators.volume_windows", []int{20, 50})
	v.SetDefault("indicators.range_window", 20)
	v.SetDefault("indicators.squeeze_lookback", 50)
	v.SetDefault("indicators.squeeze_percentile", 20.0)

	v.SetDefault("detector.min_bars", 100)
	v.SetDefault("detector.lookback", 252)
	v.SetDefault("detector.max_close_to_high", 0.98)
	v.SetDefault("detector.min_base_length", 20)
	v.SetDefault("detector.min_base_range_pct", 5.0)
	v.SetDefault("detector.max_base_range_pct", 50.0)
	v.SetDefault("detector.swing_window", 5)
	v.SetDefault("detector.min_contraction_bars", 3)
	v.SetDefault("detector.min_contraction_range_pct", 2.0)
	v.SetDefault("detector.max_contraction_range_pct", 25.0)
	v.SetDefault("detector.min_contractions", 3)
	v.SetDefault("detector.volatility_vote_ratio", 0.5)
	v.SetDefault("detector.volume_vote_ratio", 0.4)
	v.SetDefault("detector.min_score", 60.0)
	v.SetDefault("detector.setup_compression", 1.2)
	v.SetDefault("detector.breakout_buffer_pct", 2.0)
	v.SetDefault("detector.stop_buffer_pct", 8.0)
	v.SetDefault("detector.slope_lookback", 20)

	v.SetDefault("backtest.initial_capital", 100000.0)
	v.SetDefault("backtest.min_quality", 60.0)
	v.SetDefault("backtest.min_stage", 1)
	v.SetDefault("backtest.stop_loss_pct", 8.0)
	v.SetDefault("backtest.trailing_stop_pct", 0.0)
	v.SetDefault("backtest.profit_target_pct", 20.0)
	v.SetDefault("backtest.max_hold_days", 60)
	v.SetDefault("backtest.position_size_pct", 10.0)
	v.SetDefault("backtest.max_concurrent_positions", 1)
	v.SetDefault("backtest.commission_rate", 0.001)
	v.SetDefault("backtest.risk_free_rate", 0.06)
	v.SetDefault("backtest.output_path", "output")

	v.SetDefault("batch.workers", 4)
	v.SetDefault("batch.symbol_timeout_seconds", 60)
	v.SetDefault("batch.fetch_attempts", 3)
	v.SetDefault("batch.retry_backoff_millis", 500)
	v.SetDefault("batch.history_days", 730)

	v.SetDefault("data_source.provider", "csv")
	v.SetDefault("data_source.csv_dir", "data")
	v.SetDefault("data_source.rate_limit", 5.0)
	v.SetDefault("data_source.timeout_seconds", 30)
	v.SetDefault("data_source.retry_max", 3)
	v.SetDefault("data_source.max_gap_days", 10)

	v.SetDefault("cache.ttl_seconds", 3600)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("publisher.timeout_seconds", 10)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("schedule.cron", "0 30 21 * * 1-5")
}
