// Package config provides configuration management for the VCP scanner.
package config

import (
	"fmt"
)

// Config represents the complete application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app" validate:"required"`
	Indicators IndicatorConfig  `mapstructure:"indicators" validate:"required"`
	Detector   DetectorConfig   `mapstructure:"detector" validate:"required"`
	Backtest   BacktestConfig   `mapstructure:"backtest" validate:"required"`
	Batch      BatchConfig      `mapstructure:"batch" validate:"required"`
	DataSource DataSourceConfig `mapstructure:"data_source" validate:"required"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Publisher  PublisherConfig  `mapstructure:"publisher"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Server     ServerConfig     `mapstructure:"server"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Universe   []SymbolConfig   `mapstructure:"universe" validate:"required,min=1,dive"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// IndicatorConfig selects indicator windows
type IndicatorConfig struct {
	ATRWindows        []int   `mapstructure:"atr_windows" validate:"required,min=1,dive,gt=0"`
	BollingerPeriod   int     `mapstructure:"bollinger_period" validate:"required,gte=2"`
	BollingerK        float64 `mapstructure:"bollinger_k" validate:"required,gt=0"`
	VolumeWindows     []int   `mapstructure:"volume_windows" validate:"required,min=1,dive,gt=0"`
	RangeWindow       int     `mapstructure:"range_window" validate:"required,gte=2"`
	SqueezeLookback   int     `mapstructure:"squeeze_lookback" validate:"required,gt=0"`
	SqueezePercentile float64 `mapstructure:"squeeze_percentile" validate:"required,gt=0,lt=100"`
}

// DetectorConfig holds pattern detection thresholds and score weights
type DetectorConfig struct {
	MinBars                int                `mapstructure:"min_bars" validate:"required,gt=0"`
	Lookback               int                `mapstructure:"lookback" validate:"required,gt=0"`
	MaxCloseToHigh         float64            `mapstructure:"max_close_to_high" validate:"required,gt=0,lte=1"`
	MinBaseLength          int                `mapstructure:"min_base_length" validate:"required,gt=0"`
	MinBaseRangePct        float64            `mapstructure:"min_base_range_pct" validate:"gte=0"`
	MaxBaseRangePct        float64            `mapstructure:"max_base_range_pct" validate:"required,gt=0"`
	SwingWindow            int                `mapstructure:"swing_window" validate:"required,gt=0"`
	MinContractionBars     int                `mapstructure:"min_contraction_bars" validate:"required,gt=0"`
	MinContractionRangePct float64            `mapstructure:"min_contraction_range_pct" validate:"gte=0"`
	MaxContractionRangePct float64            `mapstructure:"max_contraction_range_pct" validate:"required,gt=0"`
	MinContractions        int                `mapstructure:"min_contractions" validate:"required,gt=0"`
	VolatilityVoteRatio    float64            `mapstructure:"volatility_vote_ratio" validate:"gte=0,lte=1"`
	VolumeVoteRatio        float64            `mapstructure:"volume_vote_ratio" validate:"gte=0,lte=1"`
	MinScore               float64            `mapstructure:"min_score" validate:"gte=0,lte=100"`
	SetupCompression       float64            `mapstructure:"setup_compression" validate:"required,gt=0"`
	BreakoutBufferPct      float64            `mapstructure:"breakout_buffer_pct" validate:"gte=0"`
	StopBufferPct          float64            `mapstructure:"stop_buffer_pct" validate:"gte=0,lt=100"`
	SlopeLookback          int                `mapstructure:"slope_lookback" validate:"required,gt=0"`
	RequireAboveShortMA    bool               `mapstructure:"require_above_short_ma"`
	Deduplicate            bool               `mapstructure:"deduplicate"`
	Weights                ScoreWeightsConfig `mapstructure:"weights"`
}

// ScoreWeightsConfig overrides the quality score weights; zero values keep the defaults
type ScoreWeightsConfig struct {
	ContractionMax   float64   `mapstructure:"contraction_max" validate:"gte=0"`
	ContractionCap   int       `mapstructure:"contraction_cap" validate:"gte=0"`
	VolatilityMax    float64   `mapstructure:"volatility_max" validate:"gte=0"`
	VolatilityTarget float64   `mapstructure:"volatility_target" validate:"gte=0"`
	VolumeMax        float64   `mapstructure:"volume_max" validate:"gte=0"`
	VolumeTarget     float64   `mapstructure:"volume_target" validate:"gte=0"`
	StagePoints      []float64 `mapstructure:"stage_points" validate:"omitempty,len=4"`
	StrengthMax      float64   `mapstructure:"strength_max" validate:"gte=0"`
	DeclineMax       float64   `mapstructure:"decline_max" validate:"gte=0"`
	DeclineDivisor   float64   `mapstructure:"decline_divisor" validate:"gte=0"`
}

// BacktestConfig represents backtesting configuration
type BacktestConfig struct {
	StartDate              string  `mapstructure:"start_date" validate:"omitempty,datetime"`
	EndDate                string  `mapstructure:"end_date" validate:"omitempty,datetime"`
	InitialCapital         float64 `mapstructure:"initial_capital" validate:"required,gt=0"`
	MinQuality             float64 `mapstructure:"min_quality" validate:"gte=0,lte=100"`
	MinStage               int     `mapstructure:"min_stage" validate:"gte=0,lte=4"`
	RequireSetupComplete   bool    `mapstructure:"require_setup_complete"`
	StopLossPct            float64 `mapstructure:"stop_loss_pct" validate:"required,gt=0,lt=100"`
	TrailingStopPct        float64 `mapstructure:"trailing_stop_pct" validate:"gte=0,lt=100"`
	ProfitTargetPct        float64 `mapstructure:"profit_target_pct" validate:"required,gt=0"`
	MaxHoldDays            int     `mapstructure:"max_hold_days" validate:"required,gt=0"`
	PositionSizePct        float64 `mapstructure:"position_size_pct" validate:"required,gt=0,lte=100"`
	MaxConcurrentPositions int     `mapstructure:"max_concurrent_positions" validate:"required,gt=0"`
	CommissionRate         float64 `mapstructure:"commission_rate" validate:"gte=0,lte=0.1"`
	RiskFreeRate           float64 `mapstructure:"risk_free_rate" validate:"gte=0,lte=1"`
	BenchmarkReturn        float64 `mapstructure:"benchmark_return"`
	OutputPath             string  `mapstructure:"output_path"`
}

// BatchConfig controls the concurrent scan
type BatchConfig struct {
	Workers              int `mapstructure:"workers" validate:"required,gt=0"`
	SymbolTimeoutSeconds int `mapstructure:"symbol_timeout_seconds" validate:"required,gt=0"`
	FetchAttempts        int `mapstructure:"fetch_attempts" validate:"required,gt=0"`
	RetryBackoffMillis   int `mapstructure:"retry_backoff_millis" validate:"gte=0"`
	HistoryDays          int `mapstructure:"history_days" validate:"required,gt=0"`
}

// DataSourceConfig selects and configures the bar provider
type DataSourceConfig struct {
	Provider       string  `mapstructure:"provider" validate:"required,provider"`
	BaseURL        string  `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey         string  `mapstructure:"api_key"`
	RateLimit      float64 `mapstructure:"rate_limit" validate:"gte=0"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" validate:"gte=0"`
	RetryMax       int     `mapstructure:"retry_max" validate:"gte=0"`
	CSVDir         string  `mapstructure:"csv_dir"`
	SQLitePath     string  `mapstructure:"sqlite_path"`
	MaxGapDays     int     `mapstructure:"max_gap_days" validate:"gte=0"`
}

// CacheConfig configures the bar cache tiers
type CacheConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	TTLSeconds    int    `mapstructure:"ttl_seconds" validate:"gte=0"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"gte=0"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port           int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name           string `mapstructure:"name" validate:"required_if=Enabled true"`
	User           string `mapstructure:"user" validate:"required_if=Enabled true"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections int    `mapstructure:"max_connections" validate:"gte=0"`
}

// PublisherConfig configures result publishing
type PublisherConfig struct {
	KafkaBrokers   []string `mapstructure:"kafka_brokers"`
	KafkaTopic     string   `mapstructure:"kafka_topic"`
	WebSocket      bool     `mapstructure:"websocket"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds" validate:"gte=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ServerConfig configures the health and streaming HTTP server
type ServerConfig struct {
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// ScheduleConfig configures recurring scans
type ScheduleConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron" validate:"required_if=Enabled true"`
}

// SecretsConfig points at the AWS Secrets Manager overlay
type SecretsConfig struct {
	AWSRegion  string `mapstructure:"aws_region"`
	SecretName string `mapstructure:"secret_name"`
}

// SymbolConfig is one scanned symbol with its externally supplied relative strength percentile
type SymbolConfig struct {
	Symbol           string  `mapstructure:"symbol" validate:"required"`
	RelativeStrength float64 `mapstructure:"relative_strength" validate:"gte=0,lte=100"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// Symbols returns the configured universe symbols in order
func (c *Config) Symbols() []string {
	out := make([]string, 0, len(c.Universe))
	for _, s := range c.Universe {
		out = append(out, s.Symbol)
	}
	return out
}
