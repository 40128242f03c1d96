package datasource

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/vcp-scanner/internal/config"
)

// SourceType represents the type of bar provider
type SourceType string

const (
	// HTTPSourceType is the JSON market data API
	HTTPSourceType SourceType = "http"
	// CSVSourceType is a directory of per-symbol CSV files
	CSVSourceType SourceType = "csv"
	// SQLiteSourceType is a local SQLite bar store
	SQLiteSourceType SourceType = "sqlite"
)

// Factory creates providers based on configuration
type Factory struct {
	logger  *logrus.Logger
	config  *config.Config
	closers []io.Closer
}

// NewFactory creates a new provider factory
func NewFactory(cfg *config.Config, logger *logrus.Logger) *Factory {
	if logger == nil {
		logger = logrus.New()
	}
	return &Factory{
		logger: logger,
		config: cfg,
	}
}

// NewProvider builds the configured provider, wrapped in the cache tiers when caching is enabled
func (f *Factory) NewProvider() (BarProvider, error) {
	if f.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	provider, err := f.Create(SourceType(f.config.DataSource.Provider))
	if err != nil {
		return nil, err
	}

	cacheCfg := f.config.Cache
	if !cacheCfg.Enabled {
		return provider, nil
	}

	var shared BarCache
	if cacheCfg.RedisAddr != "" {
		redisCache, err := NewRedisCache(RedisConfig{
			Addr:     cacheCfg.RedisAddr,
			Password: cacheCfg.RedisPassword,
			DB:       cacheCfg.RedisDB,
		})
		if err != nil {
			// The shared tier is an optimization; run without it.
			f.logger.WithError(err).Warn("Redis cache unavailable, using in-process cache only")
		} else {
			shared = redisCache
			f.closers = append(f.closers, redisCache)
		}
	}

	ttl := time.Duration(cacheCfg.TTLSeconds) * time.Second
	f.logger.WithFields(logrus.Fields{"provider": provider.Name(), "ttl": ttl, "redis": shared != nil}).Info("Bar cache enabled")
	return NewCachedProvider(provider, ttl, shared, f.logger), nil
}

// Create creates an uncached provider of the given type
func (f *Factory) Create(sourceType SourceType) (BarProvider, error) {
	dsCfg := f.config.DataSource
	switch sourceType {
	case HTTPSourceType:
		return f.createHTTPSource(dsCfg)
	case CSVSourceType:
		if dsCfg.CSVDir == "" {
			return nil, fmt.Errorf("csv provider requires data_source.csv_dir")
		}
		return NewCSVProvider(dsCfg.CSVDir, dsCfg.MaxGapDays), nil
	case SQLiteSourceType:
		if dsCfg.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite provider requires data_source.sqlite_path")
		}
		provider, err := NewSQLiteProvider(dsCfg.SQLitePath, dsCfg.MaxGapDays)
		if err != nil {
			return nil, err
		}
		f.closers = append(f.closers, provider)
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown data source type: %s", sourceType)
	}
}

func (f *Factory) createHTTPSource(dsCfg config.DataSourceConfig) (BarProvider, error) {
	if dsCfg.BaseURL == "" {
		return nil, fmt.Errorf("http provider requires data_source.base_url")
	}
	clientCfg := DefaultHTTPClientConfig()
	if dsCfg.TimeoutSeconds > 0 {
		clientCfg.Timeout = time.Duration(dsCfg.TimeoutSeconds) * time.Second
	}
	clientCfg.MaxRetries = dsCfg.RetryMax
	clientCfg.RateLimit = dsCfg.RateLimit

	client := NewRateLimitedHTTPClient(clientCfg, f.logger)
	f.closers = append(f.closers, client)
	return NewHTTPProvider(client, dsCfg.BaseURL, dsCfg.APIKey, dsCfg.MaxGapDays, f.logger), nil
}

// ListAvailableSources returns the provider types this build supports
func (f *Factory) ListAvailableSources() []SourceType {
	return []SourceType{HTTPSourceType, CSVSourceType, SQLiteSourceType}
}

// Close releases every resource opened by the factory
func (f *Factory) Close() error {
	var firstErr error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}
