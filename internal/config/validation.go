package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/yourusername/vcp-scanner/internal/models"
)

const dateLayout = "2006-01-02"

// Providers lists the recognized bar provider kinds
var Providers = []string{"http", "csv", "sqlite"}

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("provider", validateProvider)
	_ = v.RegisterValidation("datetime", validateDateTime)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	cv := NewValidator()
	return cv.Validate(cfg)
}

// Validate validates the configuration using registered validation rules.
// Every failure is reported as a models.ConfigurationError.
func (cv *CustomValidator) Validate(cfg *Config) error {
	err := cv.validator.Struct(cfg)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return models.NewConfigurationError("", fmt.Sprintf("validation failed: %v", err))
	}

	if err := validateCrossField(cfg); err != nil {
		return err
	}

	return nil
}

func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func validateProvider(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	for _, p := range Providers {
		if value == p {
			return true
		}
	}
	return false
}

func validateDateTime(fl validator.FieldLevel) bool {
	_, err := time.Parse(dateLayout, fl.Field().String())
	return err == nil
}

// validateCrossField performs checks that span several fields
func validateCrossField(cfg *Config) error {
	if cfg.Backtest.StartDate != "" && cfg.Backtest.EndDate != "" {
		start, _ := time.Parse(dateLayout, cfg.Backtest.StartDate)
		end, _ := time.Parse(dateLayout, cfg.Backtest.EndDate)
		if !start.Before(end) {
			return models.NewConfigurationError("backtest.start_date", "must be before end_date")
		}
	}

	d := cfg.Detector
	if d.MinBaseRangePct >= d.MaxBaseRangePct {
		return models.NewConfigurationError("detector.min_base_range_pct", "must be below max_base_range_pct")
	}
	if d.MinContractionRangePct >= d.MaxContractionRangePct {
		return models.NewConfigurationError("detector.min_contraction_range_pct", "must be below max_contraction_range_pct")
	}
	if d.MinBaseLength > d.Lookback {
		return models.NewConfigurationError("detector.min_base_length", "cannot exceed lookback")
	}
	if 2*d.SwingWindow+1 > d.Lookback {
		return models.NewConfigurationError("detector.swing_window", "window does not fit in lookback")
	}

	switch cfg.DataSource.Provider {
	case "http":
		if cfg.DataSource.BaseURL == "" {
			return models.NewConfigurationError("data_source.base_url", "required for http provider")
		}
	case "csv":
		if cfg.DataSource.CSVDir == "" {
			return models.NewConfigurationError("data_source.csv_dir", "required for csv provider")
		}
	case "sqlite":
		if cfg.DataSource.SQLitePath == "" {
			return models.NewConfigurationError("data_source.sqlite_path", "required for sqlite provider")
		}
	}

	if len(cfg.Publisher.KafkaBrokers) > 0 && cfg.Publisher.KafkaTopic == "" {
		return models.NewConfigurationError("publisher.kafka_topic", "required when kafka brokers are set")
	}

	if cfg.Schedule.Enabled {
		parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(cfg.Schedule.Cron); err != nil {
			return models.NewConfigurationError("schedule.cron", err.Error())
		}
	}

	seen := make(map[string]bool, len(cfg.Universe))
	for _, s := range cfg.Universe {
		key := strings.ToUpper(s.Symbol)
		if seen[key] {
			return models.NewConfigurationError("universe", fmt.Sprintf("duplicate symbol %s", s.Symbol))
		}
		seen[key] = true
	}

	return nil
}

// formatValidationErrors formats validation errors into a single configuration error
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var errMsg string
	for _, fieldError := range validationErrors {
		field := fieldError.Namespace()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required", "required_if":
			errMsg += fmt.Sprintf("- Field '%s' is required\n", field)
		case "url":
			errMsg += fmt.Sprintf("- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max", "len":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "provider":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: %s\n", field, strings.Join(Providers, ", "))
		case "datetime":
			errMsg += fmt.Sprintf("- Field '%s' must be a date in YYYY-MM-DD format, got '%v'\n", field, value)
		case "oneof":
			errMsg += fmt.Sprintf("- Field '%s' has invalid value '%v'\n", field, value)
		default:
			errMsg += fmt.Sprintf("- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return models.NewConfigurationError("", "configuration validation failed:\n"+errMsg)
}

// ValidateEnvironment validates environment-specific requirements
func ValidateEnvironment(cfg *Config) error {
	if cfg.IsProduction() {
		if cfg.Database.Enabled && cfg.Database.SSLMode == "disable" {
			return models.NewConfigurationError("database.ssl_mode", "production requires 'require' or 'verify-full'")
		}
		if isTestCredential(cfg.DataSource.APIKey) {
			return models.NewConfigurationError("data_source.api_key", "production should not use a test API key")
		}
	}
	return nil
}

// isTestCredential checks if a credential looks like a test credential
func isTestCredential(credential string) bool {
	testPatterns := []string{
		"test", "demo", "example", "placeholder", "YOUR_",
	}

	for _, pattern := range testPatterns {
		if match, _ := regexp.MatchString("(?i)"+pattern, credential); match {
			return true
		}
	}

	return false
}
