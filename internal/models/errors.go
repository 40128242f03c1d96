package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks
var (
	ErrInsufficientData      = errors.New("insufficient data")
	ErrDegenerateCalculation = errors.New("degenerate calculation")
	ErrConfiguration         = errors.New("invalid configuration")
	ErrNotFound              = errors.New("record not found")
)

// InsufficientDataError signals that a stage needs more bars than were supplied. Non-fatal.
type InsufficientDataError struct {
	Stage    string
	Required int
	Got      int
}

func (e InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: need %d bars, got %d", e.Stage, e.Required, e.Got)
}

// Unwrap lets errors.Is match ErrInsufficientData
func (e InsufficientDataError) Unwrap() error {
	return ErrInsufficientData
}

// DegenerateCalculationError signals a zero or negative denominator
type DegenerateCalculationError struct {
	Quantity string
	Index    int
}

func (e DegenerateCalculationError) Error() string {
	return fmt.Sprintf("degenerate %s at bar %d", e.Quantity, e.Index)
}

// Unwrap lets errors.Is match ErrDegenerateCalculation
func (e DegenerateCalculationError) Unwrap() error {
	return ErrDegenerateCalculation
}

// ConfigurationError is returned for invalid thresholds; callers fail fast
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Reason
	}
	return "configuration: " + e.Field + ": " + e.Reason
}

// Unwrap lets errors.Is match ErrConfiguration
func (e ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// NewConfigurationError creates a configuration error for a field
func NewConfigurationError(field, reason string) ConfigurationError {
	return ConfigurationError{Field: field, Reason: reason}
}
