// Package datasource provides daily bar providers and their caching and validation layers.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/vcp-scanner/internal/models"
)

// BarProvider fetches daily OHLCV bars for one symbol
type BarProvider interface {
	// GetBars returns bars dated within [start, end], oldest first
	GetBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error)

	// Name returns the name of the provider
	Name() string
}

// DataSourceError represents errors from data source operations
type DataSourceError struct {
	Source  string // Provider name
	Code    string // Error code (e.g., "data_gap")
	Message string // Error message
	Err     error  // Underlying error
}

func (e DataSourceError) Error() string {
	if e.Err != nil {
		return e.Source + ": " + e.Code + ": " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Source + ": " + e.Code + ": " + e.Message
}

// Unwrap returns the underlying error
func (e DataSourceError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeRateLimitExceeded    = "rate_limit_exceeded"
	ErrCodeAuthenticationFailed = "authentication_failed"
	ErrCodeNotFound             = "not_found"
	ErrCodeInvalidData          = "invalid_data"
	ErrCodeDataGap              = "data_gap"
	ErrCodeNetworkError         = "network_error"
	ErrCodeServerError          = "server_error"
	ErrCodeUnknown              = "unknown"
)

// NewDataSourceError creates a new data source error
func NewDataSourceError(source, code, message string, err error) DataSourceError {
	return DataSourceError{
		Source:  source,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsRetryable reports whether a failed fetch may succeed on a later attempt. Data problems and
// cancellation are final; transport failures are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var dsErr DataSourceError
	if errors.As(err, &dsErr) {
		switch dsErr.Code {
		case ErrCodeNotFound, ErrCodeInvalidData, ErrCodeDataGap, ErrCodeAuthenticationFailed:
			return false
		}
	}
	return true
}

// finalizeBars trims bars to [start, end] and enforces ordering, price sanity and the gap limit
func finalizeBars(source, symbol string, bars []models.Bar, start, end time.Time, maxGapDays int) ([]models.Bar, error) {
	out := make([]models.Bar, 0, len(bars))
	for _, b := range bars {
		if !start.IsZero() && b.Date.Before(start) {
			continue
		}
		if !end.IsZero() && b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil, NewDataSourceError(source, ErrCodeNotFound, fmt.Sprintf("no bars for %s", symbol), nil)
	}

	if _, err := models.NewSeries(symbol, out); err != nil {
		return nil, NewDataSourceError(source, ErrCodeInvalidData, fmt.Sprintf("invalid bars for %s", symbol), err)
	}

	if gaps := models.FindGaps(out, maxGapDays); len(gaps) > 0 {
		g := gaps[0]
		return nil, NewDataSourceError(source, ErrCodeDataGap,
			fmt.Sprintf("%s has %d gap(s); first is %d days from %s to %s", symbol, len(gaps), g.Days,
				g.From.Format(dateLayout), g.To.Format(dateLayout)), nil)
	}
	return out, nil
}

const dateLayout = "2006-01-02"
