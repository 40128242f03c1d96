// Package publisher fans batch results out to Kafka and WebSocket subscribers.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/vcp-scanner/internal/metrics"
	"github.com/yourusername/vcp-scanner/internal/models"
)

// Publisher delivers one symbol's scan result to a sink
type Publisher interface {
	Publish(ctx context.Context, result models.ScanResult) error
	Name() string
	Close() error
}

// Envelope is the wire shape shared by every sink
type Envelope struct {
	Type        string            `json:"type"`
	Symbol      string            `json:"symbol"`
	Status      models.ScanStatus `json:"status"`
	Error       string            `json:"error,omitempty"`
	Patterns    []models.Pattern  `json:"patterns"`
	Trades      []models.Trade    `json:"trades"`
	CompletedAt time.Time         `json:"completed_at"`
}

// NewEnvelope wraps a scan result for publishing
func NewEnvelope(result models.ScanResult) Envelope {
	return Envelope{
		Type:        "scan_result",
		Symbol:      result.Symbol,
		Status:      result.Status,
		Error:       result.Error,
		Patterns:    result.Patterns,
		Trades:      result.Trades,
		CompletedAt: result.CompletedAt,
	}
}

func encode(result models.ScanResult) ([]byte, error) {
	return json.Marshal(NewEnvelope(result))
}

// Multi publishes to every sink. A failing sink does not stop the others.
type Multi struct {
	sinks  []Publisher
	logger *logrus.Logger
}

// NewMulti combines sinks; nil entries are ignored
func NewMulti(log *logrus.Logger, sinks ...Publisher) *Multi {
	m := &Multi{logger: log}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Publish sends the result to every sink and joins their errors
func (m *Multi) Publish(ctx context.Context, result models.ScanResult) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Publish(ctx, result); err != nil {
			metrics.RecordPublishError(s.Name())
			m.logger.WithError(err).WithFields(logrus.Fields{
				"sink":   s.Name(),
				"symbol": result.Symbol,
			}).Warn("Publish failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Name identifies the combined sink
func (m *Multi) Name() string {
	return "multi"
}

// Len returns the number of configured sinks
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Close closes every sink
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
