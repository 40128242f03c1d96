package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/yourusername/vcp-scanner/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes scan results to a topic keyed by symbol, so one symbol's results stay
// ordered within a partition
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

// NewKafkaPublisher creates a publisher for the given brokers and topic
func NewKafkaPublisher(brokers []string, topic string, timeout time.Duration) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: writer, timeout: timeout}
}

// Publish writes one message per result
func (p *KafkaPublisher) Publish(ctx context.Context, result models.ScanResult) error {
	value, err := encode(result)
	if err != nil {
		return fmt.Errorf("failed to encode result for %s: %w", result.Symbol, err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	msg := kafka.Message{
		Key:   []byte(result.Symbol),
		Value: value,
		Time:  result.CompletedAt,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(result.Status)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write for %s: %w", result.Symbol, err)
	}
	return nil
}

// Name identifies the sink in logs and metrics
func (p *KafkaPublisher) Name() string {
	return "kafka"
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
