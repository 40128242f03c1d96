package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/vcp-scanner/internal/logger"
	"github.com/yourusername/vcp-scanner/internal/models"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

type stubSink struct {
	name  string
	err   error
	calls int
}

func (s *stubSink) Publish(context.Context, models.ScanResult) error {
	s.calls++
	return s.err
}
func (s *stubSink) Name() string { return s.name }
func (s *stubSink) Close() error { return nil }

func okResult(symbol string) models.ScanResult {
	return models.ScanResult{
		Symbol:      symbol,
		Status:      models.ScanStatusOK,
		Patterns:    []models.Pattern{},
		Trades:      []models.Trade{},
		CompletedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestKafkaPublisherKeysBySymbol(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, timeout: time.Second}

	require.NoError(t, p.Publish(context.Background(), okResult("INFY")))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "INFY", string(w.msgs[0].Key))
	assert.Equal(t, "ok", string(w.msgs[0].Headers[0].Value))

	var env Envelope
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &env))
	assert.Equal(t, "scan_result", env.Type)
	assert.Equal(t, "INFY", env.Symbol)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisherWrapsErrors(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("leader not available")}}
	err := p.Publish(context.Background(), okResult("INFY"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INFY")
}

func TestMultiContinuesAfterFailure(t *testing.T) {
	failing := &stubSink{name: "a", err: errors.New("down")}
	healthy := &stubSink{name: "b"}
	m := NewMulti(logger.NewDiscardLogger(), failing, nil, healthy)

	assert.Equal(t, 2, m.Len())
	err := m.Publish(context.Background(), okResult("TCS"))
	require.Error(t, err)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, healthy.calls)
}

func TestHubStreamsResults(t *testing.T) {
	hub := NewHub(logger.NewDiscardLogger())
	server := httptest.NewServer(hub)
	defer server.Close()

	require.NoError(t, hub.Publish(context.Background(), okResult("AAA")))

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var snapshot Envelope
	require.NoError(t, json.Unmarshal(data, &snapshot))
	assert.Equal(t, "AAA", snapshot.Symbol, "new clients receive the latest results first")

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Publish(context.Background(), okResult("BBB")))

	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	var live Envelope
	require.NoError(t, json.Unmarshal(data, &live))
	assert.Equal(t, "BBB", live.Symbol)

	require.NoError(t, hub.Close())
	assert.Error(t, hub.Publish(context.Background(), okResult("CCC")))
}
