package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/vcp-scanner/internal/config"
	"github.com/yourusername/vcp-scanner/internal/logger"
	"github.com/yourusername/vcp-scanner/internal/models"
)

func day(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func testClient() *RateLimitedHTTPClient {
	return NewRateLimitedHTTPClient(HTTPClientConfig{
		Timeout:           2 * time.Second,
		MaxRetries:        2,
		RetryWaitMin:      time.Millisecond,
		RetryWaitMax:      5 * time.Millisecond,
		CircuitBreakerMax: 5,
	}, logger.NewDiscardLogger())
}

func barsJSON(n int) string {
	rows := make([]string, n)
	for i := 0; i < n; i++ {
		rows[i] = fmt.Sprintf(`{"date":"%s","open":10,"high":11,"low":9,"close":10.5,"volume":1000}`, day(i).Format(dateLayout))
	}
	return `{"symbol":"ABC","bars":[` + strings.Join(rows, ",") + `]}`
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var dsErr DataSourceError
	require.True(t, errors.As(err, &dsErr), "expected DataSourceError, got %v", err)
	assert.Equal(t, code, dsErr.Code)
}

func TestHTTPProviderGetBars(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bars/ABC", r.URL.Path)
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("from"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, barsJSON(5))
	}))
	defer server.Close()

	provider := NewHTTPProvider(testClient(), server.URL+"/", "secret", 10, logger.NewDiscardLogger())
	bars, err := provider.GetBars(context.Background(), "ABC", day(0), day(3))
	require.NoError(t, err)
	require.Len(t, bars, 4)
	assert.Equal(t, day(3), bars[3].Date)
	assert.Equal(t, "http", provider.Name())
}

func TestHTTPProviderRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, barsJSON(3))
	}))
	defer server.Close()

	provider := NewHTTPProvider(testClient(), server.URL, "", 10, logger.NewDiscardLogger())
	bars, err := provider.GetBars(context.Background(), "ABC", day(0), day(10))
	require.NoError(t, err)
	assert.Len(t, bars, 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPProviderStatusCodes(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{http.StatusNotFound, ErrCodeNotFound},
		{http.StatusUnauthorized, ErrCodeAuthenticationFailed},
		{http.StatusBadRequest, ErrCodeServerError},
		{http.StatusInternalServerError, ErrCodeServerError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			provider := NewHTTPProvider(testClient(), server.URL, "", 10, logger.NewDiscardLogger())
			_, err := provider.GetBars(context.Background(), "ABC", day(0), day(10))
			assertCode(t, err, tt.code)
		})
	}
}

func TestHTTPProviderInvalidPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"bars":[{"date":"01/02/2024","open":1,"high":1,"low":1,"close":1}]}`)
	}))
	defer server.Close()

	provider := NewHTTPProvider(testClient(), server.URL, "", 10, logger.NewDiscardLogger())
	_, err := provider.GetBars(context.Background(), "ABC", day(0), day(10))
	assertCode(t, err, ErrCodeInvalidData)
	assert.False(t, IsRetryable(err))
}

func TestCircuitBreakerOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewRateLimitedHTTPClient(HTTPClientConfig{
		Timeout:           time.Second,
		MaxRetries:        0,
		CircuitBreakerMax: 1,
	}, logger.NewDiscardLogger())

	_, err := client.Get(context.Background(), url)
	require.Error(t, err)

	_, err = client.Get(context.Background(), url)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")

	client.Reset()
	_, err = client.Get(context.Background(), url)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "circuit breaker open")
}

func writeCSV(t *testing.T, dir, symbol, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, symbol+".csv"), []byte(body), 0o644))
}

func TestCSVProvider(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "ABC", "Date,Open,High,Low,Close,Volume,Adj Close\n"+
		"2024-01-03,10,11,9,10.5,1000,10.5\n"+
		"2024-01-01,10,11,9,10.5,1000,10.5\n"+
		"2024-01-02,10,11,9,10.5,1000,10.5\n")

	provider := NewCSVProvider(dir, 10)
	bars, err := provider.GetBars(context.Background(), "abc", day(0), day(5))
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, day(0), bars[0].Date, "rows must come back oldest first")

	_, err = provider.GetBars(context.Background(), "XYZ", day(0), day(5))
	assertCode(t, err, ErrCodeNotFound)
}

func TestCSVProviderKeepsZeroPriceRows(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "ABC", "date,open,high,low,close,volume\n"+
		"2024-01-01,10,11,9,10.5,1000\n"+
		"2024-01-02,10,11,0,10.5,1000\n")

	bars, err := NewCSVProvider(dir, 10).GetBars(context.Background(), "ABC", day(0), day(5))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 0.0, bars[1].Low)
}

func TestCSVProviderRejectsBadRows(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing column", "date,open,high,low,close\n2024-01-01,1,1,1,1\n", ErrCodeInvalidData},
		{"bad number", "date,open,high,low,close,volume\n2024-01-01,x,1,1,1,1\n", ErrCodeInvalidData},
		{"high below low", "date,open,high,low,close,volume\n2024-01-01,1,1,2,1,1\n", ErrCodeInvalidData},
		{"negative price", "date,open,high,low,close,volume\n2024-01-01,1,1,-1,1,1\n", ErrCodeInvalidData},
		{"gap", "date,open,high,low,close,volume\n2024-01-01,1,1,1,1,1\n2024-03-01,1,1,1,1,1\n", ErrCodeDataGap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeCSV(t, dir, "ABC", tt.body)
			_, err := NewCSVProvider(dir, 10).GetBars(context.Background(), "ABC", day(0), day(120))
			assertCode(t, err, tt.code)
		})
	}
}

func TestSQLiteProviderRoundTrip(t *testing.T) {
	provider, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "bars.db"), 10)
	require.NoError(t, err)
	defer provider.Close()

	bars := []models.Bar{
		{Date: day(0), Open: 10, High: 11, Low: 9, Close: 10, Volume: 100},
		{Date: day(1), Open: 10, High: 12, Low: 10, Close: 11, Volume: 200},
		{Date: day(2), Open: 11, High: 12, Low: 10, Close: 12, Volume: 300},
	}
	ctx := context.Background()
	require.NoError(t, provider.SaveBars(ctx, "abc", bars))
	require.NoError(t, provider.SaveBars(ctx, "ABC", bars[2:]), "saving twice must upsert")

	got, err := provider.GetBars(ctx, "ABC", day(1), day(2))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 11.0, got[0].Close)
	assert.Equal(t, day(2), got[1].Date)

	_, err = provider.GetBars(ctx, "NONE", day(0), day(2))
	assertCode(t, err, ErrCodeNotFound)
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	args := m.Called(ctx, symbol, start, end)
	bars, _ := args.Get(0).([]models.Bar)
	return bars, args.Error(1)
}

func (m *mockProvider) Name() string { return "mock" }

type memoryShared struct {
	data map[string][]models.Bar
}

func (m *memoryShared) Get(_ context.Context, key string) ([]models.Bar, bool, error) {
	bars, ok := m.data[key]
	return bars, ok, nil
}

func (m *memoryShared) Set(_ context.Context, key string, bars []models.Bar, _ time.Duration) error {
	m.data[key] = bars
	return nil
}

func TestCachedProviderServesRepeatsFromMemory(t *testing.T) {
	next := &mockProvider{}
	bars := []models.Bar{{Date: day(0), Open: 1, High: 1, Low: 1, Close: 1}}
	next.On("GetBars", mock.Anything, "ABC", day(0), day(5)).Return(bars, nil).Once()

	shared := &memoryShared{data: map[string][]models.Bar{}}
	cached := NewCachedProvider(next, time.Minute, shared, logger.NewDiscardLogger())

	for i := 0; i < 3; i++ {
		got, err := cached.GetBars(context.Background(), "ABC", day(0), day(5))
		require.NoError(t, err)
		assert.Equal(t, bars, got)
	}
	next.AssertExpectations(t)
	assert.Len(t, shared.data, 1)
	assert.Equal(t, "mock", cached.Name())
}

func TestCachedProviderUsesSharedTier(t *testing.T) {
	next := &mockProvider{}
	bars := []models.Bar{{Date: day(0), Open: 1, High: 1, Low: 1, Close: 1}}
	shared := &memoryShared{data: map[string][]models.Bar{
		cacheKey("mock", "ABC", day(0), day(5)): bars,
	}}

	cached := NewCachedProvider(next, time.Minute, shared, logger.NewDiscardLogger())
	got, err := cached.GetBars(context.Background(), "ABC", day(0), day(5))
	require.NoError(t, err)
	assert.Equal(t, bars, got)
	next.AssertNotCalled(t, "GetBars", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCachedProviderDoesNotCacheErrors(t *testing.T) {
	next := &mockProvider{}
	failure := NewDataSourceError("mock", ErrCodeNetworkError, "down", nil)
	next.On("GetBars", mock.Anything, "ABC", day(0), day(5)).Return(nil, failure).Twice()

	cached := NewCachedProvider(next, time.Minute, nil, logger.NewDiscardLogger())
	for i := 0; i < 2; i++ {
		_, err := cached.GetBars(context.Background(), "ABC", day(0), day(5))
		require.Error(t, err)
	}
	next.AssertExpectations(t)

	cached.Invalidate("abc")
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(fmt.Errorf("wrapped: %w", NewDataSourceError("x", ErrCodeDataGap, "gap", nil))))
	assert.True(t, IsRetryable(NewDataSourceError("x", ErrCodeNetworkError, "down", nil)))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
}

func TestFactoryCreatesConfiguredProvider(t *testing.T) {
	cfg := &config.Config{}
	cfg.DataSource.Provider = "csv"
	cfg.DataSource.CSVDir = t.TempDir()
	cfg.Cache.Enabled = true
	cfg.Cache.TTLSeconds = 60

	factory := NewFactory(cfg, logger.NewDiscardLogger())
	defer factory.Close()

	provider, err := factory.NewProvider()
	require.NoError(t, err)
	assert.IsType(t, &CachedProvider{}, provider)
	assert.Equal(t, "csv", provider.Name())

	_, err = factory.Create("ftp")
	assert.Error(t, err)

	cfg.DataSource.Provider = "http"
	_, err = factory.NewProvider()
	assert.Error(t, err, "http provider needs a base url")
}
