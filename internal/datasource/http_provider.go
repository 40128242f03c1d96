package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/vcp-scanner/internal/models"
)

const httpSourceName = "http"

// HTTPProvider fetches bars from a JSON market data API:
// GET {base}/bars/{symbol}?from=YYYY-MM-DD&to=YYYY-MM-DD
type HTTPProvider struct {
	httpClient *RateLimitedHTTPClient
	baseURL    string
	apiKey     string
	maxGapDays int
	logger     *logrus.Entry
}

type barsResponse struct {
	Symbol string    `json:"symbol"`
	Bars   []httpBar `json:"bars"`
}

type httpBar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// NewHTTPProvider creates a provider for the API at baseURL
func NewHTTPProvider(httpClient *RateLimitedHTTPClient, baseURL, apiKey string, maxGapDays int, logger *logrus.Logger) *HTTPProvider {
	if logger == nil {
		logger = logrus.New()
	}
	return &HTTPProvider{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		maxGapDays: maxGapDays,
		logger:     logger.WithField("provider", httpSourceName),
	}
}

// Name returns the provider name
func (p *HTTPProvider) Name() string {
	return httpSourceName
}

// GetBars fetches daily bars for symbol
func (p *HTTPProvider) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	query := url.Values{}
	query.Set("from", start.Format(dateLayout))
	query.Set("to", end.Format(dateLayout))
	endpoint := fmt.Sprintf("%s/bars/%s?%s", p.baseURL, url.PathEscape(symbol), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, NewDataSourceError(httpSourceName, ErrCodeNetworkError, "failed to create request", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(ctx, req)
	if err != nil {
		return nil, NewDataSourceError(httpSourceName, ErrCodeNetworkError, "failed to fetch bars", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, NewDataSourceError(httpSourceName, ErrCodeAuthenticationFailed, "invalid API key", nil)
	case resp.StatusCode == http.StatusNotFound:
		return nil, NewDataSourceError(httpSourceName, ErrCodeNotFound, fmt.Sprintf("unknown symbol %s", symbol), nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, NewDataSourceError(httpSourceName, ErrCodeRateLimitExceeded, "rate limit exceeded", nil)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, NewDataSourceError(httpSourceName, ErrCodeServerError,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var payload barsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, NewDataSourceError(httpSourceName, ErrCodeInvalidData, "failed to parse response", err)
	}

	bars := make([]models.Bar, 0, len(payload.Bars))
	for i, hb := range payload.Bars {
		date, err := time.Parse(dateLayout, hb.Date)
		if err != nil {
			return nil, NewDataSourceError(httpSourceName, ErrCodeInvalidData, fmt.Sprintf("bad date at row %d", i), err)
		}
		bars = append(bars, models.Bar{
			Date:   date,
			Open:   hb.Open,
			High:   hb.High,
			Low:    hb.Low,
			Close:  hb.Close,
			Volume: hb.Volume,
		})
	}

	p.logger.WithFields(logrus.Fields{"symbol": symbol, "bars": len(bars)}).Debug("Fetched bars")
	return finalizeBars(httpSourceName, symbol, bars, start, end, p.maxGapDays)
}
