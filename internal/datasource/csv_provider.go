package datasource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/vcp-scanner/internal/models"
)

const csvSourceName = "csv"

// CSVProvider reads bars from {dir}/{SYMBOL}.csv with a date,open,high,low,close,volume header
type CSVProvider struct {
	dir        string
	maxGapDays int
}

// NewCSVProvider creates a provider over a directory of per-symbol files
func NewCSVProvider(dir string, maxGapDays int) *CSVProvider {
	return &CSVProvider{dir: dir, maxGapDays: maxGapDays}
}

// Name returns the provider name
func (p *CSVProvider) Name() string {
	return csvSourceName
}

// GetBars loads and validates the symbol's file
func (p *CSVProvider) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(p.dir, strings.ToUpper(symbol)+".csv")
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, NewDataSourceError(csvSourceName, ErrCodeNotFound, fmt.Sprintf("no file for %s", symbol), err)
		}
		return nil, NewDataSourceError(csvSourceName, ErrCodeUnknown, "failed to open file", err)
	}
	defer file.Close()

	bars, err := parseBarsCSV(file)
	if err != nil {
		return nil, NewDataSourceError(csvSourceName, ErrCodeInvalidData, fmt.Sprintf("failed to parse %s", path), err)
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	return finalizeBars(csvSourceName, symbol, bars, start, end, p.maxGapDays)
}

// parseBarsCSV maps columns by header name so column order and extra columns do not matter
func parseBarsCSV(r io.Reader) ([]models.Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"date", "open", "high", "low", "close", "volume"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var bars []models.Bar
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		date, err := time.Parse(dateLayout, record[cols["date"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var vals [5]float64
		for i, name := range []string{"open", "high", "low", "close", "volume"} {
			vals[i], err = strconv.ParseFloat(record[cols[name]], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d %s: %w", line, name, err)
			}
		}
		bars = append(bars, models.Bar{
			Date:   date,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	return bars, nil
}
