package models

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrInvalidSeries is returned when a bar sequence violates ordering or price sanity rules
var ErrInvalidSeries = errors.New("invalid bar series")

// Bar represents one daily OHLCV observation
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	// PrevClose is derived on series construction; NaN for the first bar.
	PrevClose float64 `json:"-"`
}

// Series is the immutable bar arena for one symbol. Downstream components refer to bars by index.
type Series struct {
	Symbol string
	bars   []Bar
}

// NewSeries copies and validates bars, deriving previous close for each bar. Zero prices are
// accepted; calculations that would divide by them discard the affected base instead.
func NewSeries(symbol string, bars []Bar) (*Series, error) {
	out := make([]Bar, len(bars))
	copy(out, bars)

	for i := range out {
		b := &out[i]
		if !validPrice(b.Open) || !validPrice(b.High) || !validPrice(b.Low) || !validPrice(b.Close) {
			return nil, fmt.Errorf("%w: %s bar %d has negative or non-finite price", ErrInvalidSeries, symbol, i)
		}
		if b.High < b.Low {
			return nil, fmt.Errorf("%w: %s bar %d high below low", ErrInvalidSeries, symbol, i)
		}
		if b.Volume < 0 {
			return nil, fmt.Errorf("%w: %s bar %d negative volume", ErrInvalidSeries, symbol, i)
		}
		if i == 0 {
			b.PrevClose = math.NaN()
			continue
		}
		if !b.Date.After(out[i-1].Date) {
			return nil, fmt.Errorf("%w: %s bar %d not after previous date", ErrInvalidSeries, symbol, i)
		}
		b.PrevClose = out[i-1].Close
	}

	return &Series{Symbol: symbol, bars: out}, nil
}

func validPrice(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Len returns the number of bars
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.bars)
}

// Bar returns the bar at index i
func (s *Series) Bar(i int) Bar {
	return s.bars[i]
}

// Bars exposes the underlying arena. Callers must treat it as read-only.
func (s *Series) Bars() []Bar {
	return s.bars
}

// Closes returns close prices aligned to the series
func (s *Series) Closes() []float64 {
	return s.column(func(b Bar) float64 { return b.Close })
}

// Highs returns high prices aligned to the series
func (s *Series) Highs() []float64 {
	return s.column(func(b Bar) float64 { return b.High })
}

// Lows returns low prices aligned to the series
func (s *Series) Lows() []float64 {
	return s.column(func(b Bar) float64 { return b.Low })
}

// Volumes returns volumes aligned to the series
func (s *Series) Volumes() []float64 {
	return s.column(func(b Bar) float64 { return b.Volume })
}

func (s *Series) column(f func(Bar) float64) []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = f(b)
	}
	return out
}

// IndexAfter returns the index of the first bar strictly after date
func (s *Series) IndexAfter(date time.Time) (int, bool) {
	idx := sort.Search(len(s.bars), func(i int) bool {
		return s.bars[i].Date.After(date)
	})
	if idx >= len(s.bars) {
		return 0, false
	}
	return idx, true
}

// IndexOf returns the index of the bar dated exactly date
func (s *Series) IndexOf(date time.Time) (int, bool) {
	idx := sort.Search(len(s.bars), func(i int) bool {
		return !s.bars[i].Date.Before(date)
	})
	if idx < len(s.bars) && s.bars[idx].Date.Equal(date) {
		return idx, true
	}
	return 0, false
}

// Gap describes a calendar gap between two consecutive bars
type Gap struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
	Days int       `json:"days"`
}

// FindGaps reports consecutive bars separated by more than maxGapDays calendar days
func FindGaps(bars []Bar, maxGapDays int) []Gap {
	if maxGapDays <= 0 {
		return nil
	}
	var gaps []Gap
	for i := 1; i < len(bars); i++ {
		days := int(bars[i].Date.Sub(bars[i-1].Date).Hours() / 24)
		if days > maxGapDays {
			gaps = append(gaps, Gap{From: bars[i-1].Date, To: bars[i].Date, Days: days})
		}
	}
	return gaps
}
