// Package indicators derives per-bar volatility and volume features from a bar series.
// Every rolling window follows a strict minimum-period rule: until a window is full the
// output is NaN, never zero.
package indicators

import (
	"math"
	"sort"

	"github.com/markcheno/go-talib"
)

// NaN returns a slice of n undefined values
func NaN(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Defined reports whether v carries a value
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CountDefined returns the number of defined values in x
func CountDefined(x []float64) int {
	n := 0
	for _, v := range x {
		if Defined(v) {
			n++
		}
	}
	return n
}

// SMA is the simple moving average over p points, aligned to x with NaN warmup.
// Inputs must be fully defined; use RollingMean for sparse input.
func SMA(x []float64, p int) []float64 {
	if p <= 0 || len(x) < p {
		return NaN(len(x))
	}
	out := talib.Sma(x, p)
	for i := 0; i < p-1; i++ {
		out[i] = math.NaN()
	}
	return out
}

// RollingMean averages the trailing p values; any undefined value in the window leaves the output undefined
func RollingMean(x []float64, p int) []float64 {
	out := NaN(len(x))
	if p <= 0 {
		return out
	}
	for i := p - 1; i < len(x); i++ {
		sum := 0.0
		ok := true
		for _, v := range x[i-p+1 : i+1] {
			if !Defined(v) {
				ok = false
				break
			}
			sum += v
		}
		if ok {
			out[i] = sum / float64(p)
		}
	}
	return out
}

// RollingStd is the sample standard deviation (n-1) over the trailing p values
func RollingStd(x []float64, p int) []float64 {
	out := NaN(len(x))
	if p < 2 {
		return out
	}
	for i := p - 1; i < len(x); i++ {
		window := x[i-p+1 : i+1]
		mean, ok := Mean(window)
		if !ok {
			continue
		}
		var ss float64
		for _, v := range window {
			d := v - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(p-1))
	}
	return out
}

// RollingMax is the maximum over the trailing p values
func RollingMax(x []float64, p int) []float64 {
	return rollingExtreme(x, p, func(a, b float64) bool { return a > b })
}

// RollingMin is the minimum over the trailing p values
func RollingMin(x []float64, p int) []float64 {
	return rollingExtreme(x, p, func(a, b float64) bool { return a < b })
}

func rollingExtreme(x []float64, p int, better func(a, b float64) bool) []float64 {
	out := NaN(len(x))
	if p <= 0 {
		return out
	}
	for i := p - 1; i < len(x); i++ {
		best := x[i-p+1]
		ok := Defined(best)
		for _, v := range x[i-p+2 : i+1] {
			if !Defined(v) {
				ok = false
				break
			}
			if better(v, best) {
				best = v
			}
		}
		if ok {
			out[i] = best
		}
	}
	return out
}

// RollingPercentile is the q-th percentile (0-100, linear interpolation) over the trailing p values, current value included
func RollingPercentile(x []float64, p int, q float64) []float64 {
	out := NaN(len(x))
	if p <= 0 {
		return out
	}
	buf := make([]float64, p)
	for i := p - 1; i < len(x); i++ {
		copy(buf, x[i-p+1:i+1])
		if CountDefined(buf) != p {
			continue
		}
		out[i] = Percentile(buf, q)
	}
	return out
}

// Percentile returns the q-th percentile (0-100) of values using linear interpolation between
// closest ranks. values is sorted in place.
func Percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sort.Float64s(values)
	if q <= 0 {
		return values[0]
	}
	if q >= 100 {
		return values[len(values)-1]
	}
	pos := q / 100 * float64(len(values)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return values[lo]
	}
	frac := pos - float64(lo)
	return values[lo] + (values[hi]-values[lo])*frac
}

// Mean averages x; ok is false when x is empty or holds an undefined value
func Mean(x []float64) (float64, bool) {
	if len(x) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range x {
		if !Defined(v) {
			return 0, false
		}
		sum += v
	}
	return sum / float64(len(x)), true
}

// Spearman returns the rank correlation of y against its time index. NaN when y is constant
// or holds undefined values.
func Spearman(y []float64) float64 {
	n := len(y)
	if n < 2 || CountDefined(y) != n {
		return math.NaN()
	}
	ry := ranks(y)
	var mx, my float64
	for i := 0; i < n; i++ {
		mx += float64(i + 1)
		my += ry[i]
	}
	mx /= float64(n)
	my /= float64(n)

	var cov, vx, vy float64
	for i := 0; i < n; i++ {
		dx := float64(i+1) - mx
		dy := ry[i] - my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(vx*vy)
}

// ranks assigns 1-based ranks, averaging ties
func ranks(y []float64) []float64 {
	n := len(y)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return y[idx[a]] < y[idx[b]] })

	out := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && y[idx[j+1]] == y[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}

// RollingSpearman applies Spearman to each trailing window of p values
func RollingSpearman(x []float64, p int) []float64 {
	out := NaN(len(x))
	if p < 2 {
		return out
	}
	for i := p - 1; i < len(x); i++ {
		out[i] = Spearman(x[i-p+1 : i+1])
	}
	return out
}
