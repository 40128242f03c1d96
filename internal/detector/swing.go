package detector

import "github.com/yourusername/vcp-scanner/internal/models"

// findSwings returns the swing points of one kind inside bars[start..end]. A bar qualifies when
// its price strictly exceeds (highs) or undercuts (lows) every bar within w on both sides, and
// both sides fit inside the window.
func findSwings(bars []models.Bar, start, end, w int, kind models.SwingKind) []models.SwingPoint {
	price := func(i int) float64 { return bars[i].High }
	beats := func(a, b float64) bool { return a > b }
	if kind == models.SwingLow {
		price = func(i int) float64 { return bars[i].Low }
		beats = func(a, b float64) bool { return a < b }
	}

	var out []models.SwingPoint
	for i := start + w; i <= end-w; i++ {
		p := price(i)
		ok := true
		for j := i - w; j <= i+w && ok; j++ {
			if j != i && !beats(p, price(j)) {
				ok = false
			}
		}
		if ok {
			out = append(out, models.SwingPoint{Index: i, Date: bars[i].Date, Price: p, Kind: kind})
		}
	}
	return out
}
