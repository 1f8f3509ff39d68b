package features

import (
	"fmt"

	"PriceCast/internal/domain/models"
)

// ErrUnorderedSeries is returned when bars are not strictly increasing in
// time. It wraps models.ErrUpstreamData.
var ErrUnorderedSeries = fmt.Errorf("features: %w: bars not strictly increasing in time", models.ErrUpstreamData)

// Closes extracts the close column from bars ordered oldest first.
// Duplicate or out-of-order timestamps are rejected.
func Closes(bars []models.Bar) ([]float64, error) {
	out := make([]float64, 0, len(bars))
	for i, b := range bars {
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return nil, fmt.Errorf("%w: bar %d at %s", ErrUnorderedSeries, i, b.Time.Format("2006-01-02 15:04:05"))
		}
		out = append(out, b.Close)
	}
	return out, nil
}

// Tail returns the last n values of xs, or all of xs when shorter.
func Tail(xs []float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}
