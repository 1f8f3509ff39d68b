package features

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerateRange is returned when a scaler is fit on an empty or constant series.
var ErrDegenerateRange = errors.New("features: degenerate scaler range")

// Scaler is a min-max normalization fit on one price column.
// Values outside [Min, Max] extrapolate linearly; nothing is clamped.
type Scaler struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// FitScaler computes the (min, max) of series.
func FitScaler(series []float64) (Scaler, error) {
	if len(series) == 0 {
		return Scaler{}, fmt.Errorf("%w: empty series", ErrDegenerateRange)
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Scaler{}, fmt.Errorf("%w: non-finite value %v", ErrDegenerateRange, v)
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	s := Scaler{Min: lo, Max: hi}
	if err := s.Validate(); err != nil {
		return Scaler{}, err
	}
	return s, nil
}

// Validate checks the max > min invariant, e.g. after loading from disk.
// The span must also be finite.
func (s Scaler) Validate() error {
	if !(s.Max > s.Min) || math.IsInf(s.span(), 0) {
		return fmt.Errorf("%w: min=%v max=%v", ErrDegenerateRange, s.Min, s.Max)
	}
	return nil
}

func (s Scaler) span() float64 { return s.Max - s.Min }

// Transform maps a price into normalized space.
func (s Scaler) Transform(x float64) float64 { return (x - s.Min) / s.span() }

// Inverse maps a normalized value back into price space.
func (s Scaler) Inverse(y float64) float64 { return y*s.span() + s.Min }

// TransformAll returns a new slice with every value transformed.
func (s Scaler) TransformAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = s.Transform(x)
	}
	return out
}

// InverseAll returns a new slice with every value inverse-transformed.
func (s Scaler) InverseAll(ys []float64) []float64 {
	out := make([]float64, len(ys))
	for i, y := range ys {
		out[i] = s.Inverse(y)
	}
	return out
}
