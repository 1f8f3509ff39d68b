// Package forecast extends a single-step sequence model into multi-step
// forecasts by feeding each prediction back into its input window.
package forecast

import (
	"context"
	"errors"
	"fmt"

	"PriceCast/internal/services/features"
)

// DefaultMaxSteps is the default horizon ceiling. Error compounds with every
// step, so longer runs are refused rather than computed.
const DefaultMaxSteps = 365

// ErrInvalidHorizon is returned for a step count outside [1, MaxSteps].
var ErrInvalidHorizon = errors.New("forecast: invalid horizon")

// Engine runs autoregressive forecasts. The zero value uses DefaultMaxSteps.
type Engine struct {
	MaxSteps int
}

// NewEngine returns an engine with the given ceiling; maxSteps <= 0 keeps the default.
func NewEngine(maxSteps int) *Engine {
	return &Engine{MaxSteps: maxSteps}
}

func (e *Engine) maxSteps() int {
	if e == nil || e.MaxSteps <= 0 {
		return DefaultMaxSteps
	}
	return e.MaxSteps
}

// Run forecasts steps values past the last seed observation. seed holds
// actual prices oldest first; only the most recent W are used. The returned
// slice is in price space, index i being step i+1.
func (e *Engine) Run(ctx context.Context, art Artifact, seed []float64, steps int) ([]float64, error) {
	if err := art.Validate(); err != nil {
		return nil, err
	}
	if steps < 1 || steps > e.maxSteps() {
		return nil, fmt.Errorf("%w: %d steps, allowed 1..%d", ErrInvalidHorizon, steps, e.maxSteps())
	}
	w := art.Model.WindowSize()
	if len(seed) < w {
		return nil, fmt.Errorf("%w: %d seed prices, window %d", features.ErrInsufficientData, len(seed), w)
	}

	// Private window owned by this run; it is never shared.
	window := art.Scaler.TransformAll(features.Tail(seed, w))
	scaled := make([]float64, 0, steps)
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("forecast step %d: %w", i+1, err)
		}
		p, err := art.Model.PredictOne(window)
		if err != nil {
			return nil, fmt.Errorf("forecast step %d: %w", i+1, err)
		}
		scaled = append(scaled, p)
		copy(window, window[1:])
		window[w-1] = p
	}
	return art.Scaler.InverseAll(scaled), nil
}
