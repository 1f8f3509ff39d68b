package service

import (
	"context"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/forecast"
)

// FitOptions tune one training run. Zero values use the fitter defaults.
type FitOptions struct {
	Epochs    int
	BatchSize int
	Seed      int64
}

// ModelFitter turns a bar history into a trained artifact.
type ModelFitter interface {
	Fit(ctx context.Context, id models.Identity, bars []models.Bar, opts FitOptions) (forecast.Artifact, error)
}

// Forecaster runs a multi-step forecast from a seed of recent prices.
type Forecaster interface {
	Run(ctx context.Context, art forecast.Artifact, seed []float64, steps int) ([]float64, error)
}
