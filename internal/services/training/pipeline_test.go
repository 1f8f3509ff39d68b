package training

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/service"
	"PriceCast/internal/services/features"
	"PriceCast/internal/services/lstm"
)

func sineBars(n int) []models.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	for i := range bars {
		c := 100 + 10*math.Sin(float64(i)/6)
		bars[i] = models.Bar{Time: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	return bars
}

func smallPipeline() *Pipeline {
	return NewPipeline(Config{
		Network:   lstm.Config{Window: 8, Units: []int{4}, LearningRate: 0.01, Seed: 3},
		Epochs:    2,
		BatchSize: 8,
	}, nil)
}

func TestFitReportsChronologicalSplit(t *testing.T) {
	bars := sineBars(58)
	art, err := smallPipeline().Fit(context.Background(), models.NewIdentity("aapl", ""), bars, service.FitOptions{})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	r := art.Report
	// 50 samples, ceil(0.8*50) = 40 for training
	if r.Samples != 50 || r.TrainSize != 40 || r.TestSize != 10 {
		t.Fatalf("unexpected split %+v", r)
	}
	if r.Epochs != 2 || r.BatchSize != 8 || !r.LastBar.Equal(bars[57].Time) {
		t.Fatalf("unexpected report %+v", r)
	}
	if art.Model.WindowSize() != 8 {
		t.Fatalf("window %d", art.Model.WindowSize())
	}
	if err := art.Validate(); err != nil {
		t.Fatalf("artifact invalid: %v", err)
	}
}

func TestFitIsDeterministicForSeed(t *testing.T) {
	bars := sineBars(40)
	id := models.NewIdentity("MSFT", "")
	a, err := smallPipeline().Fit(context.Background(), id, bars, service.FitOptions{Seed: 11})
	if err != nil {
		t.Fatalf("fit a: %v", err)
	}
	b, err := smallPipeline().Fit(context.Background(), id, bars, service.FitOptions{Seed: 11})
	if err != nil {
		t.Fatalf("fit b: %v", err)
	}
	window := a.Scaler.TransformAll(make([]float64, 8))
	pa, _ := a.Model.PredictOne(window)
	pb, _ := b.Model.PredictOne(window)
	if pa != pb || a.Report.TrainLoss != b.Report.TrainLoss {
		t.Fatalf("same seed diverged: %v vs %v", pa, pb)
	}
}

func TestFitRejectsShortHistory(t *testing.T) {
	_, err := smallPipeline().Fit(context.Background(), models.NewIdentity("X", ""), sineBars(8), service.FitOptions{})
	if !errors.Is(err, features.ErrInsufficientData) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
}
