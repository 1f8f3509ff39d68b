package forecast

import (
	"errors"
	"fmt"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/features"
)

// ErrNotFound is returned when no artifact is persisted for an identity.
var ErrNotFound = errors.New("forecast: artifact not found")

// Model is the single-step inference primitive the engine relies on.
type Model interface {
	PredictOne(window []float64) (float64, error)
	WindowSize() int
}

// Report summarizes the training run that produced an artifact.
type Report struct {
	Samples   int           `json:"samples"`
	TrainSize int           `json:"train_size"`
	TestSize  int           `json:"test_size"`
	Epochs    int           `json:"epochs"`
	BatchSize int           `json:"batch_size"`
	TrainLoss float64       `json:"train_loss"`
	TestLoss  float64       `json:"test_loss"`
	Duration  time.Duration `json:"duration"`
	LastBar   time.Time     `json:"last_bar"`
}

// Artifact pairs a model with the exact scaler its training data was
// normalized by. The two are only ever stored, loaded and used together.
type Artifact struct {
	Identity  models.Identity
	Model     Model
	Scaler    features.Scaler
	TrainedAt time.Time
	Report    Report
}

// Validate checks the pairing is usable for inference.
func (a Artifact) Validate() error {
	if a.Model == nil {
		return fmt.Errorf("artifact %s: nil model", a.Identity)
	}
	if a.Model.WindowSize() < 1 {
		return fmt.Errorf("artifact %s: window size %d", a.Identity, a.Model.WindowSize())
	}
	if err := a.Scaler.Validate(); err != nil {
		return fmt.Errorf("artifact %s: %w", a.Identity, err)
	}
	return nil
}
