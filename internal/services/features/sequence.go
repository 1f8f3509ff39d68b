package features

import (
	"errors"
	"fmt"
	"math"
)

// DefaultWindow is the look-back used by trained models unless configured otherwise.
const DefaultWindow = 60

// ErrInsufficientData is returned when a series is too short for the window.
var ErrInsufficientData = errors.New("features: insufficient data for window")

// Sample is one supervised pair: Window[i] are consecutive values, Label is the value after them.
type Sample struct {
	Window []float64
	Label  float64
}

// TrainingSet is the stride-1 sequence-to-one view of a scaled series.
type TrainingSet struct {
	WindowSize int
	Samples    []Sample
}

func (t TrainingSet) Len() int { return len(t.Samples) }

// BuildTrainingSet slides a W+1 cursor across scaled with stride 1 and
// returns len(scaled)-W samples. Windows alias scaled; callers must not
// mutate the series afterwards.
func BuildTrainingSet(scaled []float64, windowSize int) (TrainingSet, error) {
	if windowSize < 1 {
		return TrainingSet{}, fmt.Errorf("%w: window size %d", ErrInsufficientData, windowSize)
	}
	n := len(scaled) - windowSize
	if n <= 0 {
		return TrainingSet{}, fmt.Errorf("%w: %d values, window %d", ErrInsufficientData, len(scaled), windowSize)
	}
	samples := make([]Sample, n)
	for i := 0; i < n; i++ {
		samples[i] = Sample{
			Window: scaled[i : i+windowSize : i+windowSize],
			Label:  scaled[i+windowSize],
		}
	}
	return TrainingSet{WindowSize: windowSize, Samples: samples}, nil
}

// Split cuts the set chronologically, keeping ceil(len*frac) samples for training.
func (t TrainingSet) Split(frac float64) (train, test TrainingSet) {
	k := int(math.Ceil(float64(len(t.Samples)) * frac))
	if k < 0 {
		k = 0
	}
	if k > len(t.Samples) {
		k = len(t.Samples)
	}
	train = TrainingSet{WindowSize: t.WindowSize, Samples: t.Samples[:k]}
	test = TrainingSet{WindowSize: t.WindowSize, Samples: t.Samples[k:]}
	return train, test
}
