package lstm

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"PriceCast/internal/services/features"
)

func smallNet(t *testing.T, dropout float64) *Network {
	t.Helper()
	n, err := New(Config{Window: 5, Units: []int{3, 2}, Dropout: dropout, LearningRate: 0.01, Seed: 7})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return n
}

func sineSet(t *testing.T, length, window int) features.TrainingSet {
	t.Helper()
	series := make([]float64, length)
	for i := range series {
		series[i] = 0.5 + 0.4*math.Sin(float64(i)/4)
	}
	set, err := features.BuildTrainingSet(series, window)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return set
}

func TestDefaultArchitecture(t *testing.T) {
	n, err := New(Config{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	c := n.Config()
	if c.Window != 60 || len(c.Units) != 2 || c.Units[0] != 50 || c.Units[1] != 50 {
		t.Fatalf("unexpected defaults %+v", c)
	}
	if n.WindowSize() != 60 {
		t.Fatalf("window %d", n.WindowSize())
	}
}

func TestConfigValidate(t *testing.T) {
	bad := []Config{
		{Window: -1, Units: []int{2}, LearningRate: 0.1},
		{Window: 3, Units: []int{0}, LearningRate: 0.1},
		{Window: 3, Units: []int{2}, Dropout: 1, LearningRate: 0.1},
		{Window: 3, Units: []int{2}, LearningRate: -1},
	}
	for i, c := range bad {
		if _, err := New(c); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestPredictOneMatchesTrainingForward(t *testing.T) {
	n := smallNet(t, 0.2)
	w := []float64{0.1, 0.4, 0.35, 0.8, 0.6}
	got, err := n.PredictOne(w)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if want := n.forwardTrain(w, nil).y; got != want {
		t.Fatalf("inference %v != training forward %v", got, want)
	}
	if _, err := n.PredictOne(w[:4]); !errors.Is(err, ErrWindowSize) {
		t.Fatalf("expected ErrWindowSize, got %v", err)
	}
}

func gradCheck(t *testing.T, n *Network, window []float64, label float64, rngSeed int64) {
	t.Helper()
	rngFor := func() *rand.Rand {
		if rngSeed == 0 {
			return nil
		}
		return rand.New(rand.NewSource(rngSeed))
	}
	loss := func() float64 {
		d := n.forwardTrain(window, rngFor()).y - label
		return d * d
	}

	g := newWeights(n.cfg.Units)
	p := n.forwardTrain(window, rngFor())
	n.backwardTrain(p, 2*(p.y-label), g)

	const eps = 1e-6
	for i := range n.w.buf {
		orig := n.w.buf[i]
		n.w.buf[i] = orig + eps
		up := loss()
		n.w.buf[i] = orig - eps
		down := loss()
		n.w.buf[i] = orig
		num := (up - down) / (2 * eps)
		if diff := math.Abs(num - g.buf[i]); diff > 1e-6+1e-4*(math.Abs(num)+math.Abs(g.buf[i])) {
			t.Fatalf("param %d: analytic %.10g numeric %.10g", i, g.buf[i], num)
		}
	}
}

func TestGradientsMatchFiniteDifferences(t *testing.T) {
	gradCheck(t, smallNet(t, 0), []float64{0.2, 0.9, 0.1, 0.5, 0.7}, 0.45, 0)
}

func TestGradientsWithFixedDropoutMask(t *testing.T) {
	gradCheck(t, smallNet(t, 0.3), []float64{0.3, 0.1, 0.6, 0.2, 0.9}, 0.8, 11)
}

func TestTrainingIsDeterministicForSeed(t *testing.T) {
	set := sineSet(t, 60, 5)
	a, b := smallNet(t, 0.2), smallNet(t, 0.2)
	if _, err := a.Train(context.Background(), set, 8, 3); err != nil {
		t.Fatalf("train a: %v", err)
	}
	if _, err := b.Train(context.Background(), set, 8, 3); err != nil {
		t.Fatalf("train b: %v", err)
	}
	ja, _ := a.MarshalJSON()
	jb, _ := b.MarshalJSON()
	if !bytes.Equal(ja, jb) {
		t.Fatalf("same seed produced different weights")
	}
}

func TestTrainingReducesLoss(t *testing.T) {
	set := sineSet(t, 140, 8)
	n, err := New(Config{Window: 8, Units: []int{8, 8}, LearningRate: 0.01, Seed: 3})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	before, err := n.Evaluate(set)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	hist, err := n.Train(context.Background(), set, 16, 30)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	after, _ := n.Evaluate(set)
	if len(hist.Loss) != 30 {
		t.Fatalf("history has %d epochs", len(hist.Loss))
	}
	if !(after < before/2) {
		t.Fatalf("loss did not drop enough: before %v after %v", before, after)
	}
}

func TestTrainRejectsBadInput(t *testing.T) {
	n := smallNet(t, 0)
	if _, err := n.Train(context.Background(), features.TrainingSet{WindowSize: 5}, 4, 1); !errors.Is(err, features.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	if _, err := n.Train(context.Background(), sineSet(t, 20, 4), 4, 1); !errors.Is(err, ErrWindowSize) {
		t.Fatalf("expected ErrWindowSize, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := n.Train(ctx, sineSet(t, 20, 5), 4, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	n := smallNet(t, 0.2)
	if _, err := n.Train(context.Background(), sineSet(t, 40, 5), 8, 2); err != nil {
		t.Fatalf("train: %v", err)
	}
	blob, err := n.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	m, err := Load(blob)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	again, _ := m.MarshalJSON()
	if !bytes.Equal(blob, again) {
		t.Fatalf("re-encoded model differs")
	}
	w := []float64{0.5, 0.52, 0.55, 0.51, 0.49}
	p1, _ := n.PredictOne(w)
	p2, _ := m.PredictOne(w)
	if p1 != p2 {
		t.Fatalf("prediction changed after load: %v vs %v", p1, p2)
	}
	if c := m.Config(); c.Dropout != 0.2 || c.Units[1] != 2 {
		t.Fatalf("architecture lost: %+v", c)
	}
}

func TestLoadRejectsCorruptBlob(t *testing.T) {
	if _, err := Load([]byte(`{"format":"other"}`)); err == nil {
		t.Fatalf("expected format error")
	}
	n := smallNet(t, 0)
	blob, _ := n.MarshalJSON()
	blob = bytes.Replace(blob, []byte(`"units":[3,2]`), []byte(`"units":[3,3]`), 1)
	if _, err := Load(blob); err == nil {
		t.Fatalf("expected shape error")
	}
}
