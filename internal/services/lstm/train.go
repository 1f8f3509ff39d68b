package lstm

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"PriceCast/internal/services/features"
)

// trainShards is fixed so the gradient summation order, and therefore the
// trained weights, do not depend on the host CPU count.
const trainShards = 4

// History records the mean training loss of every epoch.
type History struct {
	Loss []float64 `json:"loss"`
}

// Final returns the last epoch loss, or NaN for an empty history.
func (h History) Final() float64 {
	if len(h.Loss) == 0 {
		return math.NaN()
	}
	return h.Loss[len(h.Loss)-1]
}

type adam struct {
	m, v   []float64
	t      int
	b1, b2 float64
	eps    float64
}

func newAdam(n int) *adam {
	return &adam{m: make([]float64, n), v: make([]float64, n), b1: 0.9, b2: 0.999, eps: 1e-7}
}

func (a *adam) step(params, grads []float64, lr float64) {
	a.t++
	lrT := lr * math.Sqrt(1-math.Pow(a.b2, float64(a.t))) / (1 - math.Pow(a.b1, float64(a.t)))
	for i, g := range grads {
		a.m[i] = a.b1*a.m[i] + (1-a.b1)*g
		a.v[i] = a.b2*a.v[i] + (1-a.b2)*g*g
		params[i] -= lrT * a.m[i] / (math.Sqrt(a.v[i]) + a.eps)
	}
}

// Train fits the network to set by minibatch Adam on mean squared error.
// Samples are shuffled every epoch with the network's seeded source, so
// two networks built from the same Config train to identical weights.
// ctx is checked between batches.
func (n *Network) Train(ctx context.Context, set features.TrainingSet, batchSize, epochs int) (History, error) {
	var hist History
	if set.Len() == 0 {
		return hist, fmt.Errorf("train: %w", features.ErrInsufficientData)
	}
	if set.WindowSize != n.cfg.Window {
		return hist, fmt.Errorf("train: %w: set %d model %d", ErrWindowSize, set.WindowSize, n.cfg.Window)
	}
	if batchSize < 1 || epochs < 1 {
		return hist, fmt.Errorf("train: batch size and epochs must be >= 1, got %d and %d", batchSize, epochs)
	}
	if n.adam == nil {
		n.adam = newAdam(len(n.w.buf))
	}

	shards := make([]*weights, trainShards)
	for i := range shards {
		shards[i] = newWeights(n.cfg.Units)
	}
	total := newWeights(n.cfg.Units)

	order := make([]int, set.Len())
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < epochs; epoch++ {
		n.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		var epochLoss float64
		for start := 0; start < len(order); start += batchSize {
			if err := ctx.Err(); err != nil {
				return hist, err
			}
			end := start + batchSize
			if end > len(order) {
				end = len(order)
			}
			loss := n.batch(set, order[start:end], shards, total)
			epochLoss += loss
			n.adam.step(n.w.buf, total.buf, n.cfg.LearningRate)
		}
		hist.Loss = append(hist.Loss, epochLoss/float64(len(order)))
	}
	return hist, nil
}

// batch computes the summed squared error of idx and leaves the gradient of
// the batch mean in total.
func (n *Network) batch(set features.TrainingSet, idx []int, shards []*weights, total *weights) float64 {
	seeds := make([]int64, len(idx))
	if n.cfg.Dropout > 0 {
		for i := range seeds {
			seeds[i] = n.rng.Int63()
		}
	}
	scale := 2 / float64(len(idx))
	losses := make([]float64, len(shards))

	var wg sync.WaitGroup
	for s := range shards {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			g := shards[s]
			g.zero()
			for i := s; i < len(idx); i += len(shards) {
				sample := set.Samples[idx[i]]
				var rng *rand.Rand
				if n.cfg.Dropout > 0 {
					rng = rand.New(rand.NewSource(seeds[i]))
				}
				p := n.forwardTrain(sample.Window, rng)
				d := p.y - sample.Label
				losses[s] += d * d
				n.backwardTrain(p, scale*d, g)
			}
		}(s)
	}
	wg.Wait()

	total.zero()
	var loss float64
	for s, g := range shards {
		for i, v := range g.buf {
			total.buf[i] += v
		}
		loss += losses[s]
	}
	return loss
}
