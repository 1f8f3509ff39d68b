// Package lstm implements a stacked LSTM regressor mapping a window of
// normalized prices to the next normalized price.
package lstm

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"PriceCast/internal/services/features"
)

// ErrWindowSize is returned when an input window does not match the trained window.
var ErrWindowSize = errors.New("lstm: window size mismatch")

// weights is a flat parameter buffer with typed views into it.
type weights struct {
	buf    []float64
	layers []layer
	dw     []float64 // dense kernel, len = last layer units
	db     []float64 // dense bias, len 1
}

func newWeights(units []int) *weights {
	w := &weights{layers: make([]layer, len(units))}
	in, total := 1, 0
	for i, u := range units {
		w.layers[i] = layer{in: in, units: u}
		total += w.layers[i].size()
		in = u
	}
	total += in + 1
	w.buf = make([]float64, total)
	rest := w.buf
	for i := range w.layers {
		rest = w.layers[i].carve(rest)
	}
	w.dw, rest = rest[:in:in], rest[in:]
	w.db = rest[:1:1]
	return w
}

func (w *weights) zero() {
	for i := range w.buf {
		w.buf[i] = 0
	}
}

// Network is a trained or trainable model. PredictOne and Evaluate are safe
// for concurrent use; Train is not.
type Network struct {
	cfg  Config
	w    *weights
	rng  *rand.Rand
	adam *adam
}

// New builds a network with Glorot-uniform weights drawn from cfg.Seed.
func New(cfg Config) (*Network, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("lstm config: %w", err)
	}
	n := &Network{
		cfg: cfg,
		w:   newWeights(cfg.Units),
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
	n.init()
	return n, nil
}

func (n *Network) init() {
	glorot := func(dst []float64, fanIn, fanOut int) {
		limit := math.Sqrt(6 / float64(fanIn+fanOut))
		for i := range dst {
			dst[i] = (n.rng.Float64()*2 - 1) * limit
		}
	}
	for i := range n.w.layers {
		l := &n.w.layers[i]
		glorot(l.wx, l.in, 4*l.units)
		glorot(l.wh, l.units, 4*l.units)
		for j := 0; j < l.units; j++ {
			l.b[l.units+j] = 1 // forget gate
		}
	}
	last := n.cfg.Units[len(n.cfg.Units)-1]
	glorot(n.w.dw, last, 1)
}

// Config returns the architecture the network was built with.
func (n *Network) Config() Config {
	c := n.cfg
	c.Units = append([]int(nil), n.cfg.Units...)
	return c
}

// WindowSize is the number of inputs PredictOne expects.
func (n *Network) WindowSize() int { return n.cfg.Window }

func sequence(window []float64) [][]float64 {
	xs := make([][]float64, len(window))
	for t, v := range window {
		xs[t] = []float64{v}
	}
	return xs
}

func (n *Network) dense(h []float64) float64 {
	y := n.w.db[0]
	for k, v := range h {
		y += n.w.dw[k] * v
	}
	return y
}

// PredictOne returns the normalized next value for one window of normalized values.
func (n *Network) PredictOne(window []float64) (float64, error) {
	if len(window) != n.cfg.Window {
		return 0, fmt.Errorf("%w: got %d want %d", ErrWindowSize, len(window), n.cfg.Window)
	}
	xs := sequence(window)
	for i := range n.w.layers {
		xs = n.w.layers[i].last(xs, i < len(n.w.layers)-1)
	}
	y := n.dense(xs[0])
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, fmt.Errorf("lstm: non-finite prediction %v", y)
	}
	return y, nil
}

// Evaluate returns the mean squared error over set without dropout.
func (n *Network) Evaluate(set features.TrainingSet) (float64, error) {
	if set.Len() == 0 {
		return 0, fmt.Errorf("evaluate: %w", features.ErrInsufficientData)
	}
	var sum float64
	for _, s := range set.Samples {
		y, err := n.PredictOne(s.Window)
		if err != nil {
			return 0, err
		}
		d := y - s.Label
		sum += d * d
	}
	return sum / float64(set.Len()), nil
}

// pass holds what one training sample needs for backpropagation.
type pass struct {
	traces []*trace
	masks  [][][]float64 // per lower layer, per step; nil when dropout is off
	top    []float64     // last hidden state after dropout
	topM   []float64     // dropout mask for top
	y      float64
}

func dropoutMask(rng *rand.Rand, n int, p float64) []float64 {
	m := make([]float64, n)
	keep := 1 / (1 - p)
	for i := range m {
		if rng.Float64() >= p {
			m[i] = keep
		}
	}
	return m
}

// forwardTrain runs one sample with dropout masks drawn from rng (nil disables dropout).
func (n *Network) forwardTrain(window []float64, rng *rand.Rand) *pass {
	p := &pass{traces: make([]*trace, len(n.w.layers))}
	drop := rng != nil && n.cfg.Dropout > 0
	xs := sequence(window)
	last := len(n.w.layers) - 1
	for i := range n.w.layers {
		tr := n.w.layers[i].forward(xs)
		p.traces[i] = tr
		if i == last {
			break
		}
		if !drop {
			xs = tr.hs
			p.masks = append(p.masks, nil)
			continue
		}
		ms := make([][]float64, len(tr.hs))
		next := make([][]float64, len(tr.hs))
		for t, h := range tr.hs {
			ms[t] = dropoutMask(rng, len(h), n.cfg.Dropout)
			next[t] = make([]float64, len(h))
			for k := range h {
				next[t][k] = h[k] * ms[t][k]
			}
		}
		p.masks = append(p.masks, ms)
		xs = next
	}
	h := p.traces[last].hs[len(window)-1]
	p.top = append([]float64(nil), h...)
	if drop {
		p.topM = dropoutMask(rng, len(h), n.cfg.Dropout)
		for k := range p.top {
			p.top[k] *= p.topM[k]
		}
	}
	p.y = n.dense(p.top)
	return p
}

// backwardTrain accumulates gradients into g for dL/dy = dy.
func (n *Network) backwardTrain(p *pass, dy float64, g *weights) {
	g.db[0] += dy
	dTop := make([]float64, len(p.top))
	for k, v := range p.top {
		g.dw[k] += dy * v
		dTop[k] = dy * n.w.dw[k]
		if p.topM != nil {
			dTop[k] *= p.topM[k]
		}
	}
	last := len(n.w.layers) - 1
	T := len(p.traces[last].xs)
	dhs := make([][]float64, T)
	dhs[T-1] = dTop
	for i := last; i >= 0; i-- {
		dxs := n.w.layers[i].backward(p.traces[i], dhs, &g.layers[i], i > 0)
		if i == 0 {
			break
		}
		if ms := p.masks[i-1]; ms != nil {
			for t := range dxs {
				for k := range dxs[t] {
					dxs[t][k] *= ms[t][k]
				}
			}
		}
		dhs = dxs
	}
}
