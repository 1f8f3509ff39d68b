package lstm

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

const fileFormat = "pricecast.lstm/v1"

type architecture struct {
	Window       int     `json:"window"`
	Units        []int   `json:"units"`
	Dropout      float64 `json:"dropout"`
	Output       int     `json:"output"`
	LearningRate float64 `json:"learning_rate"`
	Seed         int64   `json:"seed"`
}

type layerBlob struct {
	Kernel    []float64 `json:"kernel"`
	Recurrent []float64 `json:"recurrent"`
	Bias      []float64 `json:"bias"`
}

type denseBlob struct {
	Kernel []float64 `json:"kernel"`
	Bias   float64   `json:"bias"`
}

type modelBlob struct {
	Format       string       `json:"format"`
	Architecture architecture `json:"architecture"`
	Layers       []layerBlob  `json:"layers"`
	Dense        denseBlob    `json:"dense"`
}

// MarshalJSON encodes architecture and weights. Go encodes float64 in its
// shortest round-trip form, so Load reproduces the weights bit for bit.
func (n *Network) MarshalJSON() ([]byte, error) {
	b := modelBlob{
		Format: fileFormat,
		Architecture: architecture{
			Window:       n.cfg.Window,
			Units:        n.cfg.Units,
			Dropout:      n.cfg.Dropout,
			Output:       1,
			LearningRate: n.cfg.LearningRate,
			Seed:         n.cfg.Seed,
		},
		Dense: denseBlob{Kernel: n.w.dw, Bias: n.w.db[0]},
	}
	for _, l := range n.w.layers {
		b.Layers = append(b.Layers, layerBlob{Kernel: l.wx, Recurrent: l.wh, Bias: l.b})
	}
	return json.Marshal(b)
}

// Load decodes a network written by MarshalJSON.
func Load(data []byte) (*Network, error) {
	var b modelBlob
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if b.Format != fileFormat {
		return nil, fmt.Errorf("decode model: unsupported format %q", b.Format)
	}
	a := b.Architecture
	if a.Output != 1 {
		return nil, fmt.Errorf("decode model: output size %d, want 1", a.Output)
	}
	cfg := Config{Window: a.Window, Units: a.Units, Dropout: a.Dropout, LearningRate: a.LearningRate, Seed: a.Seed}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if len(b.Layers) != len(cfg.Units) {
		return nil, fmt.Errorf("decode model: %d layers for %d unit sizes", len(b.Layers), len(cfg.Units))
	}

	n := &Network{cfg: cfg, w: newWeights(cfg.Units), rng: rand.New(rand.NewSource(cfg.Seed))}
	for i, lb := range b.Layers {
		l := &n.w.layers[i]
		if err := fill(l.wx, lb.Kernel, "kernel", i); err != nil {
			return nil, err
		}
		if err := fill(l.wh, lb.Recurrent, "recurrent", i); err != nil {
			return nil, err
		}
		if err := fill(l.b, lb.Bias, "bias", i); err != nil {
			return nil, err
		}
	}
	if err := fill(n.w.dw, b.Dense.Kernel, "dense kernel", len(b.Layers)); err != nil {
		return nil, err
	}
	n.w.db[0] = b.Dense.Bias
	return n, nil
}

func fill(dst, src []float64, what string, layer int) error {
	if len(src) != len(dst) {
		return fmt.Errorf("decode model: layer %d %s has %d values, want %d", layer, what, len(src), len(dst))
	}
	copy(dst, src)
	return nil
}
