// Package training fits a windowed LSTM to a bar history and packages the
// result with its scaler.
package training

import (
	"context"
	"fmt"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/service"
	"PriceCast/internal/services/features"
	"PriceCast/internal/services/forecast"
	"PriceCast/internal/services/lstm"
	applogger "PriceCast/pkg/logger"
)

// Config holds the defaults applied to every fit.
type Config struct {
	Network       lstm.Config `yaml:"network"`
	Epochs        int         `yaml:"epochs"`
	BatchSize     int         `yaml:"batch_size"`
	TrainFraction float64     `yaml:"train_fraction"`
}

func DefaultConfig() Config {
	return Config{
		Network:       lstm.DefaultConfig(),
		Epochs:        25,
		BatchSize:     32,
		TrainFraction: 0.8,
	}
}

// Pipeline implements service.ModelFitter.
type Pipeline struct {
	cfg Config
	l   *applogger.Logger
	now func() time.Time
}

var _ service.ModelFitter = (*Pipeline)(nil)

func NewPipeline(cfg Config, l *applogger.Logger) *Pipeline {
	d := DefaultConfig()
	if cfg.Epochs <= 0 {
		cfg.Epochs = d.Epochs
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = d.BatchSize
	}
	if cfg.TrainFraction <= 0 || cfg.TrainFraction > 1 {
		cfg.TrainFraction = d.TrainFraction
	}
	if cfg.Network.Window == 0 {
		cfg.Network.Window = features.DefaultWindow
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Pipeline{cfg: cfg, l: l, now: time.Now}
}

// Fit scales the closes, builds stride-1 windows, splits them
// chronologically, trains and evaluates on the held-out tail.
func (p *Pipeline) Fit(ctx context.Context, id models.Identity, bars []models.Bar, opts service.FitOptions) (forecast.Artifact, error) {
	start := p.now()
	closes, err := features.Closes(bars)
	if err != nil {
		return forecast.Artifact{}, fmt.Errorf("fit %s: %w", id, err)
	}
	scaler, err := features.FitScaler(closes)
	if err != nil {
		return forecast.Artifact{}, fmt.Errorf("fit %s: %w", id, err)
	}

	netCfg := p.cfg.Network
	if opts.Seed != 0 {
		netCfg.Seed = opts.Seed
	}
	set, err := features.BuildTrainingSet(scaler.TransformAll(closes), netCfg.Window)
	if err != nil {
		return forecast.Artifact{}, fmt.Errorf("fit %s: %w", id, err)
	}
	train, test := set.Split(p.cfg.TrainFraction)

	epochs, batch := p.cfg.Epochs, p.cfg.BatchSize
	if opts.Epochs > 0 {
		epochs = opts.Epochs
	}
	if opts.BatchSize > 0 {
		batch = opts.BatchSize
	}

	net, err := lstm.New(netCfg)
	if err != nil {
		return forecast.Artifact{}, err
	}
	p.l.Info("training started",
		applogger.String("identity", id.Key()),
		applogger.Int("samples", set.Len()),
		applogger.Int("train", train.Len()),
		applogger.Int("test", test.Len()),
		applogger.Int("epochs", epochs),
		applogger.Int("batch_size", batch),
	)
	hist, err := net.Train(ctx, train, batch, epochs)
	if err != nil {
		return forecast.Artifact{}, fmt.Errorf("fit %s: %w", id, err)
	}

	var testLoss float64
	if test.Len() > 0 {
		if testLoss, err = net.Evaluate(test); err != nil {
			return forecast.Artifact{}, fmt.Errorf("evaluate %s: %w", id, err)
		}
	}

	finished := p.now()
	return forecast.Artifact{
		Identity:  id,
		Model:     net,
		Scaler:    scaler,
		TrainedAt: finished.UTC(),
		Report: forecast.Report{
			Samples:   set.Len(),
			TrainSize: train.Len(),
			TestSize:  test.Len(),
			Epochs:    epochs,
			BatchSize: batch,
			TrainLoss: hist.Final(),
			TestLoss:  testLoss,
			Duration:  finished.Sub(start),
			LastBar:   bars[len(bars)-1].Time,
		},
	}, nil
}
