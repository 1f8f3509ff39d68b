package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/domain/service"
	"PriceCast/internal/services/features"
	"PriceCast/internal/services/forecast"
	"PriceCast/pkg/cache"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/metrics"
)

// DefaultMaxArtifacts bounds the loaded-artifact cache.
const DefaultMaxArtifacts = 32

// PredictorUseCase loads artifacts, fetches seeds and runs forecasts.
type PredictorUseCase struct {
	store     domrepo.ArtifactStore
	market    domrepo.MarketData
	engine    service.Forecaster
	maxSteps  int
	artifacts *cache.LRU[models.Identity, forecast.Artifact]
	events    domrepo.EventPublisher
	metrics   *metrics.Recorder
	l         *applogger.Logger
	now       func() time.Time
}

type PredictorOptions struct {
	MaxSteps     int
	MaxArtifacts int
	Events       domrepo.EventPublisher
	Metrics      *metrics.Recorder
	Logger       *applogger.Logger
}

func NewPredictorUseCase(store domrepo.ArtifactStore, market domrepo.MarketData, engine service.Forecaster, opts PredictorOptions) *PredictorUseCase {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = forecast.DefaultMaxSteps
	}
	if opts.MaxArtifacts <= 0 {
		opts.MaxArtifacts = DefaultMaxArtifacts
	}
	if opts.Logger == nil {
		opts.Logger = applogger.Nop()
	}
	if opts.Events == nil {
		opts.Events = nopEvents{}
	}
	return &PredictorUseCase{
		store:     store,
		market:    market,
		engine:    engine,
		maxSteps:  opts.MaxSteps,
		artifacts: cache.NewLRU[models.Identity, forecast.Artifact](opts.MaxArtifacts),
		events:    opts.Events,
		metrics:   opts.Metrics,
		l:         opts.Logger,
		now:       time.Now,
	}
}

// MaxSteps is the forecast ceiling.
func (uc *PredictorUseCase) MaxSteps() int { return uc.maxSteps }

// Artifact returns the cached artifact for id, loading it on a miss.
func (uc *PredictorUseCase) Artifact(ctx context.Context, id models.Identity) (forecast.Artifact, error) {
	if art, ok := uc.artifacts.Get(id); ok {
		uc.metrics.CacheLookup("artifact", true)
		return art, nil
	}
	uc.metrics.CacheLookup("artifact", false)
	art, err := uc.store.Load(ctx, id)
	if err != nil {
		return forecast.Artifact{}, err
	}
	uc.artifacts.Add(id, art)
	return art, nil
}

// Invalidate drops a cached artifact after it is retrained.
func (uc *PredictorUseCase) Invalidate(id models.Identity) {
	uc.artifacts.Remove(id)
}

// Seed fetches the most recent window closes for the artifact.
func (uc *PredictorUseCase) Seed(ctx context.Context, art forecast.Artifact) ([]float64, time.Time, error) {
	w := art.Model.WindowSize()
	bars, err := uc.market.TimeSeries(ctx, domrepo.SeriesQuery{
		Symbol:     art.Identity.Ticker,
		Interval:   art.Identity.Interval,
		OutputSize: w,
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	closes, err := features.Closes(bars)
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(closes) < w {
		return nil, time.Time{}, fmt.Errorf("%w: %d recent closes, window %d", features.ErrInsufficientData, len(closes), w)
	}
	return features.Tail(closes, w), bars[len(bars)-1].Time, nil
}

// Run forecasts steps values for id from the latest market data.
func (uc *PredictorUseCase) Run(ctx context.Context, id models.Identity, steps int) ([]float64, time.Time, error) {
	art, err := uc.Artifact(ctx, id)
	if err != nil {
		return nil, time.Time{}, err
	}
	seed, last, err := uc.Seed(ctx, art)
	if err != nil {
		return nil, time.Time{}, err
	}
	start := uc.now()
	out, err := uc.engine.Run(ctx, art, seed, steps)
	if err != nil {
		uc.metrics.ForecastError(errorKind(err))
		return nil, time.Time{}, err
	}
	uc.metrics.ObserveForecast(id.Interval, steps, uc.now().Sub(start))
	return out, last, nil
}

// Horizons returns the canonical summary, or the single value for a
// dated horizon. target zero means no date.
func (uc *PredictorUseCase) Horizons(ctx context.Context, id models.Identity, target time.Time) (interface{}, error) {
	art, err := uc.Artifact(ctx, id)
	if err != nil {
		return nil, err
	}
	h, err := forecast.ResolveHorizon(target, uc.now(), uc.maxSteps)
	if err != nil {
		uc.metrics.ForecastError(errorKind(err))
		return nil, err
	}
	seed, _, err := uc.Seed(ctx, art)
	if err != nil {
		return nil, err
	}
	start := uc.now()
	out, err := uc.engine.Run(ctx, art, seed, h.Steps)
	if err != nil {
		uc.metrics.ForecastError(errorKind(err))
		return nil, err
	}
	uc.metrics.ObserveForecast(id.Interval, h.Steps, uc.now().Sub(start))

	if h.Dated {
		v, err := forecast.AtHorizon(out, h)
		if err != nil {
			return nil, err
		}
		return &models.DatePrediction{DatePrediction: v}, nil
	}
	p, err := forecast.Canonical(out)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Series runs a raw forecast and labels each step with its bar time.
func (uc *PredictorUseCase) Series(ctx context.Context, id models.Identity, steps int) (*models.ForecastSeries, error) {
	out, last, err := uc.Run(ctx, id, steps)
	if err != nil {
		return nil, err
	}
	times, err := forecast.Schedule(last, id.Interval, len(out))
	if err != nil {
		return nil, err
	}
	res := &models.ForecastSeries{
		Ticker:    id.Ticker,
		Interval:  id.Interval,
		Steps:     steps,
		Generated: uc.now().UTC(),
		Points:    make([]models.ForecastPoint, len(out)),
	}
	for i, v := range out {
		res.Points[i] = models.ForecastPoint{Step: i + 1, Time: times[i], Price: v}
	}

	ev := models.Event{Type: models.EventForecastGenerated, Ticker: id.Ticker, Interval: id.Interval,
		Data: map[string]interface{}{"steps": steps, "last": out[len(out)-1]}}
	if err := uc.events.Publish(ctx, ev); err != nil {
		uc.l.Warn("publish forecast event failed", applogger.String("identity", id.Key()), applogger.Error(err))
	}
	return res, nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, forecast.ErrInvalidHorizon):
		return "invalid_horizon"
	case errors.Is(err, forecast.ErrPastDate):
		return "past_date"
	case errors.Is(err, forecast.ErrTooFar):
		return "too_far"
	case errors.Is(err, features.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "other"
}

type nopEvents struct{}

func (nopEvents) Publish(context.Context, models.Event) error { return nil }

func (nopEvents) Close() error { return nil }
