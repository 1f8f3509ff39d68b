package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/domain/service"
	"PriceCast/internal/services/forecast"
	"PriceCast/pkg/cache"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/metrics"
	"PriceCast/pkg/queue"
)

const (
	// TrainJobType is the queue message type for training jobs.
	TrainJobType = "train_model"

	historyOutputSize = 5000
	defaultLockTTL    = 2 * time.Hour
)

// ErrTrainingInProgress is returned when another training run holds the
// identity's lock.
var ErrTrainingInProgress = errors.New("training already in progress")

// PopularTickers are pretrained when no tickers are named.
var PopularTickers = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "NVDA", "META", "RELI"}

type artifactInvalidator interface {
	Invalidate(id models.Identity)
}

// TrainerUseCase fetches history, fits models and publishes artifacts.
type TrainerUseCase struct {
	market    domrepo.MarketData
	bars      domrepo.BarStore
	store     domrepo.ArtifactStore
	fitter    service.ModelFitter
	locker    cache.Locker
	jobs      queue.Publisher
	events    domrepo.EventPublisher
	artifacts artifactInvalidator
	metrics   *metrics.Recorder
	l         *applogger.Logger
	lockTTL   time.Duration
	now       func() time.Time
}

type TrainerDeps struct {
	Market    domrepo.MarketData
	Bars      domrepo.BarStore
	Store     domrepo.ArtifactStore
	Fitter    service.ModelFitter
	Locker    cache.Locker
	Jobs      queue.Publisher
	Events    domrepo.EventPublisher
	Artifacts artifactInvalidator
	Metrics   *metrics.Recorder
	Logger    *applogger.Logger
	LockTTL   time.Duration
}

func NewTrainerUseCase(d TrainerDeps) *TrainerUseCase {
	t := &TrainerUseCase{
		market:    d.Market,
		bars:      d.Bars,
		store:     d.Store,
		fitter:    d.Fitter,
		locker:    d.Locker,
		jobs:      d.Jobs,
		events:    d.Events,
		artifacts: d.Artifacts,
		metrics:   d.Metrics,
		l:         d.Logger,
		lockTTL:   d.LockTTL,
		now:       time.Now,
	}
	if t.jobs == nil {
		t.jobs = queue.Disabled{}
	}
	if t.events == nil {
		t.events = nopEvents{}
	}
	if t.l == nil {
		t.l = applogger.Nop()
	}
	if t.lockTTL <= 0 {
		t.lockTTL = defaultLockTTL
	}
	return t
}

// Fetch downloads the training history for id and stores it.
func (t *TrainerUseCase) Fetch(ctx context.Context, id models.Identity) ([]models.Bar, error) {
	if err := models.ValidateIdentity(id); err != nil {
		return nil, err
	}
	now := t.now()
	bars, err := t.market.TimeSeries(ctx, domrepo.SeriesQuery{
		Symbol:     id.Ticker,
		Interval:   id.Interval,
		Start:      models.HistoryStart(id.Interval, now),
		End:        now,
		OutputSize: historyOutputSize,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", id, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("fetch %s: %w", id, domrepo.ErrNoMarketData)
	}
	if err := t.bars.SaveBars(ctx, id, bars); err != nil {
		return nil, err
	}
	t.l.Info("history saved",
		applogger.String("identity", id.Key()),
		applogger.Int("bars", len(bars)),
		applogger.Time("first", bars[0].Time),
		applogger.Time("last", bars[len(bars)-1].Time),
	)
	return bars, nil
}

type TrainParams struct {
	ID      models.Identity
	Options service.FitOptions
	// Refresh fetches new history even when some is stored.
	Refresh bool
}

// Train fits and saves a model for one identity while holding its lock.
func (t *TrainerUseCase) Train(ctx context.Context, p TrainParams) (forecast.Report, error) {
	id := p.ID
	if err := models.ValidateIdentity(id); err != nil {
		return forecast.Report{}, err
	}
	lockKey := cache.Key("train", id.Ticker, id.Interval)
	token, ok, err := t.locker.TryLock(ctx, lockKey, t.lockTTL)
	if err != nil {
		return forecast.Report{}, fmt.Errorf("training lock %s: %w", id, err)
	}
	if !ok {
		return forecast.Report{}, fmt.Errorf("%w: %s", ErrTrainingInProgress, id)
	}
	defer func() {
		// release with a fresh context so a canceled run still unlocks
		uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.locker.Unlock(uctx, lockKey, token); err != nil {
			t.l.Warn("training unlock failed", applogger.String("identity", id.Key()), applogger.Error(err))
		}
	}()

	start := t.now()
	report, err := t.train(ctx, p)
	t.metrics.ObserveTraining(id.Ticker, id.Interval, t.now().Sub(start), report.TestLoss, err)
	if err != nil {
		t.l.Error("training failed", applogger.String("identity", id.Key()), applogger.Error(err))
		return forecast.Report{}, err
	}
	return report, nil
}

func (t *TrainerUseCase) train(ctx context.Context, p TrainParams) (forecast.Report, error) {
	id := p.ID
	var bars []models.Bar
	var err error
	if !p.Refresh {
		bars, err = t.bars.LoadBars(ctx, id)
		if err != nil && !errors.Is(err, domrepo.ErrNoBars) {
			return forecast.Report{}, err
		}
	}
	if len(bars) == 0 {
		if bars, err = t.Fetch(ctx, id); err != nil {
			return forecast.Report{}, err
		}
	}

	art, err := t.fitter.Fit(ctx, id, bars, p.Options)
	if err != nil {
		return forecast.Report{}, err
	}
	if err := t.store.Save(ctx, art); err != nil {
		return forecast.Report{}, err
	}
	if t.artifacts != nil {
		t.artifacts.Invalidate(id)
	}
	t.l.Info("training finished",
		applogger.String("identity", id.Key()),
		applogger.Int("samples", art.Report.Samples),
		applogger.Float64("train_loss", art.Report.TrainLoss),
		applogger.Float64("test_loss", art.Report.TestLoss),
		applogger.Duration("duration_ms", art.Report.Duration),
	)

	ev := models.Event{Type: models.EventModelTrained, Ticker: id.Ticker, Interval: id.Interval, Data: art.Report}
	if err := t.events.Publish(ctx, ev); err != nil {
		t.l.Warn("publish training event failed", applogger.String("identity", id.Key()), applogger.Error(err))
	}
	return art.Report, nil
}

// Pretrain fetches and trains each ticker in turn and keeps going past
// failures. The returned map holds the error of every failed ticker.
func (t *TrainerUseCase) Pretrain(ctx context.Context, tickers []string, interval string, opts service.FitOptions) map[string]error {
	if len(tickers) == 0 {
		tickers = PopularTickers
	}
	failed := make(map[string]error)
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			failed[ticker] = err
			continue
		}
		id := models.NewIdentity(ticker, interval)
		if _, err := t.Train(ctx, TrainParams{ID: id, Options: opts, Refresh: true}); err != nil {
			failed[id.Ticker] = err
		}
	}
	return failed
}

// Enqueue schedules a training job on the queue.
func (t *TrainerUseCase) Enqueue(ctx context.Context, id models.Identity, opts service.FitOptions) (models.TrainingJob, error) {
	if err := models.ValidateIdentity(id); err != nil {
		return models.TrainingJob{}, err
	}
	job := models.TrainingJob{
		Ticker:    id.Ticker,
		Interval:  id.Interval,
		Epochs:    opts.Epochs,
		BatchSize: opts.BatchSize,
		Queued:    t.now().UTC(),
	}
	msgID, err := t.jobs.Enqueue(ctx, TrainJobType, job)
	if err != nil {
		return models.TrainingJob{}, err
	}
	job.ID = msgID
	return job, nil
}

// Job returns the queue handler that runs training jobs.
func (t *TrainerUseCase) Job() queue.Job {
	return queue.JobFunc{
		JobName: "trainer",
		MsgType: TrainJobType,
		Fn: func(ctx context.Context, payload []byte) error {
			job, err := queue.ParsePayload[models.TrainingJob](payload)
			if err != nil {
				return err
			}
			id := models.NewIdentity(job.Ticker, job.Interval)
			if err := models.ValidateIdentity(id); err != nil {
				return &queue.Permanent{Err: err}
			}
			_, err = t.Train(ctx, TrainParams{
				ID:      id,
				Options: service.FitOptions{Epochs: job.Epochs, BatchSize: job.BatchSize},
				Refresh: true,
			})
			return err
		},
	}
}
