package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/domain/service"
	"PriceCast/internal/services/features"
	"PriceCast/internal/services/forecast"
	"PriceCast/pkg/cache"
	"PriceCast/pkg/queue"
)

// lastModel predicts the last value of its window plus one.
type lastModel struct{ w int }

func (m lastModel) WindowSize() int { return m.w }

func (m lastModel) PredictOne(window []float64) (float64, error) {
	return window[len(window)-1] + 0.01, nil
}

type fakeMarket struct {
	bars   []models.Bar
	err    error
	quotes int
	mu     sync.Mutex
	seen   []domrepo.SeriesQuery
}

func (m *fakeMarket) TimeSeries(_ context.Context, q domrepo.SeriesQuery) ([]models.Bar, error) {
	m.mu.Lock()
	m.seen = append(m.seen, q)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if q.OutputSize > 0 && q.OutputSize < len(m.bars) {
		return m.bars[len(m.bars)-q.OutputSize:], nil
	}
	return m.bars, nil
}

func (m *fakeMarket) Quote(_ context.Context, symbol string) (models.Quote, error) {
	m.mu.Lock()
	m.quotes++
	m.mu.Unlock()
	return models.Quote{Symbol: symbol, Close: 101.5, Change: 1.5, PercentChange: 1.5, High: 102, Low: 99, Open: 100, PreviousClose: 100}, nil
}

type fakeStore struct {
	mu    sync.Mutex
	arts  map[models.Identity]forecast.Artifact
	loads int
	saves int
}

func newFakeStore() *fakeStore { return &fakeStore{arts: map[models.Identity]forecast.Artifact{}} }

func (s *fakeStore) Save(_ context.Context, art forecast.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.arts[art.Identity] = art
	return nil
}

func (s *fakeStore) Load(_ context.Context, id models.Identity) (forecast.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	art, ok := s.arts[id]
	if !ok {
		return forecast.Artifact{}, forecast.ErrNotFound
	}
	return art, nil
}

func (s *fakeStore) List(context.Context) ([]models.Identity, error) { return nil, nil }

type fakeEvents struct {
	mu     sync.Mutex
	events []models.Event
}

func (e *fakeEvents) Publish(_ context.Context, ev models.Event) error {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
	return nil
}

func (e *fakeEvents) Close() error { return nil }

func dailyBars(n int) []models.Bar {
	start := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Bar, n)
	for i := range out {
		c := 100 + float64(i)
		out[i] = models.Bar{Time: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	return out
}

func withArtifact(t *testing.T, store *fakeStore, ticker string, w int) forecast.Artifact {
	t.Helper()
	sc, err := features.FitScaler([]float64{100, 200})
	if err != nil {
		t.Fatalf("scaler: %v", err)
	}
	art := forecast.Artifact{Identity: models.NewIdentity(ticker, ""), Model: lastModel{w: w}, Scaler: sc}
	store.arts[art.Identity] = art
	return art
}

func newPredictor(store *fakeStore, market *fakeMarket, opts PredictorOptions) *PredictorUseCase {
	p := NewPredictorUseCase(store, market, forecast.NewEngine(opts.MaxSteps), opts)
	p.now = func() time.Time { return time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC) }
	return p
}

func TestHorizonsCanonicalAndDated(t *testing.T) {
	store := newFakeStore()
	withArtifact(t, store, "AAPL", 10)
	p := newPredictor(store, &fakeMarket{bars: dailyBars(30)}, PredictorOptions{})
	id := models.NewIdentity("AAPL", "")

	res, err := p.Horizons(context.Background(), id, time.Time{})
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	hp, ok := res.(*models.HorizonPrediction)
	if !ok {
		t.Fatalf("unexpected type %T", res)
	}
	if !(hp.OneDay < hp.OneWeek && hp.OneWeek < hp.OneMonth && hp.OneMonth < hp.OneYear) || hp.Note != forecast.SpeculativeNote {
		t.Fatalf("unexpected summary %+v", hp)
	}

	res, err = p.Horizons(context.Background(), id, time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("dated: %v", err)
	}
	dp := res.(*models.DatePrediction)
	if d := dp.DatePrediction - hp.OneWeek; d > 1e-9 || d < -1e-9 {
		t.Fatalf("7-day value %v, canonical week %v", dp.DatePrediction, hp.OneWeek)
	}
}

func TestArtifactCacheAndInvalidate(t *testing.T) {
	store := newFakeStore()
	withArtifact(t, store, "AAPL", 10)
	withArtifact(t, store, "MSFT", 10)
	p := newPredictor(store, &fakeMarket{bars: dailyBars(30)}, PredictorOptions{MaxArtifacts: 1})
	ctx := context.Background()
	aapl, msft := models.NewIdentity("AAPL", ""), models.NewIdentity("MSFT", "")

	for i := 0; i < 3; i++ {
		if _, err := p.Artifact(ctx, aapl); err != nil {
			t.Fatalf("artifact: %v", err)
		}
	}
	if store.loads != 1 {
		t.Fatalf("expected one load, got %d", store.loads)
	}
	p.Invalidate(aapl)
	_, _ = p.Artifact(ctx, aapl)
	_, _ = p.Artifact(ctx, msft) // evicts AAPL
	_, _ = p.Artifact(ctx, aapl)
	if store.loads != 4 {
		t.Fatalf("expected 4 loads after invalidate and eviction, got %d", store.loads)
	}
	if _, err := p.Artifact(ctx, models.NewIdentity("NONE", "")); !errors.Is(err, forecast.ErrNotFound) {
		t.Fatalf("missing artifact: %v", err)
	}
}

func TestSeriesLabelsStepsAndPublishes(t *testing.T) {
	store := newFakeStore()
	withArtifact(t, store, "AAPL", 10)
	events := &fakeEvents{}
	bars := dailyBars(30)
	p := newPredictor(store, &fakeMarket{bars: bars}, PredictorOptions{Events: events})

	s, err := p.Series(context.Background(), models.NewIdentity("aapl", ""), 3)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if len(s.Points) != 3 || s.Points[0].Step != 1 || !s.Points[0].Time.Equal(bars[29].Time.AddDate(0, 0, 1)) {
		t.Fatalf("unexpected points %+v", s.Points)
	}
	if len(events.events) != 1 || events.events[0].Type != models.EventForecastGenerated {
		t.Fatalf("expected forecast event, got %+v", events.events)
	}
}

func TestShortSeedIsRejected(t *testing.T) {
	store := newFakeStore()
	withArtifact(t, store, "AAPL", 60)
	p := newPredictor(store, &fakeMarket{bars: dailyBars(20)}, PredictorOptions{})
	_, err := p.Horizons(context.Background(), models.NewIdentity("AAPL", ""), time.Time{})
	if !errors.Is(err, features.ErrInsufficientData) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
	if msg := PredictionMessage("AAPL", err); msg != "Not enough recent data for prediction." {
		t.Fatalf("message %q", msg)
	}
}

func TestOverviewKeepsAnalysisWhenPredictionFails(t *testing.T) {
	market := &fakeMarket{bars: dailyBars(5)}
	p := newPredictor(newFakeStore(), market, PredictorOptions{})
	uc := NewStockUseCase(market, p, nil)

	out, err := uc.Overview(context.Background(), StockParams{Ticker: "aapl", Interval: "1day", IncludePrediction: true})
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	pe, ok := out.Prediction.(*models.PredictionError)
	if !ok || pe.Error != "No pre-trained model found for AAPL." {
		t.Fatalf("unexpected prediction %#v", out.Prediction)
	}
	if out.Analysis.CurrentPrice != 101.5 || !strings.HasPrefix(out.Analysis.Explanation, "AAPL is currently trading at $101.50, a change of 1.50 (1.50%)") {
		t.Fatalf("unexpected analysis %+v", out.Analysis)
	}
	if len(out.ChartData) != 5 || out.ChartData[0].X != "2024-10-01" || out.ChartData[0].Y != [4]float64{100, 101, 99, 100} {
		t.Fatalf("unexpected chart %+v", out.ChartData)
	}

	out, err = uc.Overview(context.Background(), StockParams{Ticker: "AAPL", Interval: "1day"})
	if err != nil || out.Prediction != nil {
		t.Fatalf("prediction should be skipped: %v %#v", err, out.Prediction)
	}
}

func TestPredictDateErrors(t *testing.T) {
	store := newFakeStore()
	withArtifact(t, store, "AAPL", 10)
	market := &fakeMarket{bars: dailyBars(30)}
	uc := NewStockUseCase(market, newPredictor(store, market, PredictorOptions{}), nil)

	cases := map[string]string{
		"2024-12-31": "Please select a future date.",
		"2025-01-01": "Please select a future date.",
		"2026-01-05": "Date is too far (max 1 year).",
	}
	for date, want := range cases {
		target, _ := time.Parse("2006-01-02", date)
		out, err := uc.PredictDate(context.Background(), "AAPL", target)
		if err != nil {
			t.Fatalf("%s: %v", date, err)
		}
		pe, ok := out.Prediction.(*models.PredictionError)
		if !ok || pe.Error != want {
			t.Fatalf("%s: got %#v, want %q", date, out.Prediction, want)
		}
	}
}

var errKeyMissing = errors.New("market data: API key is not configured")

// unconfiguredMarket reports missing configuration before any request.
type unconfiguredMarket struct{ *fakeMarket }

func (unconfiguredMarket) Ready() error { return errKeyMissing }

func TestUnconfiguredMarketFailsBeforeLookups(t *testing.T) {
	store := newFakeStore()
	withArtifact(t, store, "AAPL", 10)
	inner := &fakeMarket{bars: dailyBars(30)}
	market := unconfiguredMarket{inner}
	p := NewPredictorUseCase(store, market, forecast.NewEngine(0), PredictorOptions{})
	uc := NewStockUseCase(market, p, nil)

	target := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	if out, err := uc.PredictDate(context.Background(), "AAPL", target); !errors.Is(err, errKeyMissing) || out != nil {
		t.Fatalf("predict date: %#v %v", out, err)
	}
	if _, err := uc.Overview(context.Background(), StockParams{Ticker: "AAPL", IncludePrediction: true}); !errors.Is(err, errKeyMissing) {
		t.Fatalf("overview: %v", err)
	}
	if store.loads != 0 || len(inner.seen) != 0 || inner.quotes != 0 {
		t.Fatalf("lookups ran: loads=%d series=%d quotes=%d", store.loads, len(inner.seen), inner.quotes)
	}
}

func TestUnorderedSeedIsUpstreamDataError(t *testing.T) {
	store := newFakeStore()
	withArtifact(t, store, "AAPL", 5)
	bars := dailyBars(10)
	bars[9].Time = bars[8].Time
	p := newPredictor(store, &fakeMarket{bars: bars}, PredictorOptions{})
	_, err := p.Horizons(context.Background(), models.NewIdentity("AAPL", ""), time.Time{})
	if !errors.Is(err, models.ErrUpstreamData) {
		t.Fatalf("expected upstream data error, got %v", err)
	}
	if msg := PredictionMessage("AAPL", err); msg != "Invalid market data for AAPL." {
		t.Fatalf("message %q", msg)
	}
}

func TestChartQuery(t *testing.T) {
	now := time.Date(2025, 6, 15, 13, 0, 0, 0, time.UTC)
	cases := []struct {
		in, interval string
		start        time.Time
		size         int
	}{
		{"1month", "1day", time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC), 0},
		{"1year", "1day", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), 0},
		{"5years", "1week", time.Date(2020, 6, 15, 0, 0, 0, 0, time.UTC), 0},
		{"15min", "15min", time.Time{}, 100},
		{"1day", "1day", time.Time{}, 100},
	}
	for _, tc := range cases {
		q := chartQuery("AAPL", tc.in, now)
		if q.Interval != tc.interval || !q.Start.Equal(tc.start) || q.OutputSize != tc.size {
			t.Fatalf("%s: unexpected query %+v", tc.in, q)
		}
	}
}

type fakeBars struct {
	mu   sync.Mutex
	bars map[models.Identity][]models.Bar
}

func (b *fakeBars) SaveBars(_ context.Context, id models.Identity, bars []models.Bar) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bars[id] = bars
	return nil
}

func (b *fakeBars) LoadBars(_ context.Context, id models.Identity) ([]models.Bar, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bars, ok := b.bars[id]
	if !ok {
		return nil, domrepo.ErrNoBars
	}
	return bars, nil
}

func (b *fakeBars) Close() error { return nil }

type fakeFitter struct {
	calls   int
	started chan struct{}
	block   chan struct{}
}

func (f *fakeFitter) Fit(_ context.Context, id models.Identity, bars []models.Bar, _ service.FitOptions) (forecast.Artifact, error) {
	f.calls++
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	sc, _ := features.FitScaler([]float64{1, 2})
	return forecast.Artifact{Identity: id, Model: lastModel{w: 3}, Scaler: sc, Report: forecast.Report{Samples: len(bars) - 3}}, nil
}

type invalidations struct{ ids []models.Identity }

func (i *invalidations) Invalidate(id models.Identity) { i.ids = append(i.ids, id) }

func newTrainer(t *testing.T, fitter *fakeFitter, events *fakeEvents, inv *invalidations) (*TrainerUseCase, *fakeStore, *fakeMarket) {
	t.Helper()
	mem := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })
	store := newFakeStore()
	market := &fakeMarket{bars: dailyBars(40)}
	deps := TrainerDeps{
		Market: market,
		Bars:   &fakeBars{bars: map[models.Identity][]models.Bar{}},
		Store:  store,
		Fitter: fitter,
		Locker: mem,
	}
	if events != nil {
		deps.Events = events
	}
	if inv != nil {
		deps.Artifacts = inv
	}
	return NewTrainerUseCase(deps), store, market
}

func TestTrainFetchesSavesAndPublishes(t *testing.T) {
	events, inv := &fakeEvents{}, &invalidations{}
	tr, store, market := newTrainer(t, &fakeFitter{}, events, inv)
	id := models.NewIdentity("nvda", "")

	report, err := tr.Train(context.Background(), TrainParams{ID: id})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if report.Samples != 37 || store.saves != 1 {
		t.Fatalf("unexpected report %+v saves %d", report, store.saves)
	}
	if len(market.seen) != 1 || market.seen[0].OutputSize != 5000 || market.seen[0].Start.IsZero() {
		t.Fatalf("unexpected history query %+v", market.seen)
	}
	if len(inv.ids) != 1 || inv.ids[0] != id {
		t.Fatalf("artifact not invalidated: %v", inv.ids)
	}
	if len(events.events) != 1 || events.events[0].Type != models.EventModelTrained || events.events[0].Ticker != "NVDA" {
		t.Fatalf("unexpected events %+v", events.events)
	}

	// second run reuses stored bars
	if _, err := tr.Train(context.Background(), TrainParams{ID: id}); err != nil {
		t.Fatalf("retrain: %v", err)
	}
	if len(market.seen) != 1 {
		t.Fatalf("stored bars not reused, %d fetches", len(market.seen))
	}
}

func TestConcurrentTrainingIsRefused(t *testing.T) {
	fitter := &fakeFitter{started: make(chan struct{}, 1), block: make(chan struct{})}
	tr, _, _ := newTrainer(t, fitter, nil, nil)
	id := models.NewIdentity("TSLA", "")

	done := make(chan error, 1)
	go func() {
		_, err := tr.Train(context.Background(), TrainParams{ID: id})
		done <- err
	}()
	<-fitter.started
	if _, err := tr.Train(context.Background(), TrainParams{ID: id}); !errors.Is(err, ErrTrainingInProgress) {
		t.Fatalf("second run was not refused: %v", err)
	}
	close(fitter.block)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := tr.Train(context.Background(), TrainParams{ID: id}); err != nil {
		t.Fatalf("lock not released: %v", err)
	}
}

func TestTrainJobAndEnqueue(t *testing.T) {
	tr, store, _ := newTrainer(t, &fakeFitter{}, nil, nil)
	job := tr.Job()
	if job.Type() != TrainJobType {
		t.Fatalf("job type %q", job.Type())
	}
	var perm *queue.Permanent
	if err := job.Handle(context.Background(), []byte(`{"ticker":"AAPL","interval":"3days"}`)); !errors.As(err, &perm) {
		t.Fatalf("bad interval should be permanent, got %v", err)
	}
	if err := job.Handle(context.Background(), []byte(`not json`)); !errors.As(err, &perm) {
		t.Fatalf("bad payload should be permanent, got %v", err)
	}
	if err := job.Handle(context.Background(), []byte(`{"ticker":"AAPL","interval":"1day"}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.saves != 1 {
		t.Fatalf("job did not save an artifact")
	}
	if _, err := tr.Enqueue(context.Background(), models.NewIdentity("AAPL", ""), service.FitOptions{}); !errors.Is(err, queue.ErrDisabled) {
		t.Fatalf("expected disabled queue, got %v", err)
	}
}

func TestPretrainContinuesOnError(t *testing.T) {
	tr, store, _ := newTrainer(t, &fakeFitter{}, nil, nil)
	failed := tr.Pretrain(context.Background(), []string{"AAPL", "", "MSFT"}, "1day", service.FitOptions{})
	if len(failed) != 1 {
		t.Fatalf("expected one failure, got %v", failed)
	}
	if store.saves != 2 {
		t.Fatalf("expected two artifacts, got %d", store.saves)
	}
}
