package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/services/features"
	"PriceCast/internal/services/forecast"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

const chartOutputSize = 100

// StockUseCase builds the chart, quote analysis and prediction shown on
// the stock page.
type StockUseCase struct {
	market    domrepo.MarketData
	predictor *PredictorUseCase
	timeout   time.Duration
	l         *applogger.Logger
	now       func() time.Time
}

func NewStockUseCase(market domrepo.MarketData, predictor *PredictorUseCase, l *applogger.Logger) *StockUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	return &StockUseCase{market: market, predictor: predictor, timeout: 60 * time.Second, l: l, now: time.Now}
}

type StockParams struct {
	Ticker            string
	Interval          string
	IncludePrediction bool
}

// Overview fetches chart and quote concurrently with the prediction. A
// prediction failure is reported inside the result; chart and quote
// failures fail the call.
func (uc *StockUseCase) Overview(ctx context.Context, p StockParams) (*models.StockOverview, error) {
	if err := uc.ready(); err != nil {
		return nil, err
	}
	ticker := strings.ToUpper(p.Ticker)
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	var (
		wg       sync.WaitGroup
		bars     []models.Bar
		barsErr  error
		quote    models.Quote
		quoteErr error
		pred     interface{}
	)
	q := chartQuery(ticker, p.Interval, uc.now())
	wg.Add(2)
	go func() {
		defer wg.Done()
		bars, barsErr = uc.market.TimeSeries(ctx, q)
	}()
	go func() {
		defer wg.Done()
		quote, quoteErr = uc.market.Quote(ctx, ticker)
	}()
	if p.IncludePrediction {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pred = uc.prediction(ctx, ticker, time.Time{})
		}()
	}
	wg.Wait()

	if quoteErr != nil {
		return nil, fmt.Errorf("quote %s: %w", ticker, quoteErr)
	}
	// a chart without values is shown empty
	if barsErr != nil && !errors.Is(barsErr, domrepo.ErrNoMarketData) {
		return nil, fmt.Errorf("chart %s: %w", ticker, barsErr)
	}

	out := &models.StockOverview{
		Analysis:   analysis(ticker, quote),
		ChartData:  chartPoints(bars, models.IsIntraday(q.Interval)),
		Prediction: pred,
	}
	return out, nil
}

// PredictDate returns the prediction for one civil date. Only an
// unconfigured market data provider fails the call; prediction errors are
// reported inside the result.
func (uc *StockUseCase) PredictDate(ctx context.Context, ticker string, target time.Time) (*models.DateOverview, error) {
	if err := uc.ready(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	return &models.DateOverview{Prediction: uc.prediction(ctx, strings.ToUpper(ticker), target)}, nil
}

func (uc *StockUseCase) ready() error {
	if r, ok := uc.market.(domrepo.Readiness); ok {
		return r.Ready()
	}
	return nil
}

func (uc *StockUseCase) prediction(ctx context.Context, ticker string, target time.Time) interface{} {
	res, err := uc.predictor.Horizons(ctx, models.NewIdentity(ticker, models.DefaultInterval), target)
	if err != nil {
		if !errors.Is(err, forecast.ErrNotFound) {
			uc.l.Warn("prediction failed", applogger.String("ticker", ticker), applogger.Error(err))
		}
		return &models.PredictionError{Error: PredictionMessage(ticker, err)}
	}
	return res
}

// PredictionMessage is the user-facing text for a prediction error.
func PredictionMessage(ticker string, err error) string {
	switch {
	case errors.Is(err, forecast.ErrNotFound):
		return fmt.Sprintf("No pre-trained model found for %s.", ticker)
	case errors.Is(err, forecast.ErrPastDate):
		return "Please select a future date."
	case errors.Is(err, forecast.ErrTooFar):
		return "Date is too far (max 1 year)."
	case errors.Is(err, features.ErrInsufficientData), errors.Is(err, domrepo.ErrNoMarketData):
		return "Not enough recent data for prediction."
	case errors.Is(err, models.ErrUpstreamData):
		return fmt.Sprintf("Invalid market data for %s.", ticker)
	}
	return fmt.Sprintf("Prediction failed: %v", err)
}

// chartQuery maps the page interval to a provider query. Range intervals
// ask for a date window; everything else for the last 100 bars.
func chartQuery(ticker, interval string, now time.Time) domrepo.SeriesQuery {
	q := domrepo.SeriesQuery{Symbol: ticker, Interval: interval}
	switch interval {
	case "1month":
		q.Interval, q.Start = "1day", now.AddDate(0, -1, 0)
	case "1year":
		q.Interval, q.Start = "1day", now.AddDate(-1, 0, 0)
	case "5years":
		q.Interval, q.Start = "1week", now.AddDate(-5, 0, 0)
	default:
		if q.Interval == "" {
			q.Interval = models.DefaultInterval
		}
		q.OutputSize = chartOutputSize
		return q
	}
	q.Start = util.StartOfDay(q.Start)
	q.End = util.StartOfDay(now)
	return q
}

func chartPoints(bars []models.Bar, intraday bool) []models.ChartPoint {
	out := make([]models.ChartPoint, len(bars))
	for i, b := range bars {
		out[i] = models.ChartPoint{
			X: util.FormatBarTime(b.Time, intraday),
			Y: [4]float64{b.Open, b.High, b.Low, b.Close},
		}
	}
	return out
}

func analysis(ticker string, q models.Quote) models.Analysis {
	return models.Analysis{
		CurrentPrice:  q.Close,
		Change:        q.Change,
		PercentChange: q.PercentChange,
		DayHigh:       q.High,
		DayLow:        q.Low,
		OpenPrice:     q.Open,
		PrevClose:     q.PreviousClose,
		Explanation: fmt.Sprintf("%s is currently trading at $%.2f, a change of %.2f (%.2f%%) for the day...",
			ticker, q.Close, q.Change, q.PercentChange),
	}
}
