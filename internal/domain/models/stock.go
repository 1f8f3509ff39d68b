package models

import "time"

// Field names in this file are consumed by existing front-end clients.

// Analysis is the quote summary shown above the chart.
type Analysis struct {
	CurrentPrice  float64 `json:"currentPrice"`
	Change        float64 `json:"change"`
	PercentChange float64 `json:"percentChange"`
	DayHigh       float64 `json:"dayHigh"`
	DayLow        float64 `json:"dayLow"`
	OpenPrice     float64 `json:"openPrice"`
	PrevClose     float64 `json:"prevClose"`
	Explanation   string  `json:"explanation"`
}

// ChartPoint is one candlestick: x is the bar datetime, y is [open, high, low, close].
type ChartPoint struct {
	X string     `json:"x"`
	Y [4]float64 `json:"y"`
}

// HorizonPrediction carries the canonical offsets of a 365-step forecast.
type HorizonPrediction struct {
	OneDay   float64 `json:"1-day"`
	OneWeek  float64 `json:"1-week"`
	OneMonth float64 `json:"1-month"`
	OneYear  float64 `json:"1-year"`
	Note     string  `json:"note"`
}

// DatePrediction is the single value returned for an explicit target date.
type DatePrediction struct {
	DatePrediction float64 `json:"date_prediction"`
}

// PredictionError is reported in place of a prediction body.
type PredictionError struct {
	Error string `json:"error"`
}

// StockOverview is the no-date response. Prediction holds a
// *HorizonPrediction, a *PredictionError or nil.
type StockOverview struct {
	Analysis   Analysis     `json:"analysis"`
	ChartData  []ChartPoint `json:"chartData"`
	Prediction interface{}  `json:"prediction"`
}

// DateOverview is the explicit-date response.
type DateOverview struct {
	Prediction interface{} `json:"prediction"`
}

// ForecastPoint is one labelled step of a raw forecast.
type ForecastPoint struct {
	Step  int       `json:"step"`
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// ForecastSeries is the raw forecast returned by /api/forecast.
type ForecastSeries struct {
	Ticker    string          `json:"ticker"`
	Interval  string          `json:"interval"`
	Steps     int             `json:"steps"`
	Generated time.Time       `json:"generated"`
	Points    []ForecastPoint `json:"points"`
}

// TrainingJob is the payload queued for the trainer worker.
type TrainingJob struct {
	ID        string    `json:"id"`
	Ticker    string    `json:"ticker"`
	Interval  string    `json:"interval"`
	Epochs    int       `json:"epochs,omitempty"`
	BatchSize int       `json:"batch_size,omitempty"`
	Queued    time.Time `json:"queued"`
}
