package models

// Requests for HTTP endpoints, bound by echo and validated by pkg/http.

type StockRequest struct {
	Ticker            string `param:"ticker" validate:"required,max=16"`
	Interval          string `query:"interval" default:"1day" validate:"oneof=1min 5min 15min 30min 1h 1day 1week 1month 1year 5years"`
	TargetDate        string `query:"target_date" validate:"omitempty,datetime=2006-01-02"`
	IncludePrediction string `query:"include_prediction" validate:"omitempty,boolean"`
}

type ForecastRequest struct {
	Ticker   string `param:"ticker" validate:"required,max=16"`
	Interval string `query:"interval" default:"1day" validate:"oneof=1min 5min 15min 30min 1h 1day"`
	Steps    int    `query:"steps" default:"30" validate:"gte=1"`
}

type TrainRequest struct {
	Ticker    string `param:"ticker" validate:"required,max=16"`
	Interval  string `query:"interval" default:"1day" validate:"oneof=1min 5min 15min 30min 1h 1day"`
	Epochs    int    `query:"epochs" validate:"gte=0,lte=500"`
	BatchSize int    `query:"batch_size" validate:"gte=0,lte=4096"`
}
