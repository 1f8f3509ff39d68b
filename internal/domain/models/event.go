package models

import "time"

const (
	EventModelTrained      = "model.trained"
	EventForecastGenerated = "forecast.generated"
)

// Event is published to the event topic, keyed by ticker.
type Event struct {
	ID       string      `json:"id"`
	Type     string      `json:"type"`
	Ticker   string      `json:"ticker"`
	Interval string      `json:"interval"`
	Time     time.Time   `json:"time"`
	Data     interface{} `json:"data,omitempty"`
}
