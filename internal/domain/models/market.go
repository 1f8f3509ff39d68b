package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultInterval is the bar interval used when a caller does not name one.
const DefaultInterval = "1day"

// ErrUpstreamData marks bars or quotes that cannot be used as delivered: a
// provider error payload, unparsable fields or a broken time ordering.
var ErrUpstreamData = errors.New("upstream data error")

// Bar is one OHLCV record as returned by the market data provider.
type Bar struct {
	Time   time.Time `json:"datetime" parquet:"datetime,timestamp"`
	Open   float64   `json:"open" parquet:"open"`
	High   float64   `json:"high" parquet:"high"`
	Low    float64   `json:"low" parquet:"low"`
	Close  float64   `json:"close" parquet:"close"`
	Volume float64   `json:"volume" parquet:"volume"`
}

// Quote is the latest snapshot for a symbol.
type Quote struct {
	Symbol        string
	Close         float64
	Change        float64
	PercentChange float64
	High          float64
	Low           float64
	Open          float64
	PreviousClose float64
}

// Identity names one trained artifact: a ticker at a bar interval.
type Identity struct {
	Ticker   string
	Interval string
}

// NewIdentity normalizes ticker case and fills the default interval.
func NewIdentity(ticker, interval string) Identity {
	interval = strings.TrimSpace(interval)
	if interval == "" {
		interval = DefaultInterval
	}
	return Identity{Ticker: strings.ToUpper(strings.TrimSpace(ticker)), Interval: interval}
}

// Key is a stable string form used for cache keys and locks.
func (id Identity) Key() string {
	return fmt.Sprintf("%s:%s", id.Ticker, id.Interval)
}

func (id Identity) String() string { return id.Key() }
