package models

import (
	"fmt"
	"time"
)

// Intervals accepted for training and forecasting.
var ModelIntervals = []string{"1min", "5min", "15min", "30min", "1h", "1day"}

var intraday = map[string]bool{"1min": true, "5min": true, "15min": true, "30min": true, "1h": true}

// IsIntraday reports whether bars at interval carry a time of day.
func IsIntraday(interval string) bool { return intraday[interval] }

// IsModelInterval reports whether a model can be trained at interval.
func IsModelInterval(interval string) bool {
	return interval == "1day" || intraday[interval]
}

// ValidateIdentity checks the identity names a trainable series.
func ValidateIdentity(id Identity) error {
	if id.Ticker == "" {
		return fmt.Errorf("ticker is required")
	}
	if !IsModelInterval(id.Interval) {
		return fmt.Errorf("unsupported model interval %q", id.Interval)
	}
	return nil
}

// HistoryStart is where training history begins: five years back for
// daily bars, two months for intraday.
func HistoryStart(interval string, now time.Time) time.Time {
	if IsIntraday(interval) {
		return now.AddDate(0, -2, 0)
	}
	return now.AddDate(-5, 0, 0)
}
