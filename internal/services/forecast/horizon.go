package forecast

import (
	"errors"
	"fmt"
	"time"

	"PriceCast/internal/domain/models"
)

// CanonicalSteps is the run length behind the one-year summary.
const CanonicalSteps = 365

// SpeculativeNote accompanies every canonical summary.
const SpeculativeNote = "Long-term predictions are speculative and based on historical data patterns."

var (
	ErrPastDate = errors.New("forecast: target date is not in the future")
	ErrTooFar   = errors.New("forecast: target date is beyond the horizon ceiling")
)

// canonical offsets into a CanonicalSteps-long result.
const (
	offsetDay   = 0
	offsetWeek  = 6
	offsetMonth = 29
	offsetYear  = 364
)

// Horizon is a resolved request: how many steps to run and whether the
// caller asked for one explicit date.
type Horizon struct {
	Steps  int
	Target time.Time
	Dated  bool
}

// ResolveHorizon turns an optional target date into a step count. A zero
// target yields the canonical run. Dates compare as civil days in their own
// location, so the time of day never shifts the result. maxSteps <= 0 uses
// DefaultMaxSteps.
func ResolveHorizon(target, today time.Time, maxSteps int) (Horizon, error) {
	if target.IsZero() {
		return Horizon{Steps: CanonicalSteps}, nil
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	n := civilDays(today, target)
	switch {
	case n <= 0:
		return Horizon{}, fmt.Errorf("%w: %s", ErrPastDate, target.Format("2006-01-02"))
	case n > maxSteps:
		return Horizon{}, fmt.Errorf("%w: %d days, max %d", ErrTooFar, n, maxSteps)
	}
	return Horizon{Steps: n, Target: target, Dated: true}, nil
}

func civilDays(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// Canonical picks the 1-day, 1-week, 1-month and 1-year values out of a
// CanonicalSteps-long result.
func Canonical(result []float64) (models.HorizonPrediction, error) {
	if len(result) < CanonicalSteps {
		return models.HorizonPrediction{}, fmt.Errorf("%w: canonical summary needs %d steps, got %d",
			ErrInvalidHorizon, CanonicalSteps, len(result))
	}
	return models.HorizonPrediction{
		OneDay:   result[offsetDay],
		OneWeek:  result[offsetWeek],
		OneMonth: result[offsetMonth],
		OneYear:  result[offsetYear],
		Note:     SpeculativeNote,
	}, nil
}

// AtHorizon returns the value for a dated horizon, r[N-1].
func AtHorizon(result []float64, h Horizon) (float64, error) {
	if h.Steps < 1 || h.Steps > len(result) {
		return 0, fmt.Errorf("%w: step %d of %d", ErrInvalidHorizon, h.Steps, len(result))
	}
	return result[h.Steps-1], nil
}

var intradayStep = map[string]time.Duration{
	"1min":  time.Minute,
	"5min":  5 * time.Minute,
	"15min": 15 * time.Minute,
	"30min": 30 * time.Minute,
	"1h":    time.Hour,
}

// Schedule labels n forecast steps after start. Daily and longer intervals
// advance by calendar units; intraday intervals by their duration.
func Schedule(start time.Time, interval string, n int) ([]time.Time, error) {
	next, err := stepper(interval)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, n)
	for i := range out {
		out[i] = next(start, i+1)
	}
	return out, nil
}

func stepper(interval string) (func(time.Time, int) time.Time, error) {
	if d, ok := intradayStep[interval]; ok {
		return func(t time.Time, i int) time.Time { return t.Add(time.Duration(i) * d) }, nil
	}
	switch interval {
	case "", "1day":
		return func(t time.Time, i int) time.Time { return t.AddDate(0, 0, i) }, nil
	case "1week":
		return func(t time.Time, i int) time.Time { return t.AddDate(0, 0, 7*i) }, nil
	case "1month":
		return func(t time.Time, i int) time.Time { return t.AddDate(0, i, 0) }, nil
	}
	return nil, fmt.Errorf("forecast: unknown interval %q", interval)
}
