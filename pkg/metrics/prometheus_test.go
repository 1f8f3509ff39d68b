package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.CacheLookup("artifacts", true)
	r.CacheLookup("artifacts", false)
	r.CacheLookup("artifacts", false)
	r.ObserveUpstream("time_series", 10*time.Millisecond, errors.New("x"))
	r.ObserveTraining("AAPL", "1day", time.Second, 0.01, nil)

	if got := testutil.ToFloat64(r.cacheLookups.WithLabelValues("artifacts", "miss")); got != 2 {
		t.Fatalf("misses = %v", got)
	}
	if got := testutil.ToFloat64(r.upstreamErrors.WithLabelValues("time_series")); got != 1 {
		t.Fatalf("upstream errors = %v", got)
	}
	if got := testutil.ToFloat64(r.trainLoss.WithLabelValues("AAPL", "1day")); got != 0.01 {
		t.Fatalf("loss gauge = %v", got)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.CacheLookup("x", true)
	r.ObserveForecast("1day", 5, time.Millisecond)
	r.ForecastError("not_found")
	r.ObserveTraining("A", "1day", 0, 0, errors.New("x"))
	r.ObserveUpstream("quote", 0, nil)
}
