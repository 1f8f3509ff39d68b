package twelvedata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/pkg/cache"
)

const seriesBody = `{"meta":{"symbol":"AAPL","interval":"1day"},"status":"ok","values":[
 {"datetime":"2025-01-03","open":"3","high":"4","low":"2","close":"3.5","volume":"300"},
 {"datetime":"2025-01-02","open":"2","high":"3","low":"1","close":"2.5","volume":"200"},
 {"datetime":"2025-01-01","open":"1","high":"2","low":"0.5","close":"1.5","volume":"100"}]}`

func newServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.URL.Query().Get("apikey") != "k" {
			t.Errorf("missing api key in %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/time_series":
			if r.URL.Query().Get("symbol") == "BAD" {
				_, _ = w.Write([]byte(`{"code":400,"message":"symbol not found","status":"error"}`))
				return
			}
			if r.URL.Query().Get("symbol") == "EMPTY" {
				_, _ = w.Write([]byte(`{"meta":{},"status":"ok"}`))
				return
			}
			_, _ = w.Write([]byte(seriesBody))
		case "/quote":
			_, _ = w.Write([]byte(`{"symbol":"AAPL","open":"1","high":"2","low":"0.5","close":"1.75","previous_close":"1.5","change":"0.25","percent_change":"16.6667"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTimeSeriesReturnsOldestFirst(t *testing.T) {
	var calls int32
	srv := newServer(t, &calls)
	c := New("k", WithBaseURL(srv.URL))
	bars, err := c.TimeSeries(context.Background(), domrepo.SeriesQuery{Symbol: "aapl", Interval: "1day", OutputSize: 3})
	if err != nil {
		t.Fatalf("time series: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("%d bars", len(bars))
	}
	if !bars[0].Time.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) || bars[2].Close != 3.5 || bars[0].Volume != 100 {
		t.Fatalf("unexpected bars %+v", bars)
	}
}

func TestTimeSeriesUpstreamErrors(t *testing.T) {
	var calls int32
	srv := newServer(t, &calls)
	c := New("k", WithBaseURL(srv.URL))
	for _, sym := range []string{"BAD", "EMPTY"} {
		_, err := c.TimeSeries(context.Background(), domrepo.SeriesQuery{Symbol: sym})
		if !errors.Is(err, ErrUpstreamData) || !errors.Is(err, models.ErrUpstreamData) {
			t.Fatalf("%s: expected upstream data error, got %v", sym, err)
		}
	}
	if _, err := New("", WithBaseURL(srv.URL)).Quote(context.Background(), "AAPL"); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected missing key error, got %v", err)
	}
	if err := New("").Ready(); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("ready without key: %v", err)
	}
	if err := c.Ready(); err != nil {
		t.Fatalf("ready with key: %v", err)
	}
}

func TestQuoteAndCache(t *testing.T) {
	var calls int32
	srv := newServer(t, &calls)
	mem := cache.NewMemoryCache()
	defer mem.Close()
	c := New("k", WithBaseURL(srv.URL), WithCache(mem, time.Minute))

	for i := 0; i < 2; i++ {
		q, err := c.Quote(context.Background(), "aapl")
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		if q.Symbol != "AAPL" || q.Close != 1.75 || q.PreviousClose != 1.5 || q.PercentChange != 16.6667 {
			t.Fatalf("unexpected quote %+v", q)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected one upstream call, got %d", n)
	}
}

func TestCacheKeyIsOrderIndependent(t *testing.T) {
	a := cacheKey("quote", map[string][]string{"symbol": {"AAPL"}, "interval": {"1day"}})
	b := cacheKey("quote", map[string][]string{"interval": {"1day"}, "symbol": {"AAPL"}})
	if a != b {
		t.Fatalf("%q != %q", a, b)
	}
}
