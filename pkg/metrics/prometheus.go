package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the service metrics. A nil *Recorder records nothing.
type Recorder struct {
	forecastLatency *prometheus.HistogramVec
	forecastSteps   prometheus.Histogram
	forecastErrors  *prometheus.CounterVec
	trainDuration   *prometheus.HistogramVec
	trainLoss       *prometheus.GaugeVec
	trainTotal      *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	upstreamErrors  *prometheus.CounterVec
}

// New registers the metrics on reg; nil uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		forecastLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pricecast", Subsystem: "forecast", Name: "duration_seconds",
			Help:    "Wall time of one autoregressive forecast run",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"interval"}),
		forecastSteps: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pricecast", Subsystem: "forecast", Name: "steps",
			Help:    "Requested forecast horizon in steps",
			Buckets: []float64{1, 7, 30, 90, 180, 365},
		}),
		forecastErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricecast", Subsystem: "forecast", Name: "errors_total",
			Help: "Forecast failures by kind",
		}, []string{"kind"}),
		trainDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pricecast", Subsystem: "training", Name: "duration_seconds",
			Help:    "Training run duration",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"interval"}),
		trainLoss: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pricecast", Subsystem: "training", Name: "test_loss",
			Help: "Held-out MSE of the latest model in normalized space",
		}, []string{"ticker", "interval"}),
		trainTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricecast", Subsystem: "training", Name: "runs_total",
			Help: "Training runs by result",
		}, []string{"result"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricecast", Subsystem: "cache", Name: "lookups_total",
			Help: "Cache lookups by cache and result",
		}, []string{"cache", "result"}),
		upstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pricecast", Subsystem: "upstream", Name: "request_seconds",
			Help:    "Market data request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		upstreamErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricecast", Subsystem: "upstream", Name: "errors_total",
			Help: "Market data request failures",
		}, []string{"endpoint"}),
	}
}

func (r *Recorder) ObserveForecast(interval string, steps int, d time.Duration) {
	if r == nil {
		return
	}
	r.forecastLatency.WithLabelValues(interval).Observe(d.Seconds())
	r.forecastSteps.Observe(float64(steps))
}

func (r *Recorder) ForecastError(kind string) {
	if r == nil {
		return
	}
	r.forecastErrors.WithLabelValues(kind).Inc()
}

func (r *Recorder) ObserveTraining(ticker, interval string, d time.Duration, testLoss float64, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.trainTotal.WithLabelValues("error").Inc()
		return
	}
	r.trainTotal.WithLabelValues("ok").Inc()
	r.trainDuration.WithLabelValues(interval).Observe(d.Seconds())
	r.trainLoss.WithLabelValues(ticker, interval).Set(testLoss)
}

// CacheLookup counts a hit or miss on the named cache.
func (r *Recorder) CacheLookup(cache string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(cache, result).Inc()
}

func (r *Recorder) ObserveUpstream(endpoint string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.upstreamLatency.WithLabelValues(endpoint).Observe(d.Seconds())
	if err != nil {
		r.upstreamErrors.WithLabelValues(endpoint).Inc()
	}
}
