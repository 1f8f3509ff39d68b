// Package twelvedata is the Twelve Data market data client.
package twelvedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/service/ratelimit"
	"PriceCast/pkg/cache"
	pkghttp "PriceCast/pkg/http"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/metrics"
	"PriceCast/pkg/util"
)

const DefaultBaseURL = "https://api.twelvedata.com"

var (
	// ErrUpstreamData is returned when the provider answers with an error
	// status or a payload without usable values.
	ErrUpstreamData = fmt.Errorf("twelvedata: %w", models.ErrUpstreamData)
	ErrNoAPIKey     = errors.New("twelvedata: API key is not configured")
)

// Client fetches bars and quotes. Responses are cached when a cache is set.
type Client struct {
	http     *pkghttp.Client
	baseURL  string
	apiKey   string
	limiter  *ratelimit.Limiter
	cache    cache.Service
	cacheTTL time.Duration
	metrics  *metrics.Recorder
	l        *applogger.Logger
}

var _ domrepo.MarketData = (*Client)(nil)

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(hc *pkghttp.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLimiter throttles outbound calls to the plan's credit budget.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithCache caches raw responses for ttl. ttl <= 0 disables caching.
func WithCache(s cache.Service, ttl time.Duration) Option {
	return func(c *Client) { c.cache, c.cacheTTL = s, ttl }
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Client) { c.metrics = r }
}

func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.l = l
		}
	}
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		l:       applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = pkghttp.NewClient(pkghttp.WithTimeout(15 * time.Second))
	}
	return c
}

type statusEnvelope struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type seriesResponse struct {
	statusEnvelope
	Meta struct {
		Symbol   string `json:"symbol"`
		Interval string `json:"interval"`
	} `json:"meta"`
	Values []struct {
		Datetime string `json:"datetime"`
		Open     string `json:"open"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
	} `json:"values"`
}

type quoteResponse struct {
	statusEnvelope
	Symbol        string `json:"symbol"`
	Open          string `json:"open"`
	High          string `json:"high"`
	Low           string `json:"low"`
	Close         string `json:"close"`
	PreviousClose string `json:"previous_close"`
	Change        string `json:"change"`
	PercentChange string `json:"percent_change"`
}

// TimeSeries returns bars oldest first. Provider timestamps keep their
// exchange wall clock and are labelled UTC.
func (c *Client) TimeSeries(ctx context.Context, q domrepo.SeriesQuery) ([]models.Bar, error) {
	interval := q.Interval
	if interval == "" {
		interval = models.DefaultInterval
	}
	params := map[string][]string{
		"symbol":   {strings.ToUpper(q.Symbol)},
		"interval": {interval},
	}
	layout := util.DateLayout
	if models.IsIntraday(interval) {
		layout = util.DateTimeLayout
	}
	if !q.Start.IsZero() {
		params["start_date"] = []string{q.Start.Format(layout)}
	}
	if !q.End.IsZero() {
		params["end_date"] = []string{q.End.Format(layout)}
	}
	if q.OutputSize > 0 {
		params["outputsize"] = []string{strconv.Itoa(q.OutputSize)}
	}

	var resp seriesResponse
	if err := c.get(ctx, "time_series", params, &resp); err != nil {
		return nil, err
	}
	if err := resp.check(); err != nil {
		return nil, err
	}
	if len(resp.Values) == 0 {
		return nil, fmt.Errorf("%w: %w for %s", ErrUpstreamData, domrepo.ErrNoMarketData, q.Symbol)
	}

	bars := make([]models.Bar, 0, len(resp.Values))
	for i := len(resp.Values) - 1; i >= 0; i-- {
		v := resp.Values[i]
		t, ok := util.ParseTime(v.Datetime, time.UTC)
		if !ok {
			return nil, fmt.Errorf("%w: bad datetime %q", ErrUpstreamData, v.Datetime)
		}
		b := models.Bar{Time: t}
		var err error
		if b.Open, err = num(v.Open, "open"); err != nil {
			return nil, err
		}
		if b.High, err = num(v.High, "high"); err != nil {
			return nil, err
		}
		if b.Low, err = num(v.Low, "low"); err != nil {
			return nil, err
		}
		if b.Close, err = num(v.Close, "close"); err != nil {
			return nil, err
		}
		// volume is absent for some instruments
		b.Volume, _ = strconv.ParseFloat(v.Volume, 64)
		bars = append(bars, b)
	}
	if !sort.SliceIsSorted(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) }) {
		sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	}
	return bars, nil
}

// Quote returns the latest snapshot. Missing numeric fields read as zero.
func (c *Client) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	var resp quoteResponse
	params := map[string][]string{"symbol": {strings.ToUpper(symbol)}}
	if err := c.get(ctx, "quote", params, &resp); err != nil {
		return models.Quote{}, err
	}
	if err := resp.check(); err != nil {
		return models.Quote{}, err
	}
	return models.Quote{
		Symbol:        strings.ToUpper(symbol),
		Close:         lenient(resp.Close),
		Change:        lenient(resp.Change),
		PercentChange: lenient(resp.PercentChange),
		High:          lenient(resp.High),
		Low:           lenient(resp.Low),
		Open:          lenient(resp.Open),
		PreviousClose: lenient(resp.PreviousClose),
	}, nil
}

// Ready reports ErrNoAPIKey when the client has no key.
func (c *Client) Ready() error {
	if c.apiKey == "" {
		return ErrNoAPIKey
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string, params map[string][]string, dest interface{}) error {
	if err := c.Ready(); err != nil {
		return err
	}
	key := cacheKey(endpoint, params)
	if c.cache != nil && c.cacheTTL > 0 {
		var body []byte
		if err := c.cache.Get(ctx, key, &body); err == nil {
			c.metrics.CacheLookup("upstream", true)
			return json.Unmarshal(body, dest)
		}
		c.metrics.CacheLookup("upstream", false)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	query := make(map[string][]string, len(params)+1)
	for k, v := range params {
		query[k] = v
	}
	query["apikey"] = []string{c.apiKey}

	start := time.Now()
	var body []byte
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:      pkghttp.MethodGet,
		URL:         c.baseURL + "/" + endpoint,
		QueryParams: query,
	}, &body)
	c.metrics.ObserveUpstream(endpoint, time.Since(start), err)
	if err != nil {
		c.l.Warn("twelvedata request failed",
			applogger.String("endpoint", endpoint),
			applogger.Strings("symbol", params["symbol"]),
			applogger.Error(err),
		)
		return fmt.Errorf("twelvedata %s: %w", endpoint, err)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUpstreamData, endpoint, err)
	}

	// error payloads are never cached
	var env statusEnvelope
	if json.Unmarshal(body, &env) == nil && env.Status != "error" && c.cache != nil && c.cacheTTL > 0 {
		if err := c.cache.Set(ctx, key, body, c.cacheTTL); err != nil {
			c.l.Debug("twelvedata cache set failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return nil
}

func (e statusEnvelope) check() error {
	if e.Status == "error" {
		return fmt.Errorf("%w: %d %s", ErrUpstreamData, e.Code, e.Message)
	}
	return nil
}

func cacheKey(endpoint string, params map[string][]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := []interface{}{"twelvedata", endpoint}
	for _, k := range keys {
		parts = append(parts, k+"="+strings.Join(params[k], ","))
	}
	return cache.Key(parts...)
}

func num(s, field string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad %s %q", ErrUpstreamData, field, s)
	}
	return v, nil
}

func lenient(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
