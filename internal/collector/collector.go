package collector

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"TrendSentinel/internal/model"

	"golang.org/x/time/rate"
)

// Options selects and configures the data provider.
type Options struct {
	Provider   string            `yaml:"provider"` // yahoo, binance, rest or mock
	BaseURL    string            `yaml:"base_url"`
	APIKey     string            `yaml:"api_key"`
	APISecret  string            `yaml:"api_secret"`
	RatePerSec float64           `yaml:"rate_per_sec"`
	Burst      int               `yaml:"burst"`
	SymbolMap  map[string]string `yaml:"symbol_map"`
}

// NewFetcher builds the configured provider.
func NewFetcher(opts Options, proxyURL string) (Fetcher, error) {
	limiter := newLimiter(opts.RatePerSec, opts.Burst)
	switch opts.Provider {
	case "", "yahoo":
		return NewYahooFetcher(proxyURL, limiter, opts.SymbolMap), nil
	case "binance":
		return NewBinanceFetcher(opts.APIKey, opts.APISecret, proxyURL, limiter), nil
	case "rest":
		if opts.BaseURL == "" {
			return nil, fmt.Errorf("rest provider requires base_url")
		}
		return NewRESTFetcher(opts.BaseURL, opts.APIKey, proxyURL, limiter), nil
	case "mock":
		return &MockFetcher{Price: 100}, nil
	default:
		return nil, fmt.Errorf("unknown data provider %q", opts.Provider)
	}
}

func newLimiter(perSec float64, burst int) *rate.Limiter {
	if perSec <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSec), burst)
}

func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}

// MockFetcher returns controllable fixed data for development and testing.
// Series and Errors are looked up by "TICKER|interval" first, then "TICKER".
type MockFetcher struct {
	Price  float64
	Series map[string][]model.PriceBar
	Errors map[string]error
	Delay  time.Duration

	mu    sync.Mutex
	calls int
}

func (m *MockFetcher) Name() string { return "mock" }

// Calls returns how many fetches were made.
func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockFetcher) FetchSeries(ctx context.Context, ticker string, interval model.Interval, _ model.Lookback) (*model.PriceSeries, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, providerErr(m.Name(), ticker, interval, ctx.Err())
		case <-time.After(m.Delay):
		}
	}

	keys := []string{ticker + "|" + string(interval), ticker}
	for _, k := range keys {
		if err, ok := m.Errors[k]; ok {
			return nil, providerErr(m.Name(), ticker, interval, err)
		}
	}
	bars := generateMockBars(m.Price, 120)
	for _, k := range keys {
		if b, ok := m.Series[k]; ok {
			bars = b
			break
		}
	}
	return &model.PriceSeries{Ticker: ticker, Interval: interval, Bars: bars, FetchedAt: time.Now()}, nil
}

// generateMockBars produces a gentle oscillating uptrend around basePrice.
func generateMockBars(basePrice float64, count int) []model.PriceBar {
	if basePrice <= 0 {
		basePrice = 100
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.PriceBar, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001 + 0.01*math.Sin(float64(i)/5))
		bars[i] = model.PriceBar{
			Time:   start.AddDate(0, 0, i),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
