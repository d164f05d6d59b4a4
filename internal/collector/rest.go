package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"TrendSentinel/internal/model"

	"golang.org/x/time/rate"
)

// RESTFetcher implements Fetcher against a generic JSON bar endpoint:
// GET {BaseURL}/api/v1/bars?symbol=..&interval=..&range=..
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Limiter *rate.Limiter
}

// NewRESTFetcher creates a new fetcher with optional proxy support.
func NewRESTFetcher(baseURL, apiKey, proxyURL string, limiter *rate.Limiter) *RESTFetcher {
	return &RESTFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL),
		Limiter: limiter,
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

// restBar is the expected JSON shape from the bar API. Close may be null.
type restBar struct {
	Timestamp int64    `json:"timestamp"`
	Open      float64  `json:"open"`
	High      float64  `json:"high"`
	Low       float64  `json:"low"`
	Close     *float64 `json:"close"`
	Volume    float64  `json:"volume"`
}

// statusError marks a non-200 response so weekly requests can fall back to daily bars.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("fetch bars: status %d, body: %s", e.code, e.body)
}

func (f *RESTFetcher) FetchSeries(ctx context.Context, ticker string, interval model.Interval, lookback model.Lookback) (*model.PriceSeries, error) {
	if !interval.Valid() {
		return nil, providerErr(f.Name(), ticker, interval, ErrUnknownInterval)
	}
	bars, err := f.fetchBars(ctx, ticker, interval, lookback)
	var se *statusError
	if err != nil && interval == model.Interval1wk && errors.As(err, &se) && se.code == http.StatusNotFound {
		// API only serves daily bars: aggregate internally
		daily, dailyErr := f.fetchBars(ctx, ticker, model.Interval1d, lookback)
		if dailyErr != nil {
			return nil, providerErr(f.Name(), ticker, interval,
				fmt.Errorf("weekly fetch failed: %w; daily fallback also failed: %w", err, dailyErr))
		}
		bars, err = aggregateDailyToWeekly(daily), nil
	}
	if err != nil {
		return nil, providerErr(f.Name(), ticker, interval, err)
	}
	return &model.PriceSeries{Ticker: ticker, Interval: interval, Bars: bars, FetchedAt: time.Now()}, nil
}

func (f *RESTFetcher) fetchBars(ctx context.Context, ticker string, interval model.Interval, lookback model.Lookback) ([]model.PriceBar, error) {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	q := url.Values{}
	q.Set("symbol", ticker)
	q.Set("interval", string(interval))
	q.Set("range", string(lookback))
	endpoint := fmt.Sprintf("%s/api/v1/bars?%s", f.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &statusError{code: resp.StatusCode, body: truncate(body, 200)}
	}
	var raw []restBar
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode bars: %w", err)
	}
	bars := make([]model.PriceBar, 0, len(raw))
	for _, rb := range raw {
		if rb.Close == nil {
			continue
		}
		bars = append(bars, model.PriceBar{
			Time:   time.Unix(rb.Timestamp, 0).UTC(),
			Open:   rb.Open,
			High:   rb.High,
			Low:    rb.Low,
			Close:  *rb.Close,
			Volume: rb.Volume,
		})
	}
	bars = Clean(bars)
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return bars, nil
}

// aggregateDailyToWeekly converts daily bars into ISO-week bars.
func aggregateDailyToWeekly(daily []model.PriceBar) []model.PriceBar {
	if len(daily) == 0 {
		return nil
	}
	var weekly []model.PriceBar
	week := daily[0]
	wy, ww := week.Time.ISOWeek()

	for _, d := range daily[1:] {
		y, w := d.Time.ISOWeek()
		if y != wy || w != ww {
			weekly = append(weekly, week)
			week = d
			wy, ww = y, w
			continue
		}
		if d.High > week.High {
			week.High = d.High
		}
		if d.Low < week.Low {
			week.Low = d.Low
		}
		week.Close = d.Close
		week.Volume += d.Volume
	}
	return append(weekly, week)
}
