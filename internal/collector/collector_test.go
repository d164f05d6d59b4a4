package collector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"TrendSentinel/internal/barstore"
	"TrendSentinel/internal/metrics"
	"TrendSentinel/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func day(n int) time.Time {
	return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestClean(t *testing.T) {
	in := []model.PriceBar{
		{Time: day(2), Close: 12},
		{Time: day(0), Close: 10},
		{Time: day(1), Close: math.NaN()},
		{Time: day(3), Close: 0},
		{Time: day(2), Close: 12.5},
		{Time: day(4), Close: 14},
	}
	got := Clean(in)
	want := []float64{10, 12.5, 14}
	if len(got) != len(want) {
		t.Fatalf("got %d bars, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Close != want[i] {
			t.Errorf("bar %d: close %.2f, want %.2f", i, got[i].Close, want[i])
		}
		if i > 0 && !got[i].Time.After(got[i-1].Time) {
			t.Errorf("bar %d not strictly ascending", i)
		}
	}
	if in[0].Close != 12 || in[1].Close != 10 {
		t.Error("Clean mutated its input")
	}
}

const yahooFixture = `{"chart":{"result":[{"timestamp":[1704153600,1704240000,1704326400,1704412800],
"indicators":{"quote":[{"open":[10,11,null,13],"high":[10.5,11.5,null,13.5],"low":[9.5,10.5,null,12.5],
"close":[10.2,11.1,null,13.3],"volume":[100,200,null,400]}]}}],"error":null}}`

func TestYahooFetcher_FetchSeries(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, yahooFixture)
	}))
	defer srv.Close()

	f := NewYahooFetcher("", nil, map[string]string{"BTC": "BTC-USD"})
	f.BaseURL = srv.URL

	series, err := f.FetchSeries(context.Background(), "BTC", model.Interval1d, "6mo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v8/finance/chart/BTC-USD" {
		t.Errorf("path: got %q", gotPath)
	}
	if gotQuery != "interval=1d&range=6mo" {
		t.Errorf("query: got %q", gotQuery)
	}
	if series.Len() != 3 {
		t.Fatalf("expected null row dropped, got %d bars", series.Len())
	}
	if last, _ := series.Last(); last.Close != 13.3 || last.High != 13.5 {
		t.Errorf("unexpected last bar: %+v", last)
	}
	if series.Ticker != "BTC" || series.Interval != model.Interval1d {
		t.Errorf("unexpected series identity: %s %s", series.Ticker, series.Interval)
	}
}

func TestYahooFetcher_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"http error", http.StatusNotFound, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`, nil},
		{"api error", http.StatusOK, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`, nil},
		{"empty result", http.StatusOK, `{"chart":{"result":[],"error":null}}`, ErrNoData},
		{"all null", http.StatusOK, `{"chart":{"result":[{"timestamp":[1704153600],"indicators":{"quote":[{"close":[null]}]}}],"error":null}}`, ErrNoData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()
			f := NewYahooFetcher("", nil, nil)
			f.BaseURL = srv.URL

			_, err := f.FetchSeries(context.Background(), "ZZZZ", model.Interval1d, "6mo")
			var pe *ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ProviderError, got %v", err)
			}
			if pe.Provider != "yahoo" || pe.Ticker != "ZZZZ" {
				t.Errorf("unexpected provider error fields: %+v", pe)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestYahooFetcher_InvalidInterval(t *testing.T) {
	f := NewYahooFetcher("", nil, nil)
	if _, err := f.FetchSeries(context.Background(), "AAPL", "2h", "7d"); !errors.Is(err, ErrUnknownInterval) {
		t.Errorf("expected ErrUnknownInterval, got %v", err)
	}
}

func TestRESTFetcher_WeeklyFallback(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if r.URL.Query().Get("interval") == "1wk" {
			http.NotFound(w, r)
			return
		}
		// Mon..Fri of ISO week 6 then Mon of week 7 (2024)
		fmt.Fprint(w, `[
			{"timestamp":1707091200,"open":10,"high":11,"low":9,"close":10.5,"volume":1},
			{"timestamp":1707177600,"open":10.5,"high":12,"low":10,"close":11.5,"volume":1},
			{"timestamp":1707264000,"open":11.5,"high":11.8,"low":8,"close":null,"volume":1},
			{"timestamp":1707350400,"open":11.5,"high":11.9,"low":8.5,"close":9,"volume":1},
			{"timestamp":1707696000,"open":9,"high":9.5,"low":8.8,"close":9.2,"volume":1}
		]`)
	}))
	defer srv.Close()

	f := NewRESTFetcher(srv.URL, "secret", "", nil)
	series, err := f.FetchSeries(context.Background(), "ACME", model.Interval1wk, "1y")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auth != "Bearer secret" {
		t.Errorf("authorization header: got %q", auth)
	}
	if series.Len() != 2 {
		t.Fatalf("expected 2 weekly bars, got %d", series.Len())
	}
	w := series.Bars[0]
	if w.Open != 10 || w.High != 12 || w.Low != 8.5 || w.Close != 9 || w.Volume != 3 {
		t.Errorf("unexpected aggregated week: %+v", w)
	}
}

func TestRESTFetcher_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	f := NewRESTFetcher(srv.URL, "", "", nil)
	_, err := f.FetchSeries(context.Background(), "ACME", model.Interval1d, "6mo")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
}

func TestBinanceFetcher_FetchSeries(t *testing.T) {
	var gotInterval, gotSymbol string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/klines" {
			http.NotFound(w, r)
			return
		}
		gotInterval = r.URL.Query().Get("interval")
		gotSymbol = r.URL.Query().Get("symbol")
		fmt.Fprint(w, `[
			[1704067200000,"100.0","101.0","99.0","100.5","10.0",1704070799999,"1000.0",5,"5.0","500.0","0"],
			[1704070800000,"100.5","102.0","100.0","101.5","12.0",1704074399999,"1200.0",6,"6.0","600.0","0"]
		]`)
	}))
	defer srv.Close()

	f := NewBinanceFetcher("", "", "", nil)
	f.client.BaseURL = srv.URL
	f.now = func() time.Time { return time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC) }

	series, err := f.FetchSeries(context.Background(), "BTCUSDT", model.Interval60m, "7d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotInterval != "1h" || gotSymbol != "BTCUSDT" {
		t.Errorf("query: interval=%q symbol=%q", gotInterval, gotSymbol)
	}
	if series.Len() != 2 || series.Bars[1].Close != 101.5 {
		t.Fatalf("unexpected series: %+v", series.Bars)
	}
	if !series.Bars[0].Time.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected open time: %v", series.Bars[0].Time)
	}
}

func TestBinanceFetcher_UnsupportedInterval(t *testing.T) {
	f := NewBinanceFetcher("", "", "", nil)
	if _, err := f.FetchSeries(context.Background(), "BTCUSDT", model.Interval90m, "7d"); !errors.Is(err, ErrUnknownInterval) {
		t.Errorf("expected ErrUnknownInterval, got %v", err)
	}
}

func TestMockFetcher(t *testing.T) {
	boom := errors.New("boom")
	m := &MockFetcher{
		Price:  50,
		Series: map[string][]model.PriceBar{"AAA|1d": {{Time: day(0), Close: 1}}},
		Errors: map[string]error{"BBB": boom},
	}
	ctx := context.Background()
	s, err := m.FetchSeries(ctx, "AAA", model.Interval1d, "6mo")
	if err != nil || s.Len() != 1 {
		t.Fatalf("AAA 1d: len=%d err=%v", s.Len(), err)
	}
	s, err = m.FetchSeries(ctx, "AAA", model.Interval1wk, "2y")
	if err != nil || s.Len() != 120 {
		t.Fatalf("AAA 1wk should use generated bars: len=%d err=%v", s.Len(), err)
	}
	if _, err := m.FetchSeries(ctx, "BBB", model.Interval1d, "6mo"); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if m.Calls() != 3 {
		t.Errorf("calls: got %d, want 3", m.Calls())
	}
}

func TestCachingFetcher(t *testing.T) {
	mock := &MockFetcher{Price: 100}
	m := metrics.New(prometheus.NewRegistry())
	f := WithCache(mock, barstore.NewMemoryStore(8, time.Hour), m)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.FetchSeries(ctx, "AAPL", model.Interval1d, "6mo"); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if mock.Calls() != 1 {
		t.Errorf("provider calls: got %d, want 1", mock.Calls())
	}
	if got := testutil.ToFloat64(m.CacheHits); got != 2 {
		t.Errorf("cache hits: got %v, want 2", got)
	}
	if f.Name() != "mock" {
		t.Errorf("name: got %q", f.Name())
	}

	// errors are not cached
	mock.Errors = map[string]error{"FAIL": errors.New("down")}
	for i := 0; i < 2; i++ {
		if _, err := f.FetchSeries(ctx, "FAIL", model.Interval1d, "6mo"); err == nil {
			t.Fatal("expected error")
		}
	}
	if mock.Calls() != 3 {
		t.Errorf("provider calls after failures: got %d, want 3", mock.Calls())
	}
}

func TestNewFetcher(t *testing.T) {
	tests := []struct {
		provider string
		baseURL  string
		wantName string
		wantErr  bool
	}{
		{"", "", "yahoo", false},
		{"yahoo", "", "yahoo", false},
		{"binance", "", "binance", false},
		{"rest", "http://localhost", "rest", false},
		{"rest", "", "", true},
		{"mock", "", "mock", false},
		{"bloomberg", "", "", true},
	}
	for _, tt := range tests {
		f, err := NewFetcher(Options{Provider: tt.provider, BaseURL: tt.baseURL, RatePerSec: 2}, "")
		if (err != nil) != tt.wantErr {
			t.Errorf("provider %q: err=%v wantErr=%v", tt.provider, err, tt.wantErr)
			continue
		}
		if err == nil && f.Name() != tt.wantName {
			t.Errorf("provider %q: name %q, want %q", tt.provider, f.Name(), tt.wantName)
		}
	}
}
