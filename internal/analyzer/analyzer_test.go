package analyzer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"TrendSentinel/internal/calculator"
	"TrendSentinel/internal/collector"
	"TrendSentinel/internal/metrics"
	"TrendSentinel/internal/model"
	"TrendSentinel/internal/strategy"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var testTimeframes = []model.Timeframe{
	{Label: "1 Hour", Interval: model.Interval60m, Lookback: "7d"},
	{Label: "Daily", Interval: model.Interval1d, Lookback: "6mo"},
	{Label: "Weekly", Interval: model.Interval1wk, Lookback: "2y"},
}

func testSettings() Settings {
	return Settings{
		Timeframes: testTimeframes,
		Params:     calculator.DefaultParams(),
		Rules:      strategy.DefaultRules(),
		Options:    Options{Concurrency: 3, FetchTimeout: time.Second},
	}
}

func linearBars(n int, from, to float64) []model.PriceBar {
	bars := make([]model.PriceBar, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		c := from + (to-from)*float64(i)/float64(n-1)
		bars[i] = model.PriceBar{Time: start.AddDate(0, 0, i), Open: c, High: c * 1.001, Low: c * 0.999, Close: c}
	}
	return bars
}

func TestRun_OneFailureNeverAbortsBatch(t *testing.T) {
	mock := &collector.MockFetcher{
		Price:  100,
		Errors: map[string]error{"BBB|1d": errors.New("upstream 502")},
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	o := New(mock, testSettings(), m)

	tickers := []string{"AAA", "BBB", "CCC"}
	batch := o.Run(context.Background(), tickers)

	total, failed := batch.Pairs()
	if total != 9 || failed != 1 {
		t.Fatalf("pairs: total=%d unavailable=%d, want 9/1", total, failed)
	}
	for i, tr := range batch.Tickers {
		if tr.Ticker != tickers[i] {
			t.Errorf("ticker order: got %q at %d", tr.Ticker, i)
		}
		for j, p := range tr.Timeframes {
			if p.Timeframe.Label != testTimeframes[j].Label {
				t.Errorf("%s: timeframe %d is %q", tr.Ticker, j, p.Timeframe.Label)
			}
		}
	}
	bad := batch.Tickers[1].Timeframes[1]
	if bad.Available() || !strings.Contains(bad.Reason, "upstream 502") {
		t.Errorf("expected BBB/Daily unavailable with provider reason, got %+v", bad)
	}
	if bad.Signals == nil {
		t.Error("unavailable pair should carry an empty, non-nil signal list")
	}
	if got := testutil.ToFloat64(m.PairsTotal.WithLabelValues(string(model.StatusUnavailable))); got != 1 {
		t.Errorf("unavailable metric: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PairsTotal.WithLabelValues(string(model.StatusOK))); got != 8 {
		t.Errorf("ok metric: got %v, want 8", got)
	}
}

func TestRun_EmptySeriesIsUnavailable(t *testing.T) {
	mock := &collector.MockFetcher{Series: map[string][]model.PriceBar{"EMPTY": {}}}
	o := New(mock, testSettings(), nil)

	batch := o.Run(context.Background(), []string{"EMPTY"})
	for _, p := range batch.Tickers[0].Timeframes {
		if p.Available() {
			t.Errorf("%s should be unavailable", p.Timeframe.Label)
		}
		if p.Reason == "" {
			t.Errorf("%s: missing reason", p.Timeframe.Label)
		}
	}
}

func TestRun_FetchTimeout(t *testing.T) {
	mock := &collector.MockFetcher{Price: 100, Delay: time.Second}
	s := testSettings()
	s.Options.FetchTimeout = 20 * time.Millisecond
	o := New(mock, s, nil)

	start := time.Now()
	batch := o.Run(context.Background(), []string{"SLOW"})
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("batch took %v, fetch timeout not applied", elapsed)
	}
	for _, p := range batch.Tickers[0].Timeframes {
		if p.Available() || !strings.Contains(p.Reason, "timed out") {
			t.Errorf("%s: expected timeout, got status=%s reason=%q", p.Timeframe.Label, p.Status, p.Reason)
		}
	}
}

func TestRun_CancelledBeforeDispatch(t *testing.T) {
	mock := &collector.MockFetcher{Price: 100}
	o := New(mock, testSettings(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := o.Run(ctx, []string{"AAA", "BBB"})
	total, failed := batch.Pairs()
	if total != 6 || failed != 6 {
		t.Fatalf("pairs: total=%d unavailable=%d, want 6/6", total, failed)
	}
	if mock.Calls() != 0 {
		t.Errorf("no fetches expected after cancellation, got %d", mock.Calls())
	}
	if r := batch.Tickers[0].Timeframes[0].Reason; !strings.HasPrefix(r, "cancelled") {
		t.Errorf("reason: got %q", r)
	}
}

type gaugeFetcher struct {
	inFlight atomic.Int32
	mu       sync.Mutex
	peak     int32
}

func (g *gaugeFetcher) Name() string { return "gauge" }

func (g *gaugeFetcher) FetchSeries(ctx context.Context, ticker string, interval model.Interval, _ model.Lookback) (*model.PriceSeries, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	g.mu.Lock()
	if n > g.peak {
		g.peak = n
	}
	g.mu.Unlock()
	time.Sleep(10 * time.Millisecond)
	return &model.PriceSeries{Ticker: ticker, Interval: interval, Bars: linearBars(30, 100, 110)}, nil
}

func TestRun_ConcurrencyBounded(t *testing.T) {
	f := &gaugeFetcher{}
	s := testSettings()
	s.Options.Concurrency = 2
	o := New(f, s, nil)

	batch := o.Run(context.Background(), []string{"A", "B", "C", "D"})
	if total, failed := batch.Pairs(); total != 12 || failed != 0 {
		t.Fatalf("pairs: total=%d unavailable=%d", total, failed)
	}
	if f.peak > 2 {
		t.Errorf("peak in-flight fetches %d exceeds limit 2", f.peak)
	}
}

func TestAnalyze_LinearUptrend(t *testing.T) {
	req := model.AnalysisRequest{Ticker: "UP", Timeframe: testTimeframes[1]}
	series := &model.PriceSeries{Ticker: "UP", Interval: model.Interval1d, Bars: linearBars(60, 100, 160)}

	res := Analyze(req, series, calculator.DefaultParams(), strategy.DefaultRules())
	if !res.Available() {
		t.Fatalf("expected OK, got %s: %s", res.Status, res.Reason)
	}
	var up, bear bool
	for _, s := range res.Signals {
		switch s.Kind {
		case model.SignalUptrendContinuation:
			up = true
		case model.SignalBearishReversal:
			bear = true
		}
	}
	if !up || bear {
		t.Errorf("signals %+v: want UptrendContinuation and no BearishReversal", res.Signals)
	}
	if res.Indicators.Len() != 60 || res.Series.Len() != 60 {
		t.Errorf("indicator/series length mismatch: %d/%d", res.Indicators.Len(), res.Series.Len())
	}
}

func TestAnalyze_CleansCopy(t *testing.T) {
	bars := linearBars(5, 10, 14)
	bars = append(bars, model.PriceBar{Time: bars[4].Time.AddDate(0, 0, 1), Close: 0})
	series := &model.PriceSeries{Ticker: "X", Bars: bars}
	req := model.AnalysisRequest{Ticker: "X", Timeframe: testTimeframes[1]}

	res := Analyze(req, series, calculator.DefaultParams(), strategy.DefaultRules())
	if !res.Available() {
		t.Fatalf("expected OK for 5 valid bars, got %s", res.Reason)
	}
	if res.Series.Len() != 5 {
		t.Errorf("cleaned length: got %d, want 5", res.Series.Len())
	}
	if len(series.Bars) != 6 {
		t.Error("input series was modified")
	}
	if len(res.Signals) != 0 {
		t.Errorf("five bars should produce no signals, got %+v", res.Signals)
	}
}

func TestUpdate_AppliesToNextBatch(t *testing.T) {
	o := New(&collector.MockFetcher{Price: 50}, testSettings(), nil)
	s := o.Settings()
	s.Timeframes = s.Timeframes[:1]
	o.Update(s)

	batch := o.Run(context.Background(), []string{"AAA"})
	if n := len(batch.Tickers[0].Timeframes); n != 1 {
		t.Errorf("timeframes after update: got %d, want 1", n)
	}
	if n := len(o.Settings().Timeframes); n != 1 {
		t.Errorf("settings timeframes: got %d", n)
	}
}
