// Package analyzer runs the indicator and signal pipeline across every
// configured (ticker, timeframe) pair and aggregates the outcome per ticker.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"TrendSentinel/internal/calculator"
	"TrendSentinel/internal/collector"
	"TrendSentinel/internal/metrics"
	"TrendSentinel/internal/model"
	"TrendSentinel/internal/strategy"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency  = 4
	defaultFetchTimeout = 15 * time.Second
)

// Options bounds the batch worker pool.
type Options struct {
	Concurrency  int           `yaml:"concurrency"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// Settings is everything a batch needs besides the data provider.
type Settings struct {
	Timeframes []model.Timeframe
	Params     calculator.Params
	Rules      strategy.Rules
	Options    Options
}

// Orchestrator fans pairs out to a bounded pool. Settings may be swapped
// between batches; a running batch keeps the snapshot it started with.
type Orchestrator struct {
	fetcher collector.Fetcher
	metrics *metrics.Metrics

	mu       sync.RWMutex
	settings Settings
}

// New creates an orchestrator. m may be nil.
func New(fetcher collector.Fetcher, s Settings, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{fetcher: fetcher, metrics: m, settings: s}
}

// Settings returns the current settings.
func (o *Orchestrator) Settings() Settings {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s := o.settings
	s.Timeframes = append([]model.Timeframe(nil), o.settings.Timeframes...)
	return s
}

// Update replaces the settings used by subsequent batches.
func (o *Orchestrator) Update(s Settings) {
	o.mu.Lock()
	o.settings = s
	o.mu.Unlock()
	zap.S().Infow("analyzer settings updated", "timeframes", len(s.Timeframes))
}

// Run analyses every ticker on every timeframe. It always returns one
// TickerResult per ticker and one PairResult per timeframe, in input order.
// Once ctx is done no new pairs are dispatched; the rest are marked unavailable.
func (o *Orchestrator) Run(ctx context.Context, tickers []string) *model.BatchResult {
	start := time.Now()
	s := o.Settings()

	batch := &model.BatchResult{Tickers: make([]model.TickerResult, len(tickers))}
	for i, t := range tickers {
		batch.Tickers[i] = model.TickerResult{Ticker: t, Timeframes: make([]model.PairResult, len(s.Timeframes))}
	}

	var g errgroup.Group
	g.SetLimit(concurrency(s.Options))
	for i, ticker := range tickers {
		for j, tf := range s.Timeframes {
			slot := &batch.Tickers[i].Timeframes[j]
			req := model.AnalysisRequest{Ticker: ticker, Timeframe: tf}
			if err := ctx.Err(); err != nil {
				*slot = unavailable(req, "cancelled: "+err.Error())
				continue
			}
			g.Go(func() error {
				*slot = o.analyzePair(ctx, req, s)
				return nil
			})
		}
	}
	_ = g.Wait()

	total, failed := batch.Pairs()
	for _, tr := range batch.Tickers {
		for _, p := range tr.Timeframes {
			o.metrics.ObservePair(string(p.Status))
			for _, sig := range p.Signals {
				o.metrics.ObserveSignal(string(sig.Kind))
			}
			if !p.Available() {
				zap.S().Warnw("pair unavailable", "ticker", p.Ticker, "timeframe", p.Timeframe.Label, "reason", p.Reason)
			}
		}
	}
	elapsed := time.Since(start)
	o.metrics.ObserveBatch(elapsed)
	zap.S().Infow("batch complete",
		"tickers", len(tickers), "pairs", total, "unavailable", failed, "elapsed", elapsed.Round(time.Millisecond))
	return batch
}

// AnalyzePair fetches and analyses a single pair with the current settings.
func (o *Orchestrator) AnalyzePair(ctx context.Context, req model.AnalysisRequest) model.PairResult {
	return o.analyzePair(ctx, req, o.Settings())
}

func (o *Orchestrator) analyzePair(ctx context.Context, req model.AnalysisRequest, s Settings) model.PairResult {
	if err := ctx.Err(); err != nil {
		return unavailable(req, "cancelled: "+err.Error())
	}
	timeout := s.Options.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	series, err := o.fetcher.FetchSeries(fctx, req.Ticker, req.Timeframe.Interval, req.Timeframe.Lookback)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(fctx.Err(), context.DeadlineExceeded) {
			return unavailable(req, fmt.Sprintf("fetch timed out after %s", timeout))
		}
		return unavailable(req, err.Error())
	}
	return Analyze(req, series, s.Params, s.Rules)
}

// Analyze computes indicators and signals for an already fetched series.
// The series is cleaned into a copy first; the input is left untouched.
func Analyze(req model.AnalysisRequest, series *model.PriceSeries, p calculator.Params, r strategy.Rules) model.PairResult {
	if series.Len() == 0 {
		return unavailable(req, collector.ErrNoData.Error())
	}
	clean := *series
	clean.Bars = collector.Clean(series.Bars)
	if clean.Ticker == "" {
		clean.Ticker = req.Ticker
	}

	set, err := calculator.Compute(&clean, p)
	if err != nil {
		return unavailable(req, err.Error())
	}
	signals := strategy.Evaluate(&clean, set, r)
	if signals == nil {
		signals = []model.Signal{}
	}
	return model.PairResult{
		Ticker:     req.Ticker,
		Timeframe:  req.Timeframe,
		Status:     model.StatusOK,
		Series:     &clean,
		Indicators: set,
		Signals:    signals,
	}
}

func unavailable(req model.AnalysisRequest, reason string) model.PairResult {
	return model.PairResult{
		Ticker:    req.Ticker,
		Timeframe: req.Timeframe,
		Status:    model.StatusUnavailable,
		Reason:    reason,
		Signals:   []model.Signal{},
	}
}

func concurrency(o Options) int {
	if o.Concurrency <= 0 {
		return defaultConcurrency
	}
	return o.Concurrency
}
