package collector

import (
	"context"
	"time"

	"TrendSentinel/internal/barstore"
	"TrendSentinel/internal/metrics"
	"TrendSentinel/internal/model"

	"go.uber.org/zap"
)

// CachingFetcher consults a bar store before delegating to the wrapped provider.
// Cache failures are logged and never fail the fetch.
type CachingFetcher struct {
	Next    Fetcher
	Store   barstore.Store
	Metrics *metrics.Metrics
}

// WithCache wraps next; a nil store returns next unchanged.
func WithCache(next Fetcher, store barstore.Store, m *metrics.Metrics) Fetcher {
	if store == nil {
		return next
	}
	return &CachingFetcher{Next: next, Store: store, Metrics: m}
}

func (c *CachingFetcher) Name() string { return c.Next.Name() }

func (c *CachingFetcher) FetchSeries(ctx context.Context, ticker string, interval model.Interval, lookback model.Lookback) (*model.PriceSeries, error) {
	key := barstore.Key{Provider: c.Next.Name(), Ticker: ticker, Interval: interval, Lookback: lookback}

	series, ok, err := c.Store.Get(ctx, key)
	if err != nil {
		zap.S().Warnw("bar cache read failed", "key", key.String(), "error", err)
	}
	if ok && series.Len() > 0 {
		c.Metrics.CacheHit()
		return series, nil
	}
	c.Metrics.CacheMiss()

	start := time.Now()
	series, err = c.Next.FetchSeries(ctx, ticker, interval, lookback)
	c.Metrics.ObserveFetch(c.Next.Name(), time.Since(start))
	if err != nil {
		return nil, err
	}
	if err := c.Store.Put(ctx, key, series); err != nil {
		zap.S().Warnw("bar cache write failed", "key", key.String(), "error", err)
	}
	return series, nil
}
