package collector

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"TrendSentinel/internal/model"

	"github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"
)

const binanceKlineLimit = 1500

var binanceIntervals = map[model.Interval]string{
	model.Interval1m:  "1m",
	model.Interval5m:  "5m",
	model.Interval15m: "15m",
	model.Interval30m: "30m",
	model.Interval60m: "1h",
	model.Interval1h:  "1h",
	model.Interval1d:  "1d",
	model.Interval1wk: "1w",
	model.Interval1mo: "1M",
}

// BinanceFetcher implements Fetcher using Binance USDⓈ-M futures klines.
type BinanceFetcher struct {
	client  *futures.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// NewBinanceFetcher creates a fetcher. Klines are public, so keys may be empty.
func NewBinanceFetcher(apiKey, secretKey, proxyURL string, limiter *rate.Limiter) *BinanceFetcher {
	client := futures.NewClient(apiKey, secretKey)
	client.HTTPClient = newHTTPClient(proxyURL)
	return &BinanceFetcher{client: client, limiter: limiter, now: time.Now}
}

func (f *BinanceFetcher) Name() string { return "binance" }

func (f *BinanceFetcher) FetchSeries(ctx context.Context, ticker string, interval model.Interval, lookback model.Lookback) (*model.PriceSeries, error) {
	bi, ok := binanceIntervals[interval]
	if !ok {
		return nil, providerErr(f.Name(), ticker, interval, ErrUnknownInterval)
	}
	span, err := lookback.Duration()
	if err != nil {
		return nil, providerErr(f.Name(), ticker, interval, err)
	}
	end := f.now()
	startMs := end.Add(-span).UnixMilli()
	endMs := end.UnixMilli()

	var bars []model.PriceBar
	for startMs < endMs {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, providerErr(f.Name(), ticker, interval, fmt.Errorf("rate limit wait: %w", err))
			}
		}
		klines, err := f.client.NewKlinesService().
			Symbol(ticker).
			Interval(bi).
			StartTime(startMs).
			EndTime(endMs).
			Limit(binanceKlineLimit).
			Do(ctx)
		if err != nil {
			return nil, providerErr(f.Name(), ticker, interval, err)
		}
		for _, k := range klines {
			bar, err := klineToBar(k)
			if err != nil {
				return nil, providerErr(f.Name(), ticker, interval, err)
			}
			bars = append(bars, bar)
		}
		if len(klines) < binanceKlineLimit {
			break
		}
		startMs = klines[len(klines)-1].OpenTime + 1
	}

	bars = Clean(bars)
	if len(bars) == 0 {
		return nil, providerErr(f.Name(), ticker, interval, ErrNoData)
	}
	return &model.PriceSeries{Ticker: ticker, Interval: interval, Bars: bars, FetchedAt: end}, nil
}

func klineToBar(k *futures.Kline) (model.PriceBar, error) {
	vals := [5]float64{}
	for i, s := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.PriceBar{}, fmt.Errorf("parse kline field %q: %w", s, err)
		}
		vals[i] = v
	}
	return model.PriceBar{
		Time:   time.UnixMilli(k.OpenTime).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
