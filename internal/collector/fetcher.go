package collector

import (
	"context"
	"errors"
	"fmt"

	"TrendSentinel/internal/model"
)

// ErrNoData is returned when a provider yields no usable bars.
var ErrNoData = errors.New("no data returned")

// ErrUnknownInterval is returned for intervals a provider cannot serve.
var ErrUnknownInterval = errors.New("unsupported interval")

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	FetchSeries(ctx context.Context, ticker string, interval model.Interval, lookback model.Lookback) (*model.PriceSeries, error)
	Name() string
}

// ProviderError wraps any failure raised by a data provider.
type ProviderError struct {
	Provider string
	Ticker   string
	Interval model.Interval
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: fetch %s %s: %v", e.Provider, e.Ticker, e.Interval, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func providerErr(provider, ticker string, interval model.Interval, err error) error {
	return &ProviderError{Provider: provider, Ticker: ticker, Interval: interval, Err: err}
}
