package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PriceBar represents a single candlestick bar.
type PriceBar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries is an ascending, duplicate-free run of bars for one ticker/interval.
type PriceSeries struct {
	Ticker    string     `json:"ticker"`
	Interval  Interval   `json:"interval"`
	Bars      []PriceBar `json:"bars"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// Len returns the number of bars.
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Closes returns a fresh slice of closing prices.
func (s *PriceSeries) Closes() []float64 {
	closes := make([]float64, s.Len())
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Last returns the most recent bar. ok is false for an empty series.
func (s *PriceSeries) Last() (PriceBar, bool) {
	if s.Len() == 0 {
		return PriceBar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Interval is the sampling interval of a series, in Yahoo chart notation.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval60m Interval = "60m"
	Interval90m Interval = "90m"
	Interval1h  Interval = "1h"
	Interval1d  Interval = "1d"
	Interval5d  Interval = "5d"
	Interval1wk Interval = "1wk"
	Interval1mo Interval = "1mo"
	Interval3mo Interval = "3mo"
)

var validIntervals = map[Interval]bool{
	Interval1m: true, Interval5m: true, Interval15m: true, Interval30m: true,
	Interval60m: true, Interval90m: true, Interval1h: true, Interval1d: true,
	Interval5d: true, Interval1wk: true, Interval1mo: true, Interval3mo: true,
}

// Valid reports whether i is a recognised interval.
func (i Interval) Valid() bool { return validIntervals[i] }

// Lookback is a history window such as "7d", "6mo" or "2y".
type Lookback string

// Duration converts the lookback into an approximate wall-clock span.
// Months count as 30 days and years as 365.
func (l Lookback) Duration() (time.Duration, error) {
	s := strings.TrimSpace(string(l))
	unit := strings.TrimLeft(s, "0123456789")
	n, err := strconv.Atoi(strings.TrimSuffix(s, unit))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid lookback %q", l)
	}
	day := 24 * time.Hour
	switch unit {
	case "d":
		return time.Duration(n) * day, nil
	case "wk":
		return time.Duration(n) * 7 * day, nil
	case "mo":
		return time.Duration(n) * 30 * day, nil
	case "y":
		return time.Duration(n) * 365 * day, nil
	default:
		return 0, fmt.Errorf("invalid lookback unit %q in %q", unit, l)
	}
}

// Timeframe is one configured view of a ticker's history.
type Timeframe struct {
	Label    string   `yaml:"label" json:"label"`
	Interval Interval `yaml:"interval" json:"interval"`
	Lookback Lookback `yaml:"lookback" json:"lookback"`
}

// AnalysisRequest is the unit of work dispatched to a data provider.
type AnalysisRequest struct {
	Ticker    string
	Timeframe Timeframe
}

func (r AnalysisRequest) String() string {
	return fmt.Sprintf("%s/%s", r.Ticker, r.Timeframe.Label)
}
