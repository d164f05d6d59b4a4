package model

// SignalKind is the alert category.
type SignalKind string

const (
	SignalBullishReversal       SignalKind = "BULLISH_REVERSAL"
	SignalBearishReversal       SignalKind = "BEARISH_REVERSAL"
	SignalUptrendContinuation   SignalKind = "UPTREND_CONTINUATION"
	SignalDowntrendContinuation SignalKind = "DOWNTREND_CONTINUATION"
	SignalBuyZone               SignalKind = "BUY_ZONE"
	SignalOverboughtWarning     SignalKind = "OVERBOUGHT_WARNING"
	SignalNearSwingHigh         SignalKind = "NEAR_SWING_HIGH"
	SignalNearSwingLow          SignalKind = "NEAR_SWING_LOW"
)

// Trigger carries the numeric values that fired a signal. Unused fields stay undefined.
type Trigger struct {
	PrevClose NullFloat `json:"prev_close"`
	Close     NullFloat `json:"close"`
	PrevEMA   NullFloat `json:"prev_ema"`
	EMAFast   NullFloat `json:"ema_fast"`
	EMASlow   NullFloat `json:"ema_slow"`
	RSI       NullFloat `json:"rsi"`
	Level     NullFloat `json:"level"`
}

// Signal is one alert produced by a single evaluation pass.
type Signal struct {
	Kind    SignalKind `json:"kind"`
	Message string     `json:"message"`
	Trigger Trigger    `json:"trigger"`
}

// PairStatus tells whether a (ticker, timeframe) pair produced an analysis.
type PairStatus string

const (
	StatusOK          PairStatus = "OK"
	StatusUnavailable PairStatus = "UNAVAILABLE"
)

// PairResult is what the presentation layer receives for one (ticker, timeframe).
type PairResult struct {
	Ticker     string        `json:"ticker"`
	Timeframe  Timeframe     `json:"timeframe"`
	Status     PairStatus    `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	Series     *PriceSeries  `json:"series,omitempty"`
	Indicators *IndicatorSet `json:"indicators,omitempty"`
	Signals    []Signal      `json:"signals"`
}

// Available reports whether the pair was analysed.
func (r *PairResult) Available() bool { return r.Status == StatusOK }

// TickerResult aggregates one ticker's pairs in configured timeframe order.
type TickerResult struct {
	Ticker     string       `json:"ticker"`
	Timeframes []PairResult `json:"timeframes"`
}

// SignalCount returns the number of signals across all timeframes.
func (t *TickerResult) SignalCount() int {
	n := 0
	for i := range t.Timeframes {
		n += len(t.Timeframes[i].Signals)
	}
	return n
}

// BatchResult holds one TickerResult per requested ticker, in request order.
type BatchResult struct {
	Tickers []TickerResult `json:"tickers"`
}

// Pairs returns the total and unavailable pair counts.
func (b *BatchResult) Pairs() (total, unavailable int) {
	for _, t := range b.Tickers {
		for _, p := range t.Timeframes {
			total++
			if !p.Available() {
				unavailable++
			}
		}
	}
	return total, unavailable
}
