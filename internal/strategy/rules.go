package strategy

import (
	"fmt"

	"TrendSentinel/internal/model"
)

// Rules holds the thresholds shared by the rule evaluator and zone detector.
// Every comparison is strict; a value sitting exactly on a threshold triggers nothing.
type Rules struct {
	TrendRSI      float64 `yaml:"trend_rsi"`
	PullbackRSI   float64 `yaml:"pullback_rsi"`
	ExhaustionRSI float64 `yaml:"exhaustion_rsi"`
	ZoneWindow    int     `yaml:"zone_window"`
	ZoneTolerance float64 `yaml:"zone_tolerance"`
}

// DefaultRules returns the canonical thresholds.
func DefaultRules() Rules {
	return Rules{
		TrendRSI:      50,
		PullbackRSI:   45,
		ExhaustionRSI: 60,
		ZoneWindow:    10,
		ZoneTolerance: 0.02,
	}
}

// EvaluateRules runs reversal, continuation and advisory rules in that order.
// It contributes nothing unless the slow EMA and RSI are defined on the last two bars.
func EvaluateRules(series *model.PriceSeries, set *model.IndicatorSet, r Rules) []model.Signal {
	n := series.Len()
	if n < 2 || set.Len() != n {
		return nil
	}
	_, prevSlow, prevRSI := set.At(-2)
	fast, slow, rsi := set.At(-1)
	if !prevSlow.Valid || !slow.Valid || !prevRSI.Valid || !rsi.Valid {
		return nil
	}
	prevClose := series.Bars[n-2].Close
	lastClose := series.Bars[n-1].Close

	var signals []model.Signal
	if s, ok := reversal(prevClose, lastClose, prevSlow.Float64, slow.Float64, set.EMASlowPeriod); ok {
		signals = append(signals, s)
	}
	if !fast.Valid {
		return signals
	}
	if s, ok := continuation(fast.Float64, slow.Float64, rsi.Float64, set, r); ok {
		signals = append(signals, s)
	}
	if s, ok := advisory(fast.Float64, slow.Float64, rsi.Float64, set, r); ok {
		signals = append(signals, s)
	}
	return signals
}

// reversal detects a close crossing the slow EMA between consecutive bars.
func reversal(prevClose, lastClose, prevEMA, lastEMA float64, period int) (model.Signal, bool) {
	trigger := model.Trigger{
		PrevClose: model.Some(prevClose),
		Close:     model.Some(lastClose),
		PrevEMA:   model.Some(prevEMA),
		EMASlow:   model.Some(lastEMA),
	}
	switch {
	case prevClose < prevEMA && lastClose > lastEMA:
		return model.Signal{
			Kind:    model.SignalBullishReversal,
			Message: fmt.Sprintf("Bullish change of character: close %.2f crossed above EMA%d %.2f", lastClose, period, lastEMA),
			Trigger: trigger,
		}, true
	case prevClose > prevEMA && lastClose < lastEMA:
		return model.Signal{
			Kind:    model.SignalBearishReversal,
			Message: fmt.Sprintf("Bearish change of character: close %.2f crossed below EMA%d %.2f", lastClose, period, lastEMA),
			Trigger: trigger,
		}, true
	}
	return model.Signal{}, false
}

func continuation(fast, slow, rsi float64, set *model.IndicatorSet, r Rules) (model.Signal, bool) {
	trigger := model.Trigger{EMAFast: model.Some(fast), EMASlow: model.Some(slow), RSI: model.Some(rsi)}
	switch {
	case fast > slow && rsi > r.TrendRSI:
		return model.Signal{
			Kind: model.SignalUptrendContinuation,
			Message: fmt.Sprintf("Uptrend continuation: EMA%d above EMA%d, RSI %.1f > %.0f",
				set.EMAFastPeriod, set.EMASlowPeriod, rsi, r.TrendRSI),
			Trigger: trigger,
		}, true
	case fast < slow && rsi < r.TrendRSI:
		return model.Signal{
			Kind: model.SignalDowntrendContinuation,
			Message: fmt.Sprintf("Downtrend continuation: EMA%d below EMA%d, RSI %.1f < %.0f",
				set.EMAFastPeriod, set.EMASlowPeriod, rsi, r.TrendRSI),
			Trigger: trigger,
		}, true
	}
	return model.Signal{}, false
}

func advisory(fast, slow, rsi float64, set *model.IndicatorSet, r Rules) (model.Signal, bool) {
	trigger := model.Trigger{EMAFast: model.Some(fast), EMASlow: model.Some(slow), RSI: model.Some(rsi)}
	switch {
	case fast > slow && rsi < r.PullbackRSI:
		return model.Signal{
			Kind:    model.SignalBuyZone,
			Message: fmt.Sprintf("Buy zone: pullback in uptrend, RSI %.1f < %.0f", rsi, r.PullbackRSI),
			Trigger: trigger,
		}, true
	case fast < slow && rsi > r.ExhaustionRSI:
		return model.Signal{
			Kind:    model.SignalOverboughtWarning,
			Message: fmt.Sprintf("Overbought warning: possible exhaustion in downtrend, RSI %.1f > %.0f", rsi, r.ExhaustionRSI),
			Trigger: trigger,
		}, true
	}
	return model.Signal{}, false
}
