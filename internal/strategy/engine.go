package strategy

import "TrendSentinel/internal/model"

// Evaluate produces the ordered alert list for one series: reversal, continuation,
// advisory, then zone of interest. Categories lacking history are skipped.
func Evaluate(series *model.PriceSeries, set *model.IndicatorSet, r Rules) []model.Signal {
	signals := EvaluateRules(series, set, r)
	if s, ok := DetectZone(series, r); ok {
		signals = append(signals, s)
	}
	return signals
}
