package strategy

import (
	"fmt"

	"TrendSentinel/internal/calculator"
	"TrendSentinel/internal/model"
)

// DetectZone compares the last close with the rolling swing high and low.
// The high is checked first, so a narrow range near both levels reports only NearSwingHigh.
func DetectZone(series *model.PriceSeries, r Rules) (model.Signal, bool) {
	if series.Len() < r.ZoneWindow {
		return model.Signal{}, false
	}
	high, low, err := calculator.RollingRange(series.Bars, r.ZoneWindow)
	if err != nil {
		return model.Signal{}, false
	}
	last, _ := series.Last()

	if d, ok := calculator.Proximity(last.Close, high); ok && d < r.ZoneTolerance {
		return model.Signal{
			Kind: model.SignalNearSwingHigh,
			Message: fmt.Sprintf("Near %d-bar swing high %.2f (close %.2f, %.2f%% away)",
				r.ZoneWindow, high, last.Close, d*100),
			Trigger: model.Trigger{Close: model.Some(last.Close), Level: model.Some(high)},
		}, true
	}
	if d, ok := calculator.Proximity(last.Close, low); ok && d < r.ZoneTolerance {
		return model.Signal{
			Kind: model.SignalNearSwingLow,
			Message: fmt.Sprintf("Near %d-bar swing low %.2f (close %.2f, %.2f%% away)",
				r.ZoneWindow, low, last.Close, d*100),
			Trigger: model.Trigger{Close: model.Some(last.Close), Level: model.Some(low)},
		}, true
	}
	return model.Signal{}, false
}
