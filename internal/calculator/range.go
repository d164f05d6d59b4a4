package calculator

import (
	"errors"
	"math"

	"TrendSentinel/internal/model"
)

// ErrShortWindow is returned when fewer bars than the window are available.
var ErrShortWindow = errors.New("not enough bars for rolling window")

// RollingRange returns the highest High and lowest Low over the last window bars,
// ending at the most recent bar.
func RollingRange(bars []model.PriceBar, window int) (high, low float64, err error) {
	if window <= 0 {
		return 0, 0, errPeriod
	}
	n := len(bars)
	if n < window {
		return 0, 0, ErrShortWindow
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for i := n - window; i < n; i++ {
		if bars[i].High > high {
			high = bars[i].High
		}
		if bars[i].Low < low {
			low = bars[i].Low
		}
	}
	return high, low, nil
}

// Proximity returns |price-level|/level. ok is false when level is not positive.
func Proximity(price, level float64) (dist float64, ok bool) {
	if level <= 0 {
		return 0, false
	}
	return math.Abs(price-level) / level, true
}
