package calculator

import (
	"errors"
	"fmt"

	"TrendSentinel/internal/model"
)

// SeedMode selects how the first EMA value is produced.
type SeedMode string

const (
	// SeedSMA seeds with the simple average of the first N closes; earlier bars are undefined.
	SeedSMA SeedMode = "sma"
	// SeedFirst seeds with the first close, so every bar is defined.
	SeedFirst SeedMode = "first"
)

var errPeriod = errors.New("period must be positive")

// CalculateSMA computes the simple moving average of the last period prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errPeriod
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// CalculateEMA returns the exponential moving average of closes aligned with the input.
// The smoothing factor is 2/(period+1).
func CalculateEMA(closes []float64, period int, seed SeedMode) ([]model.NullFloat, error) {
	if period <= 0 {
		return nil, errPeriod
	}
	out := make([]model.NullFloat, len(closes))
	if len(closes) == 0 {
		return out, nil
	}
	alpha := 2.0 / float64(period+1)

	var start int
	var prev float64
	switch seed {
	case SeedFirst:
		prev = closes[0]
		start = 0
	case SeedSMA, "":
		if len(closes) < period {
			return out, nil
		}
		sma, err := CalculateSMA(closes[:period], period)
		if err != nil {
			return nil, err
		}
		prev = sma
		start = period - 1
	default:
		return nil, fmt.Errorf("unknown ema seed mode %q", seed)
	}

	out[start] = model.Some(prev)
	for i := start + 1; i < len(closes); i++ {
		prev = closes[i]*alpha + prev*(1-alpha)
		out[i] = model.Some(prev)
	}
	return out, nil
}
