package calculator

import (
	"errors"
	"fmt"

	"TrendSentinel/internal/model"
)

// ErrInsufficientData is returned when a series has no bars at all.
var ErrInsufficientData = errors.New("insufficient data: empty price series")

// Params configures the indicator periods.
type Params struct {
	EMAFast   int      `yaml:"ema_fast"`
	EMASlow   int      `yaml:"ema_slow"`
	RSIPeriod int      `yaml:"rsi_period"`
	Seed      SeedMode `yaml:"ema_seed"`
}

// DefaultParams returns EMA20 / EMA50 / RSI14 with SMA seeding.
func DefaultParams() Params {
	return Params{EMAFast: 20, EMASlow: 50, RSIPeriod: 14, Seed: SeedSMA}
}

// Compute derives the indicator set for series without mutating it.
// Short series yield undefined prefixes rather than errors.
func Compute(series *model.PriceSeries, p Params) (*model.IndicatorSet, error) {
	if series.Len() == 0 {
		return nil, ErrInsufficientData
	}
	closes := series.Closes()

	fast, err := CalculateEMA(closes, p.EMAFast, p.Seed)
	if err != nil {
		return nil, fmt.Errorf("ema%d: %w", p.EMAFast, err)
	}
	slow, err := CalculateEMA(closes, p.EMASlow, p.Seed)
	if err != nil {
		return nil, fmt.Errorf("ema%d: %w", p.EMASlow, err)
	}
	rsi, err := CalculateRSI(closes, p.RSIPeriod)
	if err != nil {
		return nil, fmt.Errorf("rsi%d: %w", p.RSIPeriod, err)
	}

	return &model.IndicatorSet{
		EMAFastPeriod: p.EMAFast,
		EMASlowPeriod: p.EMASlow,
		RSIPeriod:     p.RSIPeriod,
		EMAFast:       fast,
		EMASlow:       slow,
		RSI:           rsi,
	}, nil
}
