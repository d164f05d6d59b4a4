package model

import (
	"encoding/json"
	"fmt"
)

// NullFloat is an indicator value that may be undefined during warm-up.
// An undefined value is distinct from zero.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// Some returns a defined value.
func Some(v float64) NullFloat { return NullFloat{Float64: v, Valid: true} }

// MarshalJSON encodes undefined values as null.
func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Float64)
}

// UnmarshalJSON accepts a number or null.
func (n *NullFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = NullFloat{}
		return nil
	}
	if err := json.Unmarshal(data, &n.Float64); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

func (n NullFloat) String() string {
	if !n.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", n.Float64)
}

// IndicatorSet holds per-bar derived values aligned index-for-index with a PriceSeries.
type IndicatorSet struct {
	EMAFastPeriod int         `json:"ema_fast_period"`
	EMASlowPeriod int         `json:"ema_slow_period"`
	RSIPeriod     int         `json:"rsi_period"`
	EMAFast       []NullFloat `json:"ema_fast"`
	EMASlow       []NullFloat `json:"ema_slow"`
	RSI           []NullFloat `json:"rsi"`
}

// Len returns the number of aligned bars.
func (s *IndicatorSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.RSI)
}

// At returns the values at index i; negative indexes count from the end.
func (s *IndicatorSet) At(i int) (fast, slow, rsi NullFloat) {
	n := s.Len()
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return NullFloat{}, NullFloat{}, NullFloat{}
	}
	return s.EMAFast[i], s.EMASlow[i], s.RSI[i]
}
