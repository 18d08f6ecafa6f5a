package scanner

import (
	"math"

	"gapscan/internal/market"
)

// epsilon guards the relative volume division.
const epsilon = 1e-9

// Criteria are the thresholds a symbol must meet to qualify.
type Criteria struct {
	MinPrice          float64 `json:"minPrice" yaml:"min_price" envconfig:"min_price"`
	MaxPrice          float64 `json:"maxPrice" yaml:"max_price" envconfig:"max_price"`
	MaxFloat          float64 `json:"maxFloat" yaml:"max_float" envconfig:"max_float"` // 0 disables the float filter
	MinRelativeVolume float64 `json:"minRelativeVolume" yaml:"min_relative_volume" envconfig:"min_relative_volume"`
	MinGapRatio       float64 `json:"minGapRatio" yaml:"min_gap_ratio" envconfig:"min_gap_ratio"`
}

// Reason explains why a symbol did not qualify.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonNoVolume
	ReasonPriceBand
	ReasonNoPrevClose
	ReasonGap
	ReasonRelativeVolume
	ReasonFloat
	ReasonNoCatalyst
)

var reasonNames = [...]string{
	ReasonNone:           "none",
	ReasonNoVolume:       "no_volume",
	ReasonPriceBand:      "price_band",
	ReasonNoPrevClose:    "no_prev_close",
	ReasonGap:            "gap",
	ReasonRelativeVolume: "relative_volume",
	ReasonFloat:          "float",
	ReasonNoCatalyst:     "no_catalyst",
}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// GapRatio returns (price - prevClose) / prevClose, or 0 when prevClose is unknown.
func GapRatio(s market.SymbolState) float64 {
	if s.PrevClose <= 0 {
		return 0
	}
	return (s.Price - s.PrevClose) / s.PrevClose
}

// RelativeVolume returns volume over the average volume baseline.
func RelativeVolume(s market.SymbolState) float64 {
	return s.Volume / math.Max(s.AvgVolume, epsilon)
}

// Evaluate applies the criteria to one state and returns the first failed check.
func Evaluate(s market.SymbolState, c Criteria) Reason {
	if s.Volume <= 0 {
		return ReasonNoVolume
	}
	if s.Price < c.MinPrice || s.Price > c.MaxPrice {
		return ReasonPriceBand
	}
	if s.PrevClose <= 0 {
		return ReasonNoPrevClose
	}
	if GapRatio(s) < c.MinGapRatio {
		return ReasonGap
	}
	if RelativeVolume(s) < c.MinRelativeVolume {
		return ReasonRelativeVolume
	}
	if c.MaxFloat > 0 && s.FloatShares > 0 && s.FloatShares > c.MaxFloat {
		return ReasonFloat
	}
	if !s.HasNews && !s.IsRunner {
		return ReasonNoCatalyst
	}
	return ReasonNone
}

// Qualifies reports whether the state passes every check.
func Qualifies(s market.SymbolState, c Criteria) bool {
	return Evaluate(s, c) == ReasonNone
}
