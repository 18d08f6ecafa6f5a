package market

import (
	"strings"
	"time"
)

// DefaultAvgVolume is the baseline used until a feed reports a real average volume.
const DefaultAvgVolume = 1.0

// SymbolState is the latest known market view of one symbol.
type SymbolState struct {
	Symbol      string    `json:"symbol"`
	Price       float64   `json:"price"`
	PrevClose   float64   `json:"prevClose"`
	Volume      float64   `json:"volume"`
	AvgVolume   float64   `json:"avgVolume"`
	FloatShares float64   `json:"floatShares"`
	HasNews     bool      `json:"hasNews"`
	IsRunner    bool      `json:"isRunner"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// NewSymbolState returns the state of a symbol that has never been updated.
func NewSymbolState(symbol string) SymbolState {
	return SymbolState{
		Symbol:    symbol,
		AvgVolume: DefaultAvgVolume,
	}
}

// Patch is a partial update. Nil fields keep the previous value.
type Patch struct {
	Price       *float64
	PrevClose   *float64
	Volume      *float64
	AvgVolume   *float64
	FloatShares *float64
	HasNews     *bool
	IsRunner    *bool
}

// Apply returns s with every present field of p written over it.
func (p Patch) Apply(s SymbolState) SymbolState {
	if p.Price != nil {
		s.Price = *p.Price
	}
	if p.PrevClose != nil {
		s.PrevClose = *p.PrevClose
	}
	if p.Volume != nil {
		s.Volume = *p.Volume
	}
	if p.AvgVolume != nil {
		s.AvgVolume = *p.AvgVolume
	}
	if p.FloatShares != nil {
		s.FloatShares = *p.FloatShares
	}
	if p.HasNews != nil {
		s.HasNews = *p.HasNews
	}
	if p.IsRunner != nil {
		s.IsRunner = *p.IsRunner
	}
	return s
}

// Float returns a pointer to v, for building patches.
func Float(v float64) *float64 {
	return &v
}

// Bool returns a pointer to v, for building patches.
func Bool(v bool) *bool {
	return &v
}
