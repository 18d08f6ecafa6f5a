package ingest

import (
	"fmt"
	"math"

	"gapscan/internal/market"
	"gapscan/pkg/exception"

	"github.com/bytedance/sonic"
)

// Record is the wire form of one update. Aliases cover the key spellings
// seen on the feeds. For numbers the first spelling wins when both are set;
// a flag is true when any of its spellings is true.
type Record struct {
	Symbol *string `json:"symbol"`

	Price           *float64 `json:"price"`
	PrevClose       *float64 `json:"prevClose"`
	PrevCloseAlt    *float64 `json:"prev_close"`
	Volume          *float64 `json:"volume"`
	AvgVolume       *float64 `json:"avgVolume"`
	AvgVolumeAlt    *float64 `json:"avg_volume"`
	FloatShares     *float64 `json:"floatShares"`
	FloatSharesAlt  *float64 `json:"float_shares"`
	News            *bool    `json:"news"`
	Catalyst        *bool    `json:"catalyst"`
	HasNews         *bool    `json:"hasNews"`
	Runner          *bool    `json:"runner"`
	FormerRunner    *bool    `json:"formerRunner"`
	FormerRunnerAlt *bool    `json:"former_runner"`
	IsRunner        *bool    `json:"isRunner"`
}

// DecodeRecord parses one JSON update into its symbol and patch.
func DecodeRecord(data []byte) (string, market.Patch, error) {
	var rec Record
	if err := sonic.ConfigStd.Unmarshal(data, &rec); err != nil {
		return "", market.Patch{}, fmt.Errorf("%w: %w", exception.ErrRecordMalformed, err)
	}
	return rec.Normalize()
}

// Normalize validates the record and converts it into a patch.
func (r Record) Normalize() (string, market.Patch, error) {
	if r.Symbol == nil {
		return "", market.Patch{}, exception.ErrRecordMissingSymbol
	}
	symbol := market.NormalizeSymbol(*r.Symbol)
	if symbol == "" {
		return "", market.Patch{}, exception.ErrRecordMissingSymbol
	}

	patch := market.Patch{
		Price:       r.Price,
		PrevClose:   firstFloat(r.PrevClose, r.PrevCloseAlt),
		Volume:      r.Volume,
		AvgVolume:   firstFloat(r.AvgVolume, r.AvgVolumeAlt),
		FloatShares: firstFloat(r.FloatShares, r.FloatSharesAlt),
		HasNews:     anyBool(r.News, r.Catalyst, r.HasNews),
		IsRunner:    anyBool(r.Runner, r.FormerRunner, r.FormerRunnerAlt, r.IsRunner),
	}

	fields := []struct {
		name  string
		value *float64
	}{
		{"price", patch.Price},
		{"prevClose", patch.PrevClose},
		{"volume", patch.Volume},
		{"avgVolume", patch.AvgVolume},
		{"floatShares", patch.FloatShares},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		v := *f.value
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return "", market.Patch{}, fmt.Errorf("%w: %s=%v symbol=%s", exception.ErrRecordInvalidValue, f.name, v, symbol)
		}
	}

	// the stored baseline must stay positive for the relative volume ratio
	if patch.AvgVolume != nil && *patch.AvgVolume <= 0 {
		patch.AvgVolume = nil
	}

	return symbol, patch, nil
}

func firstFloat(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// anyBool is nil when no spelling is present.
func anyBool(values ...*bool) *bool {
	var found *bool
	for _, v := range values {
		if v == nil {
			continue
		}
		if *v {
			return v
		}
		found = v
	}
	return found
}
