package mdg

import "github.com/bytedance/sonic"

// Update is one generated feed record. Nil fields are left out.
type Update struct {
	Symbol      string   `json:"symbol"`
	Price       *float64 `json:"price,omitempty"`
	PrevClose   *float64 `json:"prevClose,omitempty"`
	Volume      *float64 `json:"volume,omitempty"`
	AvgVolume   *float64 `json:"avgVolume,omitempty"`
	FloatShares *float64 `json:"floatShares,omitempty"`
	News        *bool    `json:"news,omitempty"`
	Runner      *bool    `json:"runner,omitempty"`
}

// Encode renders the update as one JSON line without the trailing newline.
func (u Update) Encode() ([]byte, error) {
	return sonic.ConfigStd.Marshal(u)
}

func float(v float64) *float64 { return &v }

func boolean(v bool) *bool { return &v }
