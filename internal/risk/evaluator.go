package risk

import (
	"math"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
)

// Ratio is a float that encodes +Inf as the string "Inf" in JSON.
type Ratio float64

// MarshalJSON implements json.Marshaler.
func (r Ratio) MarshalJSON() ([]byte, error) {
	if math.IsInf(float64(r), 1) {
		return []byte(`"Inf"`), nil
	}
	return []byte(strconv.FormatFloat(float64(r), 'f', -1, 64)), nil
}

// Report summarizes the recorded trades.
type Report struct {
	TotalTrades  int     `json:"totalTrades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"winRate"`
	ProfitFactor Ratio   `json:"profitFactor"`
	MaxDrawdown  float64 `json:"maxDrawdown"`
	NetPnL       float64 `json:"netPnl"`
}

// Evaluator keeps every closed trade of a session.
type Evaluator struct {
	mu     sync.Mutex
	trades []decimal.Decimal
}

// NewEvaluator creates an empty evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// RecordTrade appends a trade result. Non-finite values are ignored.
func (e *Evaluator) RecordTrade(pnl float64) {
	if math.IsNaN(pnl) || math.IsInf(pnl, 0) {
		return
	}
	e.mu.Lock()
	e.trades = append(e.trades, decimal.NewFromFloat(pnl))
	e.mu.Unlock()
}

// Reset drops every recorded trade.
func (e *Evaluator) Reset() {
	e.mu.Lock()
	e.trades = nil
	e.mu.Unlock()
}

// WinRate is the share of profitable trades, 0 without trades.
func (e *Evaluator) WinRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return winRate(e.trades)
}

// ProfitFactor is gross profit over gross loss. It is +Inf with profits and
// no losses and 0 with neither.
func (e *Evaluator) ProfitFactor() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return profitFactor(e.trades)
}

// MaxDrawdown is the largest drop of cumulative P/L from its running peak.
func (e *Evaluator) MaxDrawdown() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return maxDrawdown(e.trades)
}

// Report returns all statistics at once.
func (e *Evaluator) Report() Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := Report{
		TotalTrades:  len(e.trades),
		WinRate:      winRate(e.trades),
		ProfitFactor: Ratio(profitFactor(e.trades)),
		MaxDrawdown:  maxDrawdown(e.trades),
	}
	net := decimal.Zero
	for _, t := range e.trades {
		net = net.Add(t)
		switch {
		case t.IsPositive():
			report.Wins++
		case t.IsNegative():
			report.Losses++
		}
	}
	report.NetPnL = net.InexactFloat64()
	return report
}

func winRate(trades []decimal.Decimal) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t.IsPositive() {
			wins++
		}
	}
	return float64(wins) / float64(len(trades))
}

func profitFactor(trades []decimal.Decimal) float64 {
	profit, loss := decimal.Zero, decimal.Zero
	for _, t := range trades {
		switch {
		case t.IsPositive():
			profit = profit.Add(t)
		case t.IsNegative():
			loss = loss.Add(t.Abs())
		}
	}
	if loss.IsZero() {
		if profit.IsPositive() {
			return math.Inf(1)
		}
		return 0
	}
	return profit.Div(loss).InexactFloat64()
}

func maxDrawdown(trades []decimal.Decimal) float64 {
	peak, cumulative, drawdown := decimal.Zero, decimal.Zero, decimal.Zero
	for _, t := range trades {
		cumulative = cumulative.Add(t)
		peak = decimal.Max(peak, cumulative)
		drawdown = decimal.Max(drawdown, peak.Sub(cumulative))
	}
	return drawdown.InexactFloat64()
}
