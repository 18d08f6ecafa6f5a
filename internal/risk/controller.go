package risk

import (
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"
)

const (
	defaultMaxConsecutiveLosses = 3
	defaultDailyMaxLoss         = 0.10
	defaultRiskPerTrade         = 0.05
)

// Config defines the session halt limits.
type Config struct {
	// DailyMaxLoss is the cumulative loss that halts trading for the session.
	DailyMaxLoss float64 `json:"dailyMaxLoss" yaml:"daily_max_loss" envconfig:"daily_max_loss"`
	// MaxConsecutiveLosses is the losing streak that halts trading.
	MaxConsecutiveLosses int `json:"maxConsecutiveLosses" yaml:"max_consecutive_losses" envconfig:"max_consecutive_losses"`
	// RiskPerTrade is the share of equity an external sizer may put on one trade.
	RiskPerTrade float64 `json:"riskPerTrade" yaml:"per_trade" envconfig:"per_trade"`
}

func (c Config) withDefaults() Config {
	if c.DailyMaxLoss <= 0 {
		c.DailyMaxLoss = defaultDailyMaxLoss
	}
	if c.MaxConsecutiveLosses <= 0 {
		c.MaxConsecutiveLosses = defaultMaxConsecutiveLosses
	}
	if c.RiskPerTrade <= 0 {
		c.RiskPerTrade = defaultRiskPerTrade
	}
	return c
}

// State is the controller state.
type State uint8

const (
	StateActive State = iota
	StateHalted
)

func (s State) String() string {
	if s == StateHalted {
		return "HALTED"
	}
	return "ACTIVE"
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// HaltReason tells which limit latched the halt.
type HaltReason uint8

const (
	HaltReasonNone HaltReason = iota
	HaltReasonDailyLoss
	HaltReasonConsecutiveLosses
)

func (r HaltReason) String() string {
	switch r {
	case HaltReasonDailyLoss:
		return "daily_loss"
	case HaltReasonConsecutiveLosses:
		return "consecutive_losses"
	default:
		return "none"
	}
}

// MarshalText renders the reason name in JSON.
func (r HaltReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Status is a read-only view of the controller.
type Status struct {
	State                State      `json:"state"`
	Reason               HaltReason `json:"reason"`
	CumulativeLoss       float64    `json:"cumulativeLoss"`
	ConsecutiveLosses    int        `json:"consecutiveLosses"`
	Trades               int        `json:"trades"`
	DailyMaxLoss         float64    `json:"dailyMaxLoss"`
	MaxConsecutiveLosses int        `json:"maxConsecutiveLosses"`
	RiskPerTrade         float64    `json:"riskPerTrade"`
	HaltedAt             *time.Time `json:"haltedAt,omitempty"`
}

// Controller tracks realized losses of a session and latches a halt once a
// limit is reached. HALTED only clears on Reset.
type Controller struct {
	mu  sync.Mutex
	cfg Config
	now func() time.Time

	dailyMaxLoss      decimal.Decimal
	cumulativeLoss    decimal.Decimal
	consecutiveLosses int
	trades            int
	state             State
	reason            HaltReason
	haltedAt          time.Time
}

// NewController creates an ACTIVE controller.
func NewController(cfg Config) *Controller {
	cfg = cfg.withDefaults()
	return &Controller{
		cfg:          cfg,
		now:          time.Now,
		dailyMaxLoss: decimal.NewFromFloat(cfg.DailyMaxLoss),
	}
}

// Config returns the effective limits.
func (c *Controller) Config() Config {
	return c.cfg
}

// RegisterTrade records the P/L of a closed trade and returns the state after it.
// A loss grows the cumulative loss and the streak, anything else resets the streak.
func (c *Controller) RegisterTrade(pnl float64) State {
	if math.IsNaN(pnl) || math.IsInf(pnl, 0) {
		logs.Warnf("ignore non-finite trade result: %v", pnl)
		return c.State()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.trades++
	if pnl < 0 {
		c.cumulativeLoss = c.cumulativeLoss.Add(decimal.NewFromFloat(pnl).Abs())
		c.consecutiveLosses++
	} else {
		c.consecutiveLosses = 0
	}

	if c.state == StateActive {
		if reason := c.haltReasonLocked(); reason != HaltReasonNone {
			c.state = StateHalted
			c.reason = reason
			c.haltedAt = c.now().UTC()
		}
	}
	return c.state
}

// ShouldHalt reports whether a limit is currently reached.
func (c *Controller) ShouldHalt() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.haltReasonLocked() != HaltReasonNone
}

// State returns the latched state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reset starts a new session.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cumulativeLoss = decimal.Zero
	c.consecutiveLosses = 0
	c.trades = 0
	c.state = StateActive
	c.reason = HaltReasonNone
	c.haltedAt = time.Time{}
}

// RiskBudget returns the amount an external sizer may risk on the next trade,
// zero once halted.
func (c *Controller) RiskBudget(equity float64) float64 {
	if equity <= 0 || math.IsNaN(equity) || math.IsInf(equity, 0) || c.State() == StateHalted {
		return 0
	}
	return decimal.NewFromFloat(equity).Mul(decimal.NewFromFloat(c.cfg.RiskPerTrade)).InexactFloat64()
}

// Snapshot returns the current status.
func (c *Controller) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := Status{
		State:                c.state,
		Reason:               c.reason,
		CumulativeLoss:       c.cumulativeLoss.InexactFloat64(),
		ConsecutiveLosses:    c.consecutiveLosses,
		Trades:               c.trades,
		DailyMaxLoss:         c.cfg.DailyMaxLoss,
		MaxConsecutiveLosses: c.cfg.MaxConsecutiveLosses,
		RiskPerTrade:         c.cfg.RiskPerTrade,
	}
	if c.state == StateHalted {
		haltedAt := c.haltedAt
		status.HaltedAt = &haltedAt
	}
	return status
}

func (c *Controller) haltReasonLocked() HaltReason {
	if c.cumulativeLoss.GreaterThanOrEqual(c.dailyMaxLoss) {
		return HaltReasonDailyLoss
	}
	if c.consecutiveLosses >= c.cfg.MaxConsecutiveLosses {
		return HaltReasonConsecutiveLosses
	}
	return HaltReasonNone
}

// OutcomeOf labels a trade result "win", "loss" or "flat".
func OutcomeOf(pnl float64) string {
	switch {
	case pnl > 0:
		return "win"
	case pnl < 0:
		return "loss"
	default:
		return "flat"
	}
}
