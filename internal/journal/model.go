package journal

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeOutcome is one registered trade and the risk state right after it.
type TradeOutcome struct {
	ID                uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid"`
	SessionID         uuid.UUID       `json:"session_id" gorm:"type:uuid;index:idx_trade_session_time;not null"`
	PnL               decimal.Decimal `json:"pnl" gorm:"type:decimal(36,18);not null"`
	Outcome           string          `json:"outcome" gorm:"type:varchar(8);not null"`
	CumulativeLoss    decimal.Decimal `json:"cumulative_loss" gorm:"type:decimal(36,18);not null"`
	ConsecutiveLosses int             `json:"consecutive_losses" gorm:"not null"`
	State             string          `json:"state" gorm:"type:varchar(8);not null"`
	CreatedAt         time.Time       `json:"created_at" gorm:"index:idx_trade_session_time"`
}

func (TradeOutcome) TableName() string { return "trade_outcomes" }

// ScanResult is one ranked candidate of a scan.
type ScanResult struct {
	ID             uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	SessionID      uuid.UUID `json:"session_id" gorm:"type:uuid;index:idx_scan_session_time;not null"`
	ScannedAt      time.Time `json:"scanned_at" gorm:"index:idx_scan_session_time;not null"`
	Rank           int       `json:"rank" gorm:"not null"`
	Symbol         string    `json:"symbol" gorm:"type:varchar(16);index:idx_scan_symbol;not null"`
	Price          float64   `json:"price"`
	GapRatio       float64   `json:"gap_ratio"`
	RelativeVolume float64   `json:"relative_volume"`
	HasNews        bool      `json:"has_news"`
	IsRunner       bool      `json:"is_runner"`
}

func (ScanResult) TableName() string { return "scan_results" }
