package journal

import (
	"context"
	"fmt"
	"time"

	"gapscan/internal/risk"
	"gapscan/internal/scanner"
	"gapscan/pkg/exception"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const scanBatchSize = 100

// Journal persists trade outcomes and scan results of one session.
type Journal struct {
	db      *gorm.DB
	session uuid.UUID
	now     func() time.Time
}

// New migrates the journal tables and starts a new session.
func New(db *gorm.DB) (*Journal, error) {
	if db == nil {
		return nil, exception.ErrNilInstance
	}
	if err := db.AutoMigrate(&TradeOutcome{}, &ScanResult{}); err != nil {
		return nil, fmt.Errorf("%w: migrate journal: %w", exception.ErrStorageUnavailable, err)
	}
	return &Journal{
		db:      db,
		session: uuid.New(),
		now:     time.Now,
	}, nil
}

// Session returns the id stamped on every row of this journal.
func (j *Journal) Session() uuid.UUID {
	return j.session
}

// RecordTrade stores a trade result with the risk status after it.
func (j *Journal) RecordTrade(ctx context.Context, pnl float64, status risk.Status) error {
	row := TradeOutcome{
		ID:                uuid.New(),
		SessionID:         j.session,
		PnL:               decimal.NewFromFloat(pnl),
		Outcome:           risk.OutcomeOf(pnl),
		CumulativeLoss:    decimal.NewFromFloat(status.CumulativeLoss),
		ConsecutiveLosses: status.ConsecutiveLosses,
		State:             status.State.String(),
		CreatedAt:         j.now().UTC(),
	}
	if err := j.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("%w: record trade: %w", exception.ErrStorageUnavailable, err)
	}
	return nil
}

// RecordScan stores the ranked candidates of one scan. Empty scans store nothing.
func (j *Journal) RecordScan(ctx context.Context, at time.Time, candidates []scanner.Candidate) error {
	if len(candidates) == 0 {
		return nil
	}
	rows := make([]ScanResult, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, ScanResult{
			ID:             uuid.New(),
			SessionID:      j.session,
			ScannedAt:      at.UTC(),
			Rank:           c.Rank,
			Symbol:         c.Symbol,
			Price:          c.Price,
			GapRatio:       c.GapRatio,
			RelativeVolume: c.RelativeVolume,
			HasNews:        c.HasNews,
			IsRunner:       c.IsRunner,
		})
	}
	if err := j.db.WithContext(ctx).CreateInBatches(rows, scanBatchSize).Error; err != nil {
		return fmt.Errorf("%w: record scan: %w", exception.ErrStorageUnavailable, err)
	}
	return nil
}
