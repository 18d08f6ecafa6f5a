package journal

import (
	"testing"
	"time"

	"gapscan/internal/risk"
	"gapscan/internal/scanner"
	"gapscan/pkg/conn"
	"gapscan/pkg/exception"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

func newJournal(t *testing.T) *Journal {
	t.Helper()
	client, err := conn.Open(sqlite.Open("file::memory:"), conn.Option{MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	j, err := New(client.DB())
	require.NoError(t, err)
	return j
}

func sessionTrades(t *testing.T, j *Journal) []TradeOutcome {
	t.Helper()
	var rows []TradeOutcome
	require.NoError(t, j.db.WithContext(t.Context()).
		Where("session_id = ?", j.Session()).
		Order("created_at ASC").
		Find(&rows).Error)
	return rows
}

func scanRows(t *testing.T, j *Journal, at time.Time) []ScanResult {
	t.Helper()
	var rows []ScanResult
	require.NoError(t, j.db.WithContext(t.Context()).
		Where("session_id = ? AND scanned_at = ?", j.Session(), at.UTC()).
		Order("rank ASC").
		Find(&rows).Error)
	return rows
}

func TestNewRejectsNilDB(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, exception.ErrNilInstance)
}

func TestRecordTrade(t *testing.T) {
	j := newJournal(t)
	assert.NotEqual(t, uuid.Nil, j.Session())

	base := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)
	step := 0
	j.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	c := risk.NewController(risk.Config{})
	for _, pnl := range []float64{-0.02, 0.05, -0.11} {
		c.RegisterTrade(pnl)
		require.NoError(t, j.RecordTrade(t.Context(), pnl, c.Snapshot()))
	}

	trades := sessionTrades(t, j)
	require.Len(t, trades, 3)

	assert.Equal(t, "loss", trades[0].Outcome)
	assert.Equal(t, "win", trades[1].Outcome)
	assert.Equal(t, "ACTIVE", trades[1].State)
	assert.Equal(t, 0, trades[1].ConsecutiveLosses)

	last := trades[2]
	assert.Equal(t, j.Session(), last.SessionID)
	assert.Equal(t, "HALTED", last.State)
	assert.InDelta(t, -0.11, last.PnL.InexactFloat64(), 1e-12)
	assert.InDelta(t, 0.13, last.CumulativeLoss.InexactFloat64(), 1e-12)
}

func TestRecordScan(t *testing.T) {
	j := newJournal(t)

	first := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)
	second := first.Add(5 * time.Second)
	require.NoError(t, j.RecordScan(t.Context(), first, []scanner.Candidate{
		{Rank: 1, Symbol: "OLD", Price: 2, GapRatio: 0.3, RelativeVolume: 7},
	}))
	require.NoError(t, j.RecordScan(t.Context(), second, []scanner.Candidate{
		{Rank: 1, Symbol: "ABC", Price: 5, GapRatio: 0.11, RelativeVolume: 10, HasNews: true},
		{Rank: 2, Symbol: "QQQ", Price: 8, GapRatio: 0.07, RelativeVolume: 15, IsRunner: true},
	}))
	rows := scanRows(t, j, second)
	require.Len(t, rows, 2)
	assert.Equal(t, "ABC", rows[0].Symbol)
	assert.True(t, rows[0].HasNews)
	assert.Equal(t, "QQQ", rows[1].Symbol)
	assert.Equal(t, 2, rows[1].Rank)
	assert.True(t, rows[1].IsRunner)

	assert.Len(t, scanRows(t, j, first), 1)
}

func TestRecordEmptyScanStoresNothing(t *testing.T) {
	j := newJournal(t)
	at := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordScan(t.Context(), at, nil))

	var count int64
	require.NoError(t, j.db.Model(&ScanResult{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSessionsAreIsolated(t *testing.T) {
	client, err := conn.Open(sqlite.Open("file::memory:"), conn.Option{MaxOpenConns: 1})
	require.NoError(t, err)
	defer client.Close()

	a, err := New(client.DB())
	require.NoError(t, err)
	b, err := New(client.DB())
	require.NoError(t, err)

	require.NoError(t, a.RecordTrade(t.Context(), -0.01, risk.Status{}))

	assert.Empty(t, sessionTrades(t, b))
	assert.Len(t, sessionTrades(t, a), 1)
}
