package ingest

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gapscan/internal/market"
	"gapscan/internal/obs"
	"gapscan/pkg/exception"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	payload string
	err     error
}

// scriptedSource plays steps in order and then reports no data forever.
type scriptedSource struct {
	mu     sync.Mutex
	steps  []step
	closed bool
}

func (s *scriptedSource) Next(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.steps) == 0 {
		return nil, exception.ErrNoData
	}
	st := s.steps[0]
	s.steps = s.steps[1:]
	if st.err != nil {
		return nil, st.err
	}
	return []byte(st.payload), nil
}

func (s *scriptedSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *scriptedSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
	limit  int
	cancel context.CancelFunc
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	n := len(c.sleeps)
	c.mu.Unlock()
	if n >= c.limit && c.cancel != nil {
		c.cancel()
	}
	return ctx.Err()
}

func TestIngestorAppliesInOrderAndDropsMalformed(t *testing.T) {
	store := market.NewStore()
	metrics := obs.NewMetrics()
	src := &scriptedSource{steps: []step{
		{payload: `{"symbol":"ABC","price":5,"news":true}`},
		{payload: `not json`},
		{payload: `{"price":1}`},
		{payload: `{"symbol":"ABC","price":-2}`},
		{payload: `{"symbol":"ABC","price":6}` + "\n\n" + `{"symbol":"XYZ","volume":10}`},
		{payload: `{"symbol":"ABC","volume":1000}`},
		{err: io.EOF},
	}}

	in := New(store, src, Config{Metrics: metrics})
	require.NoError(t, in.Run(t.Context()))
	assert.True(t, src.isClosed())

	abc, ok := store.Get("ABC")
	require.True(t, ok)
	assert.Equal(t, 6.0, abc.Price)
	assert.Equal(t, 1000.0, abc.Volume)
	assert.True(t, abc.HasNews)

	xyz, ok := store.Get("XYZ")
	require.True(t, ok)
	assert.Equal(t, 10.0, xyz.Volume)

	assert.Equal(t, Stats{Applied: 4, Dropped: 3}, in.Stats())
	expected := `
# HELP gapscan_ingest_records_applied_total Update records merged into the symbol store
# TYPE gapscan_ingest_records_applied_total counter
gapscan_ingest_records_applied_total 4
# HELP gapscan_ingest_records_dropped_total Update records dropped before merge
# TYPE gapscan_ingest_records_dropped_total counter
gapscan_ingest_records_dropped_total{reason="invalid_value"} 1
gapscan_ingest_records_dropped_total{reason="malformed"} 1
gapscan_ingest_records_dropped_total{reason="missing_symbol"} 1
`
	require.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected),
		"gapscan_ingest_records_applied_total", "gapscan_ingest_records_dropped_total"))
}

func TestIngestorWaitsWithPollInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	clock := &fakeClock{limit: 3, cancel: cancel}
	src := &scriptedSource{steps: []step{{payload: `{"symbol":"A","price":1}`}}}
	in := New(market.NewStore(), src, Config{PollInterval: 250 * time.Millisecond, Clock: clock})

	require.NoError(t, in.Run(ctx))
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond, 250 * time.Millisecond}, clock.sleeps)
	assert.Equal(t, Stats{Applied: 1, Waits: 3}, in.Stats())
}

func TestIngestorStopWithinPollInterval(t *testing.T) {
	src := &scriptedSource{}
	h := New(market.NewStore(), src, Config{PollInterval: 20 * time.Millisecond}).Start(t.Context())

	time.Sleep(50 * time.Millisecond)
	assert.Nil(t, h.Err())

	start := time.Now()
	require.NoError(t, h.Stop())
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, src.isClosed())
	require.NoError(t, h.Stop(), "stop is idempotent")
}

func TestIngestorSourceFailureEndsHandle(t *testing.T) {
	boom := errors.New("boom")
	store := market.NewStore()
	src := &scriptedSource{steps: []step{
		{payload: `{"symbol":"A","price":1}`},
		{err: boom},
		{payload: `{"symbol":"B","price":1}`},
	}}
	h := New(store, src, Config{}).Start(t.Context())

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("ingestor did not stop on source failure")
	}
	assert.ErrorIs(t, h.Err(), boom)
	assert.Equal(t, uint64(1), h.Stats().Applied)
	_, ok := store.Get("B")
	assert.False(t, ok)
}

func TestIngestorSourceUnavailable(t *testing.T) {
	src := NewFileSource(FileConfig{Path: filepath.Join(t.TempDir(), "missing.jsonl"), Follow: true})
	h := New(market.NewStore(), src, Config{}).Start(t.Context())

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("ingestor did not stop on unavailable source")
	}
	assert.ErrorIs(t, h.Err(), exception.ErrSourceUnavailable)
}

func TestIngestorNilDependencies(t *testing.T) {
	assert.ErrorIs(t, New(market.NewStore(), nil, Config{}).Run(t.Context()), exception.ErrNilSource)
	assert.ErrorIs(t, New(nil, &scriptedSource{}, Config{}).Run(t.Context()), exception.ErrNilStore)
}
