package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"gapscan/internal/market"
	"gapscan/internal/obs"
	"gapscan/pkg/exception"

	"github.com/yanun0323/logs"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	maxLoggedRecordLen  = 256
)

// Merger is the write side of the symbol store.
type Merger interface {
	Merge(symbol string, p market.Patch) market.SymbolState
}

// Config controls the ingestor.
type Config struct {
	// PollInterval is how long to wait when the source has no data.
	PollInterval time.Duration
	Clock        Clock
	Metrics      *obs.Metrics
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.Clock == nil {
		c.Clock = realClock{}
	}
	return c
}

// Stats counts what the ingestor did so far.
type Stats struct {
	Applied uint64 `json:"applied"`
	Dropped uint64 `json:"dropped"`
	Waits   uint64 `json:"waits"`
}

// Ingestor reads a Source and merges every record into the store, in read order.
type Ingestor struct {
	store Merger
	src   Source
	cfg   Config

	applied atomic.Uint64
	dropped atomic.Uint64
	waits   atomic.Uint64
}

// New creates an ingestor. It does nothing until Start or Run is called.
func New(store Merger, src Source, cfg Config) *Ingestor {
	return &Ingestor{
		store: store,
		src:   src,
		cfg:   cfg.withDefaults(),
	}
}

// Stats returns the current counters.
func (in *Ingestor) Stats() Stats {
	return Stats{
		Applied: in.applied.Load(),
		Dropped: in.dropped.Load(),
		Waits:   in.waits.Load(),
	}
}

// Handle controls a started ingestor.
type Handle struct {
	in     *Ingestor
	cancel context.CancelFunc
	done   chan struct{}
	err    error
	once   sync.Once
}

// Start runs the ingestor on its own goroutine.
func (in *Ingestor) Start(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		in:     in,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(h.done)
		defer cancel()
		h.err = in.Run(ctx)
	}()
	return h
}

// Stop asks the ingestor to stop, waits for it and returns its terminal error.
func (h *Handle) Stop() error {
	h.once.Do(h.cancel)
	<-h.done
	return h.err
}

// Done is closed once the ingestor has ended, for any reason.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the error that ended the ingestor. It is nil while running,
// after a requested stop, and after a source reached its end.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Stats returns the counters of the underlying ingestor.
func (h *Handle) Stats() Stats {
	return h.in.Stats()
}

// Run ingests until ctx is done, the source ends, or the source fails.
// A cancelled ctx is a clean stop and returns nil.
func (in *Ingestor) Run(ctx context.Context) error {
	if in.src == nil {
		return exception.ErrNilSource
	}
	if in.store == nil {
		return exception.ErrNilStore
	}
	defer func() {
		if err := in.src.Close(); err != nil {
			logs.Warnf("close feed source, err: %+v", err)
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		payload, err := in.src.Next(ctx)
		switch {
		case err == nil:
			in.apply(payload)
		case errors.Is(err, exception.ErrNoData):
			in.waits.Add(1)
			in.cfg.Metrics.IncSourceWait()
			if err := in.wait(ctx); err != nil {
				return nil
			}
		case errors.Is(err, io.EOF):
			logs.Infof("feed source drained, applied: %d, dropped: %d", in.applied.Load(), in.dropped.Load())
			return nil
		case ctx.Err() != nil:
			return nil
		default:
			logs.Errorf("feed source failed, ingestion stopped, err: %+v", err)
			return err
		}
	}
}

func (in *Ingestor) wait(ctx context.Context) error {
	if w, ok := in.src.(Waiter); ok {
		return w.Wait(ctx, in.cfg.PollInterval)
	}
	return in.cfg.Clock.Sleep(ctx, in.cfg.PollInterval)
}

func (in *Ingestor) apply(payload []byte) {
	for len(payload) > 0 {
		var line []byte
		if i := bytes.IndexByte(payload, '\n'); i >= 0 {
			line, payload = payload[:i], payload[i+1:]
		} else {
			line, payload = payload, nil
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		symbol, patch, err := DecodeRecord(line)
		if err != nil {
			in.dropped.Add(1)
			in.cfg.Metrics.IncRecordDropped(dropReason(err))
			logs.Warnf("drop record %q, err: %+v", truncate(line), err)
			continue
		}

		in.store.Merge(symbol, patch)
		in.applied.Add(1)
		in.cfg.Metrics.IncRecordApplied()
	}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, exception.ErrRecordMissingSymbol):
		return "missing_symbol"
	case errors.Is(err, exception.ErrRecordInvalidValue):
		return "invalid_value"
	default:
		return "malformed"
	}
}

func truncate(line []byte) []byte {
	if len(line) <= maxLoggedRecordLen {
		return line
	}
	return line[:maxLoggedRecordLen]
}
