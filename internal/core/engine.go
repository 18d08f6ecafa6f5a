package core

import (
	"context"
	"math"
	"sync"
	"time"

	"gapscan/internal/ingest"
	"gapscan/internal/market"
	"gapscan/internal/obs"
	"gapscan/internal/publish"
	"gapscan/internal/risk"
	"gapscan/internal/scanner"
	"gapscan/pkg/exception"

	"github.com/yanun0323/logs"
)

const (
	defaultScanInterval = 5 * time.Second
	sinkTimeout         = 3 * time.Second
)

// Journal persists the session.
type Journal interface {
	RecordTrade(ctx context.Context, pnl float64, status risk.Status) error
	RecordScan(ctx context.Context, at time.Time, candidates []scanner.Candidate) error
}

// Publisher announces every watchlist.
type Publisher interface {
	Publish(ctx context.Context, w publish.Watchlist) error
}

// Config wires the session components. Journal, Publisher and Metrics are optional.
type Config struct {
	Store        *market.Store
	Ingestor     *ingest.Ingestor
	Scanner      *scanner.Scanner
	Risk         *risk.Controller
	Evaluator    *risk.Evaluator
	Journal      Journal
	Publisher    Publisher
	Metrics      *obs.Metrics
	Window       Window
	ScanInterval time.Duration
}

// Validate checks if the required components are set.
func (c Config) Validate() error {
	if c.Store == nil || c.Ingestor == nil || c.Scanner == nil || c.Risk == nil {
		return exception.ErrNilInstance
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.ScanInterval <= 0 {
		c.ScanInterval = defaultScanInterval
	}
	if c.Evaluator == nil {
		c.Evaluator = risk.NewEvaluator()
	}
	return c
}

// Engine owns the session lifecycle: ingestion, periodic scans and the risk halt.
type Engine struct {
	cfg Config
	now func() time.Time

	mu     sync.RWMutex
	latest publish.Watchlist
	ingest *ingest.Handle
}

// New creates an engine.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		latest: publish.NewWatchlist(time.Time{}, nil),
	}, nil
}

// Run starts a session and blocks until ctx is done or ingestion ends.
// It returns the error that ended ingestion, nil on a requested stop or a drained feed.
func (e *Engine) Run(ctx context.Context) error {
	e.cfg.Risk.Reset()
	e.cfg.Evaluator.Reset()
	e.cfg.Metrics.SetHalted(false)

	handle := e.cfg.Ingestor.Start(ctx)
	e.mu.Lock()
	e.ingest = handle
	e.mu.Unlock()

	logs.Infof("session started, scan every %s, window: %s, criteria: %+v", e.cfg.ScanInterval, e.cfg.Window, e.cfg.Scanner.Criteria())

	ticker := time.NewTicker(e.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := handle.Stop(); err != nil {
				logs.Warnf("ingestor stopped with error, err: %+v", err)
			}
			logs.Info("session stopped")
			return nil
		case <-handle.Done():
			if ctx.Err() != nil {
				logs.Info("session stopped")
				return nil
			}
			if err := handle.Err(); err != nil {
				logs.Errorf("ingestion ended, periodic scans stopped, err: %+v", err)
				return err
			}
			logs.Info("feed drained, running final scan")
			e.ScanNow(ctx)
			return nil
		case <-ticker.C:
			if !e.cfg.Window.Contains(e.now()) {
				continue
			}
			e.ScanNow(ctx)
		}
	}
}

// ScanNow scans regardless of the trading window, then publishes and journals the result.
func (e *Engine) ScanNow(ctx context.Context) []scanner.Candidate {
	candidates := e.cfg.Scanner.Candidates()
	at := e.now()
	watchlist := publish.NewWatchlist(at, candidates)

	e.mu.Lock()
	e.latest = watchlist
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()
	if e.cfg.Publisher != nil {
		if err := e.cfg.Publisher.Publish(ctx, watchlist); err != nil {
			logs.Warnf("publish watchlist, err: %+v", err)
		}
	}
	if e.cfg.Journal != nil {
		if err := e.cfg.Journal.RecordScan(ctx, at, candidates); err != nil {
			logs.Warnf("journal scan, err: %+v", err)
		}
	}
	return candidates
}

// Latest returns the watchlist of the last scan.
func (e *Engine) Latest() publish.Watchlist {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latest
}

// RegisterTrade feeds a closed trade result to the risk controller and the evaluator.
// Non-finite results are ignored.
func (e *Engine) RegisterTrade(ctx context.Context, pnl float64) risk.Status {
	if math.IsNaN(pnl) || math.IsInf(pnl, 0) {
		logs.Warnf("ignore non-finite trade result %v", pnl)
		return e.cfg.Risk.Snapshot()
	}

	before := e.cfg.Risk.State()
	after := e.cfg.Risk.RegisterTrade(pnl)
	e.cfg.Evaluator.RecordTrade(pnl)

	e.cfg.Metrics.IncTrade(risk.OutcomeOf(pnl))
	e.cfg.Metrics.SetHalted(after == risk.StateHalted)

	status := e.cfg.Risk.Snapshot()
	if before != risk.StateHalted && after == risk.StateHalted {
		logs.Warnf("trading halted, reason: %s, cumulative loss: %.4f, consecutive losses: %d",
			status.Reason, status.CumulativeLoss, status.ConsecutiveLosses)
	}

	if e.cfg.Journal != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
		defer cancel()
		if err := e.cfg.Journal.RecordTrade(ctx, pnl, status); err != nil {
			logs.Warnf("journal trade, err: %+v", err)
		}
	}
	return status
}

// Risk returns the risk status.
func (e *Engine) Risk() risk.Status {
	return e.cfg.Risk.Snapshot()
}

// Report returns the performance statistics of the session.
func (e *Engine) Report() risk.Report {
	return e.cfg.Evaluator.Report()
}

// Symbol returns the state of one symbol.
func (e *Engine) Symbol(symbol string) (market.SymbolState, bool) {
	return e.cfg.Store.Get(market.NormalizeSymbol(symbol))
}

// Tracked returns the number of symbols in the store.
func (e *Engine) Tracked() int {
	return e.cfg.Store.Len()
}

// IngestStats returns the ingestion counters.
func (e *Engine) IngestStats() ingest.Stats {
	return e.cfg.Ingestor.Stats()
}

// Ingesting reports whether the ingestor is running.
func (e *Engine) Ingesting() bool {
	e.mu.RLock()
	handle := e.ingest
	e.mu.RUnlock()
	if handle == nil {
		return false
	}
	select {
	case <-handle.Done():
		return false
	default:
		return true
	}
}
