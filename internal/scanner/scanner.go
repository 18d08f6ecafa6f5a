package scanner

import (
	"sort"
	"time"

	"gapscan/internal/market"
	"gapscan/internal/obs"

	"github.com/yanun0323/logs"
)

// Snapshotter is the read side of the symbol store.
type Snapshotter interface {
	Snapshot() []market.SymbolState
}

// Candidate is one ranked entry of a scan.
type Candidate struct {
	Rank           int     `json:"rank"`
	Symbol         string  `json:"symbol"`
	Price          float64 `json:"price"`
	GapRatio       float64 `json:"gapRatio"`
	RelativeVolume float64 `json:"relativeVolume"`
	FloatShares    float64 `json:"floatShares"`
	HasNews        bool    `json:"hasNews"`
	IsRunner       bool    `json:"isRunner"`
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithMetrics attaches metrics to the scanner.
func WithMetrics(m *obs.Metrics) Option {
	return func(s *Scanner) {
		s.metrics = m
	}
}

// WithQuiet disables the per-candidate log lines.
func WithQuiet() Option {
	return func(s *Scanner) {
		s.quiet = true
	}
}

// Scanner ranks the symbols of a store that pass the criteria.
type Scanner struct {
	store    Snapshotter
	criteria Criteria
	metrics  *obs.Metrics
	quiet    bool
}

// New creates a scanner over the store.
func New(store Snapshotter, criteria Criteria, opts ...Option) *Scanner {
	s := &Scanner{store: store, criteria: criteria}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Criteria returns the thresholds in use.
func (s *Scanner) Criteria() Criteria {
	return s.criteria
}

// Scan returns the qualifying symbols, highest gap ratio first.
func (s *Scanner) Scan() []string {
	candidates := s.Candidates()
	symbols := make([]string, len(candidates))
	for i, c := range candidates {
		symbols[i] = c.Symbol
	}
	return symbols
}

// Candidates runs a scan over a fresh snapshot. Ties in gap ratio are
// broken by symbol so that repeated scans of the same data agree.
func (s *Scanner) Candidates() []Candidate {
	start := time.Now()
	snapshot := s.store.Snapshot()

	candidates := make([]Candidate, 0)
	for _, state := range snapshot {
		if state.Volume <= 0 {
			continue
		}
		if reason := Evaluate(state, s.criteria); reason != ReasonNone {
			s.metrics.IncRejection(reason.String())
			continue
		}
		candidates = append(candidates, Candidate{
			Symbol:         state.Symbol,
			Price:          state.Price,
			GapRatio:       GapRatio(state),
			RelativeVolume: RelativeVolume(state),
			FloatShares:    state.FloatShares,
			HasNews:        state.HasNews,
			IsRunner:       state.IsRunner,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].GapRatio != candidates[j].GapRatio {
			return candidates[i].GapRatio > candidates[j].GapRatio
		}
		return candidates[i].Symbol < candidates[j].Symbol
	})
	for i := range candidates {
		candidates[i].Rank = i + 1
		if !s.quiet {
			c := candidates[i]
			logs.Infof("scan candidate #%d %s price: %.4f, gap: %.2f%%, rvol: %.2fx, news: %t, runner: %t",
				c.Rank, c.Symbol, c.Price, c.GapRatio*100, c.RelativeVolume, c.HasNews, c.IsRunner)
		}
	}

	elapsed := time.Since(start)
	s.metrics.ObserveScan(elapsed, len(snapshot), len(candidates))
	logs.Infof("scan done, tracked: %d, candidates: %d, took: %s", len(snapshot), len(candidates), elapsed)

	return candidates
}
