package market

import (
	"sort"
	"sync"
	"time"
)

// Store keeps the latest SymbolState per symbol.
//
// Entries are stored by value and replaced whole under the write lock, so
// readers never observe a half-applied patch.
type Store struct {
	mu      sync.RWMutex
	symbols map[string]SymbolState
	now     func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		symbols: make(map[string]SymbolState),
		now:     time.Now,
	}
}

// Merge applies p to the entry of symbol, creating it first when absent,
// and returns the merged state.
func (s *Store) Merge(symbol string, p Patch) SymbolState {
	now := s.now().UTC()

	s.mu.Lock()
	current, ok := s.symbols[symbol]
	if !ok {
		current = NewSymbolState(symbol)
	}
	next := p.Apply(current)
	next.UpdatedAt = now
	s.symbols[symbol] = next
	s.mu.Unlock()

	return next
}

// Get returns the current state of a symbol.
func (s *Store) Get(symbol string) (SymbolState, bool) {
	s.mu.RLock()
	state, ok := s.symbols[symbol]
	s.mu.RUnlock()
	return state, ok
}

// Snapshot copies every entry, sorted by symbol.
func (s *Store) Snapshot() []SymbolState {
	s.mu.RLock()
	entries := make([]SymbolState, 0, len(s.symbols))
	for _, state := range s.symbols {
		entries = append(entries, state)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Symbol < entries[j].Symbol
	})
	return entries
}

// Len returns the number of tracked symbols.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.symbols)
}
