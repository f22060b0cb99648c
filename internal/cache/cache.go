package cache

import (
	"sync"

	"pricefeed/internal/quote"
)

// Store keeps the last validated price per symbol.
//
// Entries never expire on their own: during an outage a stale-but-valid
// price is still safer than nothing, and expiry policy belongs to the
// caller. Records are replaced whole, never mutated in place, and writes
// land in completion order — after a Put returns, a Get sees that record
// or a later one.
//
// The zero value is ready to use.
type Store struct {
	mu    sync.RWMutex
	items map[string]quote.PriceRecord // key: symbol
}

func New() *Store {
	return &Store{items: make(map[string]quote.PriceRecord)}
}

// Get returns the last known good record for symbol.
func (s *Store) Get(symbol string) (quote.PriceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[symbol]
	return rec, ok
}

// Put stores rec under rec.Symbol, replacing any previous record.
func (s *Store) Put(rec quote.PriceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items == nil {
		s.items = make(map[string]quote.PriceRecord)
	}
	s.items[rec.Symbol] = rec
}

// Len reports how many symbols currently have a record.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Clear drops every record. Mainly useful in tests.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]quote.PriceRecord)
}
