package storage

import (
	"context"
	"maps"
	"sync"
	"time"

	"DealsScanner/internal/ports"
)

// MemoryStore keeps the ledger in process memory only. Nothing survives a restart.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	saves   int
}

var _ ports.LedgerStore = (*MemoryStore)(nil)

// NewMemoryStore optionally seeds the store.
func NewMemoryStore(seed map[string]time.Time) *MemoryStore {
	entries := map[string]time.Time{}
	maps.Copy(entries, seed)
	return &MemoryStore{entries: entries}
}

// Load returns a copy of the stored entries.
func (s *MemoryStore) Load(_ context.Context) (map[string]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.entries), nil
}

// Save replaces the stored entries with a copy of the snapshot.
func (s *MemoryStore) Save(_ context.Context, entries map[string]time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = maps.Clone(entries)
	if s.entries == nil {
		s.entries = map[string]time.Time{}
	}
	s.saves++
	return nil
}

// Saves counts Save calls.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
