// Package ledger remembers which identifiers were announced recently.
package ledger

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"DealsScanner/internal/clock"
	"DealsScanner/internal/ports"
)

// DefaultRetention is how long an announcement suppresses a repeat.
const DefaultRetention = 7 * 24 * time.Hour

// Entry is one announced identifier.
type Entry struct {
	ID          string
	AnnouncedAt time.Time
}

// Ledger is the in-memory view of the announcement store, written through on every change.
type Ledger struct {
	store     ports.LedgerStore
	retention time.Duration
	clk       clock.Clock
	logger    *slog.Logger

	mu      sync.RWMutex
	entries map[string]time.Time
}

var _ ports.Announcer = (*Ledger)(nil)

// New wires a ledger; call Load before use.
func New(store ports.LedgerStore, retention time.Duration, clk clock.Clock, logger *slog.Logger) *Ledger {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Ledger{
		store:     store,
		retention: retention,
		clk:       clk,
		logger:    logger,
		entries:   map[string]time.Time{},
	}
}

// Load merges persisted entries into memory and drops everything older than the retention window.
// Unreadable storage is logged and treated as empty.
func (l *Ledger) Load(ctx context.Context) map[string]time.Time {
	persisted, err := l.store.Load(ctx)
	if err != nil {
		l.warn("ledger store unreadable, starting empty", "error", err)
		persisted = nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for id, at := range persisted {
		if current, ok := l.entries[id]; !ok || at.After(current) {
			l.entries[id] = at
		}
	}
	purged := l.purgeLocked()
	l.debug("ledger loaded", "entries", len(l.entries), "purged", purged)

	return maps.Clone(l.entries)
}

// IsAnnounced reports whether id is present in the loaded mapping.
func (l *Ledger) IsAnnounced(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[id]
	return ok
}

// FilterNew keeps the identifiers that were not announced, preserving order.
func (l *Ledger) FilterNew(ids []string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := l.entries[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// MarkAnnounced stamps id with the current time and persists the full mapping immediately.
// The in-memory entry is kept even if persisting fails, so the run does not repeat itself.
func (l *Ledger) MarkAnnounced(ctx context.Context, id string) error {
	l.mu.Lock()
	l.entries[id] = l.clk.Now().UTC()
	snapshot := maps.Clone(l.entries)
	l.mu.Unlock()

	if err := l.store.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("persist ledger after %s: %w", id, err)
	}
	return nil
}

// Purge drops expired entries and persists the result.
func (l *Ledger) Purge(ctx context.Context) (int, error) {
	l.mu.Lock()
	removed := l.purgeLocked()
	snapshot := maps.Clone(l.entries)
	l.mu.Unlock()

	if err := l.store.Save(ctx, snapshot); err != nil {
		return removed, fmt.Errorf("persist purged ledger: %w", err)
	}
	return removed, nil
}

// Entries lists the mapping sorted from newest to oldest.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, 0, len(l.entries))
	for id, at := range l.entries {
		out = append(out, Entry{ID: id, AnnouncedAt: at})
	}
	slices.SortFunc(out, func(a, b Entry) int {
		if c := b.AnnouncedAt.Compare(a.AnnouncedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Len is the number of live entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Retention is the configured window.
func (l *Ledger) Retention() time.Duration { return l.retention }

func (l *Ledger) purgeLocked() int {
	cutoff := l.clk.Now().Add(-l.retention)
	removed := 0
	for id, at := range l.entries {
		if !at.After(cutoff) {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}

func (l *Ledger) debug(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Debug(msg, args...)
	}
}

func (l *Ledger) warn(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Warn(msg, args...)
	}
}
