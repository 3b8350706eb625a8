package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DealsScanner/internal/clock"
	"DealsScanner/internal/infrastructure/storage"
)

var t0 = time.Date(2025, time.October, 1, 9, 0, 0, 0, time.UTC)

func TestLedgerRoundTripAcrossRetention(t *testing.T) {
	t.Parallel()

	store, err := storage.NewFileStore(filepath.Join(t.TempDir(), "sent.json"), nil)
	require.NoError(t, err)
	ctx := context.Background()
	fake := clock.NewFake(t0)

	first := New(store, DefaultRetention, fake, nil)
	first.Load(ctx)
	require.NoError(t, first.MarkAnnounced(ctx, "B09G9FPHY6"))

	fake.Advance(6 * 24 * time.Hour)
	within := New(store, DefaultRetention, fake, nil)
	within.Load(ctx)
	assert.True(t, within.IsAnnounced("B09G9FPHY6"))

	fake.Advance(2 * 24 * time.Hour)
	after := New(store, DefaultRetention, fake, nil)
	after.Load(ctx)
	assert.False(t, after.IsAnnounced("B09G9FPHY6"))
	assert.Zero(t, after.Len())
}

func TestLedgerFilterNewPreservesOrder(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore(map[string]time.Time{
		"B07XJ8C8F5": t0.Add(-time.Hour),
		"B0C1H26C46": t0.Add(-30 * 24 * time.Hour),
	})
	l := New(store, DefaultRetention, clock.NewFake(t0), nil)
	loaded := l.Load(context.Background())

	assert.Len(t, loaded, 1, "expired entry purged on load")

	ids := []string{"B0C1H26C46", "B07XJ8C8F5", "B09G9FPHY6", "B08N5WRWNW"}
	fresh := l.FilterNew(ids)
	assert.Equal(t, []string{"B0C1H26C46", "B09G9FPHY6", "B08N5WRWNW"}, fresh)

	for _, id := range fresh {
		_, present := loaded[id]
		assert.False(t, present, id)
	}
}

func TestLedgerMarkAnnouncedWritesThrough(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore(nil)
	fake := clock.NewFake(t0)
	l := New(store, DefaultRetention, fake, nil)
	l.Load(context.Background())

	require.NoError(t, l.MarkAnnounced(context.Background(), "B09G9FPHY6"))
	fake.Advance(time.Minute)
	require.NoError(t, l.MarkAnnounced(context.Background(), "B07XJ8C8F5"))

	assert.Equal(t, 2, store.Saves())
	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, t0, persisted["B09G9FPHY6"])
	assert.Equal(t, t0.Add(time.Minute), persisted["B07XJ8C8F5"])

	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "B07XJ8C8F5", entries[0].ID, "newest first")
}

type brokenStore struct{ saveErr error }

func (b brokenStore) Load(context.Context) (map[string]time.Time, error) {
	return nil, errors.New("corrupt")
}

func (b brokenStore) Save(context.Context, map[string]time.Time) error { return b.saveErr }

func TestLedgerToleratesUnreadableStore(t *testing.T) {
	t.Parallel()

	l := New(brokenStore{saveErr: errors.New("disk full")}, DefaultRetention, clock.NewFake(t0), nil)
	assert.Empty(t, l.Load(context.Background()))

	err := l.MarkAnnounced(context.Background(), "B09G9FPHY6")
	require.Error(t, err)
	assert.True(t, l.IsAnnounced("B09G9FPHY6"), "in-memory entry survives a failed write")
}

func TestLedgerLoadMergesKeepingNewest(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore(nil)
	fake := clock.NewFake(t0)
	l := New(store, DefaultRetention, fake, nil)
	l.Load(context.Background())
	require.NoError(t, l.MarkAnnounced(context.Background(), "B09G9FPHY6"))

	require.NoError(t, store.Save(context.Background(), map[string]time.Time{
		"B09G9FPHY6": t0.Add(-time.Hour),
		"B07XJ8C8F5": t0.Add(-time.Hour),
	}))
	merged := l.Load(context.Background())

	assert.Equal(t, t0, merged["B09G9FPHY6"])
	assert.Contains(t, merged, "B07XJ8C8F5")
}

func TestLedgerPurge(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore(nil)
	fake := clock.NewFake(t0)
	l := New(store, 24*time.Hour, fake, nil)
	l.Load(context.Background())
	require.NoError(t, l.MarkAnnounced(context.Background(), "B09G9FPHY6"))

	fake.Advance(25 * time.Hour)
	removed, err := l.Purge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, persisted)
}
