package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	first := time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	require.NoError(t, store.Save(ctx, map[string]time.Time{
		"B09G9FPHY6": first,
		"B07XJ8C8F5": first,
	}))
	require.NoError(t, store.Save(ctx, map[string]time.Time{
		"B09G9FPHY6": second,
		"B0C1H26C46": second,
	}))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
	assert.True(t, loaded["B09G9FPHY6"].Equal(second))
	assert.NotContains(t, loaded, "B07XJ8C8F5", "entries dropped from the snapshot are deleted")

	require.NoError(t, store.Save(ctx, map[string]time.Time{}))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
