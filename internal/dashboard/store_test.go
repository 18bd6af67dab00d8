package dashboard

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Ilia01/b4dash/internal/config"
)

func TestStoreSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "dashboard.json")
	store := NewStore(path)

	snapshot, err := NewFetcher(&fakeTracker{}, &fakeWiki{}, config.DefaultSettings(), WithClock(fixedClock)).Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.Save(snapshot))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "\n  \"updated\": \"2025-12-18T12:00:00Z\"")

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, snapshot.Project, loaded.Project)
	require.Equal(t, snapshot.SprintPlanning, loaded.SprintPlanning)
	require.Len(t, loaded.Releases.Firmware, 11)
}

func TestStoreSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.json")
	store := NewStore(path)

	require.NoError(t, store.Save(&Snapshot{Updated: "first"}))
	require.NoError(t, store.Save(&Snapshot{Updated: "second"}))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "second", loaded.Updated)
}

func TestStoreLoadMissing(t *testing.T) {
	_, err := NewStore(filepath.Join(t.TempDir(), "missing.json")).Load()
	require.ErrorIs(t, err, ErrSnapshotNotFound)
}
