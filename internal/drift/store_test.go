package drift

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadMissingReturnsNil(t *testing.T) {
	store := NewSnapshotStore(t.TempDir())
	snap, err := store.Load("fa", "0xabc")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewSnapshotStore(t.TempDir())
	snap := mustSnapshot(t, baseKeys())

	require.NoError(t, store.Save(snap))

	loaded, err := store.Load("fa", "0xabc")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, snap.Fingerprint, loaded.Fingerprint)
	assert.Equal(t, snap.DriftKeys.Owner, loaded.DriftKeys.Owner)
	assert.Equal(t, snap.Identity, loaded.Identity)
}

func TestStorePathSanitizesTarget(t *testing.T) {
	store := NewSnapshotStore("snaps")
	path := store.Path("coin", "0xAbC::Moon_Coin::MOON")
	assert.Equal(t, filepath.Join("snaps", "coin_0xabc__moon_coin__moon.json"), path)
}

func TestStoreSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewSnapshotStore(dir)
	require.NoError(t, store.Save(mustSnapshot(t, baseKeys())))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fa_0xabc.json", entries[0].Name())
}

func TestReadJSONMalformedFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	var out map[string]any
	found, err := ReadJSON(path, &out)
	assert.False(t, found)
	assert.Error(t, err)
}
