package monitor

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRegistryMissingFileIsEmpty(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join(t.TempDir(), "registry.json"))
	require.NoError(t, err)
	assert.Empty(t, reg.Entries)
}

func TestRegistryEnableDisableRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	reg, err := LoadRegistry(path)
	require.NoError(t, err)

	entry := reg.Enable("fa", "0xABC", 12)
	assert.True(t, entry.Enabled)
	assert.Equal(t, 12, entry.CadenceHours)
	assert.Equal(t, "0xabc", entry.Target)
	require.NoError(t, reg.Save())

	reloaded, err := LoadRegistry(path)
	require.NoError(t, err)
	require.Len(t, reloaded.Entries, 1)

	assert.True(t, reloaded.Disable("fa", "0xabc"))
	assert.False(t, reloaded.Disable("fa", "0xnope"))

	// Re-enabling keeps the original added timestamp.
	added := entry.AddedUTC
	again := reg.Enable("fa", "0xabc", 6)
	assert.Equal(t, added, again.AddedUTC)
	assert.Equal(t, 6, again.CadenceHours)
}

func TestRegistryDueHonorsCadence(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join(t.TempDir(), "registry.json"))
	require.NoError(t, err)

	now := time.Now().UTC()
	fresh := reg.Enable("fa", "0xa1", 24)
	reg.Touch(fresh, now.Add(-1*time.Hour), "")

	stale := reg.Enable("fa", "0xa2", 24)
	reg.Touch(stale, now.Add(-25*time.Hour), "scan-1")

	never := reg.Enable("fa", "0xa3", 24)
	_ = never

	disabled := reg.Enable("fa", "0xa4", 24)
	reg.Disable("fa", "0xa4")
	_ = disabled

	due := reg.Due(now)
	require.Len(t, due, 2)
	assert.Equal(t, "0xa2", due[0].Target)
	assert.Equal(t, "0xa3", due[1].Target)
	assert.Equal(t, "scan-1", stale.LastScanID)
}

func TestRegistryDefaultCadence(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join(t.TempDir(), "registry.json"))
	require.NoError(t, err)
	entry := reg.Enable("coin", "0xabc::moon::MOON", 0)
	assert.Equal(t, 24, entry.CadenceHours)
}
