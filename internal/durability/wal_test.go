package durability

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWALAppendAndReadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := OpenWAL(path, SyncHigh, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, w.Append("insert", "users", map[string]any{"_id": "a", "name": "ada"}))
	require.NoError(t, w.Append("remove", "users", map[string]any{"id": "a"}))
	require.NoError(t, w.Close())

	entries, err := ReadEntries(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "insert", entries[0].Operation)
	assert.Equal(t, "users", entries[0].Collection)
	assert.Equal(t, "remove", entries[1].Operation)
	assert.Equal(t, int64(1), entries[0].Position)
	assert.Equal(t, int64(2), entries[1].Position)
	for _, e := range entries {
		assert.True(t, verifyChecksum(e), "entry %s should have a valid checksum", e.ID)
	}
}

func TestWALSeedPositionOnlyAdvances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := OpenWAL(path, SyncHigh, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append("insert", "users", map[string]any{"_id": "a"}))
	assert.Equal(t, int64(1), w.Position())

	w.SeedPosition(0)
	assert.Equal(t, int64(1), w.Position(), "seeding with a lower value must not move the counter backwards")

	w.SeedPosition(100)
	assert.Equal(t, int64(100), w.Position())

	require.NoError(t, w.Append("insert", "users", map[string]any{"_id": "b"}))
	assert.Equal(t, int64(101), w.Position())
}

func TestWALRefusesConcurrentOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := OpenWAL(path, SyncLow, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	_, err = OpenWAL(path, SyncLow, zerolog.Nop())
	require.Error(t, err)
}

func TestWALMissingFileYieldsNoEntries(t *testing.T) {
	entries, err := ReadEntries(filepath.Join(t.TempDir(), "missing.log"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestVerifyChecksumRejectsTamperedEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := OpenWAL(path, SyncHigh, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, w.Append("insert", "users", map[string]any{"_id": "a"}))
	require.NoError(t, w.Close())

	entries, err := ReadEntries(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entries[0].Data = map[string]any{"_id": "tampered"}
	assert.False(t, verifyChecksum(entries[0]))
}
