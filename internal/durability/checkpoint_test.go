package durability

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/monarch/internal/record"
)

func msTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func TestCheckpointPersistAndLoadLatest(t *testing.T) {
	store, err := OpenCheckpointStore(filepath.Join(t.TempDir(), "checkpoints.db"), 10)
	require.NoError(t, err)
	defer store.Close()

	cp := Checkpoint{
		Meta: CheckpointMeta{ID: "cp1", Timestamp: 1000, WALPosition: 5},
		Collections: map[string]map[string]record.Record{
			"users": {"a": {"_id": "a", "name": "ada"}},
		},
	}
	require.NoError(t, store.Persist(cp))

	loaded, ok, err := store.Latest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cp1", loaded.Meta.ID)
	assert.Equal(t, "ada", loaded.Collections["users"]["a"]["name"])
}

func TestCheckpointRetentionPrunesOldest(t *testing.T) {
	store, err := OpenCheckpointStore(filepath.Join(t.TempDir(), "checkpoints.db"), 2)
	require.NoError(t, err)
	defer store.Close()

	for i := 0; i < 5; i++ {
		cp := Checkpoint{Meta: CheckpointMeta{ID: string(rune('a' + i)), Timestamp: int64(i)}}
		require.NoError(t, store.Persist(cp))
	}

	var ids []string
	for i := 0; i < 5; i++ {
		cp, ok, err := store.AtOrBefore(msTime(int64(i)))
		require.NoError(t, err)
		if ok {
			ids = append(ids, cp.Meta.ID)
		}
	}
	// Only the 2 most recent checkpoints should still resolve.
	assert.LessOrEqual(t, len(uniqueStrings(ids)), 2)
}

func TestCheckpointAtOrBeforeFindsNearestPriorSnapshot(t *testing.T) {
	store, err := OpenCheckpointStore(filepath.Join(t.TempDir(), "checkpoints.db"), 10)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Persist(Checkpoint{Meta: CheckpointMeta{ID: "early", Timestamp: 100}}))
	require.NoError(t, store.Persist(Checkpoint{Meta: CheckpointMeta{ID: "late", Timestamp: 200}}))

	cp, ok, err := store.AtOrBefore(msTime(150))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "early", cp.Meta.ID)
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
