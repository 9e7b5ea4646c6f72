package durability

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/monarch/internal/collection"
	"github.com/cuemby/monarch/internal/index"
	"github.com/cuemby/monarch/internal/query"
	"github.com/cuemby/monarch/internal/record"
)

// registry is a tiny stand-in for the facade's collection lifecycle: it
// creates collections on demand and remembers them by name.
type registry struct {
	mu   sync.Mutex
	cols map[string]*collection.Collection
	wal  collection.WALWriter
}

func newRegistry(wal collection.WALWriter) *registry {
	return &registry{cols: make(map[string]*collection.Collection), wal: wal}
}

func (r *registry) get(name string) *collection.Collection {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.cols[name]; ok {
		return c
	}
	c := collection.New(name, nil, r.wal, zerolog.Nop())
	r.cols[name] = c
	return c
}

func (r *registry) factory(name string) Applier {
	return r.get(name)
}

func (r *registry) applierMap() map[string]Applier {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Applier, len(r.cols))
	for name, c := range r.cols {
		out[name] = c
	}
	return out
}

// TestRecoveryScenario mirrors spec.md §8 scenario 6: insert 100 documents,
// snapshot, insert 50 more, simulate a crash, restart and replay — the
// recovered collection must contain all 150 records and its unique index
// must still hold.
func TestRecoveryScenario(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		WALPath:         filepath.Join(dir, "wal.log"),
		CheckpointPath:  filepath.Join(dir, "checkpoints.db"),
		SyncLevel:       SyncHigh,
		KeepCheckpoints: 10,
	}

	mgr, err := Open(opts, zerolog.Nop())
	require.NoError(t, err)

	reg := newRegistry(mgr)
	users := reg.get("users")
	_, err = users.CreateIndex("by_email", []string{"email"}, index.Options{Unique: true})
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("u%03d", i)
		_, err := users.Insert(record.Record{record.IDField: id, "email": id + "@x"})
		require.NoError(t, err)
	}

	_, err = mgr.Snapshot(reg.applierMap())
	require.NoError(t, err)

	for i := 100; i < 150; i++ {
		id := fmt.Sprintf("u%03d", i)
		_, err := users.Insert(record.Record{record.IDField: id, "email": id + "@x"})
		require.NoError(t, err)
	}

	require.NoError(t, mgr.Close()) // simulate a crash: no graceful WAL drain beyond Close's own flush

	mgr2, err := Open(opts, zerolog.Nop())
	require.NoError(t, err)
	defer mgr2.Close()

	reg2 := newRegistry(mgr2)
	applied, err := mgr2.Recover(reg2.factory)
	require.NoError(t, err)
	assert.Equal(t, 150, applied)

	recovered := reg2.get("users")
	assert.Equal(t, 150, recovered.Count(query.Query{}))
	assert.Empty(t, recovered.CheckInvariants())
}

// TestRecoveryScenarioSameMillisecondAsSnapshot pins the clock so every
// write, the snapshot included, lands in the same millisecond. Position-
// based replay must still separate pre- and post-snapshot writes; a
// timestamp-based boundary would drop the first post-snapshot entry here.
func TestRecoveryScenarioSameMillisecondAsSnapshot(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		WALPath:         filepath.Join(dir, "wal.log"),
		CheckpointPath:  filepath.Join(dir, "checkpoints.db"),
		SyncLevel:       SyncHigh,
		KeepCheckpoints: 10,
	}

	mgr, err := Open(opts, zerolog.Nop())
	require.NoError(t, err)
	frozen := mgr.wal.nowFn()
	mgr.wal.nowFn = func() time.Time { return frozen }
	mgr.nowFn = func() time.Time { return frozen }

	reg := newRegistry(mgr)
	users := reg.get("users")
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("u%03d", i)
		_, err := users.Insert(record.Record{record.IDField: id, "email": id + "@x"})
		require.NoError(t, err)
	}

	_, err = mgr.Snapshot(reg.applierMap())
	require.NoError(t, err)

	for i := 100; i < 150; i++ {
		id := fmt.Sprintf("u%03d", i)
		_, err := users.Insert(record.Record{record.IDField: id, "email": id + "@x"})
		require.NoError(t, err)
	}

	require.NoError(t, mgr.Close())

	mgr2, err := Open(opts, zerolog.Nop())
	require.NoError(t, err)
	defer mgr2.Close()

	reg2 := newRegistry(mgr2)
	applied, err := mgr2.Recover(reg2.factory)
	require.NoError(t, err)
	assert.Equal(t, 150, applied)
	assert.Equal(t, 150, reg2.get("users").Count(query.Query{}))
}

func TestRecoverWithNoPriorStateIsEmpty(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		WALPath:        filepath.Join(dir, "wal.log"),
		CheckpointPath: filepath.Join(dir, "checkpoints.db"),
		SyncLevel:      SyncHigh,
	}
	mgr, err := Open(opts, zerolog.Nop())
	require.NoError(t, err)
	defer mgr.Close()

	reg := newRegistry(mgr)
	applied, err := mgr.Recover(reg.factory)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
}
