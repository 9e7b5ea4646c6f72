// Package monarch is the façade binding every engine component behind a
// single instance (spec.md §4.10): collections, the container keyspace
// (including vector spaces and property graphs), full-text, the change
// stream and durability, grouped behind
// addCollection/dropCollection/listCollections/getStats/healthCheck and a
// single authoritative save()/load() pair.
package monarch

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/cuemby/monarch/internal/adapter"
	"github.com/cuemby/monarch/internal/changestream"
	"github.com/cuemby/monarch/internal/collection"
	"github.com/cuemby/monarch/internal/config"
	"github.com/cuemby/monarch/internal/container"
	"github.com/cuemby/monarch/internal/durability"
	"github.com/cuemby/monarch/internal/fulltext"
	"github.com/cuemby/monarch/internal/index"
	"github.com/cuemby/monarch/internal/monerr"
	"github.com/cuemby/monarch/internal/record"
	"github.com/cuemby/monarch/internal/stats"
)

const changeStreamQueueSize = 1024

// Database is one self-contained engine instance. All state it owns —
// collections, containers, indexes, subscriber registries — belongs to
// this instance; there is no process-global singleton (spec.md §9 "Global
// state").
type Database struct {
	mu sync.RWMutex

	cfg config.Config
	log zerolog.Logger

	collections map[string]*collection.Collection
	containers  *container.Store
	fulltext    *fulltext.Index
	bus         *changestream.Bus

	durability *durability.Manager // nil when running without WAL durability
	stats      *stats.Registry
	health     *stats.HealthChecker

	nowFn func() time.Time
}

// Options configures Open.
type Options struct {
	Config config.Config
	Log    zerolog.Logger

	// WALDir, when non-empty, enables WAL-backed durability: the database
	// recovers from any existing journal/checkpoint at open time and
	// journals every mutation going forward. When empty the instance runs
	// purely in memory; callers that want persistence use Save/Load with
	// an adapter.Adapter instead (spec.md §4.10 "single-blob persistence").
	WALDir string
	// Version is reported by HealthCheck.
	Version string
}

// Open constructs a Database, recovering from any existing WAL/checkpoint
// state under opts.WALDir.
func Open(opts Options) (*Database, error) {
	log := opts.Log
	db := &Database{
		cfg:         opts.Config,
		log:         log,
		collections: make(map[string]*collection.Collection),
		containers:  container.New(log),
		fulltext:    fulltext.NewIndex(),
		bus:         changestream.NewBus(changeStreamQueueSize, log),
		stats:       stats.NewRegistry(),
		health:      stats.NewHealthChecker(opts.Version, []string{"wal", "checkpoint"}, time.Now),
		nowFn:       time.Now,
	}

	if opts.WALDir != "" {
		mgr, err := durability.Open(durability.Options{
			WALPath:         filepath.Join(opts.WALDir, "wal.log"),
			CheckpointPath:  filepath.Join(opts.WALDir, "checkpoints.db"),
			ArchivePath:     filepath.Join(opts.WALDir, "archive.jsonl"),
			SyncLevel:       syncLevelOf(opts.Config.SyncLevel),
			KeepCheckpoints: 10,
		}, log)
		if err != nil {
			return nil, err
		}
		db.durability = mgr

		applied, err := mgr.Recover(func(name string) durability.Applier {
			return db.collectionLocked(name)
		})
		if err != nil {
			mgr.Close()
			return nil, err
		}
		db.health.RegisterComponent("wal", true, "recovered")
		db.health.RegisterComponent("checkpoint", true, "recovered")
		log.Info().Int("applied", applied).Msg("durability recovery complete")
	} else {
		db.health.RegisterComponent("wal", true, "disabled: in-memory mode")
		db.health.RegisterComponent("checkpoint", true, "disabled: in-memory mode")
	}

	return db, nil
}

func syncLevelOf(l config.SyncLevel) durability.SyncLevel {
	switch l {
	case config.SyncLow:
		return durability.SyncLow
	case config.SyncHigh:
		return durability.SyncHigh
	case config.SyncMaximum:
		return durability.SyncMaximum
	default:
		return durability.SyncMedium
	}
}

// collectionLocked returns (creating if absent) the named collection,
// wired to this instance's bus and WAL writer. Used both by recovery's
// CollectionFactory and by the public Collection accessor.
func (db *Database) collectionLocked(name string) *collection.Collection {
	db.mu.Lock()
	defer db.mu.Unlock()
	if c, ok := db.collections[name]; ok {
		return c
	}
	var wal collection.WALWriter
	if db.durability != nil {
		wal = db.durability
	}
	c := collection.New(name, db.bus, wal, db.log)
	db.collections[name] = c
	return c
}

// AddCollection creates a new, empty collection, failing with a conflict
// error if one by that name already exists.
func (db *Database) AddCollection(name string) (*collection.Collection, error) {
	db.mu.Lock()
	if _, exists := db.collections[name]; exists {
		db.mu.Unlock()
		return nil, monerr.Conflict("collection %q already exists", name)
	}
	var wal collection.WALWriter
	if db.durability != nil {
		wal = db.durability
	}
	c := collection.New(name, db.bus, wal, db.log)
	db.collections[name] = c
	db.mu.Unlock()

	if db.durability != nil {
		if err := db.durability.Append("createCollection", name, nil); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// DropCollection removes a collection and releases its in-memory state.
func (db *Database) DropCollection(name string) error {
	db.mu.Lock()
	if _, exists := db.collections[name]; !exists {
		db.mu.Unlock()
		return monerr.NotFound("collection %q does not exist", name)
	}
	delete(db.collections, name)
	db.mu.Unlock()

	if db.durability != nil {
		return db.durability.Append("dropCollection", name, nil)
	}
	return nil
}

// Collection returns an existing collection, or false if none by that name
// exists.
func (db *Database) Collection(name string) (*collection.Collection, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.collections[name]
	return c, ok
}

// ListCollections returns every collection name, sorted.
func (db *Database) ListCollections() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	names := make([]string, 0, len(db.collections))
	for name := range db.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Containers exposes the container store: lists, sets, hashes, sorted
// sets, streams, geospatial indexes, time series, vector spaces and
// property graphs, all addressed by container key (spec.md §4.5).
func (db *Database) Containers() *container.Store { return db.containers }

// FullText exposes the TF-IDF full-text index (spec.md §4.6).
func (db *Database) FullText() *fulltext.Index { return db.fulltext }

// ChangeStream exposes the change-event bus (spec.md §4.9).
func (db *Database) ChangeStream() *changestream.Bus { return db.bus }

// Stats is a point-in-time snapshot of engine-wide counters, also pushed
// into the Prometheus registry returned by Registry().
type Stats struct {
	Collections   map[string]CollectionStats `json:"collections"`
	WALEntries    int64                      `json:"walEntries"`
	CheckpointAge time.Duration              `json:"checkpointAge"`
	StreamBacklog int                        `json:"streamBacklog"`
}

// CollectionStats reports per-collection counters.
type CollectionStats struct {
	Records int `json:"records"`
	Indexes int `json:"indexes"`
}

// GetStats gathers and reports the current engine-wide statistics,
// updating the Prometheus registry as a side effect (spec.md §4.10
// "getStats").
func (db *Database) GetStats() Stats {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := Stats{Collections: make(map[string]CollectionStats, len(db.collections))}
	for name, c := range db.collections {
		n := c.Len()
		idx := len(c.Indexes())
		out.Collections[name] = CollectionStats{Records: n, Indexes: idx}
		db.stats.SetRecordCount(name, n)
		db.stats.SetIndexCount(name, idx)
	}

	if db.durability != nil {
		out.WALEntries = db.durability.WALPosition()
		db.stats.SetWALEntries(out.WALEntries)
		if cp, ok, err := db.durability.LatestCheckpoint(); err == nil && ok {
			out.CheckpointAge = db.nowFn().Sub(time.UnixMilli(cp.Timestamp))
			db.stats.SetCheckpointAge(out.CheckpointAge)
		}
	}
	out.StreamBacklog = db.bus.SubscriberCount()
	db.stats.SetStreamBacklog(out.StreamBacklog)
	return out
}

// Registry exposes the underlying Prometheus registry wrapper, whose
// Handler() method serves the metrics endpoint.
func (db *Database) Registry() *stats.Registry { return db.stats }

// HealthCheck reports overall and per-component health (spec.md §4.10
// "healthCheck").
func (db *Database) HealthCheck() stats.HealthStatus {
	return db.health.Health()
}

// Health exposes the health checker for readiness/liveness wiring.
func (db *Database) Health() *stats.HealthChecker { return db.health }

// Snapshot takes a new durability checkpoint of every collection's current
// state. Only meaningful when WAL durability is enabled.
func (db *Database) Snapshot() (durability.CheckpointMeta, error) {
	if db.durability == nil {
		return durability.CheckpointMeta{}, monerr.Validation("database is not running with WAL durability enabled")
	}
	db.mu.RLock()
	appliers := make(map[string]durability.Applier, len(db.collections))
	for name, c := range db.collections {
		appliers[name] = c
	}
	db.mu.RUnlock()
	return db.durability.Snapshot(appliers)
}

// Close releases the durability manager and closes the change bus.
func (db *Database) Close() error {
	db.bus.Close()
	if db.durability != nil {
		return db.durability.Close()
	}
	return nil
}

// ---- single-blob persistence (spec.md §6 "Snapshot format") ----

type snapshotMetadata struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}

type indexDef struct {
	Name       string   `json:"name"`
	Fields     []string `json:"fields"`
	Unique     bool     `json:"unique"`
	Sparse     bool     `json:"sparse"`
	Text       bool     `json:"text"`
	TTLSeconds int64    `json:"ttlSeconds"`
}

type collectionBlob struct {
	Records   []record.Record `json:"records"`
	IndexDefs []indexDef      `json:"indexDefs"`
}

type snapshotBlob struct {
	Metadata    snapshotMetadata          `json:"metadata"`
	Collections map[string]collectionBlob `json:"collections"`
	Containers  map[string]any            `json:"containers"`
}

// Save serialises every collection's records and index definitions plus
// the full container store into a single blob and hands it to ad (spec.md
// §4.10, §6 "Snapshot format"). This is the single-blob persistence mode,
// an alternative to continuous WAL journalling.
func (db *Database) Save(ctx context.Context, ad adapter.Adapter) error {
	db.mu.RLock()
	blob := snapshotBlob{
		Metadata: snapshotMetadata{
			ID:        newSnapshotID(db.nowFn),
			Timestamp: db.nowFn().UnixMilli(),
		},
		Collections: make(map[string]collectionBlob, len(db.collections)),
		Containers:  db.containers.Export(),
	}
	for name, c := range db.collections {
		recs := c.Snapshot()
		list := make([]record.Record, 0, len(recs))
		for _, r := range recs {
			list = append(list, r)
		}
		defs := make([]indexDef, 0, len(c.Indexes()))
		for _, ix := range c.Indexes() {
			defs = append(defs, indexDef{
				Name: ix.Name, Fields: ix.Fields,
				Unique: ix.Options.Unique, Sparse: ix.Options.Sparse,
				Text: ix.Options.Text, TTLSeconds: ix.Options.TTLSeconds,
			})
		}
		blob.Collections[name] = collectionBlob{Records: list, IndexDefs: defs}
	}
	db.mu.RUnlock()

	data, err := json.Marshal(blob)
	if err != nil {
		return monerr.Validation("marshal snapshot: %v", err)
	}
	return ad.Save(ctx, data)
}

// Load replaces this instance's collections with those encoded in ad's
// blob and imports the blob's container keys over the current ones;
// container keys absent from the blob are kept. An empty blob (no prior
// save) leaves the instance unchanged.
func (db *Database) Load(ctx context.Context, ad adapter.Adapter) error {
	data, err := ad.Load(ctx)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	var blob snapshotBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return monerr.Integrity("parse snapshot blob: %v", err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	db.collections = make(map[string]*collection.Collection, len(blob.Collections))
	for name, cb := range blob.Collections {
		var wal collection.WALWriter
		if db.durability != nil {
			wal = db.durability
		}
		c := collection.New(name, db.bus, wal, db.log)
		for _, r := range cb.Records {
			if err := c.ApplyReplayedInsert(record.CloneRecord(r)); err != nil {
				db.log.Warn().Err(err).Str("collection", name).Msg("skipping record that failed to apply on load")
			}
		}
		for _, d := range cb.IndexDefs {
			if _, err := c.CreateIndex(d.Name, d.Fields, index.Options{
				Unique: d.Unique, Sparse: d.Sparse, Text: d.Text, TTLSeconds: d.TTLSeconds,
			}); err != nil {
				db.log.Warn().Err(err).Str("collection", name).Str("index", d.Name).Msg("skipping index that failed to rebuild on load")
			}
		}
		db.collections[name] = c
	}
	db.containers.Import(blob.Containers)
	return nil
}

func newSnapshotID(nowFn func() time.Time) string {
	return "snap_" + time.UnixMilli(nowFn().UnixMilli()).UTC().Format("20060102T150405.000000000")
}
