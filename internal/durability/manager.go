package durability

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/monarch/internal/monerr"
	"github.com/cuemby/monarch/internal/record"
)

// Applier is the subset of collection.Collection the durability manager
// needs to rebuild state during recovery. collection.Collection satisfies
// this interface already.
type Applier interface {
	Name() string
	Snapshot() map[string]record.Record
	ApplyReplayedInsert(r record.Record) error
	ApplyReplayedUpdate(id string, newRecord record.Record) error
	ApplyReplayedRemove(id string)
}

// CollectionFactory returns (creating if necessary) the Applier a recovered
// WAL/checkpoint entry should be applied to. Collection lifecycle belongs
// to the facade, not to durability, so the manager asks for collections by
// name instead of owning them.
type CollectionFactory func(name string) Applier

// Options configures a Manager (spec.md §6 environment / §4.8).
type Options struct {
	WALPath         string
	CheckpointPath  string
	ArchivePath     string // empty disables archival
	SyncLevel       SyncLevel
	KeepCheckpoints int
	ArchiveAge      time.Duration
}

// Manager is the facade's durability collaborator: it journals mutations,
// takes checkpoints, and recovers state after a restart (spec.md §4.8).
type Manager struct {
	wal         *WAL
	checkpoints *CheckpointStore
	archive     *ArchiveStore
	archiveAge  time.Duration
	nowFn       func() time.Time
	log         zerolog.Logger
}

// Open opens (or creates) the WAL, checkpoint store and optional archive
// described by opts.
func Open(opts Options, log zerolog.Logger) (*Manager, error) {
	wal, err := OpenWAL(opts.WALPath, opts.SyncLevel, log)
	if err != nil {
		return nil, err
	}
	cps, err := OpenCheckpointStore(opts.CheckpointPath, opts.KeepCheckpoints)
	if err != nil {
		wal.Close()
		return nil, err
	}
	var arc *ArchiveStore
	if opts.ArchivePath != "" {
		arc, err = OpenArchiveStore(opts.ArchivePath)
		if err != nil {
			wal.Close()
			cps.Close()
			return nil, err
		}
	}

	wal.SeedPosition(highestKnownPosition(wal, arc, cps))

	return &Manager{wal: wal, checkpoints: cps, archive: arc, archiveAge: opts.ArchiveAge, nowFn: time.Now, log: log}, nil
}

// highestKnownPosition scans whatever state already exists on disk (live
// WAL, archive, latest checkpoint) and returns the highest entry Position
// found, so a reopened WAL resumes numbering instead of restarting at 0 and
// colliding with positions a checkpoint already claims happened "after".
func highestKnownPosition(wal *WAL, arc *ArchiveStore, cps *CheckpointStore) int64 {
	var best int64
	if live, err := ReadEntries(wal.path); err == nil {
		best = maxEntryPosition(live, best)
	}
	if arc != nil {
		if archived, err := arc.Entries(); err == nil {
			best = maxEntryPosition(archived, best)
		}
	}
	if cp, ok, err := cps.Latest(); err == nil && ok && cp.Meta.WALPosition > best {
		best = cp.Meta.WALPosition
	}
	return best
}

func maxEntryPosition(entries []Entry, best int64) int64 {
	for _, e := range entries {
		if e.Position > best {
			best = e.Position
		}
	}
	return best
}

// Append journals one mutation. Manager implements collection.WALWriter.
func (m *Manager) Append(operation, collection string, data any) error {
	return m.wal.Append(operation, collection, data)
}

// Flush forces any buffered WAL entries to disk.
func (m *Manager) Flush() error { return m.wal.Flush() }

// WALPosition reports the WAL's monotonic position counter: the position of
// the latest appended entry. Archived entries still count toward it, so it
// is not the number of entries left in the live journal.
func (m *Manager) WALPosition() int64 { return m.wal.Position() }

// Close releases the WAL, checkpoint store and archive.
func (m *Manager) Close() error {
	var first error
	if err := m.wal.Close(); err != nil && first == nil {
		first = err
	}
	if err := m.checkpoints.Close(); err != nil && first == nil {
		first = err
	}
	if m.archive != nil {
		if err := m.archive.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Snapshot flushes the WAL, then serialises every collection's current
// records into a new checkpoint (spec.md §4.8 "Snapshot/checkpoint").
func (m *Manager) Snapshot(collections map[string]Applier) (CheckpointMeta, error) {
	if err := m.wal.Flush(); err != nil {
		return CheckpointMeta{}, err
	}
	meta := CheckpointMeta{
		ID:          uuid.New().String(),
		Timestamp:   m.nowFn().UnixMilli(),
		WALPosition: m.wal.Position(),
	}
	cp := Checkpoint{Meta: meta, Collections: make(map[string]map[string]record.Record, len(collections))}
	for name, c := range collections {
		cp.Collections[name] = c.Snapshot()
	}
	if err := m.checkpoints.Persist(cp); err != nil {
		return CheckpointMeta{}, err
	}
	return meta, nil
}

// Recover loads the latest checkpoint (if any) and replays every WAL entry
// whose position is greater than the checkpoint's recorded WALPosition,
// returning the number of records applied. Collections are created on
// demand via factory (spec.md §8 scenario 6). Position, not timestamp, is
// the replay boundary here: two entries can share a millisecond (the first
// post-snapshot write often lands in the same millisecond the snapshot was
// taken in), and only a monotonic sequence number distinguishes "before the
// checkpoint" from "after" in that case.
func (m *Manager) Recover(factory CollectionFactory) (int, error) {
	cp, haveCP, err := m.checkpoints.Latest()
	if err != nil {
		return 0, err
	}
	minPosition := int64(0)
	if haveCP {
		minPosition = cp.Meta.WALPosition
	}
	return m.recover(factory, cp, haveCP, func(e Entry) bool {
		return e.Position > minPosition
	})
}

// PointInTimeRecover recovers state as of timestamp t: the latest
// checkpoint at or before t, plus WAL entries timestamped at or before t
// (spec.md §4.8 "Point-in-time recovery"). Unlike Recover, this is
// necessarily timestamp-bounded — the caller asks for a wall-clock cutoff,
// not a journal position.
func (m *Manager) PointInTimeRecover(factory CollectionFactory, t time.Time) (int, error) {
	maxTS := t.UnixMilli()
	cp, haveCP, err := m.checkpoints.AtOrBefore(t)
	if err != nil {
		return 0, err
	}
	cpTimestamp := int64(0)
	if haveCP {
		cpTimestamp = cp.Meta.Timestamp
	}
	return m.recover(factory, cp, haveCP, func(e Entry) bool {
		return e.Timestamp > cpTimestamp && e.Timestamp <= maxTS
	})
}

// recover replays cp's records (if any) followed by every WAL/archive entry
// include accepts, in ascending position order.
func (m *Manager) recover(factory CollectionFactory, cp Checkpoint, haveCP bool, include func(Entry) bool) (int, error) {
	cols := make(map[string]Applier)
	getCol := func(name string) Applier {
		if c, ok := cols[name]; ok {
			return c
		}
		c := factory(name)
		cols[name] = c
		return c
	}

	applied := 0
	if haveCP {
		for name, recs := range cp.Collections {
			c := getCol(name)
			ids := make([]string, 0, len(recs))
			for id := range recs {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				if err := c.ApplyReplayedInsert(record.CloneRecord(recs[id])); err != nil {
					m.log.Warn().Err(err).Str("collection", name).Str("id", id).Msg("skipping checkpoint record that failed to apply")
					continue
				}
				applied++
			}
		}
	}

	var entries []Entry
	if m.archive != nil {
		archived, err := m.archive.Entries()
		if err != nil {
			return applied, err
		}
		entries = append(entries, archived...)
	}
	live, err := ReadEntries(m.wal.path)
	if err != nil {
		return applied, err
	}
	entries = append(entries, live...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Position < entries[j].Position })

	for _, e := range entries {
		if !include(e) {
			continue
		}
		if !verifyChecksum(e) {
			m.log.Warn().Str("id", e.ID).Str("operation", e.Operation).Msg("wal checksum mismatch, entry skipped during recovery")
			continue
		}
		if e.Collection == "" {
			continue
		}
		if err := applyEntry(getCol(e.Collection), e); err != nil {
			m.log.Warn().Err(err).Str("id", e.ID).Msg("failed to apply wal entry during recovery")
			continue
		}
		applied++
	}
	return applied, nil
}

func applyEntry(c Applier, e Entry) error {
	switch e.Operation {
	case "insert":
		r, err := recordFromData(e.Data)
		if err != nil {
			return err
		}
		return c.ApplyReplayedInsert(r)
	case "update":
		m, ok := e.Data.(map[string]any)
		if !ok {
			return monerr.Integrity("malformed update entry %s", e.ID)
		}
		id, _ := m["id"].(string)
		r, err := recordFromData(m["record"])
		if err != nil {
			return err
		}
		return c.ApplyReplayedUpdate(id, r)
	case "remove":
		m, ok := e.Data.(map[string]any)
		if !ok {
			return monerr.Integrity("malformed remove entry %s", e.ID)
		}
		id, _ := m["id"].(string)
		c.ApplyReplayedRemove(id)
		return nil
	default:
		// createCollection/dropCollection/createIndex/dropIndex/containerOp
		// are facade-level operations, not per-collection record mutations.
		return nil
	}
}

func recordFromData(data any) (record.Record, error) {
	m, ok := data.(map[string]any)
	if !ok {
		return nil, monerr.Integrity("wal entry data is not a record object")
	}
	return record.Record(m), nil
}

// Archive moves every WAL entry older than before into the archive store
// and truncates the live journal to what remains (spec.md §4.8
// "Archival"). It is a no-op, returning an error, if no archive path was
// configured.
func (m *Manager) Archive(before time.Time) (int, error) {
	if m.archive == nil {
		return 0, monerr.Validation("archival is not configured for this instance")
	}
	entries, err := ReadEntries(m.wal.path)
	if err != nil {
		return 0, err
	}

	cutoff := before.UnixMilli()
	var toArchive, toKeep []Entry
	for _, e := range entries {
		if e.Timestamp < cutoff {
			toArchive = append(toArchive, e)
		} else {
			toKeep = append(toKeep, e)
		}
	}
	if len(toArchive) == 0 {
		return 0, nil
	}
	if err := m.archive.Append(toArchive); err != nil {
		return 0, err
	}
	if err := m.wal.rewrite(toKeep); err != nil {
		return 0, err
	}
	return len(toArchive), nil
}

// LatestCheckpoint reports the most recent checkpoint's metadata, used by
// stats/health reporting.
func (m *Manager) LatestCheckpoint() (CheckpointMeta, bool, error) {
	cp, ok, err := m.checkpoints.Latest()
	return cp.Meta, ok, err
}
