// Package collection implements the collection store (spec.md §4.4): the
// authoritative record map for one collection, its secondary indexes, and
// its change-event emission.
package collection

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/monarch/internal/changestream"
	"github.com/cuemby/monarch/internal/index"
	"github.com/cuemby/monarch/internal/monerr"
	"github.com/cuemby/monarch/internal/planner"
	"github.com/cuemby/monarch/internal/query"
	"github.com/cuemby/monarch/internal/record"
)

// WALWriter is the durability hook a Collection journals through before
// applying a mutation (spec.md §3: "every write is journaled to the WAL
// before it is reflected in an in-memory structure observable to readers").
// A nil WALWriter (used in tests) skips journaling entirely.
type WALWriter interface {
	Append(operation, collection string, data any) error
}

// SortKey is one field of a Find's sort specification.
type SortKey struct {
	Field string
	Desc  bool
}

// FindOptions controls projection, sort, limit and skip for Find.
type FindOptions struct {
	Projection []string
	Sort       []SortKey
	Limit      int // 0 means unlimited
	Skip       int
}

// BulkInsertOptions controls batch size and deadline for BulkInsert.
type BulkInsertOptions struct {
	BatchSize int // 0 means a single batch
	Timeout   time.Duration
}

// Collection is the authoritative record store for one named collection.
type Collection struct {
	mu   sync.RWMutex
	name string

	records   map[string]record.Record
	indexes   *index.Registry
	matcher   *query.Matcher
	allocator *record.Allocator
	bus       *changestream.Bus
	wal       WALWriter
	log       zerolog.Logger
}

// New constructs an empty Collection. bus and wal may be nil.
func New(name string, bus *changestream.Bus, wal WALWriter, log zerolog.Logger) *Collection {
	return &Collection{
		name:      name,
		records:   make(map[string]record.Record),
		indexes:   index.NewRegistry(),
		matcher:   query.NewMatcher(log),
		allocator: record.NewAllocator(nil),
		bus:       bus,
		wal:       wal,
		log:       log,
	}
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.name }

// Len returns the current record count.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// CreateIndex builds a new secondary index over fields.
func (c *Collection) CreateIndex(name string, fields []string, opts index.Options) (*index.Index, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexes.Create(name, fields, opts, c.records)
}

// DropIndex removes a secondary index by name.
func (c *Collection) DropIndex(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexes.Drop(name)
}

// Indexes returns every index on this collection.
func (c *Collection) Indexes() []*index.Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexes.All()
}

// Insert journals, applies and publishes a single record. If r has no _id,
// one is allocated. Insert fails with a validation error if the id already
// exists.
func (c *Collection) Insert(r record.Record) (string, error) {
	ids, err := c.InsertMany([]record.Record{r})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// InsertMany inserts several records as independent units of work, each
// journaled and applied in turn; a failure partway through still leaves
// prior records committed.
func (c *Collection) InsertMany(records []record.Record) ([]string, error) {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		id, err := c.insertOne(r)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Collection) insertOne(r record.Record) (string, error) {
	r = record.CloneRecord(r)

	c.mu.Lock()
	id := r.ID()
	if id == "" {
		id = c.allocator.Next()
		r[record.IDField] = id
	} else if _, exists := c.records[id]; exists {
		c.mu.Unlock()
		return "", monerr.Validation("record id %s already exists", id).WithField(record.IDField)
	}

	if c.wal != nil {
		if err := c.wal.Append("insert", c.name, r); err != nil {
			c.mu.Unlock()
			return "", monerr.IO("wal append failed: %v", err).Wrap(err)
		}
	}

	if err := c.indexes.OnInsert(id, r); err != nil {
		c.mu.Unlock()
		return "", err
	}
	c.records[id] = r
	c.mu.Unlock()

	c.publish(changestream.Insert, record.CloneRecord(r), nil)
	return id, nil
}

// BulkInsert inserts records honoring an optional batch size and a
// deadline. On timeout it returns a partial-success result: every record
// already committed stays committed, and the caller learns the count/ids
// of what succeeded (spec.md §5 cancellation & timeouts).
func (c *Collection) BulkInsert(ctx context.Context, records []record.Record, opts BulkInsertOptions) ([]string, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = len(records)
		if batchSize == 0 {
			batchSize = 1
		}
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	ids := make([]string, 0, len(records))
	for start := 0; start < len(records); start += batchSize {
		select {
		case <-ctx.Done():
			return ids, monerr.Timeout("bulk insert exceeded its deadline after %d of %d records", len(ids), len(records))
		default:
		}
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		batchIDs, err := c.InsertMany(records[start:end])
		ids = append(ids, batchIDs...)
		if err != nil {
			return ids, err
		}
	}
	return ids, nil
}

// Update applies changes to every record matching q. If changes contains no
// update operators (keys prefixed with "$"), it replaces the record
// wholesale while preserving _id (spec.md §4.4).
func (c *Collection) Update(q query.Query, changes record.Record) (matched, modified int, err error) {
	c.mu.Lock()
	ids := c.matchLocked(q)
	c.mu.Unlock()

	for _, id := range ids {
		ok, applyErr := c.updateOne(id, changes)
		if applyErr != nil {
			return matched, modified, applyErr
		}
		matched++
		if ok {
			modified++
		}
	}
	return matched, modified, nil
}

func (c *Collection) updateOne(id string, changes record.Record) (bool, error) {
	c.mu.Lock()
	old, ok := c.records[id]
	if !ok {
		c.mu.Unlock()
		return false, nil
	}
	old = record.CloneRecord(old)
	newRecord, err := applyChanges(old, changes)
	if err != nil {
		c.mu.Unlock()
		return false, err
	}
	newRecord[record.IDField] = id

	if c.wal != nil {
		if err := c.wal.Append("update", c.name, map[string]any{"id": id, "record": newRecord}); err != nil {
			c.mu.Unlock()
			return false, monerr.IO("wal append failed: %v", err).Wrap(err)
		}
	}

	if err := c.indexes.OnUpdate(id, old, newRecord); err != nil {
		c.mu.Unlock()
		return false, err
	}
	c.records[id] = newRecord
	c.mu.Unlock()

	c.publish(changestream.Update, record.CloneRecord(newRecord), record.CloneRecord(old))
	return true, nil
}

// Remove deletes every record matching q, returning how many were removed.
func (c *Collection) Remove(q query.Query) (int, error) {
	c.mu.Lock()
	ids := c.matchLocked(q)
	c.mu.Unlock()

	removed := 0
	for _, id := range ids {
		ok, err := c.removeOne(id)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

func (c *Collection) removeOne(id string) (bool, error) {
	c.mu.Lock()
	old, ok := c.records[id]
	if !ok {
		c.mu.Unlock()
		return false, nil
	}

	if c.wal != nil {
		if err := c.wal.Append("remove", c.name, map[string]any{"id": id}); err != nil {
			c.mu.Unlock()
			return false, monerr.IO("wal append failed: %v", err).Wrap(err)
		}
	}

	c.indexes.OnRemove(id, old)
	delete(c.records, id)
	c.mu.Unlock()

	c.publish(changestream.Remove, record.CloneRecord(old), nil)
	return true, nil
}

// RemoveByID purges a single record by id without requiring a query scan,
// journalling and publishing the removal the same way Remove does.
func (c *Collection) RemoveByID(id string) (bool, error) {
	return c.removeOne(id)
}

func (c *Collection) publish(t changestream.ChangeType, doc, old record.Record) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(changestream.Event{
		Type:        t,
		Collection:  c.name,
		Document:    doc,
		OldDocument: old,
	})
}

// Find evaluates q against every record, applies projection/sort/limit/
// skip, and returns the resulting records. An empty query matches every
// record (spec.md §8 boundary behaviour).
func (c *Collection) Find(q query.Query, opts FindOptions) []record.Record {
	c.mu.RLock()
	ids := c.matchLocked(q)
	out := make([]record.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, record.CloneRecord(c.records[id]))
	}
	c.mu.RUnlock()

	if len(opts.Sort) > 0 {
		sortRecords(out, opts.Sort)
	}
	if opts.Skip > 0 {
		if opts.Skip >= len(out) {
			out = nil
		} else {
			out = out[opts.Skip:]
		}
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	if len(opts.Projection) > 0 {
		for i, r := range out {
			out[i] = project(r, opts.Projection)
		}
	}
	return out
}

// FindOne returns the first record matching q, or nil.
func (c *Collection) FindOne(q query.Query) record.Record {
	res := c.Find(q, FindOptions{Limit: 1})
	if len(res) == 0 {
		return nil
	}
	return res[0]
}

// Count returns the number of records matching q.
func (c *Collection) Count(q query.Query) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.matchLocked(q))
}

// matchLocked returns sorted ids of matching records, consulting the planner
// to decide between a full scan and an index-assisted lookup (spec.md §4.7).
// Caller holds c.mu.
func (c *Collection) matchLocked(q query.Query) []string {
	plan := planner.Build(len(c.records), q, c.indexes.All())

	var ids []string
	if plan.Index != nil {
		candidates, _ := plan.Index.EqualityLookup(plan.EqualityValues)
		for id := range candidates {
			if r, ok := c.records[id]; ok && c.matcher.Match(r, q) {
				ids = append(ids, id)
			}
		}
	} else {
		for id, r := range c.records {
			if c.matcher.Match(r, q) {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// Aggregate runs a spec.md §4.7 aggregation pipeline over the records
// matching q, executing each stage in order via the planner's pipeline
// executor.
func (c *Collection) Aggregate(q query.Query, stages []planner.Stage) ([]record.Record, error) {
	c.mu.RLock()
	ids := c.matchLocked(q)
	in := make([]record.Record, 0, len(ids))
	for _, id := range ids {
		in = append(in, record.CloneRecord(c.records[id]))
	}
	c.mu.RUnlock()
	return planner.Execute(in, stages, c.matcher)
}

// ApplyReplayedInsert re-applies an insert recovered from the WAL without
// re-journaling it, used by the durability manager during recovery.
func (c *Collection) ApplyReplayedInsert(r record.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := r.ID()
	if id == "" {
		return monerr.Integrity("replayed insert missing _id")
	}
	if err := c.indexes.OnInsert(id, r); err != nil {
		return err
	}
	c.records[id] = r
	return nil
}

// ApplyReplayedUpdate re-applies an update recovered from the WAL.
func (c *Collection) ApplyReplayedUpdate(id string, newRecord record.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	old, ok := c.records[id]
	if !ok {
		old = record.Record{}
	}
	if err := c.indexes.OnUpdate(id, old, newRecord); err != nil {
		return err
	}
	c.records[id] = newRecord
	return nil
}

// ApplyReplayedRemove re-applies a remove recovered from the WAL.
func (c *Collection) ApplyReplayedRemove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	old, ok := c.records[id]
	if !ok {
		return
	}
	c.indexes.OnRemove(id, old)
	delete(c.records, id)
}

// Snapshot returns a deep copy of every record, used by the durability
// manager to build a checkpoint.
func (c *Collection) Snapshot() map[string]record.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]record.Record, len(c.records))
	for id, r := range c.records {
		out[id] = record.CloneRecord(r)
	}
	return out
}

// CheckInvariants runs the spec.md §8 index-coverage and uniqueness checks
// against the current record set.
func (c *Collection) CheckInvariants() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexes.CheckInvariants(c.records)
}

// CleanupExpired runs the TTL sweep (spec.md §4.3), removing and
// publishing a remove event for every record whose TTL index has expired.
func (c *Collection) CleanupExpired(now time.Time) int {
	c.mu.Lock()
	expired := c.indexes.CleanupExpired(now, func(ix *index.Index, id string) (time.Time, bool) {
		r, ok := c.records[id]
		if !ok || len(ix.Fields) == 0 {
			return time.Time{}, false
		}
		v := record.Get(r, ix.Fields[0])
		ts, ok := v.(time.Time)
		return ts, ok
	})
	c.mu.Unlock()

	for _, id := range expired {
		_, _ = c.removeOne(id)
	}
	return len(expired)
}

func project(r record.Record, fields []string) record.Record {
	out := make(record.Record, len(fields)+1)
	out[record.IDField] = r[record.IDField]
	for _, f := range fields {
		v := record.Get(r, f)
		if !record.IsUndefined(v) {
			_ = record.Set(out, f, v)
		}
	}
	return out
}

func sortRecords(records []record.Record, keys []SortKey) {
	sort.SliceStable(records, func(i, j int) bool {
		for _, k := range keys {
			vi := record.Get(records[i], k.Field)
			vj := record.Get(records[j], k.Field)
			c := compareValues(vi, vj)
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareValues(a, b any) int {
	if record.IsUndefined(a) {
		a = nil
	}
	if record.IsUndefined(b) {
		b = nil
	}
	if af, aok := record.AsFloat64(a); aok {
		if bf, bok := record.AsFloat64(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return strings.Compare(as, bs)
		}
	}
	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			}
			return 0
		}
	}
	return 0
}

// applyChanges returns the record that should replace old, given changes.
// Keys prefixed with "$" are treated as update operators; otherwise changes
// wholesale-replaces old (preserving _id, applied by the caller).
func applyChanges(old record.Record, changes record.Record) (record.Record, error) {
	hasOperators := false
	for k := range changes {
		if strings.HasPrefix(k, "$") {
			hasOperators = true
			break
		}
	}
	if !hasOperators {
		replacement := record.CloneRecord(changes)
		return replacement, nil
	}

	out := record.CloneRecord(old)
	for op, arg := range changes {
		fields, ok := arg.(map[string]any)
		if !ok {
			return nil, monerr.Validation("update operator %s: operand must be a field map", op)
		}
		switch op {
		case "$set":
			for path, v := range fields {
				if err := record.Set(out, path, v); err != nil {
					return nil, monerr.Validation("$set: %v", err)
				}
			}
		case "$unset":
			for path := range fields {
				unset(out, path)
			}
		case "$inc":
			for path, v := range fields {
				delta, ok := record.AsFloat64(v)
				if !ok {
					return nil, monerr.Validation("$inc: %s is not numeric", path)
				}
				cur := record.Get(out, path)
				curF, _ := record.AsFloat64(cur)
				if err := record.Set(out, path, curF+delta); err != nil {
					return nil, monerr.Validation("$inc: %v", err)
				}
			}
		case "$push":
			for path, v := range fields {
				cur := record.Get(out, path)
				list, _ := cur.([]any)
				if record.IsUndefined(cur) {
					list = nil
				}
				list = append(list, v)
				_ = record.Set(out, path, list)
			}
		case "$addToSet":
			for path, v := range fields {
				cur := record.Get(out, path)
				list, _ := cur.([]any)
				if record.IsUndefined(cur) {
					list = nil
				}
				found := false
				for _, item := range list {
					if deepEqual(item, v) {
						found = true
						break
					}
				}
				if !found {
					list = append(list, v)
				}
				_ = record.Set(out, path, list)
			}
		case "$pull":
			for path, v := range fields {
				cur := record.Get(out, path)
				list, ok := cur.([]any)
				if !ok {
					continue
				}
				filtered := list[:0:0]
				for _, item := range list {
					if !deepEqual(item, v) {
						filtered = append(filtered, item)
					}
				}
				_ = record.Set(out, path, filtered)
			}
		default:
			return nil, monerr.Validation("unknown update operator %s", op)
		}
	}
	return out, nil
}

func deepEqual(a, b any) bool {
	af, aok := record.AsFloat64(a)
	bf, bok := record.AsFloat64(b)
	if aok && bok {
		return af == bf
	}
	as, aok2 := a.(string)
	bs, bok2 := b.(string)
	if aok2 && bok2 {
		return as == bs
	}
	return a == b
}

func unset(r record.Record, path string) {
	parts := record.FieldPath(path)
	if len(parts) == 0 {
		return
	}
	cur := map[string]any(r)
	for i, part := range parts {
		if i == len(parts)-1 {
			delete(cur, part)
			return
		}
		next, ok := cur[part]
		if !ok {
			return
		}
		m, ok := next.(map[string]any)
		if !ok {
			return
		}
		cur = m
	}
}
