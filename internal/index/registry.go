package index

import (
	"sort"
	"time"

	"github.com/cuemby/monarch/internal/monerr"
	"github.com/cuemby/monarch/internal/record"
)

// Registry owns every secondary index for one collection.
type Registry struct {
	byName map[string]*Index
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Index)}
}

// Create adds a new index, building it from the existing records so it
// immediately satisfies invariant 1 from spec.md §8.
func (reg *Registry) Create(name string, fields []string, opts Options, existing map[string]record.Record) (*Index, error) {
	if _, exists := reg.byName[name]; exists {
		return nil, monerr.Conflict("index %s already exists", name)
	}
	if len(fields) == 0 {
		return nil, monerr.Validation("index %s: at least one field required", name)
	}
	ix := New(name, fields, opts)
	ids := make([]string, 0, len(existing))
	for id := range existing {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := ix.Insert(id, existing[id]); err != nil {
			return nil, err
		}
	}
	reg.byName[name] = ix
	return ix, nil
}

// Drop removes an index by name.
func (reg *Registry) Drop(name string) error {
	if _, ok := reg.byName[name]; !ok {
		return monerr.NotFound("index %s not found", name)
	}
	delete(reg.byName, name)
	return nil
}

// Get returns the named index, if any.
func (reg *Registry) Get(name string) (*Index, bool) {
	ix, ok := reg.byName[name]
	return ix, ok
}

// All returns every index, sorted by name for deterministic iteration.
func (reg *Registry) All() []*Index {
	names := make([]string, 0, len(reg.byName))
	for n := range reg.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*Index, 0, len(names))
	for _, n := range names {
		out = append(out, reg.byName[n])
	}
	return out
}

// OnInsert applies a newly-inserted record to every index, rolling back
// partial application if any index rejects it (e.g. unique violation) so
// no index is left with an orphaned entry.
func (reg *Registry) OnInsert(id string, r record.Record) error {
	applied := make([]*Index, 0, len(reg.byName))
	for _, ix := range reg.All() {
		if err := ix.Insert(id, r); err != nil {
			for _, done := range applied {
				_ = done.Remove(id, r)
			}
			return err
		}
		applied = append(applied, ix)
	}
	return nil
}

// OnUpdate moves id from oldRecord's keys to newRecord's keys across every
// index, rolling back to the old record on failure.
func (reg *Registry) OnUpdate(id string, oldRecord, newRecord record.Record) error {
	applied := make([]*Index, 0, len(reg.byName))
	for _, ix := range reg.All() {
		if err := ix.Update(id, oldRecord, newRecord); err != nil {
			for _, done := range applied {
				_ = done.Update(id, newRecord, oldRecord)
			}
			return err
		}
		applied = append(applied, ix)
	}
	return nil
}

// OnRemove purges id from every index.
func (reg *Registry) OnRemove(id string, r record.Record) {
	for _, ix := range reg.All() {
		_ = ix.Remove(id, r)
	}
}

// CleanupExpired returns the ids that should be purged by the TTL sweep,
// deduplicated across TTL indexes.
func (reg *Registry) CleanupExpired(now time.Time, fieldOf func(index *Index, id string) (time.Time, bool)) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, ix := range reg.All() {
		if ix.Options.TTLSeconds <= 0 {
			continue
		}
		for _, id := range ix.ExpiredIDs(now, func(id string) (time.Time, bool) { return fieldOf(ix, id) }) {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out
}

// CheckInvariants verifies invariants 1 and 2 of spec.md §8 against the
// given record set, returning a description of any violation found.
func (reg *Registry) CheckInvariants(records map[string]record.Record) []string {
	var problems []string
	for _, ix := range reg.All() {
		for id, r := range records {
			if !ix.Covers(r) {
				continue
			}
			key, _, err := ix.compositeKey(r)
			if err != nil {
				problems = append(problems, err.Error())
				continue
			}
			set, ok := ix.keys[key]
			if !ok || !contains(set, id) {
				problems = append(problems, "index "+ix.Name+": missing entry for record "+id)
			}
		}
		if bad := ix.CheckUnique(); len(bad) > 0 {
			problems = append(problems, "index "+ix.Name+": unique violation on keys "+joinKeys(bad))
		}
	}
	return problems
}

func contains(set map[string]struct{}, id string) bool {
	_, ok := set[id]
	return ok
}

func joinKeys(keys []string) string {
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ","
		}
		out += k
	}
	return out
}
