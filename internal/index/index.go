// Package index implements secondary indexes over a collection's records:
// hash/compound/sparse/unique/TTL/text indexes with insert/update/remove
// hooks and equality/range query support (spec.md §4.3).
package index

import (
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"

	"github.com/cuemby/monarch/internal/monerr"
	"github.com/cuemby/monarch/internal/record"
)

// Options configures an Index at creation time.
type Options struct {
	Unique bool
	Sparse bool
	Text   bool
	// TTLSeconds, when > 0, marks this as a TTL index: the single indexed
	// field is expected to hold a timestamp, and entries expire TTLSeconds
	// after that timestamp.
	TTLSeconds int64
}

// Index is a secondary index over one or more field paths.
type Index struct {
	Name    string
	Fields  []string
	Options Options

	// keys maps a composite key (JSON-encoded canonical value list) to the
	// set of record ids sharing that key.
	keys map[string]map[string]struct{}
}

// New constructs an empty Index over the given dotted field paths.
func New(name string, fields []string, opts Options) *Index {
	return &Index{
		Name:    name,
		Fields:  append([]string(nil), fields...),
		Options: opts,
		keys:    make(map[string]map[string]struct{}),
	}
}

// compositeKey extracts the canonical composite key for r, plus whether
// every indexed field was undefined (for sparse handling).
func (ix *Index) compositeKey(r record.Record) (key string, allUndefined bool, err error) {
	values := make([]any, len(ix.Fields))
	allUndefined = true
	for i, f := range ix.Fields {
		v := record.Get(r, f)
		if record.IsUndefined(v) {
			values[i] = nil
		} else {
			allUndefined = false
			values[i] = v
		}
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return "", false, monerr.Validation("index %s: cannot encode composite key: %v", ix.Name, err).WithField(ix.Fields[0])
	}
	return string(encoded), allUndefined, nil
}

// Covers reports whether r should have an entry in this index, honoring
// sparseness.
func (ix *Index) Covers(r record.Record) bool {
	_, allUndefined, err := ix.compositeKey(r)
	if err != nil {
		return false
	}
	if allUndefined && ix.Options.Sparse {
		return false
	}
	return true
}

// Insert adds id under r's composite key. Returns a conflict error if the
// index is unique and the key is already taken by a different id.
func (ix *Index) Insert(id string, r record.Record) error {
	key, allUndefined, err := ix.compositeKey(r)
	if err != nil {
		return err
	}
	if allUndefined && ix.Options.Sparse {
		return nil
	}
	set, ok := ix.keys[key]
	if ix.Options.Unique && ok && len(set) > 0 {
		return monerr.Conflict("unique index %s violated for key %s", ix.Name, key)
	}
	if !ok {
		set = make(map[string]struct{}, 1)
		ix.keys[key] = set
	}
	set[id] = struct{}{}
	return nil
}

// Remove deletes id's entry (keyed by r, the record as it existed) from the
// index, dropping the key entirely once empty.
func (ix *Index) Remove(id string, r record.Record) error {
	key, allUndefined, err := ix.compositeKey(r)
	if err != nil {
		return err
	}
	if allUndefined && ix.Options.Sparse {
		return nil
	}
	set, ok := ix.keys[key]
	if !ok {
		return nil
	}
	delete(set, id)
	if len(set) == 0 {
		delete(ix.keys, key)
	}
	return nil
}

// Update moves id from oldRecord's key to newRecord's key.
func (ix *Index) Update(id string, oldRecord, newRecord record.Record) error {
	if err := ix.Remove(id, oldRecord); err != nil {
		return err
	}
	return ix.Insert(id, newRecord)
}

// EqualityLookup returns the ids matching an exact value tuple (for a
// single-field index, pass a one-element slice).
func (ix *Index) EqualityLookup(values []any) (map[string]struct{}, bool) {
	encoded, err := json.Marshal(values)
	if err != nil {
		return nil, false
	}
	set, ok := ix.keys[string(encoded)]
	return set, ok
}

// InLookup unions EqualityLookup across several value tuples (for the "in"
// operator against an indexed field).
func (ix *Index) InLookup(tuples [][]any) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range tuples {
		if set, ok := ix.EqualityLookup(t); ok {
			for id := range set {
				out[id] = struct{}{}
			}
		}
	}
	return out
}

// RangeScan walks the index keyspace and returns ids whose decoded first
// field value satisfies pred. This is the full keyspace scan spec.md §4.3
// says a cost model should discourage over wide domains, since the backing
// map offers no order — callers with a narrow equality/`in` predicate
// should prefer EqualityLookup/InLookup instead.
func (ix *Index) RangeScan(pred func(fieldValue any) bool) map[string]struct{} {
	out := make(map[string]struct{})
	for key, set := range ix.keys {
		var values []any
		if err := json.Unmarshal([]byte(key), &values); err != nil || len(values) == 0 {
			continue
		}
		if pred(values[0]) {
			for id := range set {
				out[id] = struct{}{}
			}
		}
	}
	return out
}

// KeyCount returns the number of distinct composite keys, used by the
// planner's selectivity estimate.
func (ix *Index) KeyCount() int { return len(ix.keys) }

// CheckUnique validates invariant 2 from spec.md §8: every key in a unique
// index maps to exactly one id. Returns the offending keys, if any.
func (ix *Index) CheckUnique() []string {
	if !ix.Options.Unique {
		return nil
	}
	var bad []string
	for key, set := range ix.keys {
		if len(set) != 1 {
			bad = append(bad, key)
		}
	}
	sort.Strings(bad)
	return bad
}

// ExpiredIDs returns ids whose TTL-indexed field value is old enough, given
// the current time, for a TTL index. Non-TTL indexes always return nil.
func (ix *Index) ExpiredIDs(now time.Time, fieldOf func(id string) (time.Time, bool)) []string {
	if ix.Options.TTLSeconds <= 0 {
		return nil
	}
	var expired []string
	for _, set := range ix.keys {
		for id := range set {
			ts, ok := fieldOf(id)
			if !ok {
				continue
			}
			if now.After(ts.Add(time.Duration(ix.Options.TTLSeconds) * time.Second)) {
				expired = append(expired, id)
			}
		}
	}
	return expired
}

// Checksum returns a stable hash of the index's key population, used by
// tests asserting round-trip identity across save/load.
func (ix *Index) Checksum() uint64 {
	keys := make([]string, 0, len(ix.keys))
	for k := range ix.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := xxhash.New()
	for _, k := range keys {
		_, _ = h.WriteString(k)
		ids := make([]string, 0, len(ix.keys[k]))
		for id := range ix.keys[k] {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			_, _ = h.WriteString(id)
		}
	}
	return h.Sum64()
}
