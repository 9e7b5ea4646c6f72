// Package container implements the structured-cache surface (spec.md §4.5):
// lists, sets, hashes, sorted sets, streams, geospatial indexes, time
// series, vector spaces and property graphs, all keyed by a flat, shared
// string key space where the kind of a key is inferred on first write.
// Vector and graph are container kinds like the rest: two keys can hold
// vector spaces of different dimensionality, or two independent named
// graphs, side by side (spec.md §3).
package container

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/monarch/internal/graph"
	"github.com/cuemby/monarch/internal/monerr"
	"github.com/cuemby/monarch/internal/vector"
)

// Kind identifies which structure a key holds.
type Kind string

const (
	KindList       Kind = "list"
	KindSet        Kind = "set"
	KindHash       Kind = "hash"
	KindZSet       Kind = "zset"
	KindStream     Kind = "stream"
	KindGeo        Kind = "geo"
	KindTimeSeries Kind = "timeseries"
	KindVector     Kind = "vector"
	KindGraph      Kind = "graph"
)

// entry is the per-key structure, tagged by kind. Only the field matching
// kind is populated.
type entry struct {
	kind Kind

	list   *linkedList
	set    map[string]struct{}
	hash   map[string]any
	zset   *skipList
	stream *stream
	geo    map[string]geoPoint
	ts     *timeSeries
	vec    *vector.Store
	graph  *graph.Store
}

// Store owns every container key for one database instance.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	log     zerolog.Logger
}

// New constructs an empty container Store.
func New(log zerolog.Logger) *Store {
	return &Store{entries: make(map[string]*entry), log: log}
}

// lookup returns the entry for key, requiring it to already be of kind want.
func (s *Store) lookup(key string, want Kind) (*entry, error) {
	e, ok := s.entries[key]
	if !ok {
		return nil, monerr.NotFound("container key %q does not exist", key)
	}
	if e.kind != want {
		return nil, monerr.Validation("container key %q holds a %s, not a %s", key, e.kind, want).WithField(key)
	}
	return e, nil
}

// getOrCreate returns the entry for key, creating it as kind want if absent,
// and fails if the key already holds a different kind (spec.md §3 "mixing
// kinds on the same key fails").
func (s *Store) getOrCreate(key string, want Kind) (*entry, error) {
	e, ok := s.entries[key]
	if ok {
		if e.kind != want {
			return nil, monerr.Validation("container key %q holds a %s, not a %s", key, e.kind, want).WithField(key)
		}
		return e, nil
	}
	e = &entry{kind: want}
	switch want {
	case KindList:
		e.list = newLinkedList()
	case KindSet:
		e.set = make(map[string]struct{})
	case KindHash:
		e.hash = make(map[string]any)
	case KindZSet:
		e.zset = newSkipList()
	case KindStream:
		e.stream = newStream()
	case KindGeo:
		e.geo = make(map[string]geoPoint)
	case KindTimeSeries:
		e.ts = newTimeSeries()
	case KindVector:
		e.vec = vector.New()
	case KindGraph:
		e.graph = graph.New()
	}
	s.entries[key] = e
	return e, nil
}

// Kind returns the kind of key, if it exists.
func (s *Store) Kind(key string) (Kind, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	return e.kind, true
}

// Del removes a container key entirely, regardless of kind.
func (s *Store) Del(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	return ok
}

// Exists reports whether key is present under any kind.
func (s *Store) Exists(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key]
	return ok
}

// Keys returns every container key currently present.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, k)
	}
	return out
}
