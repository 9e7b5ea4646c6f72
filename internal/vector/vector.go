// Package vector implements the in-memory vector store: dense float
// vectors with metadata, supporting top-k cosine-similarity search over a
// full scan or a bounded min-heap (spec.md §4.5 Vector, §8 invariant 5).
package vector

import (
	"container/heap"
	"math"
	"sort"

	"github.com/cuemby/monarch/internal/monerr"
)

// Entry is one stored vector plus its caller-supplied metadata.
type Entry struct {
	ID       string
	Vector   []float64
	Metadata map[string]any
}

// Store holds every vector sharing one dimensionality for a single key.
// Mixing dimensionalities within a store fails validation (spec.md §3
// "all vectors in one key must have equal dimensionality").
type Store struct {
	dim     int
	entries map[string]Entry
}

// New constructs an empty vector Store.
func New() *Store {
	return &Store{entries: make(map[string]Entry)}
}

// Len returns the number of stored vectors.
func (s *Store) Len() int { return len(s.entries) }

// Dim returns the dimensionality every stored vector shares, 0 if empty.
func (s *Store) Dim() int { return s.dim }

// All returns every stored entry, in no particular order.
func (s *Store) All() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

// Upsert stores or replaces the vector at id.
func (s *Store) Upsert(id string, vec []float64, metadata map[string]any) error {
	if len(vec) == 0 {
		return monerr.Validation("vector for id %s must not be empty", id)
	}
	if len(s.entries) == 0 {
		s.dim = len(vec)
	} else if len(vec) != s.dim {
		return monerr.Validation("vector for id %s has dimension %d, expected %d", id, len(vec), s.dim)
	}
	s.entries[id] = Entry{ID: id, Vector: append([]float64(nil), vec...), Metadata: metadata}
	return nil
}

// Remove deletes the vector at id, reporting whether it existed.
func (s *Store) Remove(id string) bool {
	_, ok := s.entries[id]
	delete(s.entries, id)
	return ok
}

// Get returns the entry at id.
func (s *Store) Get(id string) (Entry, bool) {
	e, ok := s.entries[id]
	return e, ok
}

// cosineSimilarity returns the cosine similarity of a and b, 0 for a
// zero-norm vector rather than NaN (spec.md §4.5).
func cosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Result is one scored match from Search.
type Result struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

type scoredEntry struct {
	id       string
	score    float64
	metadata map[string]any
}

// minHeap keeps the current top-k candidates, smallest score at the root
// so a new candidate only needs to beat the current worst kept match.
type minHeap []scoredEntry

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].score < h[j].score }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)         { *h = append(*h, x.(scoredEntry)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Search returns the k nearest entries to query by cosine similarity,
// scores non-increasing. If the store holds more than 2k vectors, a
// size-k min-heap is used (O(n log k)); otherwise a full sort (O(n log n))
// is used (spec.md §4.5).
func (s *Store) Search(query []float64, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(s.entries) > 0 && len(query) != s.dim {
		return nil, monerr.Validation("query vector has dimension %d, expected %d", len(query), s.dim)
	}

	if len(s.entries) > 2*k {
		return s.searchHeap(query, k), nil
	}
	return s.searchSort(query, k), nil
}

func (s *Store) searchSort(query []float64, k int) []Result {
	scored := make([]scoredEntry, 0, len(s.entries))
	for id, e := range s.entries {
		scored = append(scored, scoredEntry{id: id, score: cosineSimilarity(query, e.Vector), metadata: e.Metadata})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].id < scored[j].id
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return toResults(scored)
}

func (s *Store) searchHeap(query []float64, k int) []Result {
	h := &minHeap{}
	heap.Init(h)
	for id, e := range s.entries {
		score := cosineSimilarity(query, e.Vector)
		if h.Len() < k {
			heap.Push(h, scoredEntry{id: id, score: score, metadata: e.Metadata})
			continue
		}
		if score > (*h)[0].score {
			heap.Pop(h)
			heap.Push(h, scoredEntry{id: id, score: score, metadata: e.Metadata})
		}
	}
	scored := make([]scoredEntry, h.Len())
	copy(scored, *h)
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].id < scored[j].id
	})
	return toResults(scored)
}

func toResults(scored []scoredEntry) []Result {
	out := make([]Result, len(scored))
	for i, e := range scored {
		out[i] = Result{ID: e.id, Score: e.score, Metadata: e.metadata}
	}
	return out
}
