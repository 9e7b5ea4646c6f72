package container

import "github.com/cuemby/monarch/internal/vector"

// VectorUpsert stores or replaces the vector at id within the vector space
// held at key, creating the space if absent (spec.md §4.5 Vector).
func (s *Store) VectorUpsert(key, id string, vec []float64, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.getOrCreate(key, KindVector)
	if err != nil {
		return err
	}
	return e.vec.Upsert(id, vec, metadata)
}

// VectorRemove deletes the vector at id within key, reporting whether it
// existed.
func (s *Store) VectorRemove(key, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(key, KindVector)
	if err != nil {
		return false, err
	}
	return e.vec.Remove(id), nil
}

// VectorGet returns the entry at id within key.
func (s *Store) VectorGet(key, id string) (vector.Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.lookup(key, KindVector)
	if err != nil {
		return vector.Entry{}, false, err
	}
	v, ok := e.vec.Get(id)
	return v, ok, nil
}

// VectorLen returns the number of vectors stored at key, 0 if absent.
func (s *Store) VectorLen(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.kind != KindVector {
		return 0
	}
	return e.vec.Len()
}

// VectorSearch returns the k nearest vectors to query within the space held
// at key, by cosine similarity (spec.md §4.5 Vector, §8 invariant 5).
func (s *Store) VectorSearch(key string, query []float64, k int) ([]vector.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.lookup(key, KindVector)
	if err != nil {
		return nil, err
	}
	return e.vec.Search(query, k)
}
