package container

import "sort"

// HSet sets field/value pairs on the hash at key, returning how many fields
// were newly created (as opposed to overwritten).
func (s *Store) HSet(key string, fields map[string]any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.getOrCreate(key, KindHash)
	if err != nil {
		return 0, err
	}
	created := 0
	for f, v := range fields {
		if _, exists := e.hash[f]; !exists {
			created++
		}
		e.hash[f] = v
	}
	return created, nil
}

// HGet returns the value of field in the hash at key.
func (s *Store) HGet(key, field string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.kind != KindHash {
		return nil, false
	}
	v, ok := e.hash[field]
	return v, ok
}

// HDel removes fields from the hash at key, returning how many existed.
func (s *Store) HDel(key string, fields ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(key, KindHash)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range fields {
		if _, exists := e.hash[f]; exists {
			delete(e.hash, f)
			removed++
		}
	}
	return removed, nil
}

// HGetAll returns a copy of every field/value pair in the hash at key.
func (s *Store) HGetAll(key string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.lookup(key, KindHash)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(e.hash))
	for f, v := range e.hash {
		out[f] = v
	}
	return out, nil
}

// HKeys returns the sorted field names of the hash at key.
func (s *Store) HKeys(key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.lookup(key, KindHash)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(e.hash))
	for f := range e.hash {
		out = append(out, f)
	}
	sort.Strings(out)
	return out, nil
}

// HLen returns the number of fields in the hash at key, 0 if absent.
func (s *Store) HLen(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.kind != KindHash {
		return 0
	}
	return len(e.hash)
}
