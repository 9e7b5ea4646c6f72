package container

import "sort"

// SAdd adds members to the set at key, returning how many were newly added.
func (s *Store) SAdd(key string, members ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.getOrCreate(key, KindSet)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, m := range members {
		if _, exists := e.set[m]; !exists {
			e.set[m] = struct{}{}
			added++
		}
	}
	return added, nil
}

// SRem removes members from the set at key, returning how many were removed.
func (s *Store) SRem(key string, members ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(key, KindSet)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, m := range members {
		if _, exists := e.set[m]; exists {
			delete(e.set, m)
			removed++
		}
	}
	return removed, nil
}

// SMembers returns every member of the set at key, sorted for determinism.
func (s *Store) SMembers(key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.lookup(key, KindSet)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(e.set))
	for m := range e.set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

// SIsMember reports whether member is in the set at key.
func (s *Store) SIsMember(key, member string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.kind != KindSet {
		return false
	}
	_, present := e.set[member]
	return present
}

// SCard returns the set's cardinality, 0 if absent.
func (s *Store) SCard(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.kind != KindSet {
		return 0
	}
	return len(e.set)
}
