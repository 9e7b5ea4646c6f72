package container

// LPush prepends values to the list at key, creating it if absent.
func (s *Store) LPush(key string, values ...any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.getOrCreate(key, KindList)
	if err != nil {
		return 0, err
	}
	return e.list.LPush(values...), nil
}

// RPush appends values to the list at key, creating it if absent.
func (s *Store) RPush(key string, values ...any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.getOrCreate(key, KindList)
	if err != nil {
		return 0, err
	}
	return e.list.RPush(values...), nil
}

// LPop removes and returns up to count values from the head.
func (s *Store) LPop(key string, count int) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(key, KindList)
	if err != nil {
		return nil, err
	}
	return e.list.LPop(count), nil
}

// RPop removes and returns up to count values from the tail.
func (s *Store) RPop(key string, count int) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(key, KindList)
	if err != nil {
		return nil, err
	}
	return e.list.RPop(count), nil
}

// LLen returns the length of the list at key, 0 if absent.
func (s *Store) LLen(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.kind != KindList {
		return 0
	}
	return e.list.Len()
}

// LRange returns the inclusive [start,end] slice of the list, honoring
// negative (tail-relative) indices.
func (s *Store) LRange(key string, start, end int) ([]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.lookup(key, KindList)
	if err != nil {
		return nil, err
	}
	return e.list.Range(start, end), nil
}

// LIndex returns the element at idx.
func (s *Store) LIndex(key string, idx int) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.lookup(key, KindList)
	if err != nil {
		return nil, err
	}
	return e.list.Index(idx)
}

// LSet overwrites the element at idx.
func (s *Store) LSet(key string, idx int, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(key, KindList)
	if err != nil {
		return err
	}
	return e.list.Set(idx, v)
}

// LTrim keeps only [start,end], honoring negative (tail-relative) indices;
// start>end after resolving them deletes the key entirely (spec.md §4.5).
func (s *Store) LTrim(key string, start, end int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(key, KindList)
	if err != nil {
		return err
	}
	e.list.Trim(start, end)
	if e.list.Len() == 0 {
		delete(s.entries, key)
	}
	return nil
}

// LRem removes up to count occurrences of v (see linkedList.Remove).
func (s *Store) LRem(key string, count int, v any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(key, KindList)
	if err != nil {
		return 0, err
	}
	return e.list.Remove(v, count), nil
}
