package container

// StreamEntry is one published `(id, fields)` pair returned by XRange.
type StreamEntry = streamEntry

// XAdd appends an entry to the stream at key, creating it if absent. id
// may be "*" to auto-assign (spec.md §4.5).
func (s *Store) XAdd(key, id string, fields map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.getOrCreate(key, KindStream)
	if err != nil {
		return "", err
	}
	return e.stream.XAdd(id, fields)
}

// XLen returns the number of entries in the stream at key, 0 if absent.
func (s *Store) XLen(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.kind != KindStream {
		return 0
	}
	return e.stream.Len()
}

// XRange returns entries with id in [start,end]; "-"/"+" denote the
// stream's true bounds.
func (s *Store) XRange(key, start, end string) ([]StreamEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.lookup(key, KindStream)
	if err != nil {
		return nil, err
	}
	return e.stream.XRange(start, end), nil
}

// XTrimMaxLen keeps only the newest maxlen entries.
func (s *Store) XTrimMaxLen(key string, maxlen int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(key, KindStream)
	if err != nil {
		return 0, err
	}
	return e.stream.TrimMaxLen(maxlen), nil
}

// XTrimMinID removes entries with id strictly less than bound.
func (s *Store) XTrimMinID(key, bound string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(key, KindStream)
	if err != nil {
		return 0, err
	}
	return e.stream.TrimMinID(bound)
}
