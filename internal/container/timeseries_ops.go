package container

// TSAdd appends a point to the time series at key, creating it if absent.
func (s *Store) TSAdd(key string, timestamp int64, value float64, labels map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.getOrCreate(key, KindTimeSeries)
	if err != nil {
		return err
	}
	e.ts.Add(TSPoint{Timestamp: timestamp, Value: value, Labels: labels})
	return nil
}

// TSLen returns the number of points in the time series at key, 0 if absent.
func (s *Store) TSLen(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.kind != KindTimeSeries {
		return 0
	}
	return e.ts.Len()
}

// TSRange returns points with timestamp in [from,to] inclusive; nil bounds
// are unbounded on that side, found via binary search (spec.md §4.5).
func (s *Store) TSRange(key string, from, to *int64) ([]TSPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.lookup(key, KindTimeSeries)
	if err != nil {
		return nil, err
	}
	return e.ts.Range(from, to), nil
}

// TSAvg aggregates the average value of points in [from,to] inclusive.
func (s *Store) TSAvg(key string, from, to *int64) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.lookup(key, KindTimeSeries)
	if err != nil {
		return 0, false, err
	}
	avg, ok := e.ts.Avg(from, to)
	return avg, ok, nil
}
