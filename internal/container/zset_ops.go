package container

// ZAdd sets members' scores in the sorted set at key, creating it if
// absent, and returns how many members were newly added.
func (s *Store) ZAdd(key string, scores map[string]float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.getOrCreate(key, KindZSet)
	if err != nil {
		return 0, err
	}
	added := 0
	for member, score := range scores {
		if _, existed := e.zset.Insert(member, score); !existed {
			added++
		}
	}
	return added, nil
}

// ZIncrBy increments member's score by delta, creating both the set and
// the member if absent, and returns the new score.
func (s *Store) ZIncrBy(key string, delta float64, member string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.getOrCreate(key, KindZSet)
	if err != nil {
		return 0, err
	}
	cur, _ := e.zset.Score(member)
	next := cur + delta
	e.zset.Insert(member, next)
	return next, nil
}

// ZRem removes members, returning how many existed.
func (s *Store) ZRem(key string, members ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(key, KindZSet)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, m := range members {
		if e.zset.Delete(m) {
			removed++
		}
	}
	return removed, nil
}

// ZScore returns member's score.
func (s *Store) ZScore(key, member string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.kind != KindZSet {
		return 0, false
	}
	return e.zset.Score(member)
}

// ZRank returns member's 0-based ascending rank, or -1 if absent.
func (s *Store) ZRank(key, member string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.kind != KindZSet {
		return -1
	}
	return e.zset.Rank(member)
}

// ZCard returns the sorted set's cardinality, 0 if absent.
func (s *Store) ZCard(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.kind != KindZSet {
		return 0
	}
	return e.zset.Len()
}

// ZRangeResult is one member/score pair from a ZRange-family query.
type ZRangeResult = scoredMember

// ZRange returns members ranked in [start,end], ascending by score.
func (s *Store) ZRange(key string, start, end int) ([]ZRangeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.lookup(key, KindZSet)
	if err != nil {
		return nil, err
	}
	return e.zset.RangeByRank(start, end), nil
}

// ZRangeByScore returns members with score in [min,max], ascending.
func (s *Store) ZRangeByScore(key string, min, max float64) ([]ZRangeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.lookup(key, KindZSet)
	if err != nil {
		return nil, err
	}
	return e.zset.RangeByScore(min, max), nil
}

// ZAll returns every member in ascending score order, for invariant checks.
func (s *Store) ZAll(key string) ([]ZRangeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.lookup(key, KindZSet)
	if err != nil {
		return nil, err
	}
	return e.zset.All(), nil
}
