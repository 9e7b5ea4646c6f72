package container

import (
	"container/list"

	"github.com/cuemby/monarch/internal/monerr"
)

// linkedList is a doubly-linked deque of values, giving O(1) push/pop at
// either end; indexed access walks from whichever end is nearer and range
// access walks from the head, matching a real linked list's cost profile.
type linkedList struct {
	l *list.List
}

func newLinkedList() *linkedList {
	return &linkedList{l: list.New()}
}

func (ll *linkedList) Len() int { return ll.l.Len() }

func (ll *linkedList) LPush(values ...any) int {
	for _, v := range values {
		ll.l.PushFront(v)
	}
	return ll.l.Len()
}

func (ll *linkedList) RPush(values ...any) int {
	for _, v := range values {
		ll.l.PushBack(v)
	}
	return ll.l.Len()
}

func (ll *linkedList) LPop(count int) []any {
	return ll.popFront(count)
}

func (ll *linkedList) RPop(count int) []any {
	return ll.popBack(count)
}

func (ll *linkedList) popFront(count int) []any {
	if count <= 0 {
		count = 1
	}
	out := make([]any, 0, count)
	for i := 0; i < count; i++ {
		front := ll.l.Front()
		if front == nil {
			break
		}
		out = append(out, front.Value)
		ll.l.Remove(front)
	}
	return out
}

func (ll *linkedList) popBack(count int) []any {
	if count <= 0 {
		count = 1
	}
	out := make([]any, 0, count)
	for i := 0; i < count; i++ {
		back := ll.l.Back()
		if back == nil {
			break
		}
		out = append(out, back.Value)
		ll.l.Remove(back)
	}
	return out
}

// resolveIndex converts a Redis-style index (negative counts from the
// tail) into a 0-based forward offset, or reports it out of range.
func resolveIndex(idx, length int) (int, bool) {
	if idx < 0 {
		idx = length + idx
	}
	if idx < 0 || idx >= length {
		return 0, false
	}
	return idx, true
}

func (ll *linkedList) nodeAt(idx int) *list.Element {
	length := ll.l.Len()
	resolved, ok := resolveIndex(idx, length)
	if !ok {
		return nil
	}
	if resolved <= length/2 {
		e := ll.l.Front()
		for i := 0; i < resolved; i++ {
			e = e.Next()
		}
		return e
	}
	e := ll.l.Back()
	for i := length - 1; i > resolved; i-- {
		e = e.Prev()
	}
	return e
}

// Index returns the element at idx, or an error if out of range.
func (ll *linkedList) Index(idx int) (any, error) {
	e := ll.nodeAt(idx)
	if e == nil {
		return nil, monerr.NotFound("list index %d out of range", idx)
	}
	return e.Value, nil
}

// Set overwrites the element at idx.
func (ll *linkedList) Set(idx int, v any) error {
	e := ll.nodeAt(idx)
	if e == nil {
		return monerr.NotFound("list index %d out of range", idx)
	}
	e.Value = v
	return nil
}

// Range returns values from start to end inclusive, honoring negative
// indices; an empty result is returned (not an error) when the range is
// vacuous.
func (ll *linkedList) Range(start, end int) []any {
	length := ll.l.Len()
	if length == 0 {
		return nil
	}
	s := normalizeBound(start, length)
	e := normalizeBound(end, length)
	if s < 0 {
		s = 0
	}
	if e >= length {
		e = length - 1
	}
	if s > e {
		return nil
	}

	out := make([]any, 0, e-s+1)
	node := ll.l.Front()
	for i := 0; i < s; i++ {
		node = node.Next()
	}
	for i := s; i <= e; i++ {
		out = append(out, node.Value)
		node = node.Next()
	}
	return out
}

func normalizeBound(idx, length int) int {
	if idx < 0 {
		return length + idx
	}
	return idx
}

// Trim keeps only the range [start,end] inclusive, clearing the key's
// contents entirely when start>end (spec.md §4.5).
func (ll *linkedList) Trim(start, end int) {
	length := ll.l.Len()
	s := normalizeBound(start, length)
	e := normalizeBound(end, length)
	if s > e || length == 0 {
		ll.l = list.New()
		return
	}
	if s < 0 {
		s = 0
	}
	if e >= length {
		e = length - 1
	}
	kept := ll.Range(s, e)
	ll.l = list.New()
	for _, v := range kept {
		ll.l.PushBack(v)
	}
}

// Remove deletes up to count occurrences of v. count>0 scans head-to-tail,
// count<0 scans tail-to-head, count==0 removes every occurrence. Returns
// the number removed.
func (ll *linkedList) Remove(v any, count int) int {
	removed := 0
	match := func(a any) bool { return deepEqualValue(a, v) }

	if count >= 0 {
		limit := count
		if limit == 0 {
			limit = ll.l.Len()
		}
		for e := ll.l.Front(); e != nil && removed < limit; {
			next := e.Next()
			if match(e.Value) {
				ll.l.Remove(e)
				removed++
			}
			e = next
		}
		return removed
	}

	limit := -count
	for e := ll.l.Back(); e != nil && removed < limit; {
		prev := e.Prev()
		if match(e.Value) {
			ll.l.Remove(e)
			removed++
		}
		e = prev
	}
	return removed
}

func deepEqualValue(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	as, aok2 := a.(string)
	bs, bok2 := b.(string)
	if aok2 && bok2 {
		return as == bs
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}
