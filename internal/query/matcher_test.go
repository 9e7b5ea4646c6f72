package query

import (
	"testing"

	"github.com/cuemby/monarch/internal/record"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newTestMatcher() *Matcher {
	return NewMatcher(zerolog.Nop())
}

func TestMatchLiteralEquality(t *testing.T) {
	m := newTestMatcher()
	r := record.Record{"dept": "E", "salary": int64(50)}

	assert.True(t, m.Match(r, Query{"dept": "E"}))
	assert.False(t, m.Match(r, Query{"dept": "S"}))
}

func TestMatchComparisonOperators(t *testing.T) {
	m := newTestMatcher()
	r := record.Record{"age": int64(30)}

	assert.True(t, m.Match(r, Query{"age": map[string]any{"gt": int64(20)}}))
	assert.True(t, m.Match(r, Query{"age": map[string]any{"gte": int64(30)}}))
	assert.False(t, m.Match(r, Query{"age": map[string]any{"lt": int64(20)}}))
}

func TestMatchInNin(t *testing.T) {
	m := newTestMatcher()
	r := record.Record{"status": "active"}

	assert.True(t, m.Match(r, Query{"status": map[string]any{"in": []any{"active", "pending"}}}))
	assert.False(t, m.Match(r, Query{"status": map[string]any{"nin": []any{"active", "pending"}}}))
}

func TestMatchExists(t *testing.T) {
	m := newTestMatcher()
	r := record.Record{"a": 1}

	assert.True(t, m.Match(r, Query{"a": map[string]any{"exists": true}}))
	assert.True(t, m.Match(r, Query{"b": map[string]any{"exists": false}}))
}

func TestMatchAndOrNor(t *testing.T) {
	m := newTestMatcher()
	r := record.Record{"a": int64(1), "b": int64(2)}

	assert.True(t, m.Match(r, Query{"and": []any{
		map[string]any{"a": int64(1)},
		map[string]any{"b": int64(2)},
	}}))
	assert.False(t, m.Match(r, Query{"and": []any{
		map[string]any{"a": int64(1)},
		map[string]any{"b": int64(3)},
	}}))
	assert.True(t, m.Match(r, Query{"or": []any{
		map[string]any{"a": int64(9)},
		map[string]any{"b": int64(2)},
	}}))
	assert.True(t, m.Match(r, Query{"nor": []any{
		map[string]any{"a": int64(9)},
	}}))
}

func TestMatchUnknownOperatorReturnsFalse(t *testing.T) {
	m := newTestMatcher()
	r := record.Record{"a": int64(1)}
	assert.False(t, m.Match(r, Query{"a": map[string]any{"bogus": 1}}))
}

func TestMatchEmptyQueryMatchesEverything(t *testing.T) {
	m := newTestMatcher()
	assert.True(t, m.Match(record.Record{"x": 1}, Query{}))
}

func TestMatchSizeAllElemMatch(t *testing.T) {
	m := newTestMatcher()
	r := record.Record{"tags": []any{"a", "b", "c"}}

	assert.True(t, m.Match(r, Query{"tags": map[string]any{"size": int64(3)}}))
	assert.True(t, m.Match(r, Query{"tags": map[string]any{"all": []any{"a", "b"}}}))

	r2 := record.Record{"items": []any{
		map[string]any{"qty": int64(5)},
		map[string]any{"qty": int64(1)},
	}}
	assert.True(t, m.Match(r2, Query{"items": map[string]any{
		"elemMatch": map[string]any{"qty": map[string]any{"gt": int64(3)}},
	}}))
}

func TestMatchMod(t *testing.T) {
	m := newTestMatcher()
	r := record.Record{"n": int64(10)}
	assert.True(t, m.Match(r, Query{"n": map[string]any{"mod": []any{int64(3), int64(1)}}}))
}

func TestExprSubset(t *testing.T) {
	m := newTestMatcher()
	r := record.Record{"price": float64(10), "qty": float64(3)}

	assert.True(t, m.Match(r, Query{"expr": map[string]any{
		"gt": []any{
			map[string]any{"multiply": []any{"$price", "$qty"}},
			float64(20),
		},
	}}))
}
