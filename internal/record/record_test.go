package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorProducesUniqueIDs(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	a := NewAllocator(func() time.Time { return fixed })

	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		id := a.Next()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestGetFieldPath(t *testing.T) {
	r := Record{
		"a": map[string]any{
			"b": []any{1, 2, 3},
		},
	}

	assert.Equal(t, 2, Get(r, "a.b.1"))
	assert.True(t, IsUndefined(Get(r, "a.c")))
	assert.True(t, IsUndefined(Get(r, "a.b.10")))
	assert.True(t, IsUndefined(Get(r, "a.b.x")))
}

func TestSetCreatesIntermediateMaps(t *testing.T) {
	r := Record{}
	require.NoError(t, Set(r, "a.b.c", 42))
	assert.Equal(t, 42, Get(r, "a.b.c"))
}

func TestCloneRecordIsDeep(t *testing.T) {
	r := Record{"a": []any{1, 2}, "b": map[string]any{"c": 1}}
	clone := CloneRecord(r)
	clone["a"].([]any)[0] = 99
	clone["b"].(map[string]any)["c"] = 99

	assert.Equal(t, 1, r["a"].([]any)[0])
	assert.Equal(t, 1, r["b"].(map[string]any)["c"])
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNull, KindOf(nil))
	assert.Equal(t, KindBool, KindOf(true))
	assert.Equal(t, KindInt, KindOf(int64(1)))
	assert.Equal(t, KindFloat, KindOf(1.5))
	assert.Equal(t, KindString, KindOf("x"))
	assert.Equal(t, KindTime, KindOf(time.Now()))
	assert.Equal(t, KindList, KindOf([]any{1}))
	assert.Equal(t, KindRecord, KindOf(Record{}))
}
