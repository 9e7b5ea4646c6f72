package planner

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/monarch/internal/query"
	"github.com/cuemby/monarch/internal/record"
)

// TestAggregationScenario mirrors spec.md §8's aggregation scenario.
func TestAggregationScenario(t *testing.T) {
	matcher := query.NewMatcher(zerolog.Nop())
	records := []record.Record{
		{"dept": "E", "salary": int64(50)},
		{"dept": "E", "salary": int64(70)},
		{"dept": "S", "salary": int64(40)},
	}

	stages := []Stage{
		{Op: "match", Spec: query.Query{}},
		{Op: "group", Spec: map[string]any{
			"_id": "$dept",
			"avg": map[string]any{"$avg": "$salary"},
		}},
		{Op: "sort", Spec: map[string]int{"avg": -1}},
	}

	out, err := Execute(records, stages, matcher)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "E", out[0]["_id"])
	assert.Equal(t, float64(60), out[0]["avg"])
	assert.Equal(t, "S", out[1]["_id"])
	assert.Equal(t, float64(40), out[1]["avg"])
}

func TestUnwindDropsEmptyArraysUnlessPreserved(t *testing.T) {
	matcher := query.NewMatcher(zerolog.Nop())
	records := []record.Record{
		{"_id": "1", "tags": []any{"a", "b"}},
		{"_id": "2", "tags": []any{}},
	}

	out, err := Execute(records, []Stage{{Op: "unwind", Spec: "$tags"}}, matcher)
	require.NoError(t, err)
	require.Len(t, out, 2)

	out2, err := Execute(records, []Stage{{Op: "unwind", Spec: map[string]any{
		"path": "$tags", "preserveNullAndEmptyArrays": true,
	}}}, matcher)
	require.NoError(t, err)
	require.Len(t, out2, 3)
}

func TestLimitAndSkipStages(t *testing.T) {
	matcher := query.NewMatcher(zerolog.Nop())
	records := []record.Record{
		{"n": int64(1)}, {"n": int64(2)}, {"n": int64(3)}, {"n": int64(4)},
	}
	out, err := Execute(records, []Stage{
		{Op: "skip", Spec: 1},
		{Op: "limit", Spec: 2},
	}, matcher)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[0]["n"])
	assert.Equal(t, int64(3), out[1]["n"])
}

func TestProjectAndAddFields(t *testing.T) {
	matcher := query.NewMatcher(zerolog.Nop())
	records := []record.Record{{"_id": "1", "a": int64(2), "b": int64(3)}}

	out, err := Execute(records, []Stage{
		{Op: "addFields", Spec: map[string]any{"sum": map[string]any{"$add": []any{"$a", "$b"}}}},
		{Op: "project", Spec: map[string]any{"sum": "$sum"}},
	}, matcher)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, float64(5), out[0]["sum"])
}
