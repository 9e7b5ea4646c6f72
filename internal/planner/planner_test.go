package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/monarch/internal/index"
	"github.com/cuemby/monarch/internal/query"
	"github.com/cuemby/monarch/internal/record"
)

func TestBuildPrefersUniqueIndexEquality(t *testing.T) {
	reg := index.NewRegistry()
	existing := map[string]record.Record{
		"a": {"email": "a@x"},
		"b": {"email": "b@x"},
	}
	for i := 2; i < 1000; i++ {
		existing[string(rune(i))] = record.Record{"email": string(rune(i))}
	}
	_, err := reg.Create("by_email", []string{"email"}, index.Options{Unique: true}, existing)
	require.NoError(t, err)

	plan := Build(len(existing), query.Query{"email": "a@x"}, reg.All())
	require.NotEmpty(t, plan.Steps)
	assert.Equal(t, IndexLookup, plan.Steps[0].Kind)
	assert.True(t, plan.UniqueEquality)
}

func TestBuildFallsBackToFullScanWithoutIndex(t *testing.T) {
	plan := Build(100, query.Query{"status": "active"}, nil)
	require.NotEmpty(t, plan.Steps)
	assert.Equal(t, FullScan, plan.Steps[0].Kind)
}

func TestBuildIgnoresNonEqualityConditionsForIndexSelection(t *testing.T) {
	reg := index.NewRegistry()
	_, err := reg.Create("by_age", []string{"age"}, index.Options{}, nil)
	require.NoError(t, err)

	plan := Build(100, query.Query{"age": map[string]any{"gt": int64(10)}}, reg.All())
	require.NotEmpty(t, plan.Steps)
	assert.Equal(t, FullScan, plan.Steps[0].Kind)
}
