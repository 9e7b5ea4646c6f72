package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTopKScenario mirrors spec.md §8's vector top-k scenario.
func TestTopKScenario(t *testing.T) {
	s := New()
	require.NoError(t, s.Upsert("v1", []float64{1, 0, 0}, nil))
	require.NoError(t, s.Upsert("v2", []float64{0, 1, 0}, nil))
	require.NoError(t, s.Upsert("v3", []float64{0.9, 0.1, 0}, nil))

	results, err := s.Search([]float64{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "v1", results[0].ID)
	assert.Equal(t, "v3", results[1].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestZeroNormVectorYieldsZeroNotNaN(t *testing.T) {
	s := New()
	require.NoError(t, s.Upsert("zero", []float64{0, 0, 0}, nil))
	results, err := s.Search([]float64{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, float64(0), results[0].Score)
}

func TestMismatchedDimensionRejected(t *testing.T) {
	s := New()
	require.NoError(t, s.Upsert("v1", []float64{1, 0}, nil))
	err := s.Upsert("v2", []float64{1, 0, 0}, nil)
	require.Error(t, err)
}

func TestSearchResultCountIsMinKAndVCount(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Upsert(string(rune('a'+i)), []float64{float64(i), 1, 0}, nil))
	}
	results, err := s.Search([]float64{1, 1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 5)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestHeapPathUsedForLargeStores(t *testing.T) {
	s := New()
	for i := 0; i < 50; i++ {
		v := []float64{float64(i), float64(50 - i), 0}
		require.NoError(t, s.Upsert(string(rune('A'+i%26))+string(rune('0'+i/26)), v, nil))
	}
	results, err := s.Search([]float64{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}
