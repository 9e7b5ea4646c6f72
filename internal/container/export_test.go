package container

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImportRoundTripsAllKinds(t *testing.T) {
	s := New(zerolog.Nop())
	_, err := s.RPush("mylist", "a", "b", "c")
	require.NoError(t, err)
	_, err = s.SAdd("myset", "x", "y")
	require.NoError(t, err)
	_, err = s.HSet("myhash", map[string]any{"f1": "v1", "f2": float64(2)})
	require.NoError(t, err)
	_, err = s.ZAdd("myzset", map[string]float64{"alice": 1.5, "bob": 2.5})
	require.NoError(t, err)
	_, err = s.XAdd("mystream", "*", map[string]any{"event": "login"})
	require.NoError(t, err)
	require.NoError(t, s.GeoAdd("mygeo", "nyc", -74.0, 40.7))
	require.NoError(t, s.TSAdd("myts", 1000, 42.5, map[string]string{"sensor": "a"}))
	require.NoError(t, s.VectorUpsert("myvec", "a", []float64{1, 0, 0}, map[string]any{"tag": "x"}))
	require.NoError(t, s.GraphAddNode("mygraph", "n1", "person", nil))
	require.NoError(t, s.GraphAddNode("mygraph", "n2", "person", nil))
	_, err = s.GraphAddEdge("mygraph", "", "n1", "n2", "knows", nil)
	require.NoError(t, err)

	exported := s.Export()

	// round-trip through JSON, as it would via the persistence blob.
	blob, err := json.Marshal(exported)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(blob, &decoded))

	restored := New(zerolog.Nop())
	restored.Import(decoded)

	list, err := restored.LRange("mylist", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", "c"}, list)

	members, err := restored.SMembers("myset")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x", "y"}, members)

	hash, err := restored.HGetAll("myhash")
	require.NoError(t, err)
	assert.Equal(t, "v1", hash["f1"])

	score, ok := restored.ZScore("myzset", "bob")
	require.True(t, ok)
	assert.Equal(t, 2.5, score)

	entries, err := restored.XRange("mystream", "-", "+")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "login", entries[0].Fields["event"])

	lon, lat, ok := restored.GeoPos("mygeo", "nyc")
	require.True(t, ok)
	assert.Equal(t, -74.0, lon)
	assert.Equal(t, 40.7, lat)

	points, err := restored.TSRange("myts", nil, nil)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 42.5, points[0].Value)
	assert.Equal(t, "a", points[0].Labels["sensor"])

	vecResults, err := restored.VectorSearch("myvec", []float64{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, vecResults, 1)
	assert.Equal(t, "a", vecResults[0].ID)
	assert.Equal(t, "x", vecResults[0].Metadata["tag"])

	assert.Equal(t, 2, restored.GraphNodeCount("mygraph"))
	assert.Equal(t, 1, restored.GraphEdgeCount("mygraph"))
}

func TestImportSkipsMalformedEntries(t *testing.T) {
	s := New(zerolog.Nop())
	s.Import(map[string]any{
		"bad":  "not-a-map",
		"good": map[string]any{"kind": "set", "value": []any{"ok"}},
	})
	assert.False(t, s.Exists("bad"))
	members, err := s.SMembers("good")
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, members)
}
