package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddEdgeRequiresBothNodes(t *testing.T) {
	s := New()
	s.AddNode("a", "Person", nil)
	_, err := s.AddEdge("", "a", "missing", "knows", nil)
	require.Error(t, err)
}

func TestDeleteNodeRemovesIncidentEdges(t *testing.T) {
	s := New()
	s.AddNode("a", "Person", nil)
	s.AddNode("b", "Person", nil)
	s.AddNode("c", "Person", nil)
	_, err := s.AddEdge("", "a", "b", "knows", nil)
	require.NoError(t, err)
	_, err = s.AddEdge("", "c", "a", "knows", nil)
	require.NoError(t, err)

	assert.True(t, s.DeleteNode("a"))
	_, exists := s.GetNode("a")
	assert.False(t, exists)
	assert.Equal(t, 0, s.EdgeCount())
}

func TestBFSTraversalOutgoing(t *testing.T) {
	s := New()
	for _, n := range []string{"a", "b", "c", "d"} {
		s.AddNode(n, "Node", nil)
	}
	s.AddEdge("", "a", "b", "edge", nil)
	s.AddEdge("", "b", "c", "edge", nil)
	s.AddEdge("", "a", "d", "edge", nil)

	res, err := s.Traverse("a", TraverseOptions{Direction: Outgoing})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, res.VisitedNodes)
}

func TestBFSTraversalMaxDepth(t *testing.T) {
	s := New()
	for _, n := range []string{"a", "b", "c"} {
		s.AddNode(n, "Node", nil)
	}
	s.AddEdge("", "a", "b", "edge", nil)
	s.AddEdge("", "b", "c", "edge", nil)

	res, err := s.Traverse("a", TraverseOptions{Direction: Outgoing, MaxDepth: 1})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, res.VisitedNodes)
}

func TestBFSTraversalEdgeTypeFilter(t *testing.T) {
	s := New()
	for _, n := range []string{"a", "b", "c"} {
		s.AddNode(n, "Node", nil)
	}
	s.AddEdge("", "a", "b", "friend", nil)
	s.AddEdge("", "a", "c", "blocked", nil)

	res, err := s.Traverse("a", TraverseOptions{Direction: Outgoing, EdgeType: "friend"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, res.VisitedNodes)
}

func TestBFSTraversalIncomingDirection(t *testing.T) {
	s := New()
	for _, n := range []string{"a", "b"} {
		s.AddNode(n, "Node", nil)
	}
	s.AddEdge("", "b", "a", "edge", nil)

	res, err := s.Traverse("a", TraverseOptions{Direction: Incoming})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, res.VisitedNodes)
}
