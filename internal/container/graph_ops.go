package container

import "github.com/cuemby/monarch/internal/graph"

// GraphAddNode inserts or replaces a node in the graph held at key, creating
// the graph if absent (spec.md §4.5 Graph).
func (s *Store) GraphAddNode(key, id, label string, properties map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.getOrCreate(key, KindGraph)
	if err != nil {
		return err
	}
	e.graph.AddNode(id, label, properties)
	return nil
}

// GraphGetNode returns the node at id within the graph held at key.
func (s *Store) GraphGetNode(key, id string) (graph.Node, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.lookup(key, KindGraph)
	if err != nil {
		return graph.Node{}, false, err
	}
	n, ok := e.graph.GetNode(id)
	return n, ok, nil
}

// GraphDeleteNode removes a node (and every incident edge) from the graph
// held at key, reporting whether it existed.
func (s *Store) GraphDeleteNode(key, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(key, KindGraph)
	if err != nil {
		return false, err
	}
	return e.graph.DeleteNode(id), nil
}

// GraphNodeCount returns the number of nodes in the graph held at key, 0 if
// absent.
func (s *Store) GraphNodeCount(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.kind != KindGraph {
		return 0
	}
	return e.graph.NodeCount()
}

// GraphAddEdge connects from->to within the graph held at key, failing if
// either endpoint is missing (spec.md §3 "for every edge both nodes
// exist").
func (s *Store) GraphAddEdge(key, id, from, to, edgeType string, properties map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(key, KindGraph)
	if err != nil {
		return "", err
	}
	return e.graph.AddEdge(id, from, to, edgeType, properties)
}

// GraphGetEdge returns the edge at id within the graph held at key.
func (s *Store) GraphGetEdge(key, id string) (graph.Edge, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.lookup(key, KindGraph)
	if err != nil {
		return graph.Edge{}, false, err
	}
	ed, ok := e.graph.GetEdge(id)
	return ed, ok, nil
}

// GraphRemoveEdge deletes the edge at id within the graph held at key,
// reporting whether it existed.
func (s *Store) GraphRemoveEdge(key, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(key, KindGraph)
	if err != nil {
		return false, err
	}
	return e.graph.RemoveEdge(id), nil
}

// GraphEdgeCount returns the number of edges in the graph held at key, 0 if
// absent.
func (s *Store) GraphEdgeCount(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.kind != KindGraph {
		return 0
	}
	return e.graph.EdgeCount()
}

// GraphTraverse performs a BFS traversal from start within the graph held at
// key (spec.md §4.5 Graph).
func (s *Store) GraphTraverse(key, start string, opts graph.TraverseOptions) (graph.TraverseResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.lookup(key, KindGraph)
	if err != nil {
		return graph.TraverseResult{}, err
	}
	return e.graph.Traverse(start, opts)
}
