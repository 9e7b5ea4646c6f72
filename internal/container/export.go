package container

import (
	"github.com/cuemby/monarch/internal/graph"
	"github.com/cuemby/monarch/internal/vector"
)

// Export and Import move a Store's state through the snapshot format's
// "containers" section (spec.md §6). The shapes below use only maps,
// slices and primitives so they survive a JSON marshal/unmarshal round
// trip unchanged, rather than custom struct types that would decode back
// as generic maps and break a direct type assertion. Vector and graph
// entries round-trip through Upsert/AddNode/AddEdge rather than restoring
// internal fields directly, since neither store exposes its internals.

// Export returns every key's kind and contents in a JSON-safe shape.
func (s *Store) Export() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.entries))
	for key, e := range s.entries {
		item := map[string]any{"kind": string(e.kind)}
		switch e.kind {
		case KindList:
			item["value"] = e.list.Range(0, -1)
		case KindSet:
			names := make([]any, 0, len(e.set))
			for m := range e.set {
				names = append(names, m)
			}
			item["value"] = names
		case KindHash:
			h := make(map[string]any, len(e.hash))
			for k, v := range e.hash {
				h[k] = v
			}
			item["value"] = h
		case KindZSet:
			members := e.zset.All()
			out2 := make([]any, 0, len(members))
			for _, m := range members {
				out2 = append(out2, map[string]any{"member": m.Member, "score": m.Score})
			}
			item["value"] = out2
		case KindStream:
			entries := make([]any, 0, len(e.stream.entries))
			for _, se := range e.stream.entries {
				entries = append(entries, map[string]any{
					"id": se.ID, "millis": se.Millis, "seq": se.Seq, "fields": se.Fields,
				})
			}
			item["value"] = entries
		case KindGeo:
			points := make(map[string]any, len(e.geo))
			for member, p := range e.geo {
				points[member] = map[string]any{"lon": p.Lon, "lat": p.Lat}
			}
			item["value"] = points
		case KindTimeSeries:
			points := make([]any, 0, len(e.ts.entries))
			for _, p := range e.ts.entries {
				points = append(points, map[string]any{
					"timestamp": p.Timestamp, "value": p.Value, "labels": p.Labels,
				})
			}
			item["value"] = points
		case KindVector:
			entries := make([]any, 0, e.vec.Len())
			for _, v := range e.vec.All() {
				entries = append(entries, map[string]any{"id": v.ID, "vector": v.Vector, "metadata": v.Metadata})
			}
			item["value"] = map[string]any{"dim": e.vec.Dim(), "entries": entries}
		case KindGraph:
			nodes := make([]any, 0, e.graph.NodeCount())
			for _, n := range e.graph.Nodes() {
				nodes = append(nodes, map[string]any{"id": n.ID, "label": n.Label, "properties": n.Properties})
			}
			edges := make([]any, 0, e.graph.EdgeCount())
			for _, ed := range e.graph.Edges() {
				edges = append(edges, map[string]any{
					"id": ed.ID, "from": ed.From, "to": ed.To, "type": ed.Type, "properties": ed.Properties,
				})
			}
			item["value"] = map[string]any{"nodes": nodes, "edges": edges}
		}
		out[key] = item
	}
	return out
}

// Import rebuilds container state from data previously produced by Export,
// whether or not it passed through a JSON round trip in between. Malformed
// entries are skipped rather than failing the whole load, since the rest
// of the blob may still be valid (spec.md §7 integrity policy).
func (s *Store) Import(data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, raw := range data {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		kind, _ := item["kind"].(string)
		switch Kind(kind) {
		case KindList:
			e := &entry{kind: KindList, list: newLinkedList()}
			for _, v := range asSlice(item["value"]) {
				e.list.RPush(v)
			}
			s.entries[key] = e
		case KindSet:
			set := make(map[string]struct{})
			for _, v := range asSlice(item["value"]) {
				if m, ok := v.(string); ok {
					set[m] = struct{}{}
				}
			}
			s.entries[key] = &entry{kind: KindSet, set: set}
		case KindHash:
			h, _ := item["value"].(map[string]any)
			hash := make(map[string]any, len(h))
			for k, v := range h {
				hash[k] = v
			}
			s.entries[key] = &entry{kind: KindHash, hash: hash}
		case KindZSet:
			zs := newSkipList()
			for _, raw := range asSlice(item["value"]) {
				m, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				member, _ := m["member"].(string)
				score := asFloat64(m["score"])
				zs.Insert(member, score)
			}
			s.entries[key] = &entry{kind: KindZSet, zset: zs}
		case KindStream:
			st := newStream()
			for _, raw := range asSlice(item["value"]) {
				m, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				id, _ := m["id"].(string)
				millis := int64(asFloat64(m["millis"]))
				seq := int64(asFloat64(m["seq"]))
				fields, _ := m["fields"].(map[string]any)
				st.entries = append(st.entries, streamEntry{ID: id, Millis: millis, Seq: seq, Fields: fields})
				st.lastMillis, st.lastSeq = millis, seq
			}
			s.entries[key] = &entry{kind: KindStream, stream: st}
		case KindGeo:
			points, _ := item["value"].(map[string]any)
			geo := make(map[string]geoPoint, len(points))
			for member, raw := range points {
				m, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				geo[member] = geoPoint{Lon: asFloat64(m["lon"]), Lat: asFloat64(m["lat"])}
			}
			s.entries[key] = &entry{kind: KindGeo, geo: geo}
		case KindTimeSeries:
			ts := newTimeSeries()
			for _, raw := range asSlice(item["value"]) {
				m, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				labels, _ := m["labels"].(map[string]string)
				if labels == nil {
					if generic, ok := m["labels"].(map[string]any); ok {
						labels = make(map[string]string, len(generic))
						for k, v := range generic {
							if s, ok := v.(string); ok {
								labels[k] = s
							}
						}
					}
				}
				ts.entries = append(ts.entries, TSPoint{
					Timestamp: int64(asFloat64(m["timestamp"])),
					Value:     asFloat64(m["value"]),
					Labels:    labels,
				})
			}
			s.entries[key] = &entry{kind: KindTimeSeries, ts: ts}
		case KindVector:
			val, _ := item["value"].(map[string]any)
			vs := vector.New()
			for _, raw := range asSlice(val["entries"]) {
				m, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				id, _ := m["id"].(string)
				metadata, _ := m["metadata"].(map[string]any)
				vec := make([]float64, 0)
				for _, n := range asSlice(m["vector"]) {
					vec = append(vec, asFloat64(n))
				}
				if err := vs.Upsert(id, vec, metadata); err != nil {
					continue
				}
			}
			s.entries[key] = &entry{kind: KindVector, vec: vs}
		case KindGraph:
			val, _ := item["value"].(map[string]any)
			gr := graph.New()
			for _, raw := range asSlice(val["nodes"]) {
				m, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				id, _ := m["id"].(string)
				label, _ := m["label"].(string)
				properties, _ := m["properties"].(map[string]any)
				gr.AddNode(id, label, properties)
			}
			edges := asSlice(val["edges"])
			for _, raw := range edges {
				m, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				id, _ := m["id"].(string)
				from, _ := m["from"].(string)
				to, _ := m["to"].(string)
				edgeType, _ := m["type"].(string)
				properties, _ := m["properties"].(map[string]any)
				gr.AddEdge(id, from, to, edgeType, properties)
			}
			gr.SeedEdgeCounter(int64(len(edges)))
			s.entries[key] = &entry{kind: KindGraph, graph: gr}
		}
	}
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asFloat64(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	}
	return 0
}
