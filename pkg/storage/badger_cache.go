package storage

// =============================================================================
// BADGER ENGINE ADJACENCY CACHE
// =============================================================================
//
// Invariants:
//   - Cached slices hold private copies; callers always receive fresh copies.
//   - An edge write invalidates the outgoing list of its start node and the
//     incoming list of its end node.
//   - Entry cost is the number of edges in the list (plus one, so empty lists
//     still count against MaxCost).
//
// ristretto applies Set asynchronously, so a store may be dropped under
// contention. That only costs a later cache miss.

func adjacencyCacheKey(prefix byte, nodeID NodeID) string {
	return string(prefix) + string(nodeID)
}

func (b *BadgerEngine) cacheGetAdjacency(prefix byte, nodeID NodeID) ([]*Edge, bool) {
	if b.adjacency == nil {
		return nil, false
	}
	value, ok := b.adjacency.Get(adjacencyCacheKey(prefix, nodeID))
	if !ok {
		return nil, false
	}
	cached, ok := value.([]*Edge)
	if !ok {
		return nil, false
	}
	return copyEdges(cached), true
}

func (b *BadgerEngine) cacheStoreAdjacency(prefix byte, nodeID NodeID, edges []*Edge) {
	if b.adjacency == nil {
		return
	}
	b.adjacency.Set(adjacencyCacheKey(prefix, nodeID), copyEdges(edges), int64(len(edges)+1))
}

func (b *BadgerEngine) cacheOnEdgeCreated(edge *Edge) {
	if b.adjacency == nil || edge == nil {
		return
	}
	b.adjacency.Del(adjacencyCacheKey(prefixOutgoingIndex, edge.StartNode))
	b.adjacency.Del(adjacencyCacheKey(prefixIncomingIndex, edge.EndNode))
}

// WaitForCache blocks until pending cache writes are applied. Tests use it to
// make cache hits deterministic.
func (b *BadgerEngine) WaitForCache() {
	if b.adjacency != nil {
		b.adjacency.Wait()
	}
}

func copyEdges(edges []*Edge) []*Edge {
	out := make([]*Edge, len(edges))
	for i, e := range edges {
		out[i] = copyEdge(e)
	}
	return out
}
