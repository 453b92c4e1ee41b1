package skyline

import (
	"container/heap"

	"github.com/orneryd/skyline/pkg/storage"
)

// frontier is the queue of nodes whose sub-route skyline holds labels that
// still need expanding.
//
// A node comes before another when every pending label of the first prefers
// (has a lower cost sum than) every label of the second. Ordering by the
// minimum pending preference is a linear extension of that partial order,
// so a binary heap on that key serves it. The order only affects how much
// work dominance pruning saves, never the result.
type frontier struct {
	items frontierHeap
	index map[storage.NodeID]*frontierItem
	seq   uint64
}

type frontierItem struct {
	node storage.NodeID
	key  float64
	seq  uint64
	pos  int
}

type frontierHeap []*frontierItem

func (h frontierHeap) Len() int { return len(h) }

func (h frontierHeap) Less(i, j int) bool {
	if h[i].key != h[j].key {
		return h[i].key < h[j].key
	}
	return h[i].seq < h[j].seq
}

func (h frontierHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].pos = i
	h[j].pos = j
}

func (h *frontierHeap) Push(x any) {
	it := x.(*frontierItem)
	it.pos = len(*h)
	*h = append(*h, it)
}

func (h *frontierHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

func newFrontier() *frontier {
	return &frontier{index: make(map[storage.NodeID]*frontierItem)}
}

// push enqueues node unless it is already queued; a queued node's key drops
// to preference when that is lower.
func (f *frontier) push(node storage.NodeID, preference float64) {
	if it, ok := f.index[node]; ok {
		if preference < it.key {
			it.key = preference
			heap.Fix(&f.items, it.pos)
		}
		return
	}
	it := &frontierItem{node: node, key: preference, seq: f.seq}
	f.seq++
	f.index[node] = it
	heap.Push(&f.items, it)
}

func (f *frontier) pop() (storage.NodeID, bool) {
	if len(f.items) == 0 {
		return "", false
	}
	it := heap.Pop(&f.items).(*frontierItem)
	delete(f.index, it.node)
	return it.node, true
}

func (f *frontier) len() int { return len(f.items) }
