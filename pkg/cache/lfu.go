package cache

import "container/heap"

// lfuEntry is one tracked id. seq breaks frequency ties in favour of the id
// tracked first.
type lfuEntry[K comparable] struct {
	id    K
	freq  int
	seq   uint64
	index int
}

type lfuHeap[K comparable] []*lfuEntry[K]

func (h lfuHeap[K]) Len() int { return len(h) }

func (h lfuHeap[K]) Less(i, j int) bool {
	if h[i].freq != h[j].freq {
		return h[i].freq < h[j].freq
	}
	return h[i].seq < h[j].seq
}

func (h lfuHeap[K]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *lfuHeap[K]) Push(x any) {
	e := x.(*lfuEntry[K])
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *lfuHeap[K]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// lfuPolicy evicts the least frequently accessed id. The first push seeds an
// id at frequency 0 and every further push increments it.
type lfuPolicy[K comparable] struct {
	counters
	entries map[K]*lfuEntry[K]
	heap    lfuHeap[K]
	seq     uint64
}

// NewLFU creates a least-frequently-used policy.
func NewLFU[K comparable]() Policy[K] {
	return &lfuPolicy[K]{entries: make(map[K]*lfuEntry[K])}
}

func (p *lfuPolicy[K]) Push(id K) {
	if e, ok := p.entries[id]; ok {
		e.freq++
		heap.Fix(&p.heap, e.index)
		return
	}
	p.track(id)
}

func (p *lfuPolicy[K]) track(id K) {
	e := &lfuEntry[K]{id: id, seq: p.seq}
	p.seq++
	p.entries[id] = e
	heap.Push(&p.heap, e)
}

// OnRead counts an access.
func (p *lfuPolicy[K]) OnRead(id K) { p.Push(id) }

// OnWrite only makes sure id is tracked. Writes follow a read of the same id,
// which already counted the access.
func (p *lfuPolicy[K]) OnWrite(id K) {
	if _, ok := p.entries[id]; !ok {
		p.track(id)
	}
}

func (p *lfuPolicy[K]) Peek() (K, bool) {
	var zero K
	if len(p.heap) == 0 {
		return zero, false
	}
	e := heap.Pop(&p.heap).(*lfuEntry[K])
	delete(p.entries, e.id)
	return e.id, true
}

func (p *lfuPolicy[K]) Remove(id K) {
	if e, ok := p.entries[id]; ok {
		heap.Remove(&p.heap, e.index)
		delete(p.entries, id)
	}
}

func (p *lfuPolicy[K]) Len() int     { return len(p.entries) }
func (p *lfuPolicy[K]) Name() string { return LFU }
