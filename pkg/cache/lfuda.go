package cache

import "container/list"

// lfudaPolicy is LFU with dynamic ageing. Ids live in buckets keyed by a
// priority: a new id enters at 1+age, a re-pushed id moves to 1+its current
// priority. The victim comes from the lowest non-empty bucket, oldest member
// first, and age becomes the victim's priority so that long-idle entries do
// not outrank fresh ones forever.
type lfudaPolicy[K comparable] struct {
	counters
	age      int
	buckets  map[int]*list.List
	priority map[K]int
	elements map[K]*list.Element
}

// NewLFUDA creates an LFU policy with dynamic ageing.
func NewLFUDA[K comparable]() Policy[K] {
	return &lfudaPolicy[K]{
		buckets:  make(map[int]*list.List),
		priority: make(map[K]int),
		elements: make(map[K]*list.Element),
	}
}

func (p *lfudaPolicy[K]) Push(id K) {
	key := 1 + p.age
	if old, ok := p.priority[id]; ok {
		key = 1 + old
		p.detach(id)
	}
	p.attach(id, key)
}

func (p *lfudaPolicy[K]) OnRead(id K) { p.Push(id) }

func (p *lfudaPolicy[K]) OnWrite(id K) {
	if _, ok := p.priority[id]; !ok {
		p.attach(id, 1+p.age)
	}
}

func (p *lfudaPolicy[K]) Peek() (K, bool) {
	var zero K
	if len(p.priority) == 0 {
		return zero, false
	}

	lowest, first := 0, true
	for key := range p.buckets {
		if first || key < lowest {
			lowest, first = key, false
		}
	}

	id := p.buckets[lowest].Front().Value.(K)
	p.detach(id)
	p.age = lowest
	return id, true
}

func (p *lfudaPolicy[K]) Remove(id K) {
	if _, ok := p.priority[id]; ok {
		p.detach(id)
	}
}

func (p *lfudaPolicy[K]) Len() int     { return len(p.priority) }
func (p *lfudaPolicy[K]) Name() string { return LFUDA }

// Age returns the priority of the most recent victim.
func (p *lfudaPolicy[K]) Age() int { return p.age }

func (p *lfudaPolicy[K]) attach(id K, key int) {
	b, ok := p.buckets[key]
	if !ok {
		b = list.New()
		p.buckets[key] = b
	}
	p.elements[id] = b.PushBack(id)
	p.priority[id] = key
}

// detach removes id from its bucket, dropping the bucket once empty.
func (p *lfudaPolicy[K]) detach(id K) {
	key := p.priority[id]
	b := p.buckets[key]
	b.Remove(p.elements[id])
	if b.Len() == 0 {
		delete(p.buckets, key)
	}
	delete(p.elements, id)
	delete(p.priority, id)
}
