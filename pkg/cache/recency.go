package cache

import (
	"container/list"
	"math"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// orderPolicy keeps ids in a simplelru list used purely for ordering; its
// size is unbounded so it never evicts on its own.
type orderPolicy[K comparable] struct {
	counters
	name string

	order *simplelru.LRU[K, struct{}]
	// refresh moves a re-pushed id to the newest position.
	refresh bool
}

func newOrderPolicy[K comparable](name string, refresh bool) *orderPolicy[K] {
	order, err := simplelru.NewLRU[K, struct{}](math.MaxInt, nil)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &orderPolicy[K]{name: name, order: order, refresh: refresh}
}

// NewFIFO evicts in insertion order. Re-pushing a tracked id keeps its
// original position.
func NewFIFO[K comparable]() Policy[K] {
	return newOrderPolicy[K](FIFO, false)
}

// NewLRU evicts the id pushed longest ago; every push refreshes.
func NewLRU[K comparable]() Policy[K] {
	return newOrderPolicy[K](LRU, true)
}

// NewMRU evicts the most recently pushed id; every push refreshes.
func NewMRU[K comparable]() Policy[K] {
	return &mruPolicy[K]{stack: list.New(), index: make(map[K]*list.Element)}
}

func (p *orderPolicy[K]) Push(id K) {
	if !p.refresh && p.order.Contains(id) {
		return
	}
	p.order.Add(id, struct{}{})
}

func (p *orderPolicy[K]) OnRead(id K)  { p.Push(id) }
func (p *orderPolicy[K]) OnWrite(id K) { p.Push(id) }

func (p *orderPolicy[K]) Peek() (K, bool) {
	id, _, ok := p.order.RemoveOldest()
	return id, ok
}

func (p *orderPolicy[K]) Remove(id K) { p.order.Remove(id) }
func (p *orderPolicy[K]) Len() int    { return p.order.Len() }
func (p *orderPolicy[K]) Name() string { return p.name }

// mruPolicy is a stack with the most recent id on top. simplelru only exposes
// its oldest entry, so the newest end is kept here.
type mruPolicy[K comparable] struct {
	counters
	stack *list.List
	index map[K]*list.Element
}

func (p *mruPolicy[K]) Push(id K) {
	if e, ok := p.index[id]; ok {
		p.stack.MoveToFront(e)
		return
	}
	p.index[id] = p.stack.PushFront(id)
}

func (p *mruPolicy[K]) OnRead(id K)  { p.Push(id) }
func (p *mruPolicy[K]) OnWrite(id K) { p.Push(id) }

func (p *mruPolicy[K]) Peek() (K, bool) {
	e := p.stack.Front()
	if e == nil {
		var zero K
		return zero, false
	}
	id := p.stack.Remove(e).(K)
	delete(p.index, id)
	return id, true
}

func (p *mruPolicy[K]) Remove(id K) {
	if e, ok := p.index[id]; ok {
		p.stack.Remove(e)
		delete(p.index, id)
	}
}

func (p *mruPolicy[K]) Len() int     { return len(p.index) }
func (p *mruPolicy[K]) Name() string { return MRU }
