package queue

import "github.com/coremesh/go-coresync/amo"

// nilIdx marks an empty link; node i is stored in link words as i+1.
const nilIdx uint32 = 0

// A node carries one enqueued value and its forward link. Both fields are
// amo words: next is written by other cores during linking, and value
// must never be torn against a concurrent recycle.
type node struct {
	value amo.Word
	next  amo.Word
}

// A Pool is a fixed arena of queue nodes. All links in this package are
// indices into a pool, so an index-sized reservation or compare-and-swap
// covers them, and "freeing" a node is pushing its index back onto the
// pool's free list. The free list is itself lock-free: a Treiber stack
// over stamped amo words, so a concurrently recycled index can never
// satisfy a stale reservation.
type Pool struct {
	nodes []node
	free  amo.Word
}

// NewPool returns a pool of capacity nodes, all free, or nil if capacity
// is not positive.
func NewPool(capacity int) *Pool {
	if capacity <= 0 {
		return nil
	}
	p := &Pool{nodes: make([]node, capacity)}
	for i := capacity - 1; i >= 0; i-- {
		p.nodes[i].next.Store(p.free.Load())
		p.free.Store(uint32(i) + 1)
	}
	return p
}

// Cap returns the pool's total node count.
func (p *Pool) Cap() int { return len(p.nodes) }

func (p *Pool) node(link uint32) *node { return &p.nodes[link-1] }

// get pops a free node index, or returns ErrNoNodes if the pool is empty.
func (p *Pool) get() (uint32, error) {
	for {
		head, r := p.free.LoadReserved()
		if head == nilIdx {
			return nilIdx, ErrNoNodes
		}
		next := p.node(head).next.Load()
		if p.free.StoreConditional(r, next) {
			return head, nil
		}
	}
}

// put pushes a node index back onto the free list.
func (p *Pool) put(idx uint32) {
	for {
		head, r := p.free.LoadReserved()
		p.node(idx).next.Store(head)
		if p.free.StoreConditional(r, idx) {
			return
		}
	}
}

// freeCount walks the free list; initialization and test helper, not safe
// against concurrent get/put.
func (p *Pool) freeCount() int {
	n := 0
	for idx := p.free.Load(); idx != nilIdx; idx = p.node(idx).next.Load() {
		n++
	}
	return n
}
