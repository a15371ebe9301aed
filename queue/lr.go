package queue

import "github.com/coremesh/go-coresync/amo"

// LRQueue is the reservation-native form of the Michael-Scott queue. The
// algorithm shape is MSQueue's, but linking and head/tail advancement
// carry the reservation from the load that made the decision to the
// store that commits it, instead of re-reserving inside a composed
// compare-and-swap.
//
// The carried reservations also close the reuse race: a store against a
// reservation taken before a node was recycled can never commit, so
// consumed nodes go straight back to the pool with no retired list.
type LRQueue struct {
	pool *Pool
	head amo.Word
	tail amo.Word
}

// NewLRQueue creates an empty queue drawing nodes from pool. It fails if
// the pool cannot supply the initial sentinel.
func NewLRQueue(pool *Pool) (*LRQueue, error) {
	sentinel, err := pool.get()
	if err != nil {
		return nil, err
	}
	pool.node(sentinel).next.Store(nilIdx)
	q := &LRQueue{pool: pool}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q, nil
}

// Enqueue links a new node behind the last one, then advances the tail
// best-effort.
func (q *LRQueue) Enqueue(value uint32) error {
	n, err := q.pool.get()
	if err != nil {
		return err
	}
	q.pool.node(n).value.Store(value)
	q.pool.node(n).next.Store(nilIdx)

	var tail uint32
	for {
		tail = q.tail.Load()
		next, r := q.pool.node(tail).next.LoadReserved()
		if tail != q.tail.Load() {
			continue
		}
		if next == nilIdx {
			// The reservation on tail's link is still the one under which
			// we saw it empty; committing it links us or fails cleanly.
			if q.pool.node(tail).next.StoreConditional(r, n) {
				break
			}
		} else {
			q.advanceTail(tail, next)
		}
	}
	q.advanceTail(tail, n)
	return nil
}

// Dequeue unlinks the oldest value by advancing the head past its
// sentinel; the consumed sentinel is recycled immediately.
func (q *LRQueue) Dequeue() (uint32, bool) {
	for {
		head, r := q.head.LoadReserved()
		tail := q.tail.Load()
		next := q.pool.node(head).next.Load()
		if head != q.head.Load() {
			continue
		}
		if head == tail {
			if next == nilIdx {
				return 0, false
			}
			q.advanceTail(tail, next)
			continue
		}
		value := q.pool.node(next).value.Load()
		if q.head.StoreConditional(r, next) {
			q.pool.put(head)
			return value, true
		}
	}
}

// advanceTail moves the tail from an observed lagging position; losing
// to another core's advance is fine.
func (q *LRQueue) advanceTail(tail, to uint32) {
	v, r := q.tail.LoadReserved()
	if v == tail {
		q.tail.StoreConditional(r, to)
	}
}
