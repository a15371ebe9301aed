package queue

import "github.com/coremesh/go-coresync/amo"

// MSQueue is the Michael-Scott lock-free queue driven by composed
// compare-and-swap operations: some enqueuing or dequeuing core always
// makes progress, but no core is guaranteed a bounded number of retries.
//
// Because its swaps compare index values only, a consumed node must not
// re-enter circulation while any operation might still hold its index:
// Dequeue parks consumed nodes on a retired list, and Reclaim hands them
// back to the pool once the caller knows no operation is in flight.
type MSQueue struct {
	pool    *Pool
	head    amo.Word
	tail    amo.Word
	retired amo.Word
}

// NewMSQueue creates an empty queue drawing nodes from pool. It fails if
// the pool cannot supply the initial sentinel.
func NewMSQueue(pool *Pool) (*MSQueue, error) {
	sentinel, err := pool.get()
	if err != nil {
		return nil, err
	}
	pool.node(sentinel).next.Store(nilIdx)
	q := &MSQueue{pool: pool}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q, nil
}

// Enqueue links a new node behind the last one, then advances the tail
// best-effort; losing the tail advance to another core is not an error.
func (q *MSQueue) Enqueue(value uint32) error {
	n, err := q.pool.get()
	if err != nil {
		return err
	}
	q.pool.node(n).value.Store(value)
	q.pool.node(n).next.Store(nilIdx)

	var tail uint32
	for {
		tail = q.tail.Load()
		next := q.pool.node(tail).next.Load()
		if tail != q.tail.Load() { // tail moved under us; reread
			continue
		}
		if next == nilIdx {
			// tail was last; try to link ourselves behind it.
			if q.pool.node(tail).next.CompareAndSwap(nilIdx, n) {
				break
			}
		} else {
			// Tail is lagging; help it along before retrying.
			q.tail.CompareAndSwap(tail, next)
		}
	}
	q.tail.CompareAndSwap(tail, n)
	return nil
}

// Dequeue unlinks the oldest value by advancing the head past its
// sentinel. An empty queue returns ok=false; an observed lagging tail is
// advanced before retrying.
func (q *MSQueue) Dequeue() (uint32, bool) {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := q.pool.node(head).next.Load()
		if head != q.head.Load() {
			continue
		}
		if head == tail {
			if next == nilIdx {
				return 0, false
			}
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		value := q.pool.node(next).value.Load()
		if q.head.CompareAndSwap(head, next) {
			q.retire(head)
			return value, true
		}
	}
}

// retiredBit marks the link word of a node on the retired list. A stale
// enqueuer that still holds a retired index compares that node's link
// against nilIdx; the marker keeps the comparison failing even when the
// retired list is otherwise empty. Restricts pool indices to 2^31-1.
const retiredBit uint32 = 1 << 31

// retire pushes a consumed node onto the retired list.
func (q *MSQueue) retire(idx uint32) {
	for {
		head, r := q.retired.LoadReserved()
		q.pool.node(idx).next.Store(retiredBit | head)
		if q.retired.StoreConditional(r, idx) {
			return
		}
	}
}

// Reclaim returns every retired node to the pool. The caller asserts
// quiescence: no Enqueue or Dequeue may be in flight, typically between
// phases of a run. Skipping Reclaim only costs pool capacity, never
// correctness.
func (q *MSQueue) Reclaim() {
	idx := q.retired.Swap(nilIdx)
	for idx != nilIdx {
		next := q.pool.node(idx).next.Load() &^ retiredBit
		q.pool.put(idx)
		idx = next
	}
}
