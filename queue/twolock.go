package queue

import (
	"github.com/coremesh/go-coresync/amo"
	"github.com/coremesh/go-coresync/spin"
)

// TwoLockQueue is the blocking form: head_lock serializes dequeues,
// tail_lock serializes enqueues, and the sentinel discipline keeps the
// two ends from ever touching the same node, so an enqueue and a dequeue
// proceed concurrently.
type TwoLockQueue struct {
	pool     *Pool
	head     amo.Word
	tail     amo.Word
	headLock spin.Mutex
	tailLock spin.Mutex
}

// NewTwoLockQueue creates an empty queue drawing nodes from pool and
// guarding its ends with the given mutexes (any spinlock variant). It
// fails if the pool cannot supply the initial sentinel.
func NewTwoLockQueue(pool *Pool, headLock, tailLock spin.Mutex) (*TwoLockQueue, error) {
	sentinel, err := pool.get()
	if err != nil {
		return nil, err
	}
	pool.node(sentinel).next.Store(nilIdx)
	q := &TwoLockQueue{pool: pool, headLock: headLock, tailLock: tailLock}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q, nil
}

// Enqueue appends value under the tail lock.
func (q *TwoLockQueue) Enqueue(value uint32) error {
	n, err := q.pool.get()
	if err != nil {
		return err
	}
	q.pool.node(n).value.Store(value)
	q.pool.node(n).next.Store(nilIdx)

	q.tailLock.Lock()
	q.pool.node(q.tail.Load()).next.Store(n)
	q.tail.Store(n)
	q.tailLock.Unlock()
	return nil
}

// Dequeue removes the oldest value under the head lock. An empty queue
// returns ok=false without blocking. The consumed sentinel goes straight
// back to the pool; the dequeued value's node becomes the new sentinel.
func (q *TwoLockQueue) Dequeue() (uint32, bool) {
	q.headLock.Lock()
	sentinel := q.head.Load()
	first := q.pool.node(sentinel).next.Load()
	if first == nilIdx {
		q.headLock.Unlock()
		return 0, false
	}
	value := q.pool.node(first).value.Load()
	q.head.Store(first)
	q.headLock.Unlock()

	q.pool.put(sentinel)
	return value, true
}

// Drain empties the queue back into the pool. It takes both locks, so it
// runs exclusively against producers and consumers.
func (q *TwoLockQueue) Drain() {
	q.headLock.Lock()
	q.tailLock.Lock()
	for {
		sentinel := q.head.Load()
		first := q.pool.node(sentinel).next.Load()
		if first == nilIdx {
			break
		}
		q.head.Store(first)
		q.pool.put(sentinel)
	}
	q.tailLock.Unlock()
	q.headLock.Unlock()
}
