// Package queue provides a concurrent FIFO value queue in three
// interchangeable forms: a two-lock blocking queue guarded by a pair of
// spinlocks, the Michael-Scott lock-free queue over composed
// compare-and-swap, and a reservation-native lock-free variant that
// drives the same algorithm with paired load-reserved/store-conditional
// operations.
//
// All forms share one node representation. Nodes come from a fixed Pool
// and are linked by pool indices, never by pointers; every shared word is
// an amo.Word. The head of every queue names an already-consumed sentinel
// node whose successor is the first live element; the tail may lag behind
// the last reachable node and is advanced by whichever operation notices.
//
// Node reclamation differs by form. The two-lock and reservation-native
// queues return consumed nodes to the pool immediately: the locks,
// respectively the reservation stamps, make a recycled index harmless to
// concurrent operations. The Michael-Scott form parks consumed nodes on a
// retired list instead, and Reclaim returns them to the pool at a
// caller-asserted quiescent point, since its value-compared swaps would
// otherwise be exposed to index reuse.
package queue

import "errors"

// ErrNoNodes is returned by Enqueue when the pool has no free node; the
// allocation failure of the machine's allocator, surfaced as a sentinel.
var ErrNoNodes = errors.New("queue: node pool exhausted")

// A Queue is a FIFO multiset of 32-bit values with unbounded concurrent
// producers and consumers.
type Queue interface {
	// Enqueue appends value. It fails only if node allocation fails.
	Enqueue(value uint32) error
	// Dequeue removes and returns the oldest value. It returns ok=false
	// on an empty queue; it never blocks and never fails otherwise.
	Dequeue() (value uint32, ok bool)
}
