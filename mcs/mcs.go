// Package mcs implements the Mellor-Crummey Scott (MCS) lock, a scalable FIFO queue-based spin lock.
//
// An MCS lock provides several advantages over the single-word spinlocks:
//   - FIFO ordering ensures fair lock acquisition
//   - Each core spins on its own node, not on the shared lock word, so
//     contention adds no traffic to the shared memory banks
//   - Memory usage is fixed: one node per core, allocated once
//
// Nodes live in a Domain, one per core, created once by a designated
// initializer and reused across every acquisition. A core therefore holds
// or waits on at most one lock of a domain at a time. Node links are core
// indices into the domain's table rather than pointers, and every shared
// word is driven through the amo layer.
//
// Example usage:
//
//	d := mcs.NewDomain(coreCount)
//	lock := d.NewLock()
//	node := d.Node(coreID)
//
//	lock.Lock(node)
//	// ... critical section ...
//	lock.Unlock(node)
package mcs

import (
	"github.com/coremesh/go-coresync/amo"
	"github.com/coremesh/go-coresync/spin"
)

// nilIdx marks an empty link; node i is stored in link words as i+1.
const nilIdx uint32 = 0

// QNode is a core's queueing record. Its next link is written by the
// successor during linking; its locked flag is cleared by the predecessor
// to transfer ownership.
type QNode struct {
	id     uint32
	next   amo.Word
	locked amo.Word
}

// A Domain owns the per-core queue nodes shared by all of its locks.
type Domain struct {
	nodes []QNode
}

// NewDomain returns a domain with one queue node per core, or nil if n is
// not positive.
func NewDomain(n int) *Domain {
	if n <= 0 {
		return nil
	}
	d := &Domain{nodes: make([]QNode, n)}
	for i := range d.nodes {
		d.nodes[i].id = uint32(i)
	}
	return d
}

// Count returns the number of cores the domain was created for.
func (d *Domain) Count() int { return len(d.nodes) }

// Node returns core id's queue node.
func (d *Domain) Node(id int) *QNode { return &d.nodes[id] }

func (d *Domain) node(link uint32) *QNode { return &d.nodes[link-1] }

// Lock represents the MCS lock. The tail word holds the last queued
// node's index, or nilIdx when the lock is free.
type Lock struct {
	d    *Domain
	tail amo.Word
}

// NewLock creates a new MCS lock over the domain's nodes.
func (d *Domain) NewLock() *Lock { return &Lock{d: d} }

// TryLock attempts to acquire the lock without blocking.
// Returns true if lock was acquired, false otherwise.
func (l *Lock) TryLock(node *QNode) bool {
	node.next.Store(nilIdx)
	return l.tail.CompareAndSwap(nilIdx, node.id+1)
}

// Lock acquires the lock, spinning locally on the caller's own node if a
// predecessor holds it. Admission is FIFO in tail-swap order.
func (l *Lock) Lock(node *QNode) {
	node.next.Store(nilIdx)
	prev := l.tail.Swap(node.id + 1) // atomically put ourselves at the tail

	if prev == nilIdx { // no predecessor, lock acquired
		return
	}

	// Mark ourselves waiting before becoming visible to the predecessor,
	// then link in behind it.
	node.locked.Store(1)
	l.d.node(prev).next.Swap(node.id + 1)

	// Spin until the predecessor hands the lock over. The spinning is
	// confined to our own node.
	var attempts uint
	for node.locked.Load() != 0 {
		attempts = spin.Delay(attempts)
	}
}

// Unlock releases the lock, transferring ownership to the successor if
// one exists.
func (l *Lock) Unlock(node *QNode) {
	if node.next.Load() == nilIdx {
		// No visible successor. Try to retract the tail: reserve it and,
		// if we are still the last node, conditionally clear it.
		tail, r := l.tail.LoadReserved()
		if tail == node.id+1 {
			if l.tail.StoreConditional(r, nilIdx) {
				return
			}
		} else {
			// A usurper already swapped itself in; re-publish the tail we
			// observed so the chain keeps pointing past our draining node.
			l.tail.StoreConditional(r, tail)
		}

		// Someone is mid-enqueue; wait for its link to become visible
		// before handing over.
		var attempts uint
		for node.next.Load() == nilIdx {
			attempts = spin.Delay(attempts)
		}
	}

	// Free our successor.
	l.d.node(node.next.Load()).locked.Store(0)
}

// IsFree returns true if the lock is currently free.
func (l *Lock) IsFree() bool { return l.tail.Load() == nilIdx }
