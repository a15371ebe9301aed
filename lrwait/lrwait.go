// Package lrwait implements the parked variant of the MCS fair queue
// lock. The queue discipline is identical to package mcs, but a queued
// core does not spin: it parks through the domain's monitor-wait
// facility and the predecessor resumes it with a wake targeted at its
// core identifier. While waiting, the node's state word doubles as the
// wake target, holding the waiting core's id.
//
// The trade against the spinning MCS lock is wake-up latency for
// interconnect bandwidth: a parked core issues nothing at all, but its
// predecessor must spend an explicit wake to hand the lock over.
package lrwait

import (
	"github.com/coremesh/go-coresync/amo"
	"github.com/coremesh/go-coresync/cores"
	"github.com/coremesh/go-coresync/spin"
)

// nilIdx marks an empty link; node i is stored in link words as i+1.
const nilIdx uint32 = 0

// QNode is a core's queueing record. While the core is queued, state
// holds its core id (+1) for wake targeting; the predecessor clears it
// to zero on hand-over.
type QNode struct {
	id    uint32
	next  amo.Word
	state amo.Word
}

// A Domain owns the per-core queue nodes and the park/wake facility its
// locks hand off through.
type Domain struct {
	cores *cores.Domain
	nodes []QNode
}

// NewDomain returns a lock domain over the given core domain, with one
// queue node per core. It returns nil if c is nil.
func NewDomain(c *cores.Domain) *Domain {
	if c == nil {
		return nil
	}
	d := &Domain{cores: c, nodes: make([]QNode, c.Count())}
	for i := range d.nodes {
		d.nodes[i].id = uint32(i)
	}
	return d
}

// Node returns core id's queue node.
func (d *Domain) Node(id int) *QNode { return &d.nodes[id] }

func (d *Domain) node(link uint32) *QNode { return &d.nodes[link-1] }

// Lock is the parked fair lock. The tail word holds the last queued
// node's index, or nilIdx when the lock is free.
type Lock struct {
	d    *Domain
	tail amo.Word
}

// NewLock creates a new parked fair lock over the domain's nodes.
func (d *Domain) NewLock() *Lock { return &Lock{d: d} }

// TryLock attempts to acquire the lock without blocking.
func (l *Lock) TryLock(node *QNode) bool {
	node.next.Store(nilIdx)
	return l.tail.CompareAndSwap(nilIdx, node.id+1)
}

// Lock acquires the lock. With a predecessor queued ahead, the calling
// core parks until that predecessor wakes it; admission is FIFO in
// tail-swap order.
func (l *Lock) Lock(node *QNode) {
	node.next.Store(nilIdx)
	prev := l.tail.Swap(node.id + 1)

	if prev == nilIdx {
		return
	}

	// Publish our core id as the wake target before becoming visible to
	// the predecessor, then link in behind it and park.
	node.state.Store(node.id + 1)
	l.d.node(prev).next.Swap(node.id + 1)

	l.d.cores.MonitorWait(int(node.id), &node.state, node.id+1)
}

// Unlock releases the lock. If a successor is queued (or mid-link), the
// lock is handed to it with a wake aimed at its stored core id.
func (l *Lock) Unlock(node *QNode) {
	if node.next.Load() == nilIdx {
		tail, r := l.tail.LoadReserved()
		if tail == node.id+1 {
			if l.tail.StoreConditional(r, nilIdx) {
				return
			}
		} else {
			// Usurper mid-link: re-publish the observed tail past our
			// draining node.
			l.tail.StoreConditional(r, tail)
		}

		var attempts uint
		for node.next.Load() == nilIdx {
			attempts = spin.Delay(attempts)
		}
	}

	succ := l.d.node(node.next.Load())
	target := succ.state.Load() // the waiting core's id, as stored on entry
	succ.state.Store(0)
	l.d.cores.Wake(int(target - 1))
}

// IsFree returns true if the lock is currently free.
func (l *Lock) IsFree() bool { return l.tail.Load() == nilIdx }
