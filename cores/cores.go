// Package cores models the fixed set of cores sharing the machine. A
// Domain is created once at startup with the core count; every core is
// identified by an integer in [0, Count()).
//
// The domain carries the machine's cooperative parking facility: a parked
// core issues no work at all until another core resumes it with a wake
// targeted at its identifier. There is no broadcast wake. Callers pair
// MonitorWait with a targeted Wake the way the parked queue lock does:
// the waiter parks on a word it owns, the releaser writes the word and
// wakes the stored core id.
package cores

import "github.com/coremesh/go-coresync/amo"

// A Domain is the set of cores participating in a run. It is created by a
// designated initializer before any core touches a primitive built on it.
type Domain struct {
	sems []chan struct{}
}

// NewDomain returns a domain of n cores. It returns nil if n is not
// positive.
func NewDomain(n int) *Domain {
	if n <= 0 {
		return nil
	}
	d := &Domain{sems: make([]chan struct{}, n)}
	for i := range d.sems {
		d.sems[i] = make(chan struct{}, 1)
	}
	return d
}

// Count returns the number of cores in the domain.
func (d *Domain) Count() int { return len(d.sems) }

// MonitorWait blocks core id until the word's value differs from
// expected. The core is truly suspended between checks; it is resumed
// only by a Wake aimed at id. The re-check loop means a wake that lands
// before the park is never lost: the semaphore retains the token.
func (d *Domain) MonitorWait(id int, w *amo.Word, expected uint32) {
	for w.Load() == expected {
		<-d.sems[id]
	}
}

// Wake resumes core id if it is parked, or arranges for its next
// MonitorWait check to proceed. Waking a core that is not waiting is
// harmless.
func (d *Domain) Wake(id int) {
	select {
	case d.sems[id] <- struct{}{}:
	default: // already pending; one token is enough
	}
}
