package cores

import (
	"runtime"

	"github.com/coremesh/go-coresync/amo"
)

// A Barrier blocks callers until all participants have arrived. Benchmark
// drivers use it to separate an initialization phase from a measurement
// phase; the lock and queue primitives never call it.
//
// It is the classic centralized sense-reversing barrier: arrivals count up
// on one word, the last arrival resets the count and flips a shared sense
// word that all earlier arrivals are watching.
type Barrier struct {
	participants uint32
	arrived      amo.Word
	sense        amo.Word
}

// NewBarrier returns a barrier for n participants, or nil if n is not
// positive.
func NewBarrier(n int) *Barrier {
	if n <= 0 {
		return nil
	}
	return &Barrier{participants: uint32(n)}
}

// Wait blocks until all participants have called Wait for the current
// phase. The barrier is reusable: the next phase begins as soon as the
// last participant arrives.
func (b *Barrier) Wait() {
	sense := b.sense.Load()
	if b.arrived.Add(1) == b.participants {
		b.arrived.Store(0)
		b.sense.Store(sense + 1)
		return
	}
	for b.sense.Load() == sense {
		runtime.Gosched()
	}
}
