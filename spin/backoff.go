package spin

import "runtime"

// Policy selects how long a contender delays between failed acquisition
// attempts. Backoff is the only livelock protection the spinlock family
// has; no variant carries a timeout.
type Policy int

const (
	// None retries immediately.
	None Policy = iota
	// Fixed delays a constant number of cycles between attempts.
	Fixed
	// Scaled multiplies the base delay by the number of consecutive
	// failures, approximating exponential backoff without unbounded
	// growth. This matches the machine's hardware-aided backoff, where
	// the failure count came straight from the store-conditional result.
	Scaled
)

// A Backoff combines a policy with its base delay in cycles.
type Backoff struct {
	Policy Policy
	Base   uint32
}

// delay pauses the calling core after its n-th consecutive failure.
func (b Backoff) delay(n uint32) {
	switch b.Policy {
	case None:
		runtime.Gosched()
	case Fixed:
		wait(b.Base)
	case Scaled:
		wait(n * b.Base)
	}
}

// wait busy-loops for roughly the given number of cycles. Long waits
// yield instead of saturating the processor, since goroutines, unlike the
// machine's cores, share OS threads.
const maxSpinCycles = 1 << 10

func wait(cycles uint32) {
	if cycles > maxSpinCycles {
		runtime.Gosched()
		cycles = maxSpinCycles
	}
	for i := uint32(0); i != cycles; i++ {
	}
}

// Delay pauses between iterations of a spin loop: short busy waits that
// double each attempt, then plain yields. Usage:
//
//	var attempts uint
//	for !trySomething() {
//		attempts = spin.Delay(attempts)
//	}
func Delay(attempts uint) uint {
	if attempts < 7 {
		for i := 0; i != 1<<attempts; i++ {
		}
		attempts++
	} else {
		runtime.Gosched()
	}
	return attempts
}
