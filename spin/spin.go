// Package spin implements single-word test-and-set mutexes in the two
// encodings the machine's atomic instructions admit: an atomic-swap
// mutex and a load-reserved/store-conditional mutex. Both come with a
// choice of backoff policy for the blocking acquire path.
//
// The spinlocks provide mutual exclusion only. There is no fairness
// guarantee and no timeout: a caller needing bounded wait must use
// TryLock and drive the retry itself.
package spin

import "github.com/coremesh/go-coresync/amo"

// Lock states of the mutex word.
const (
	unlocked uint32 = 0
	locked   uint32 = 1
)

// A Mutex is a single-word mutual exclusion lock. Both encodings in this
// package satisfy it, as do the queue locks built above them.
type Mutex interface {
	// TryLock attempts one acquisition without blocking and reports
	// whether it succeeded.
	TryLock() bool
	// Lock blocks, re-polling under the configured backoff, until the
	// lock is acquired.
	Lock()
	// Unlock releases the lock. It always succeeds.
	Unlock()
}

// SwapMutex is the atomic-swap encoding: an acquisition attempt
// unconditionally swaps in the locked state and succeeds iff the previous
// state was unlocked.
type SwapMutex struct {
	word    amo.Word
	backoff Backoff
}

// NewSwapMutex returns an unlocked swap-based mutex using the given
// backoff between failed blocking attempts.
func NewSwapMutex(b Backoff) *SwapMutex { return &SwapMutex{backoff: b} }

// TryLock attempts to acquire the mutex without blocking.
func (m *SwapMutex) TryLock() bool {
	return m.word.Swap(locked) == unlocked
}

// Lock busy-waits until the mutex is acquired.
func (m *SwapMutex) Lock() {
	var failures uint32
	for !m.TryLock() {
		failures++
		m.backoff.delay(failures)
	}
}

// Unlock releases the mutex.
func (m *SwapMutex) Unlock() {
	m.word.Swap(unlocked)
}

// IsLocked reports whether the mutex is currently held.
func (m *SwapMutex) IsLocked() bool { return m.word.Load() == locked }

// LRMutex is the reservation encoding: an acquisition attempt
// load-reserves the word and, only if it observed the unlocked state,
// tries to store-conditionally claim it. A busy lock fails the attempt
// without issuing any write, which keeps failed probes off the memory
// banks.
type LRMutex struct {
	word    amo.Word
	backoff Backoff
}

// NewLRMutex returns an unlocked reservation-based mutex using the given
// backoff between failed blocking attempts.
func NewLRMutex(b Backoff) *LRMutex { return &LRMutex{backoff: b} }

// TryLock attempts to acquire the mutex without blocking.
func (m *LRMutex) TryLock() bool {
	v, r := m.word.LoadReserved()
	if v != unlocked {
		return false
	}
	return m.word.StoreConditional(r, locked)
}

// Lock busy-waits until the mutex is acquired.
func (m *LRMutex) Lock() {
	var failures uint32
	for !m.TryLock() {
		failures++
		m.backoff.delay(failures)
	}
}

// Unlock releases the mutex.
func (m *LRMutex) Unlock() {
	m.word.Store(unlocked)
}

// IsLocked reports whether the mutex is currently held.
func (m *LRMutex) IsLocked() bool { return m.word.Load() == locked }
