// Package amo exposes the atomic operations of a banked shared-memory
// machine as a small, uniform interface: atomic swap, load-reserved /
// store-conditional, a compare-and-swap composed from the two, and an
// atomic add. Every shared word touched by the lock and queue packages in
// this module goes through a Word; nothing above this layer issues raw
// atomics.
//
// A Word holds a 32-bit value. Reservations are modeled explicitly: a
// LoadReserved returns the value together with a Reservation token, and a
// StoreConditional commits only if no write (by any party, including the
// reserving one) hit the word since the token was taken. Internally the
// value is packed with a 32-bit write stamp into a single uint64, so
// validating a reservation is one 64-bit compare-and-swap and every
// committed write invalidates all outstanding tokens. The stamp also makes
// index-valued words immune to ABA: a word that went 3 -> 0 -> 3 never
// matches a stale token. The stamp is 32 bits, so a token held across
// exactly 2^32 intervening writes to the same word would validate
// spuriously; like the counters the runtime's lfstack relies on, the
// window is assumed unreachable between a read and its commit.
//
// All operations are single-word and sequentially consistent.
package amo

import "sync/atomic"

// A Word is a 32-bit shared memory cell. The zero value holds 0.
type Word struct {
	packed atomic.Uint64 // high 32 bits: write stamp, low 32 bits: value
}

// A Reservation is the evidence returned by LoadReserved. It is valid for
// exactly one StoreConditional; abandoning it requires no operation.
type Reservation struct {
	snapshot uint64
}

func pack(stamp, val uint32) uint64 { return uint64(stamp)<<32 | uint64(val) }

func unpackVal(p uint64) uint32 { return uint32(p) }

func unpackStamp(p uint64) uint32 { return uint32(p >> 32) }

// Load returns the current value of the word.
func (w *Word) Load() uint32 {
	return unpackVal(w.packed.Load())
}

// Store writes v. It counts as a write for reservation purposes: every
// outstanding Reservation on the word is broken.
func (w *Word) Store(v uint32) {
	for {
		old := w.packed.Load()
		if w.packed.CompareAndSwap(old, pack(unpackStamp(old)+1, v)) {
			return
		}
	}
}

// Swap writes v and returns the previous value.
func (w *Word) Swap(v uint32) uint32 {
	for {
		old := w.packed.Load()
		if w.packed.CompareAndSwap(old, pack(unpackStamp(old)+1, v)) {
			return unpackVal(old)
		}
	}
}

// LoadReserved reads the word and establishes a reservation on it.
func (w *Word) LoadReserved() (uint32, Reservation) {
	p := w.packed.Load()
	return unpackVal(p), Reservation{snapshot: p}
}

// StoreConditional writes v if the reservation r is still intact, that is,
// if no write to the word committed since the matching LoadReserved. It
// reports whether the store happened.
func (w *Word) StoreConditional(r Reservation, v uint32) bool {
	return w.packed.CompareAndSwap(r.snapshot, pack(unpackStamp(r.snapshot)+1, v))
}

// CompareAndSwap writes new if the word currently holds old, composed from
// LoadReserved and StoreConditional the way the machine composes it. On a
// value mismatch the reservation token is simply dropped; no write is
// issued. It reports whether the swap happened.
func (w *Word) CompareAndSwap(old, new uint32) bool {
	v, r := w.LoadReserved()
	if v != old {
		return false
	}
	return w.StoreConditional(r, new)
}

// Add atomically adds delta to the word via an LR/SC retry loop and
// returns the new value. Delta may be negative through wraparound.
func (w *Word) Add(delta uint32) uint32 {
	for {
		v, r := w.LoadReserved()
		if w.StoreConditional(r, v+delta) {
			return v + delta
		}
	}
}
